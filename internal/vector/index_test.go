package vector

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vector_index.json")
	return NewIndex(path, NewHashEmbedder(100))
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{name: "identical", a: []float64{1, 0, 0}, b: []float64{1, 0, 0}, want: 1},
		{name: "orthogonal", a: []float64{1, 0, 0}, b: []float64{0, 1, 0}, want: 0},
		{name: "opposite", a: []float64{1, 0, 0}, b: []float64{-1, 0, 0}, want: -1},
		{name: "zero_vector", a: []float64{0, 0, 0}, b: []float64{1, 2, 3}, want: 0},
		{name: "mismatched_dims", a: []float64{1, 2}, b: []float64{1, 2, 3}, want: 0},
		{name: "empty", a: nil, b: nil, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIndex_AddAndSearch(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	docs := map[string]string{
		"m1": "the cat sat on the mat",
		"m2": "dogs chase cats around the yard",
		"m3": "quarterly financial report for the board",
	}
	for id, text := range docs {
		if err := ix.Add(ctx, id, text, map[string]string{"type": "conversation"}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	results, err := ix.SearchText(ctx, "the cat sat on the mat", SearchOptions{TopK: 2})
	if err != nil {
		t.Fatalf("SearchText: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ID != "m1" {
		t.Errorf("top result = %s, want m1 (exact text match)", results[0].ID)
	}
	if math.Abs(results[0].Similarity-1) > 1e-9 {
		t.Errorf("exact match similarity = %v, want 1", results[0].Similarity)
	}
	if results[0].Similarity < results[1].Similarity {
		t.Error("results not sorted descending by similarity")
	}
}

func TestIndex_SearchFilter(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	if err := ix.Add(ctx, "recent", "shared topic words here", nil); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := ix.Add(ctx, "stale", "shared topic words here", nil); err != nil {
		t.Fatalf("Add: %v", err)
	}

	results, err := ix.SearchText(ctx, "shared topic words", SearchOptions{
		TopK:   10,
		Filter: func(e Entry) bool { return e.ID != "stale" },
	})
	if err != nil {
		t.Fatalf("SearchText: %v", err)
	}
	if len(results) != 1 || results[0].ID != "recent" {
		t.Errorf("filter not applied: %+v", results)
	}
}

func TestIndex_SearchMinScore(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	if err := ix.Add(ctx, "match", "alpha beta gamma", nil); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := ix.Add(ctx, "noise", "entirely different vocabulary set", nil); err != nil {
		t.Fatalf("Add: %v", err)
	}

	results, err := ix.SearchText(ctx, "alpha beta gamma", SearchOptions{TopK: 10, MinScore: 0.95})
	if err != nil {
		t.Fatalf("SearchText: %v", err)
	}
	if len(results) != 1 || results[0].ID != "match" {
		t.Errorf("min score filter not applied: %+v", results)
	}
}

func TestIndex_SearchRefreshesLastAccessed(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	if err := ix.Add(ctx, "m1", "some indexed content", nil); err != nil {
		t.Fatalf("Add: %v", err)
	}

	stale := time.Now().Add(-48 * time.Hour)
	ix.mu.Lock()
	ix.entries["m1"].LastAccessed = stale
	ix.mu.Unlock()

	if _, err := ix.SearchText(ctx, "some indexed content", SearchOptions{TopK: 1}); err != nil {
		t.Fatalf("SearchText: %v", err)
	}

	ix.mu.RLock()
	accessed := ix.entries["m1"].LastAccessed
	ix.mu.RUnlock()
	if !accessed.After(stale) {
		t.Error("search hit did not refresh lastAccessed")
	}
}

func TestIndex_Prune(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	if err := ix.Add(ctx, "old", "ancient entry", nil); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := ix.Add(ctx, "new", "fresh entry", nil); err != nil {
		t.Fatalf("Add: %v", err)
	}

	ix.mu.Lock()
	ix.entries["old"].LastAccessed = time.Now().Add(-31 * 24 * time.Hour)
	ix.mu.Unlock()

	removed := ix.Prune(time.Now().Add(-30 * 24 * time.Hour))
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if ix.Has("old") {
		t.Error("stale entry survived prune")
	}
	if !ix.Has("new") {
		t.Error("fresh entry pruned")
	}
}

func TestIndex_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vector_index.json")
	embedder := NewHashEmbedder(100)

	ix := NewIndex(path, embedder)
	if err := ix.Add(ctx, "m1", "persisted content", map[string]string{"conversationId": "conv_1"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := ix.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded := NewIndex(path, embedder)
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reloaded.Len() != 1 {
		t.Fatalf("reloaded %d entries, want 1", reloaded.Len())
	}

	results, err := reloaded.SearchText(ctx, "persisted content", SearchOptions{TopK: 1})
	if err != nil {
		t.Fatalf("SearchText: %v", err)
	}
	if len(results) != 1 || results[0].ID != "m1" {
		t.Fatalf("reloaded index not searchable: %+v", results)
	}
	if results[0].Metadata["conversationId"] != "conv_1" {
		t.Error("metadata lost across save/load")
	}
}

func TestIndex_LoadMissingFile(t *testing.T) {
	ix := newTestIndex(t)
	if err := ix.Load(context.Background()); err != nil {
		t.Fatalf("Load of missing file should be a clean start, got: %v", err)
	}
	if ix.Len() != 0 {
		t.Errorf("expected empty index, got %d entries", ix.Len())
	}
}
