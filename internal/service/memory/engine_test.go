package memory

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sandevgo/mnemo/internal/core"
	"github.com/sandevgo/mnemo/internal/recovery"
	"github.com/sandevgo/mnemo/internal/storage/memfile"
	"github.com/sandevgo/mnemo/internal/vector"
)

func newTestEngine(t *testing.T) (*Engine, core.RecordStore) {
	t.Helper()
	dir := t.TempDir()

	store := memfile.New(filepath.Join(dir, "memory.json"), nil, nil)
	index := vector.NewIndex(filepath.Join(dir, "vector_index.json"), vector.NewHashEmbedder(100))
	coord := recovery.NewCoordinator(filepath.Join(dir, "backups"), 3)

	e := NewEngine(EngineParams{
		Store:         store,
		Cache:         NewCache(100, 1<<20),
		Scorer:        newTestScorer(),
		Contexts:      NewContextManager(10, time.Hour),
		Index:         index,
		Recovery:      coord,
		CacheTTL:      30 * time.Minute,
		MinSimilarity: 0.65,
		PrewarmLimit:  100,
	})
	if err := e.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return e, store
}

func TestEngine_RecordInteraction(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t)

	rec, err := e.RecordInteraction(ctx, "conv_1", "my deploy key is stored in vault", "noted")
	if err != nil {
		t.Fatalf("RecordInteraction: %v", err)
	}
	if !strings.HasPrefix(rec.ID, "mem_") {
		t.Errorf("record id = %q, want mem_ prefix", rec.ID)
	}
	if rec.Priority != PriorityCritical {
		t.Errorf("priority = %v, want critical", rec.Priority)
	}

	// Durable store is authoritative.
	records, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 1 || records[0].ID != rec.ID {
		t.Fatalf("store contents = %+v", records)
	}

	// Derived layers follow.
	if _, ok := e.cache.Get(rec.ID); !ok {
		t.Error("record not cached")
	}
	if !e.index.Has(rec.ID) {
		t.Error("record not indexed")
	}
	if len(e.GetContext("conv_1")) != 1 {
		t.Error("conversation window not updated")
	}
}

func TestEngine_RecordInteractionRejectsEmpty(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.RecordInteraction(context.Background(), "conv_1", "   ", "reply")
	if !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("got %v, want ErrInvalidInput", err)
	}
}

func TestEngine_RetrieveRelevant(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	if _, err := e.RecordInteraction(ctx, "conv_1", "my favorite editor is helix", "good choice"); err != nil {
		t.Fatalf("RecordInteraction: %v", err)
	}
	if _, err := e.RecordInteraction(ctx, "conv_1", "the cat knocked over a plant", "oh no"); err != nil {
		t.Fatalf("RecordInteraction: %v", err)
	}

	scored, err := e.RetrieveRelevant(ctx, "conv_1", "which editor is my favorite")
	if err != nil {
		t.Fatalf("RetrieveRelevant: %v", err)
	}
	if len(scored) == 0 {
		t.Fatal("no results")
	}
	if !strings.Contains(scored[0].Text, "editor") {
		t.Errorf("top result = %q, want the editor memory", scored[0].Text)
	}
}

func TestEngine_RetrieveRelevantRejectsEmptyQuery(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.RetrieveRelevant(context.Background(), "conv_1", "")
	if !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("got %v, want ErrInvalidInput", err)
	}
}

func TestEngine_InitPrewarmsAndReindexes(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	storePath := filepath.Join(dir, "memory.json")

	seed := memfile.New(storePath, nil, nil)
	if err := seed.Append(ctx, core.MemoryRecord{
		ID: "mem_1", Text: "remember the wifi password", Timestamp: time.Now(),
	}); err != nil {
		t.Fatalf("seed Append: %v", err)
	}

	e := NewEngine(EngineParams{
		Store:         memfile.New(storePath, nil, nil),
		Cache:         NewCache(100, 1<<20),
		Scorer:        newTestScorer(),
		Contexts:      NewContextManager(10, time.Hour),
		Index:         vector.NewIndex(filepath.Join(dir, "vector_index.json"), vector.NewHashEmbedder(100)),
		Recovery:      recovery.NewCoordinator(filepath.Join(dir, "backups"), 3),
		CacheTTL:      time.Hour,
		MinSimilarity: 0.65,
		PrewarmLimit:  100,
	})
	if err := e.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}

	if _, ok := e.cache.Get("mem_1"); !ok {
		t.Error("prewarm did not cache the stored record")
	}
	if !e.index.Has("mem_1") {
		t.Error("reindex did not backfill the vector entry")
	}
}

func TestEngine_OptimizeStorage(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t)

	if _, err := e.RecordInteraction(ctx, "", "my account password is hunter2", "stored safely"); err != nil {
		t.Fatalf("RecordInteraction: %v", err)
	}
	if _, err := e.RecordInteraction(ctx, "", "saw an interesting cloud formation today", "nice"); err != nil {
		t.Fatalf("RecordInteraction: %v", err)
	}

	records, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	var total int64
	for _, rec := range records {
		total += entrySize(rec)
	}

	if err := e.OptimizeStorage(ctx, total*3/4); err != nil {
		t.Fatalf("OptimizeStorage: %v", err)
	}

	after, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load after optimize: %v", err)
	}
	if len(after) != 1 {
		t.Fatalf("kept %d records, want 1", len(after))
	}
	if !strings.Contains(after[0].Text, "password") {
		t.Errorf("kept %q, want the critical record", after[0].Text)
	}

	// Pruned records leave the cache too.
	for _, rec := range records {
		if rec.ID == after[0].ID {
			continue
		}
		if _, ok := e.cache.Get(rec.ID); ok {
			t.Error("pruned record still cached")
		}
	}
}

func TestEngine_OptimizeStorageNoopUnderBudget(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t)

	if _, err := e.RecordInteraction(ctx, "", "keep this one around", "ok"); err != nil {
		t.Fatalf("RecordInteraction: %v", err)
	}

	if err := e.OptimizeStorage(ctx, 1<<30); err != nil {
		t.Fatalf("OptimizeStorage: %v", err)
	}

	records, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("record count changed under budget: %d", len(records))
	}
}

func TestEngine_MergeContexts(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	a := e.NewConversationID()
	b := e.NewConversationID()
	if _, err := e.RecordInteraction(ctx, a, "first thread message", "ok"); err != nil {
		t.Fatalf("RecordInteraction: %v", err)
	}
	if _, err := e.RecordInteraction(ctx, b, "second thread message", "ok"); err != nil {
		t.Fatalf("RecordInteraction: %v", err)
	}

	if !e.MergeContexts(a, b) {
		t.Fatal("merge failed")
	}
	if len(e.GetContext(a)) != 2 {
		t.Errorf("merged window size = %d, want 2", len(e.GetContext(a)))
	}
	if len(e.GetContext(b)) != 0 {
		t.Error("source window survived merge")
	}
}

func TestEngine_CacheStats(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	if _, err := e.RecordInteraction(ctx, "", "track this memory please", "done"); err != nil {
		t.Fatalf("RecordInteraction: %v", err)
	}

	stats := e.CacheStats()
	if stats.CurrentItems != 1 {
		t.Errorf("currentItems = %d, want 1", stats.CurrentItems)
	}
	if stats.Added != 1 {
		t.Errorf("added = %d, want 1", stats.Added)
	}
}
