package vector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sandevgo/mnemo/internal/core"
	"github.com/sandevgo/mnemo/pkg/log"
)

// Entry is one indexed memory: its embedding, caller-supplied metadata
// and the access time that drives retention pruning.
type Entry struct {
	ID           string            `json:"id"`
	Embedding    []float64         `json:"embedding"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastAccessed time.Time         `json:"lastAccessed"`
}

type SearchOptions struct {
	TopK     int
	MinScore float64
	Filter   func(Entry) bool
}

type Result struct {
	Entry
	Similarity float64
}

// Index is an in-memory id->embedding map with cosine-similarity search
// and JSON file persistence. It is best-effort state: losing it never
// affects the authoritative record store.
type Index struct {
	path     string
	embedder core.Embedder

	mu      sync.RWMutex
	entries map[string]*Entry
}

func NewIndex(path string, embedder core.Embedder) *Index {
	return &Index{
		path:     path,
		embedder: embedder,
		entries:  make(map[string]*Entry),
	}
}

// Load reads a previously persisted index. A missing file is a clean
// start, not an error.
func (ix *Index) Load(ctx context.Context) error {
	data, err := os.ReadFile(ix.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read index: %w", err)
	}

	entries := make(map[string]*Entry)
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse index: %w", err)
	}

	ix.mu.Lock()
	ix.entries = entries
	ix.mu.Unlock()

	log.FromCtx(ctx).Info().Int("entries", len(entries)).Msg("vector index loaded")
	return nil
}

// Save persists the index atomically.
func (ix *Index) Save(ctx context.Context) error {
	ix.mu.RLock()
	data, err := json.Marshal(ix.entries)
	ix.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(ix.path), 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(ix.path), ".index-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, ix.path); err != nil {
		return fmt.Errorf("replace index file: %w", err)
	}

	log.FromCtx(ctx).Debug().Int("entries", ix.Len()).Msg("vector index saved")
	return nil
}

// Add embeds text and indexes it under id. An existing entry for the
// same id is replaced.
func (ix *Index) Add(ctx context.Context, id, text string, metadata map[string]string) error {
	embedding, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed text: %w", err)
	}

	ix.mu.Lock()
	ix.entries[id] = &Entry{
		ID:           id,
		Embedding:    embedding,
		Metadata:     metadata,
		LastAccessed: time.Now(),
	}
	ix.mu.Unlock()
	return nil
}

// SearchText embeds the query and delegates to Search.
func (ix *Index) SearchText(ctx context.Context, query string, opts SearchOptions) ([]Result, error) {
	queryVec, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return ix.Search(queryVec, opts), nil
}

// Search ranks candidates by cosine similarity, applies the filter
// before ranking and the score threshold after truncation, and refreshes
// lastAccessed on every returned hit.
func (ix *Index) Search(queryVec []float64, opts SearchOptions) []Result {
	if opts.TopK <= 0 {
		opts.TopK = 3
	}

	ix.mu.RLock()
	candidates := make([]Result, 0, len(ix.entries))
	for _, entry := range ix.entries {
		if opts.Filter != nil && !opts.Filter(*entry) {
			continue
		}
		candidates = append(candidates, Result{
			Entry:      *entry,
			Similarity: CosineSimilarity(queryVec, entry.Embedding),
		})
	}
	ix.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})
	if len(candidates) > opts.TopK {
		candidates = candidates[:opts.TopK]
	}
	if opts.MinScore > 0 {
		kept := candidates[:0]
		for _, r := range candidates {
			if r.Similarity >= opts.MinScore {
				kept = append(kept, r)
			}
		}
		candidates = kept
	}

	if len(candidates) > 0 {
		now := time.Now()
		ix.mu.Lock()
		for _, r := range candidates {
			if entry, ok := ix.entries[r.ID]; ok {
				entry.LastAccessed = now
			}
		}
		ix.mu.Unlock()
	}

	return candidates
}

// Prune drops entries whose last access predates the cutoff and reports
// how many were removed.
func (ix *Index) Prune(cutoff time.Time) int {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	removed := 0
	for id, entry := range ix.entries {
		if entry.LastAccessed.Before(cutoff) {
			delete(ix.entries, id)
			removed++
		}
	}
	return removed
}

func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Has reports whether id is indexed.
func (ix *Index) Has(id string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.entries[id]
	return ok
}

// CosineSimilarity measures directional closeness of two vectors,
// independent of magnitude. Mismatched or zero vectors score 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
