package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sandevgo/mnemo/internal/core"
	"github.com/sandevgo/mnemo/internal/recovery"
	"github.com/sandevgo/mnemo/internal/vector"
	"github.com/sandevgo/mnemo/pkg/log"
)

// Engine is the memory subsystem facade. The persistent store is
// authoritative; cache and vector index are derived layers that can be
// rebuilt from it.
type Engine struct {
	store    core.RecordStore
	cache    *Cache
	scorer   *Scorer
	contexts *ContextManager
	index    *vector.Index
	recovery *recovery.Coordinator

	cacheTTL      time.Duration
	minSimilarity float64
	prewarmLimit  int
}

type EngineParams struct {
	Store    core.RecordStore
	Cache    *Cache
	Scorer   *Scorer
	Contexts *ContextManager
	Index    *vector.Index
	Recovery *recovery.Coordinator

	CacheTTL      time.Duration
	MinSimilarity float64
	PrewarmLimit  int
}

func NewEngine(p EngineParams) *Engine {
	return &Engine{
		store:         p.Store,
		cache:         p.Cache,
		scorer:        p.Scorer,
		contexts:      p.Contexts,
		index:         p.Index,
		recovery:      p.Recovery,
		cacheTTL:      p.CacheTTL,
		minSimilarity: p.MinSimilarity,
		prewarmLimit:  p.PrewarmLimit,
	}
}

// Init loads persisted state and prewarms the cache with the
// highest-priority records. Pending recovery operations from a previous
// run are surfaced in the log, never silently dropped.
func (e *Engine) Init(ctx context.Context) error {
	logger := log.FromCtx(ctx)

	if err := e.recovery.Load(ctx); err != nil {
		return fmt.Errorf("load recovery state: %w", err)
	}
	for _, op := range e.recovery.PendingOperations() {
		logger.Warn().
			Str("operation", op.Operation).
			Str("target", op.TargetPath).
			Str("backup", op.BackupPath).
			Time("started", op.Timestamp).
			Msg("unfinished operation from previous run")
	}

	if err := e.index.Load(ctx); err != nil {
		logger.Warn().Err(err).Msg("vector index unreadable, rebuilding from store")
	}

	records, err := e.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load record store: %w", err)
	}

	e.prewarm(ctx, records)
	e.reindex(ctx, records)

	logger.Info().
		Int("records", len(records)).
		Int("cached", e.cache.Stats().CurrentItems).
		Int("indexed", e.index.Len()).
		Msg("memory engine initialized")
	return nil
}

// RecordInteraction persists a new exchange: classify, embed, append to
// the durable store under recovery protection, then update the derived
// layers. Cache rejection is non-fatal.
func (e *Engine) RecordInteraction(ctx context.Context, conversationID, text, response string) (core.MemoryRecord, error) {
	if strings.TrimSpace(text) == "" {
		return core.MemoryRecord{}, fmt.Errorf("%w: empty message", core.ErrInvalidInput)
	}

	rec := core.MemoryRecord{
		ID:             newRecordID(),
		Text:           text,
		Response:       response,
		Timestamp:      time.Now(),
		ConversationID: conversationID,
	}
	rec.Priority = e.scorer.Classify(rec)

	err := e.recovery.Do(ctx, recovery.OpContext{
		Type:     "append_record",
		FilePath: e.store.Path(),
		Key:      rec.ID,
	}, func() error {
		return e.store.Append(ctx, rec)
	})
	if err != nil {
		return core.MemoryRecord{}, fmt.Errorf("persist record: %w", err)
	}

	if err := e.index.Add(ctx, rec.ID, text+" "+response, indexMetadata(rec)); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("id", rec.ID).Msg("vector index update failed")
	}

	if err := e.cache.Set(rec.ID, rec, e.cacheTTL); err != nil {
		log.FromCtx(ctx).Debug().Str("id", rec.ID).Msg("cache rejected new record")
	}

	if conversationID != "" {
		e.contexts.Append(conversationID, text, response)
	}
	e.scorer.UpdateOnAccess(rec.ID, rec, core.AccessWrite)

	return rec, nil
}

// RetrieveRelevant ranks stored memories against the query and the
// active conversation. The store supplies every candidate; the
// similarity search marks matching index entries as accessed so the
// retention prune keeps them.
func (e *Engine) RetrieveRelevant(ctx context.Context, conversationID, query string) ([]core.ScoredRecord, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", core.ErrInvalidInput)
	}

	records, err := e.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load record store: %w", err)
	}

	candidates := make(map[string]core.MemoryRecord, len(records))
	for _, rec := range records {
		candidates[rec.ID] = rec
	}
	for _, rec := range e.cache.GetAll() {
		candidates[rec.ID] = rec
	}

	// Every indexed record is already in the candidate map, so the search
	// contributes no new candidates. Its hits refresh lastAccessed on the
	// index side, which is what keeps queried-for memories out of the
	// retention prune. Ranking is the scorer's job.
	hits, err := e.index.SearchText(ctx, query, vector.SearchOptions{
		TopK:     e.scorer.relevanceLimit,
		MinScore: e.minSimilarity,
	})
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("vector search failed")
	}

	pool := make([]core.MemoryRecord, 0, len(candidates))
	for _, rec := range candidates {
		pool = append(pool, rec)
	}

	window := e.contexts.Get(conversationID)
	scored := e.scorer.Relevance(query, conversationID, window, pool)

	for _, sr := range scored {
		e.scorer.UpdateOnAccess(sr.ID, sr.MemoryRecord, core.AccessRead)
	}

	log.FromCtx(ctx).Debug().
		Int("candidates", len(pool)).
		Int("vector_hits", len(hits)).
		Int("returned", len(scored)).
		Msg("memory retrieval")
	return scored, nil
}

// GetContext returns the active conversation window, oldest first.
func (e *Engine) GetContext(conversationID string) []core.Exchange {
	return e.contexts.Get(conversationID)
}

// MergeContexts folds one conversation window into another.
func (e *Engine) MergeContexts(targetID, sourceID string) bool {
	return e.contexts.Merge(targetID, sourceID)
}

// NewConversationID mints an id for a fresh conversation.
func (e *Engine) NewConversationID() string {
	return e.contexts.GenerateID()
}

func (e *Engine) CacheStats() core.CacheStats {
	return e.cache.Stats()
}

// OptimizeStorage shrinks the store to maxBytes of serialized records,
// dropping the lowest-priority ones. The rewrite re-packs payloads, so
// on-disk size usually lands well under the budget. Pruned records
// leave the cache and scorer state too. A no-op when the store already
// fits.
func (e *Engine) OptimizeStorage(ctx context.Context, maxBytes int64) error {
	records, err := e.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load record store: %w", err)
	}

	var currentSize int64
	for _, rec := range records {
		currentSize += entrySize(rec)
	}
	if currentSize <= maxBytes {
		return nil
	}

	kept := e.scorer.PruneByPriority(records, maxBytes)

	err = e.recovery.Do(ctx, recovery.OpContext{
		Type:     "optimize_storage",
		FilePath: e.store.Path(),
	}, func() error {
		return e.store.Rewrite(ctx, kept)
	})
	if err != nil {
		return fmt.Errorf("rewrite record store: %w", err)
	}

	keptIDs := make(map[string]struct{}, len(kept))
	for _, rec := range kept {
		keptIDs[rec.ID] = struct{}{}
	}
	for _, rec := range records {
		if _, ok := keptIDs[rec.ID]; !ok {
			e.cache.Delete(rec.ID)
			e.scorer.Forget(rec.ID)
		}
	}

	log.FromCtx(ctx).Info().
		Int("before", len(records)).
		Int("after", len(kept)).
		Msg("storage optimized")
	return nil
}

func (e *Engine) prewarm(ctx context.Context, records []core.MemoryRecord) {
	if e.prewarmLimit <= 0 || len(records) == 0 {
		return
	}

	sorted := e.scorer.SortByPriority(records)
	if len(sorted) > e.prewarmLimit {
		sorted = sorted[:e.prewarmLimit]
	}

	var rejected int
	for _, rec := range sorted {
		if err := e.cache.Set(rec.ID, rec, e.cacheTTL); err != nil {
			rejected++
		}
	}
	if rejected > 0 {
		log.FromCtx(ctx).Debug().Int("rejected", rejected).Msg("cache prewarm partial")
	}
}

// reindex backfills vector entries for records missing from the loaded
// index, so an index lost on disk rebuilds itself over a restart.
func (e *Engine) reindex(ctx context.Context, records []core.MemoryRecord) {
	for _, rec := range records {
		if e.index.Has(rec.ID) {
			continue
		}
		if err := e.index.Add(ctx, rec.ID, rec.Text+" "+rec.Response, indexMetadata(rec)); err != nil {
			log.FromCtx(ctx).Warn().Err(err).Str("id", rec.ID).Msg("reindex failed")
		}
	}
}

func indexMetadata(rec core.MemoryRecord) map[string]string {
	meta := map[string]string{"type": "conversation"}
	if rec.ConversationID != "" {
		meta["conversationId"] = rec.ConversationID
	}
	return meta
}

func newRecordID() string {
	return fmt.Sprintf("mem_%d_%s", time.Now().UnixMilli(), shortID())
}
