package memory

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sandevgo/mnemo/internal/core"
)

const (
	// DecayRate is the priority lost per day since creation.
	DecayRate = 0.1
	// InteractionBoost applies on access, fading over 24 hours.
	InteractionBoost = 0.5
	// EmotionBoost applies once for emotional content.
	EmotionBoost = 0.3
	// ContextBoost weights the accumulated context-affinity score.
	ContextBoost = 0.4

	accessBoostWindow = 24 * time.Hour
)

// Scorer classifies record importance and tracks derived priority state.
// It holds only scalars keyed by record id, never record bodies.
type Scorer struct {
	relevanceLimit int
	minRelevance   float64

	mu            sync.Mutex
	priorities    map[string]float64
	lastAccess    map[string]time.Time
	contextScores map[string]float64

	now func() time.Time
}

func NewScorer(relevanceLimit int, minRelevance float64) *Scorer {
	if relevanceLimit <= 0 {
		relevanceLimit = 5
	}
	return &Scorer{
		relevanceLimit: relevanceLimit,
		minRelevance:   minRelevance,
		priorities:     make(map[string]float64),
		lastAccess:     make(map[string]time.Time),
		contextScores:  make(map[string]float64),
		now:            time.Now,
	}
}

// Classify assigns a base priority from the ordered rule table plus
// content boosts. Greetings short-circuit to the lowest level no matter
// what else matches; identity questions force the high tier.
func (s *Scorer) Classify(rec core.MemoryRecord) float64 {
	content := rec.Text + " " + rec.Response

	if greetingPattern.MatchString(content) {
		return PriorityLow
	}
	if identityPattern.MatchString(content) {
		return PriorityHigh
	}

	priority := PriorityLow
	switch {
	case matchesAny(criticalPatterns, content):
		priority = PriorityCritical
	case matchesAny(highPatterns, content):
		priority = PriorityHigh
	case matchesAny(mediumPatterns, content):
		priority = PriorityMedium
	}

	var boost float64

	if matchesAny(emotionPatterns, content) {
		boost += EmotionBoost
	}

	wordCount := len(strings.Fields(content))
	if wordCount > 50 {
		boost += 0.2
	}
	if wordCount > 100 {
		boost += 0.3
	}

	// Code-like content outranks plain chatter regardless of tier.
	if strings.Contains(content, "```") || codePattern.MatchString(content) {
		boost += 1.5
		if priority < PriorityMedium {
			priority = PriorityMedium
		}
	}

	if urlPattern.MatchString(content) {
		boost += 0.3
	}

	return priority + boost
}

// Decay is linear in elapsed days since creation, floored at zero.
func (s *Scorer) Decay(timestamp time.Time) float64 {
	days := s.now().Sub(timestamp).Hours() / 24
	if days < 0 {
		return 0
	}
	return DecayRate * days
}

// CurrentPriority combines the memoized base classification, the fading
// access boost, the accumulated context affinity and decay. Never
// negative.
func (s *Scorer) CurrentPriority(id string, rec core.MemoryRecord) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentPriorityLocked(id, rec)
}

func (s *Scorer) currentPriorityLocked(id string, rec core.MemoryRecord) float64 {
	base, ok := s.priorities[id]
	if !ok {
		base = s.Classify(rec)
		s.priorities[id] = base
	}

	priority := base

	if last, ok := s.lastAccess[id]; ok {
		hours := s.now().Sub(last).Hours()
		if hours >= 0 && hours < accessBoostWindow.Hours() {
			priority += InteractionBoost * (1 - hours/accessBoostWindow.Hours())
		}
	}

	priority += s.contextScores[id]
	priority -= s.Decay(rec.Timestamp)

	if priority < 0 {
		return 0
	}
	return priority
}

// UpdateOnAccess stamps the access time. Write and modify accesses fold
// the current priority back into the base, so priority under writes is
// monotonically non-decreasing.
func (s *Scorer) UpdateOnAccess(id string, rec core.MemoryRecord, kind core.AccessKind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.currentPriorityLocked(id, rec)
	s.lastAccess[id] = s.now()

	if kind == core.AccessWrite || kind == core.AccessModify {
		s.priorities[id] = current + InteractionBoost
	}
}

// UpdateContextScore accumulates affinity between a record and its
// neighbors: temporal proximity (24 h exponential), conversation
// continuity and plain word overlap.
func (s *Scorer) UpdateContextScore(id string, related []core.MemoryRecord) {
	var target *core.MemoryRecord
	for i := range related {
		if related[i].ID == id {
			target = &related[i]
			break
		}
	}
	if target == nil {
		return
	}

	targetWords := wordSet(target.Text)

	var contextScore float64
	for _, other := range related {
		if other.ID == id {
			continue
		}

		timeDiff := target.Timestamp.Sub(other.Timestamp).Abs()
		timeScore := decayExp(timeDiff, 24*time.Hour)

		var conversationScore float64
		if target.ConversationID != "" && target.ConversationID == other.ConversationID {
			conversationScore = 1
		}

		otherWords := wordSet(other.Text)
		similarityScore := overlapRatio(targetWords, otherWords)

		contextScore += (timeScore + conversationScore + similarityScore) / 3
	}

	s.mu.Lock()
	s.contextScores[id] = contextScore * ContextBoost
	s.mu.Unlock()
}

// SortByPriority orders records by current priority, highest first.
func (s *Scorer) SortByPriority(records []core.MemoryRecord) []core.MemoryRecord {
	sorted := make([]core.MemoryRecord, len(records))
	copy(sorted, records)

	sort.SliceStable(sorted, func(i, j int) bool {
		return s.CurrentPriority(sorted[i].ID, sorted[i]) > s.CurrentPriority(sorted[j].ID, sorted[j])
	})
	return sorted
}

// PruneByPriority keeps the highest-priority records that fit within
// maxBytes of serialized size, dropping the rest.
func (s *Scorer) PruneByPriority(records []core.MemoryRecord, maxBytes int64) []core.MemoryRecord {
	sorted := s.SortByPriority(records)

	kept := make([]core.MemoryRecord, 0, len(sorted))
	var currentSize int64
	for _, rec := range sorted {
		data, err := json.Marshal(rec)
		if err != nil {
			continue
		}
		if currentSize+int64(len(data)) > maxBytes {
			continue
		}
		kept = append(kept, rec)
		currentSize += int64(len(data))
	}
	return kept
}

// Forget drops all derived state for a record id.
func (s *Scorer) Forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.priorities, id)
	delete(s.lastAccess, id)
	delete(s.contextScores, id)
}

func decayExp(elapsed, horizon time.Duration) float64 {
	if horizon <= 0 {
		return 0
	}
	return expNeg(float64(elapsed) / float64(horizon))
}
