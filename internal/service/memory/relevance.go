package memory

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sandevgo/mnemo/internal/core"
)

// Scoring weights for relevance ranking. Term and phrase overlap carry
// most of the signal; conversational context, stored priority and
// recency nudge the ordering.
const (
	termWeight     = 0.4
	phraseWeight   = 0.4
	contextWeight  = 0.2
	priorityWeight = 0.2
	recencyBoost   = 0.2

	recencyWindow = time.Hour
	contextWindow = 12 * time.Hour
)

var stopwords = map[string]struct{}{
	"the": {}, "is": {}, "at": {}, "which": {}, "on": {}, "a": {},
	"an": {}, "and": {}, "or": {}, "but": {}, "in": {}, "with": {},
	"to": {}, "for": {},
}

// Relevance ranks candidate records against a query and the recent
// conversation, returning at most relevanceLimit records scoring above
// minRelevance, best first.
func (s *Scorer) Relevance(query, conversationID string, context []core.Exchange, candidates []core.MemoryRecord) []core.ScoredRecord {
	queryTerms := extractKeyTerms(query)
	queryPhrases := extractPhrases(query)

	scored := make([]core.ScoredRecord, 0, len(candidates))
	now := s.now()

	for _, rec := range candidates {
		text := rec.Text + " " + rec.Response

		termScore := setOverlap(queryTerms, extractKeyTerms(text))
		phraseScore := setOverlap(queryPhrases, extractPhrases(text))
		contextScore := s.contextSimilarity(rec, conversationID, context)

		score := termScore*termWeight +
			phraseScore*phraseWeight +
			contextScore*contextWeight +
			s.CurrentPriority(rec.ID, rec)*priorityWeight

		if now.Sub(rec.Timestamp) < recencyWindow {
			score += recencyBoost
		}

		scored = append(scored, core.ScoredRecord{MemoryRecord: rec, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > s.relevanceLimit {
		scored = scored[:s.relevanceLimit]
	}

	out := scored[:0]
	for _, sr := range scored {
		if sr.Score > s.minRelevance {
			out = append(out, sr)
		}
	}
	return out
}

// contextSimilarity measures how tied a record is to the ongoing
// conversation: shared conversation id, temporal proximity inside a
// 12 hour window, and keyword overlap with recent exchanges.
func (s *Scorer) contextSimilarity(rec core.MemoryRecord, conversationID string, context []core.Exchange) float64 {
	if len(context) == 0 {
		return 0
	}

	var score float64

	if conversationID != "" && rec.ConversationID == conversationID {
		score += 0.5
	}

	recent := context[len(context)-1]
	if diff := recent.Timestamp.Sub(rec.Timestamp).Abs(); diff < contextWindow {
		score += (1 - float64(diff)/float64(contextWindow)) * 0.3
	}

	recTerms := extractKeyTerms(rec.Text)
	var contextText strings.Builder
	for _, ex := range context {
		contextText.WriteString(ex.Message)
		contextText.WriteString(" ")
	}
	score += setOverlap(recTerms, extractKeyTerms(contextText.String())) * 0.4

	return score
}

// extractKeyTerms lowercases, splits on whitespace and keeps words
// longer than two characters that are not stopwords.
func extractKeyTerms(text string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'()[]{}")
		if len(word) <= 2 {
			continue
		}
		if _, stop := stopwords[word]; stop {
			continue
		}
		terms[word] = struct{}{}
	}
	return terms
}

// extractPhrases yields every two and three word window.
func extractPhrases(text string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))
	phrases := make(map[string]struct{})
	for i := 0; i < len(words)-1; i++ {
		phrases[words[i]+" "+words[i+1]] = struct{}{}
		if i < len(words)-2 {
			phrases[words[i]+" "+words[i+1]+" "+words[i+2]] = struct{}{}
		}
	}
	return phrases
}

// setOverlap is |a ∩ b| / max(|a|, |b|).
func setOverlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var common int
	for k := range a {
		if _, ok := b[k]; ok {
			common++
		}
	}
	return float64(common) / math.Max(float64(len(a)), float64(len(b)))
}

func wordSet(text string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		words[w] = struct{}{}
	}
	return words
}

func overlapRatio(a, b map[string]struct{}) float64 {
	return setOverlap(a, b)
}

func expNeg(x float64) float64 {
	return math.Exp(-x)
}
