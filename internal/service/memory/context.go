package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sandevgo/mnemo/internal/core"
	"github.com/sandevgo/mnemo/pkg/log"
)

const (
	DefaultContextWindow = 10
	DefaultContextTTL    = 30 * time.Minute

	previewLength = 100
)

type conversation struct {
	exchanges    []core.Exchange
	lastActivity time.Time
}

// ContextManager keeps a sliding window of recent exchanges per
// conversation. Windows expire after a period of inactivity.
type ContextManager struct {
	window int
	ttl    time.Duration

	mu            sync.Mutex
	conversations map[string]*conversation

	now func() time.Time
}

func NewContextManager(window int, ttl time.Duration) *ContextManager {
	if window <= 0 {
		window = DefaultContextWindow
	}
	if ttl <= 0 {
		ttl = DefaultContextTTL
	}
	return &ContextManager{
		window:        window,
		ttl:           ttl,
		conversations: make(map[string]*conversation),
		now:           time.Now,
	}
}

// GenerateID mints a conversation id unique across restarts.
func (m *ContextManager) GenerateID() string {
	return fmt.Sprintf("conv_%d_%s", time.Now().UnixMilli(), shortID())
}

// Append records an exchange, creating the conversation if needed and
// trimming the oldest entries beyond the window.
func (m *ContextManager) Append(conversationID, message, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[conversationID]
	if !ok {
		conv = &conversation{}
		m.conversations[conversationID] = conv
	}

	conv.exchanges = append(conv.exchanges, core.Exchange{
		Message:   message,
		Response:  response,
		Timestamp: m.now(),
	})
	if excess := len(conv.exchanges) - m.window; excess > 0 {
		conv.exchanges = conv.exchanges[excess:]
	}
	conv.lastActivity = m.now()
}

// Get returns a copy of the conversation window, oldest first. Unknown
// ids yield an empty slice.
func (m *ContextManager) Get(conversationID string) []core.Exchange {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[conversationID]
	if !ok {
		return nil
	}
	out := make([]core.Exchange, len(conv.exchanges))
	copy(out, conv.exchanges)
	return out
}

// Summarize produces the compact view of a conversation window.
func (m *ContextManager) Summarize(conversationID string) (core.ContextSummary, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[conversationID]
	if !ok || len(conv.exchanges) == 0 {
		return core.ContextSummary{}, false
	}

	summary := core.ContextSummary{
		ExchangeCount:  len(conv.exchanges),
		FirstTimestamp: conv.exchanges[0].Timestamp,
		LastTimestamp:  conv.exchanges[len(conv.exchanges)-1].Timestamp,
		Previews:       make([]core.Preview, 0, len(conv.exchanges)),
	}
	for _, ex := range conv.exchanges {
		summary.Previews = append(summary.Previews, core.Preview{
			Message:   truncate(ex.Message, previewLength),
			Timestamp: ex.Timestamp,
		})
	}
	return summary, true
}

// Merge folds source into target ordered by timestamp, trims to the
// window keeping the newest entries, and deletes source. Returns false
// when either conversation is absent or empty.
func (m *ContextManager) Merge(targetID, sourceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	target, okT := m.conversations[targetID]
	source, okS := m.conversations[sourceID]
	if !okT || !okS || len(target.exchanges) == 0 || len(source.exchanges) == 0 {
		return false
	}

	merged := append(target.exchanges, source.exchanges...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})
	if excess := len(merged) - m.window; excess > 0 {
		merged = merged[excess:]
	}

	target.exchanges = merged
	target.lastActivity = m.now()
	delete(m.conversations, sourceID)
	return true
}

// CleanupExpired drops conversations idle past the TTL and returns how
// many were removed.
func (m *ContextManager) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.ttl)
	var removed int
	for id, conv := range m.conversations {
		if conv.lastActivity.Before(cutoff) {
			delete(m.conversations, id)
			removed++
		}
	}
	return removed
}

func (m *ContextManager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conversations)
}

// truncate cuts on rune boundaries so previews never end mid-character.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func shortID() string {
	id := uuid.NewString()
	return strings.SplitN(id, "-", 2)[0]
}

// Sweeper expires idle conversation windows on the context TTL cadence.
type Sweeper struct {
	contexts *ContextManager
	interval time.Duration
}

func NewSweeper(contexts *ContextManager, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultContextTTL
	}
	return &Sweeper{contexts: contexts, interval: interval}
}

func (s *Sweeper) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx).With().Str("component", "context_sweeper").Logger()
	logger.Info().Msg("starting conversation context sweeper")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down conversation context sweeper")
			return nil
		case <-ticker.C:
			if removed := s.contexts.CleanupExpired(); removed > 0 {
				logger.Info().Int("removed", removed).Msg("expired idle conversations")
			}
		}
	}
}

func (s *Sweeper) Shutdown(ctx context.Context) error {
	return nil
}
