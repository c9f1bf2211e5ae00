package core

import "time"

const (
	MnemoName          = "Mnemo"
	MnemoVersion       = "0.1.0"
	MnemoRepositoryURL = "https://github.com/sandevgo/mnemo"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MemoryRecord is one stored interaction. The persistent store owns the
// authoritative copy; the cache may hold a read-through duplicate.
type MemoryRecord struct {
	ID             string    `json:"id"`
	Text           string    `json:"text"`
	Response       string    `json:"response"`
	Timestamp      time.Time `json:"timestamp"`
	ConversationID string    `json:"conversationId,omitempty"`
	Priority       float64   `json:"priority,omitempty"`
	Embedding      []float64 `json:"embedding,omitempty"`
	Compressed     bool      `json:"compressed,omitempty"`
}

// ScoredRecord is a record annotated with its retrieval relevance score.
type ScoredRecord struct {
	MemoryRecord
	Score float64 `json:"score"`
}

// Exchange is a single message/response pair inside a conversation window.
type Exchange struct {
	Message   string    `json:"message"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AccessKind distinguishes read hits from mutating accesses when
// updating priority state.
type AccessKind string

const (
	AccessRead   AccessKind = "read"
	AccessWrite  AccessKind = "write"
	AccessModify AccessKind = "modify"
)

type CacheStats struct {
	Hits             int64   `json:"hits"`
	Misses           int64   `json:"misses"`
	Added            int64   `json:"added"`
	Rejected         int64   `json:"rejected"`
	Evictions        int64   `json:"evictions"`
	CurrentItems     int     `json:"currentItems"`
	MaxItems         int     `json:"maxItems"`
	CurrentSizeBytes int64   `json:"currentSizeBytes"`
	MaxSizeBytes     int64   `json:"maxSizeBytes"`
	HitRate          float64 `json:"hitRate"`
}

// ContextSummary is the compact view of a conversation window.
type ContextSummary struct {
	ExchangeCount  int       `json:"exchangeCount"`
	FirstTimestamp time.Time `json:"firstTimestamp"`
	LastTimestamp  time.Time `json:"lastTimestamp"`
	Previews       []Preview `json:"previews"`
}

type Preview struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
