package core

import "context"

// Embedder converts text into a fixed-dimension vector. The default
// implementation is the deterministic hash embedder; a real embedding
// model can be swapped in without touching ranking logic.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Dimensions() int
}

// RecordStore is the authoritative, durable record log.
type RecordStore interface {
	Load(ctx context.Context) ([]MemoryRecord, error)
	Append(ctx context.Context, record MemoryRecord) error
	Rewrite(ctx context.Context, records []MemoryRecord) error
	Path() string
}

// Completer is the outbound language-model completion capability.
// Calls must respect ctx deadlines; a deadline hit surfaces as
// ErrCompletionTimeout, never a silent retry.
type Completer interface {
	Chat(ctx context.Context, history []Message) (Message, error)
}
