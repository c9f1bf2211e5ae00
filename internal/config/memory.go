package config

import (
	"context"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/mnemo/pkg/log"
)

type MemoryConfig struct {
	// Cache admission bounds. Inserts beyond either bound are rejected,
	// not evicted.
	CacheMaxItems  int           `env:"MNEMO_CACHE_MAX_ITEMS" envDefault:"1500"`
	CacheMaxSizeMB int           `env:"MNEMO_CACHE_MAX_SIZE_MB" envDefault:"75"`
	CacheTTL       time.Duration `env:"MNEMO_CACHE_TTL" envDefault:"30m"`

	// Conversation windows
	ContextWindowSize int           `env:"MNEMO_CONTEXT_WINDOW" envDefault:"10"`
	ContextTTL        time.Duration `env:"MNEMO_CONTEXT_TTL" envDefault:"30m"`

	// Retrieval
	RetrievalLimit int     `env:"MNEMO_RETRIEVAL_LIMIT" envDefault:"5"`
	MinRelevance   float64 `env:"MNEMO_MIN_RELEVANCE" envDefault:"0.2"`
	MinSimilarity  float64 `env:"MNEMO_MIN_SIMILARITY" envDefault:"0.65"`

	// Vector index
	VectorDimensions  int           `env:"MNEMO_VECTOR_DIMENSIONS" envDefault:"100"`
	IndexSaveInterval time.Duration `env:"MNEMO_INDEX_SAVE_INTERVAL" envDefault:"24h"`
	IndexRetention    time.Duration `env:"MNEMO_INDEX_RETENTION" envDefault:"720h"`

	// Storage
	CompressionThreshold int `env:"MNEMO_COMPRESSION_THRESHOLD" envDefault:"1024"`

	// Recovery
	MaxRetries   int           `env:"MNEMO_MAX_RETRIES" envDefault:"3"`
	BackupMaxAge time.Duration `env:"MNEMO_BACKUP_MAX_AGE" envDefault:"24h"`

	// Boundary validation
	MaxPromptLength int `env:"MNEMO_MAX_PROMPT_LENGTH" envDefault:"2000"`

	// Outbound completion deadline
	CompletionTimeout time.Duration `env:"MNEMO_COMPLETION_TIMEOUT" envDefault:"2m"`

	// Startup cache prewarm
	PrewarmLimit int `env:"MNEMO_PREWARM_LIMIT" envDefault:"100"`
}

func NewMemoryConfig(ctx context.Context) *MemoryConfig {
	c := &MemoryConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Memory config")
	}
	return c
}

func (c MemoryConfig) CacheMaxSizeBytes() int64 {
	return int64(c.CacheMaxSizeMB) * 1024 * 1024
}
