package config

import (
	"context"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/mnemo/pkg/log"
)

type AppConfig struct {
	RuntimePath string `env:"MNEMO_RUNTIME_PATH" envDefault:".mnemo"`

	// MasterKey enables encryption of the record store. Leaving it unset
	// keeps the store in plaintext mode (a warning is logged at startup).
	MasterKey string `env:"MNEMO_MASTER_KEY"`

	// Allow selecting the provider
	LLMProvider string `env:"LLM_PROVIDER" envDefault:"openrouter"`
	Model       string `env:"LLM_MODEL" envDefault:"google/gemma-3-27b-it:free"`

	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	OpenRouterAPIKey string `env:"OPENROUTER_API_KEY"`
	CustomBaseURL    string `env:"CUSTOM_OPENAI_BASE_URL"`
	CustomAPIKey     string `env:"CUSTOM_OPENAI_API_KEY"`

	// Transport Flags
	EnableCLI bool `env:"ENABLE_CLI" envDefault:"true"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse App config")
	}
	return c
}

func (c AppConfig) GetRuntimePath() string {
	return c.RuntimePath
}

func (c AppConfig) GetMemoriesDir() string {
	return filepath.Join(c.RuntimePath, "memories")
}

func (c AppConfig) GetStorePath() string {
	return filepath.Join(c.GetMemoriesDir(), "memory.json")
}

func (c AppConfig) GetIndexPath() string {
	return filepath.Join(c.GetMemoriesDir(), "vector_index.json")
}

func (c AppConfig) GetBackupDir() string {
	return filepath.Join(c.RuntimePath, "backups")
}
