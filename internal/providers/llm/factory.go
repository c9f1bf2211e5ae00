package llm

import (
	"context"
	"fmt"

	"github.com/sandevgo/mnemo/internal/config"
	"github.com/sandevgo/mnemo/internal/core"
	"github.com/sandevgo/mnemo/pkg/log"
)

// NewCompleter creates the configured completion provider.
func NewCompleter(ctx context.Context, cfg *config.AppConfig) (core.Completer, error) {
	log.FromCtx(ctx).Info().
		Str("provider", cfg.LLMProvider).
		Str("model", cfg.Model).
		Msg("starting llm provider")

	switch cfg.LLMProvider {
	case "openai":
		return NewOpenAICompatible(OpenAICompatibleConfig{
			BaseURL:    "https://api.openai.com",
			APIKey:     cfg.OpenAIAPIKey,
			Model:      cfg.Model,
			AuthHeader: "Authorization",
			AuthPrefix: "Bearer ",
		}), nil
	case "openrouter":
		return NewOpenAICompatible(OpenAICompatibleConfig{
			BaseURL:    "https://openrouter.ai/api",
			APIKey:     cfg.OpenRouterAPIKey,
			Model:      cfg.Model,
			AuthHeader: "Authorization",
			AuthPrefix: "Bearer ",
			ExtraHeaders: map[string]string{
				"HTTP-Referer": core.MnemoRepositoryURL,
				"X-Title":      core.MnemoName,
			},
		}), nil
	case "custom":
		if cfg.CustomBaseURL == "" {
			return nil, fmt.Errorf("custom provider requires CUSTOM_OPENAI_BASE_URL")
		}
		return NewOpenAICompatible(OpenAICompatibleConfig{
			BaseURL:    cfg.CustomBaseURL,
			APIKey:     cfg.CustomAPIKey,
			Model:      cfg.Model,
			AuthHeader: "Authorization",
			AuthPrefix: "Bearer ",
		}), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.LLMProvider)
	}
}
