package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sandevgo/mnemo/internal/config"
	"github.com/sandevgo/mnemo/internal/crypto"
	"github.com/sandevgo/mnemo/internal/providers/llm"
	"github.com/sandevgo/mnemo/internal/recovery"
	"github.com/sandevgo/mnemo/internal/service/chat"
	"github.com/sandevgo/mnemo/internal/service/memory"
	"github.com/sandevgo/mnemo/internal/storage/memfile"
	"github.com/sandevgo/mnemo/internal/transport/cli"
	"github.com/sandevgo/mnemo/internal/vector"
	"github.com/sandevgo/mnemo/pkg/log"
	"github.com/sandevgo/mnemo/pkg/srv"
)

func NewServices(ctx context.Context) []srv.Service {
	logger := log.FromCtx(ctx)
	services := make([]srv.Service, 0)

	// init env
	appCfg := config.NewAppConfig(ctx)
	if err := initEnv(ctx, appCfg.GetRuntimePath()); err != nil {
		logger.Fatal().Err(err).Msg("failed to init env")
	}

	// Re-parse after .env so file-provided variables take effect
	appCfg = config.NewAppConfig(ctx)
	memCfg := config.NewMemoryConfig(ctx)

	// 1. Encryption
	var codec *crypto.Codec
	if appCfg.MasterKey == "" {
		logger.Warn().Msg("MNEMO_MASTER_KEY not set, encryption disabled")
	} else {
		var err error
		codec, err = crypto.NewCodec(appCfg.MasterKey)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid master key")
		}
	}

	// 2. Durable record store
	store := memfile.New(
		appCfg.GetStorePath(),
		codec,
		memfile.NewCompressor(memCfg.CompressionThreshold),
	)

	// 3. Vector index and its maintenance worker
	embedder := vector.NewHashEmbedder(memCfg.VectorDimensions)
	index := vector.NewIndex(appCfg.GetIndexPath(), embedder)
	services = append(services, vector.NewMaintenance(index, memCfg.IndexSaveInterval, memCfg.IndexRetention))

	// 4. Recovery
	coordinator := recovery.NewCoordinator(appCfg.GetBackupDir(), memCfg.MaxRetries)
	services = append(services, recovery.NewBackupCleaner(coordinator, memCfg.BackupMaxAge, memCfg.BackupMaxAge))

	// 5. Memory engine
	contexts := memory.NewContextManager(memCfg.ContextWindowSize, memCfg.ContextTTL)
	services = append(services, memory.NewSweeper(contexts, memCfg.ContextTTL))

	engine := memory.NewEngine(memory.EngineParams{
		Store:         store,
		Cache:         memory.NewCache(memCfg.CacheMaxItems, memCfg.CacheMaxSizeBytes()),
		Scorer:        memory.NewScorer(memCfg.RetrievalLimit, memCfg.MinRelevance),
		Contexts:      contexts,
		Index:         index,
		Recovery:      coordinator,
		CacheTTL:      memCfg.CacheTTL,
		MinSimilarity: memCfg.MinSimilarity,
		PrewarmLimit:  memCfg.PrewarmLimit,
	})
	if err := engine.Init(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize memory engine")
	}
	services = append(services, srv.NewCleanup(func() error {
		stats := engine.CacheStats()
		logger.Info().
			Int64("hits", stats.Hits).
			Int64("misses", stats.Misses).
			Float64("hit_rate", stats.HitRate).
			Msg("final cache stats")
		return nil
	}))

	// 6. AI Provider
	completer, err := llm.NewCompleter(ctx, appCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize LLM provider")
	}

	// 7. Chat Service
	chatSvc := chat.New(engine, completer, memCfg.MaxPromptLength, memCfg.CompletionTimeout)

	// 8. Transports
	if appCfg.EnableCLI {
		repl, err := cli.NewReadLine(chatSvc, engine, appCfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize CLI transport")
		}
		services = append(services, repl)
	}

	return services
}

func initEnv(ctx context.Context, runtimePath string) error {
	logger := log.FromCtx(ctx)
	envFile := filepath.Join(runtimePath, ".env")

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}
