package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/sandevgo/mnemo/internal/config"
	"github.com/sandevgo/mnemo/internal/service/chat"
	"github.com/sandevgo/mnemo/internal/service/memory"
	"github.com/sandevgo/mnemo/pkg/log"
)

type ReadLine struct {
	cfg    *config.AppConfig
	chat   *chat.Service
	engine *memory.Engine
	rl     *readline.Instance

	conversationID string
}

func NewReadLine(chatSvc *chat.Service, engine *memory.Engine, cfg *config.AppConfig) (*ReadLine, error) {
	// Ensure runtime directory exists
	if err := os.MkdirAll(cfg.RuntimePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create runtime directory: %w", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          ">>> ",
		HistoryFile:     filepath.Join(cfg.RuntimePath, "input_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}

	return &ReadLine{
		cfg:    cfg,
		chat:   chatSvc,
		engine: engine,
		rl:     rl,
	}, nil
}

func (r *ReadLine) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	logger.Info().Msg("ReadLine chat started. Type 'exit' to quit, '/stats' for cache stats, '/new' for a fresh conversation.")

	for {
		// Check context before blocking read
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := r.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				if len(line) == 0 {
					return nil // Exit on Ctrl+C
				}
				continue
			} else if err == io.EOF {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "exit" {
			return nil
		}
		if line == "" {
			continue
		}
		if r.handleCommand(line) {
			continue
		}

		reply, convID, err := r.chat.Respond(ctx, r.conversationID, line)
		if err != nil {
			logger.Error().Err(err).Msg("chat failed")
			fmt.Fprintf(r.rl.Stdout(), "Error: %v\n", err)
			continue
		}
		r.conversationID = convID

		fmt.Fprintf(r.rl.Stdout(), "%s\n", reply)
	}
}

func (r *ReadLine) handleCommand(line string) bool {
	switch line {
	case "/stats":
		stats := r.engine.CacheStats()
		fmt.Fprintf(r.rl.Stdout(),
			"cache: %d/%d items, %d/%d bytes, hit rate %.2f (hits %d, misses %d, rejected %d)\n",
			stats.CurrentItems, stats.MaxItems,
			stats.CurrentSizeBytes, stats.MaxSizeBytes,
			stats.HitRate, stats.Hits, stats.Misses, stats.Rejected)
		return true
	case "/new":
		r.conversationID = ""
		fmt.Fprintln(r.rl.Stdout(), "started a new conversation")
		return true
	}
	return false
}

func (r *ReadLine) Shutdown(ctx context.Context) error {
	if r.rl != nil {
		return r.rl.Close()
	}
	return nil
}
