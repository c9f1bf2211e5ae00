package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sandevgo/mnemo/internal/core"
	"github.com/sandevgo/mnemo/internal/service/memory"
	"github.com/sandevgo/mnemo/pkg/log"
)

// Service answers prompts with memory-augmented completions: retrieve
// relevant memories, fold them into the system prompt together with the
// conversation window, complete, then record the exchange.
type Service struct {
	engine          *memory.Engine
	ai              core.Completer
	maxPromptLength int
	timeout         time.Duration
}

func New(engine *memory.Engine, ai core.Completer, maxPromptLength int, timeout time.Duration) *Service {
	return &Service{
		engine:          engine,
		ai:              ai,
		maxPromptLength: maxPromptLength,
		timeout:         timeout,
	}
}

// Respond handles one prompt. An empty conversationID starts a new
// conversation; the id in use is returned either way.
func (s *Service) Respond(ctx context.Context, conversationID, prompt string) (string, string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", conversationID, fmt.Errorf("%w: empty prompt", core.ErrInvalidInput)
	}
	if s.maxPromptLength > 0 && len(prompt) > s.maxPromptLength {
		return "", conversationID, fmt.Errorf("%w: prompt exceeds %d characters", core.ErrInvalidInput, s.maxPromptLength)
	}

	if conversationID == "" {
		conversationID = s.engine.NewConversationID()
	}

	logger := log.FromCtx(ctx)

	memories, err := s.engine.RetrieveRelevant(ctx, conversationID, prompt)
	if err != nil {
		logger.Warn().Err(err).Msg("memory retrieval failed, answering without memories")
		memories = nil
	}

	messages := s.buildMessages(conversationID, prompt, memories)

	chatCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		chatCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	reply, err := s.ai.Chat(chatCtx, messages)
	if err != nil {
		return "", conversationID, fmt.Errorf("ai chat error: %w", err)
	}

	if _, err := s.engine.RecordInteraction(ctx, conversationID, prompt, reply.Content); err != nil {
		logger.Error().Err(err).Msg("failed to record interaction")
	}

	return reply.Content, conversationID, nil
}

func (s *Service) buildMessages(conversationID, prompt string, memories []core.ScoredRecord) []core.Message {
	var sb strings.Builder
	sb.WriteString("You are ")
	sb.WriteString(core.MnemoName)
	sb.WriteString(", an assistant with long-term memory of past conversations.")

	if len(memories) > 0 {
		sb.WriteString("\n\n### Relevant Memories\n")
		for _, m := range memories {
			sb.WriteString("- ")
			sb.WriteString(m.Text)
			if m.Response != "" {
				sb.WriteString(" (you answered: ")
				sb.WriteString(m.Response)
				sb.WriteString(")")
			}
			sb.WriteString("\n")
		}
	}

	messages := []core.Message{{Role: core.RoleSystem, Content: sb.String()}}

	for _, ex := range s.engine.GetContext(conversationID) {
		messages = append(messages, core.Message{Role: core.RoleUser, Content: ex.Message})
		if ex.Response != "" {
			messages = append(messages, core.Message{Role: core.RoleAssistant, Content: ex.Response})
		}
	}

	messages = append(messages, core.Message{Role: core.RoleUser, Content: prompt})
	return messages
}
