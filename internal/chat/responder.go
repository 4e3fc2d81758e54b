// Package chat builds the bounded conversational prompt for a RAG turn
// and returns the model's grounded answer. The responder is context
// agnostic: it renders whatever context string it is given, and the
// caller owns attaching retrieval provenance before persisting.
package chat

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"paperflow/internal/llm"
	"paperflow/internal/models"
	"paperflow/internal/prompts"
)

const (
	temperature float32 = 0.0
	topP        float32 = 0.5
)

type Responder struct {
	completer llm.Completer
	prompts   *prompts.Library
	model     string
	maxTokens int
	log       *zap.Logger
}

func NewResponder(completer llm.Completer, lib *prompts.Library, model string, maxTokens int, log *zap.Logger) *Responder {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Responder{
		completer: completer,
		prompts:   lib,
		model:     model,
		maxTokens: maxTokens,
		log:       log,
	}
}

// Respond sends system prompt + windowed history + the templated user
// turn and returns the answer with token usage. historyWindow counts
// user/assistant pairs: at most 2*historyWindow trailing messages are
// kept, dropping the oldest first.
func (r *Responder) Respond(ctx context.Context, contextText, query string, history []models.ChatMessage, historyWindow int) (string, models.TokenUsage, error) {
	sysPrompt, err := r.prompts.Text(prompts.SysChat)
	if err != nil {
		return "", models.TokenUsage{}, err
	}
	userPrompt, err := r.prompts.Render(prompts.UserChat, map[string]string{
		"context":    contextText,
		"user_query": query,
	})
	if err != nil {
		return "", models.TokenUsage{}, err
	}

	window := WindowHistory(history, historyWindow)
	messages := make([]llm.Message, 0, len(window)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: sysPrompt})
	for _, msg := range window {
		messages = append(messages, llm.Message{Role: msg.Role, Content: msg.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: userPrompt})

	comp, err := r.completer.Complete(ctx, r.model, messages, r.maxTokens, temperature, topP)
	if err != nil {
		return "", models.TokenUsage{}, fmt.Errorf("chat completion: %w", err)
	}
	r.log.Debug("chat turn complete", zap.Int("history_messages", len(window)))
	return comp.Content, comp.Usage, nil
}

// WindowHistory returns the trailing 2*window messages, oldest of the
// kept window first. window <= 0 drops all history.
func WindowHistory(history []models.ChatMessage, window int) []models.ChatMessage {
	if window <= 0 || len(history) == 0 {
		return nil
	}
	keep := 2 * window
	if len(history) <= keep {
		return history
	}
	return history[len(history)-keep:]
}
