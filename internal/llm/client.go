// Package llm adapts the completion and embedding providers behind
// canonical request/response types. Provider responses historically
// arrive in several shapes; this adapter is the single place they are
// normalized, so every downstream component sees exactly one.
package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"paperflow/internal/models"
	"paperflow/internal/util"
)

// Message is one turn of an ordered prompt.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Completion is the canonical completion result.
type Completion struct {
	Content string
	Usage   models.TokenUsage
}

// Completer is the completion-provider capability.
type Completer interface {
	Complete(ctx context.Context, model string, messages []Message, maxTokens int, temperature, topP float32) (Completion, error)
}

// Embedder is the embedding-provider capability. Vectors are
// order-preserving, one fixed-width vector per input text.
type Embedder interface {
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)
}

// Client backs both capabilities with an OpenAI-compatible API.
type Client struct {
	api *openai.Client
	log *zap.Logger
}

// NewClient builds a provider client. baseURL overrides the API host
// for OpenAI-compatible gateways; empty means the default.
func NewClient(apiKey, baseURL string, log *zap.Logger) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{api: openai.NewClientWithConfig(cfg), log: log}
}

func (c *Client) Complete(ctx context.Context, model string, messages []Message, maxTokens int, temperature, topP float32) (Completion, error) {
	req := openai.ChatCompletionRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return Completion{}, fmt.Errorf("%w: completion via %s: %v", util.ErrProvider, model, err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, fmt.Errorf("%w: completion via %s returned no choices", util.ErrProvider, model)
	}
	c.log.Debug("completion done",
		zap.String("model", model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return Completion{
		Content: resp.Choices[0].Message.Content,
		Usage:   usageFrom(resp.Usage),
	}, nil
}

func (c *Client) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: embeddings via %s: %v", util.ErrProvider, model, err)
	}
	vectors := make([][]float32, 0, len(resp.Data))
	for _, d := range resp.Data {
		vectors = append(vectors, d.Embedding)
	}
	return vectors, nil
}

// usageFrom keeps usage fields nil when the provider reported nothing,
// so callers can distinguish "zero tokens" from "no usage data".
func usageFrom(u openai.Usage) models.TokenUsage {
	if u.PromptTokens == 0 && u.CompletionTokens == 0 && u.TotalTokens == 0 {
		return models.TokenUsage{}
	}
	in, out, total := u.PromptTokens, u.CompletionTokens, u.TotalTokens
	return models.TokenUsage{InputTokens: &in, OutputTokens: &out, TotalTokens: &total}
}
