// Package llm provides the chat completion backend of answer generation.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/samber/mo"
	openai "github.com/sashabaranov/go-openai"

	"multimodal-rag/internal/generation"
)

// DefaultChatModel is used when no model is configured.
const DefaultChatModel = "gpt-4o-mini"

// Config configures the OpenAI-compatible chat client.
type Config struct {
	BaseURL     string
	APIKeyEnv   string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// OpenAIClient sends one chat completion per prompt. It does not retry.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewOpenAIClient creates a chat client, reading the API key from the
// configured environment variable.
func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultChatModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	apiCfg := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	apiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &OpenAIClient{
		client:      openai.NewClientWithConfig(apiCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

// Complete implements generation.Completer. A refusal or a content filter
// stop is reported as the block reason.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (generation.Completion, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.temperature,
	})
	if err != nil {
		return generation.Completion{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return generation.Completion{}, nil
	}
	choice := resp.Choices[0]
	out := generation.Completion{Text: choice.Message.Content}
	switch {
	case choice.Message.Refusal != "":
		out.BlockReason = mo.Some(choice.Message.Refusal)
	case choice.FinishReason == openai.FinishReasonContentFilter:
		out.BlockReason = mo.Some(string(openai.FinishReasonContentFilter))
	}
	return out, nil
}
