package llmservice

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"docubot/internal/config"
)

// Client is a chat completion client for an OpenAI-compatible endpoint.
// Construct once at startup and inject; never rebuild per call.
type Client struct {
	llm *openai.LLM
}

// NewClient builds the chat client from config.
func NewClient(cfg *config.LLMConfig) (*Client, error) {
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, err
	}
	return &Client{llm: llm}, nil
}

// GenerateContent sends messages to the chat model, optionally with tools.
func (c *Client) GenerateContent(ctx context.Context, messages []llms.MessageContent, tools ...llms.Tool) (*llms.ContentResponse, error) {
	if len(tools) > 0 {
		return c.llm.GenerateContent(ctx, messages, llms.WithTools(tools))
	}
	return c.llm.GenerateContent(ctx, messages)
}

// Complete is a single-prompt convenience over GenerateContent.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	res, err := c.GenerateContent(ctx, []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextContent{Text: prompt}},
		},
	})
	if err != nil {
		return "", err
	}
	if len(res.Choices) == 0 {
		return "", nil
	}
	return res.Choices[0].Content, nil
}
