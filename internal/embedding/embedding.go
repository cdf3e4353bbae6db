package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"docubot/internal/config"
)

// ErrEmbeddingService marks an unreachable embedding endpoint or a malformed
// response (wrong dimension, non-finite values). Callers may retry with
// backoff; see Retry.
var ErrEmbeddingService = errors.New("embedding: service unavailable or malformed response")

// Embedder maps one text to one fixed-dimension vector. Implementations are
// stateless and safe for concurrent use.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Client wraps a langchaingo embedder and enforces the configured vector
// dimension on every response.
type Client struct {
	impl       *embeddings.EmbedderImpl
	dimensions int
}

// NewEmbedder creates a Client for an OpenAI-compatible endpoint.
func NewEmbedder(cfg *config.LLMConfig) (*Client, error) {
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("init embedding LLM: %w", err)
	}
	impl, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return &Client{impl: impl, dimensions: cfg.Dimensions}, nil
}

// NewOllamaEmbedder creates a Client backed by a local Ollama server.
func NewOllamaEmbedder(cfg *config.LLMConfig) (*Client, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("init embedding LLM: %w", err)
	}
	impl, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return &Client{impl: impl, dimensions: cfg.Dimensions}, nil
}

// EmbedQuery implements Embedder.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := c.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %v: %w", err, ErrEmbeddingService)
	}
	if err := validateVector(vec, c.dimensions); err != nil {
		return nil, err
	}
	return vec, nil
}

// validateVector rejects vectors of the wrong length or containing
// non-finite values. Mismatches are hard failures, never padded or truncated.
func validateVector(vec []float32, dimensions int) error {
	if len(vec) != dimensions {
		return fmt.Errorf("embedding dimension %d, want %d: %w", len(vec), dimensions, ErrEmbeddingService)
	}
	for _, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("embedding contains non-finite value: %w", ErrEmbeddingService)
		}
	}
	return nil
}
