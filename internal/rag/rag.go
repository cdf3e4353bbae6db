// Package rag answers queries by nearest-neighbor retrieval over stored chunk
// embeddings, optionally grounded through a chat completion.
package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"docubot/internal/embedding"
	"docubot/internal/models"
	"docubot/internal/store"
)

// Completer is the chat model boundary: prompt in, free-text answer out.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// RAG retrieves context for queries and, when a Completer is present,
// produces a grounded answer.
type RAG struct {
	store    store.Store
	embedder embedding.Embedder
	chat     Completer
	topK     int
}

// NewRAG wires a RAG from its collaborators. chat may be nil for
// retrieval-only use.
func NewRAG(st store.Store, embedder embedding.Embedder, chat Completer, topK int) *RAG {
	if topK <= 0 {
		topK = 1
	}
	return &RAG{store: st, embedder: embedder, chat: chat, topK: topK}
}

// Retrieve embeds the query and returns up to k chunk texts ordered by
// ascending distance. An empty store yields an empty slice.
func (r *RAG) Retrieve(ctx context.Context, query string, k int) ([]string, error) {
	if k <= 0 {
		k = r.topK
	}

	queryEmbedding, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := r.store.Search(ctx, queryEmbedding, k)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	log.Info().Int("chunks", len(results)).Msg("Retrieved chunks for query")

	chunks := make([]string, 0, len(results))
	for _, res := range results {
		chunks = append(chunks, res.Content)
	}
	return chunks, nil
}

// BuildContext joins retrieved chunks into the context string handed to the
// chat boundary.
func BuildContext(chunks []string) string {
	return strings.Join(chunks, models.ContextSeparator)
}

// Query retrieves context for the query and asks the chat model for a
// grounded answer.
func (r *RAG) Query(ctx context.Context, query string) (*models.PromptResponse, error) {
	chunks, err := r.Retrieve(ctx, query, r.topK)
	if err != nil {
		return nil, err
	}

	source := BuildContext(chunks)
	if r.chat == nil {
		return &models.PromptResponse{Query: query, Source: source}, nil
	}

	prompt := fmt.Sprintf(models.PromptTemplate, query, source)
	answer, err := r.chat.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	return &models.PromptResponse{
		Query:   query,
		Source:  source,
		Content: answer,
	}, nil
}
