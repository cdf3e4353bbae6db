// Package ingest orchestrates segment -> embed -> batched store insert for
// one document.
package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"docubot/internal/embedding"
	"docubot/internal/parser"
	"docubot/internal/store"
)

// Segmenter splits document text into ordered chunks.
type Segmenter interface {
	Split(text string) []string
}

// Ingestor writes one document's chunk embeddings to the store.
type Ingestor struct {
	segmenter Segmenter
	embedder  embedding.Embedder
	store     store.Store
}

// New wires an Ingestor from its collaborators.
func New(segmenter Segmenter, embedder embedding.Embedder, st store.Store) *Ingestor {
	return &Ingestor{segmenter: segmenter, embedder: embedder, store: st}
}

// Ingest segments text, embeds every chunk and persists all pairs in a single
// transactional batch. It returns the number of chunks written. An embedding
// failure aborts the whole call before anything is written. Empty or
// whitespace-only input is a successful no-op.
func (i *Ingestor) Ingest(ctx context.Context, text string) (int, error) {
	chunks := i.segmenter.Split(text)
	if len(chunks) == 0 {
		log.Info().Msg("No chunks generated from content")
		return 0, nil
	}
	log.Info().Int("chunks", len(chunks)).Msg("Segmented document")

	recs := make([]store.Record, 0, len(chunks))
	for n, chunk := range chunks {
		vec, err := i.embedder.EmbedQuery(ctx, chunk)
		if err != nil {
			return 0, fmt.Errorf("embed chunk %d/%d: %w", n+1, len(chunks), err)
		}
		recs = append(recs, store.Record{Content: chunk, Embedding: vec})
	}

	if err := i.store.Insert(ctx, recs); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}
	log.Info().Int("chunks", len(recs)).Msg("Stored chunk embeddings")
	return len(recs), nil
}

// IngestFile extracts the document's text and ingests it as one document, so
// the all-or-nothing insert covers the whole file.
func (i *Ingestor) IngestFile(ctx context.Context, path string) (int, error) {
	pages, err := parser.ExtractPages(path)
	if err != nil {
		return 0, fmt.Errorf("extract %s: %w", path, err)
	}
	return i.Ingest(ctx, strings.Join(pages, "\n\n"))
}
