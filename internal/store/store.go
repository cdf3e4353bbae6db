// Package store declares the vector store contract shared by the Postgres
// and embedded chromem backends.
package store

import "context"

// Record is one chunk/vector pair to be persisted. Records are immutable
// once written; the backends expose no update or delete path.
type Record struct {
	Content   string
	Embedding []float32
}

// Result is one retrieved chunk with its distance to the query vector
// (smaller is closer).
type Result struct {
	Content  string
	Distance float64
}

// Store persists chunk embeddings and supports nearest-neighbor search.
type Store interface {
	// EnsureSchema idempotently creates the backing schema. It must complete
	// before any Insert or Search is issued.
	EnsureSchema(ctx context.Context) error

	// Insert writes all records atomically: either every record is persisted
	// or none are.
	Insert(ctx context.Context, recs []Record) error

	// Search returns up to limit records ordered by ascending distance to the
	// query embedding. An empty store yields an empty slice, not an error.
	Search(ctx context.Context, embedding []float32, limit int) ([]Result, error)

	Close() error
}
