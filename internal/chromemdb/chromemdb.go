// Package chromemdb is the embedded vector store backend, for local use
// without a Postgres instance.
package chromemdb

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/philippgille/chromem-go"

	"docubot/internal/helper"
	"docubot/internal/store"
)

const compress = false

// Store implements store.Store over a chromem-go database, either in-memory
// or persisted under a directory.
type Store struct {
	db             *chromem.DB
	collectionName string

	mu         sync.Mutex
	collection *chromem.Collection
}

var _ store.Store = (*Store)(nil)

// NewStore opens (or creates) the chromem database. An empty path selects the
// in-memory database.
func NewStore(path, collectionName string) (*Store, error) {
	var db *chromem.DB
	var err error
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %v", err)
		}
	}
	return &Store{db: db, collectionName: collectionName}, nil
}

// EnsureSchema creates the collection if absent. Idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collection != nil {
		return nil
	}
	// Embeddings are always supplied by the caller, so no embedding function
	// is registered with the collection.
	c, err := s.db.GetOrCreateCollection(s.collectionName, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to create/get collection: %v", err)
	}
	s.collection = c
	return nil
}

// Insert adds all records in one batch. Record IDs are fresh UUIDs; repeated
// ingestion of the same text therefore duplicates rows instead of
// overwriting them, matching the Postgres backend.
func (s *Store) Insert(ctx context.Context, recs []store.Record) error {
	c, err := s.ready()
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(recs))
	for i, rec := range recs {
		id, err := helper.GenerateUUID()
		if err != nil {
			return err
		}
		docs[i] = chromem.Document{
			ID:        id,
			Content:   rec.Content,
			Embedding: rec.Embedding,
		}
	}
	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %v", err)
	}
	return nil
}

// Search returns up to limit records by descending cosine similarity. For the
// normalized vectors chromem stores, this ranking matches L2 distance order.
func (s *Store) Search(ctx context.Context, embedding []float32, limit int) ([]store.Result, error) {
	c, err := s.ready()
	if err != nil {
		return nil, err
	}

	// chromem rejects queries asking for more results than stored documents.
	if count := c.Count(); count < limit {
		limit = count
	}
	if limit <= 0 {
		return []store.Result{}, nil
	}

	opts := chromem.QueryOptions{
		QueryEmbedding: embedding,
		NResults:       limit,
	}
	results, err := c.QueryWithOptions(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %v", err)
	}

	out := make([]store.Result, 0, len(results))
	for _, res := range results {
		out = append(out, store.Result{
			Content:  res.Content,
			Distance: 1 - float64(res.Similarity),
		})
	}
	return out, nil
}

// Close is a no-op: chromem persists per operation and holds no connection.
func (s *Store) Close() error { return nil }

func (s *Store) ready() (*chromem.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collection == nil {
		return nil, fmt.Errorf("collection not initialized, call EnsureSchema first")
	}
	return s.collection, nil
}
