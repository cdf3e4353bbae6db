package rag

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docubot/internal/models"
	"docubot/internal/store"
)

type stubEmbedder struct {
	vec []float32
	err error
}

func (e *stubEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.vec, nil
}

type stubStore struct {
	results   []store.Result
	searchErr error
	gotVec    []float32
	gotLimit  int
}

func (s *stubStore) EnsureSchema(ctx context.Context) error                { return nil }
func (s *stubStore) Insert(ctx context.Context, recs []store.Record) error { return nil }
func (s *stubStore) Close() error                                          { return nil }

func (s *stubStore) Search(ctx context.Context, embedding []float32, limit int) ([]store.Result, error) {
	s.gotVec = embedding
	s.gotLimit = limit
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	if limit < len(s.results) {
		return s.results[:limit], nil
	}
	return s.results, nil
}

type stubCompleter struct {
	prompt string
	answer string
	err    error
}

func (c *stubCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	c.prompt = prompt
	if c.err != nil {
		return "", c.err
	}
	return c.answer, nil
}

func TestRetrieveReturnsChunksInStoreOrder(t *testing.T) {
	st := &stubStore{results: []store.Result{
		{Content: "nearest", Distance: 0.1},
		{Content: "second", Distance: 0.4},
	}}
	r := NewRAG(st, &stubEmbedder{vec: []float32{1, 0}}, nil, 2)

	chunks, err := r.Retrieve(context.Background(), "what is docubot", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"nearest", "second"}, chunks)
	assert.Equal(t, []float32{1, 0}, st.gotVec, "store must be queried with the query embedding")
	assert.Equal(t, 2, st.gotLimit)
}

func TestRetrieveEmptyStoreReturnsEmptySlice(t *testing.T) {
	st := &stubStore{}
	r := NewRAG(st, &stubEmbedder{vec: []float32{1, 0}}, nil, 1)

	chunks, err := r.Retrieve(context.Background(), "anything", 1)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestRetrieveDefaultsToConfiguredTopK(t *testing.T) {
	st := &stubStore{results: []store.Result{{Content: "a"}, {Content: "b"}, {Content: "c"}}}
	r := NewRAG(st, &stubEmbedder{vec: []float32{1}}, nil, 2)

	chunks, err := r.Retrieve(context.Background(), "q", 0)
	require.NoError(t, err)
	assert.Len(t, chunks, 2)
}

func TestRetrieveEmbeddingFailurePropagates(t *testing.T) {
	st := &stubStore{}
	r := NewRAG(st, &stubEmbedder{err: errors.New("service down")}, nil, 1)

	_, err := r.Retrieve(context.Background(), "q", 1)
	require.Error(t, err)
	assert.Nil(t, st.gotVec, "store must not be queried when embedding fails")
}

func TestRetrieveStoreFailurePropagates(t *testing.T) {
	st := &stubStore{searchErr: errors.New("read failed")}
	r := NewRAG(st, &stubEmbedder{vec: []float32{1}}, nil, 1)

	_, err := r.Retrieve(context.Background(), "q", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read failed")
}

func TestBuildContextJoinsChunksWithNewlines(t *testing.T) {
	assert.Equal(t, "a\nb\nc", BuildContext([]string{"a", "b", "c"}))
	assert.Equal(t, "", BuildContext(nil))
}

func TestQueryGroundsPromptWithRetrievedContext(t *testing.T) {
	st := &stubStore{results: []store.Result{
		{Content: "fact one"},
		{Content: "fact two"},
	}}
	chat := &stubCompleter{answer: "grounded answer"}
	r := NewRAG(st, &stubEmbedder{vec: []float32{1}}, chat, 2)

	resp, err := r.Query(context.Background(), "what happened")
	require.NoError(t, err)

	assert.Equal(t, "what happened", resp.Query)
	assert.Equal(t, "fact one\nfact two", resp.Source)
	assert.Equal(t, "grounded answer", resp.Content)

	wantPrompt := fmt.Sprintf(models.PromptTemplate, "what happened", "fact one\nfact two")
	assert.Equal(t, wantPrompt, chat.prompt)
}

func TestQueryWithoutCompleterReturnsSourceOnly(t *testing.T) {
	st := &stubStore{results: []store.Result{{Content: "fact"}}}
	r := NewRAG(st, &stubEmbedder{vec: []float32{1}}, nil, 1)

	resp, err := r.Query(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "fact", resp.Source)
	assert.Empty(t, resp.Content)
}

func TestQueryChatFailurePropagates(t *testing.T) {
	st := &stubStore{results: []store.Result{{Content: "fact"}}}
	chat := &stubCompleter{err: errors.New("model unreachable")}
	r := NewRAG(st, &stubEmbedder{vec: []float32{1}}, chat, 1)

	_, err := r.Query(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unreachable")
}
