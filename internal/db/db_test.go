package db

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"docubot/internal/store"
)

func newTestStore(t *testing.T) (*Store, *sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqldb, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { sqldb.Close() })

	s := &Store{
		db:             bun.NewDB(sqldb, pgdialect.New()),
		dimensions:     3,
		acquireTimeout: 5 * time.Second,
	}
	return s, sqldb, mock
}

func TestEnsureSchemaCreatesExtensionAndTable(t *testing.T) {
	s, _, mock := newTestStore(t)

	mock.ExpectExec(`CREATE EXTENSION IF NOT EXISTS vector`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS documents`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchemaIsRepeatable(t *testing.T) {
	s, _, mock := newTestStore(t)

	for i := 0; i < 2; i++ {
		mock.ExpectExec(`CREATE EXTENSION IF NOT EXISTS vector`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS documents`).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, s.EnsureSchema(context.Background()))
	require.NoError(t, s.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchemaCreatesOptionalIndex(t *testing.T) {
	s, _, mock := newTestStore(t)
	s.createIndex = true

	mock.ExpectExec(`CREATE EXTENSION IF NOT EXISTS vector`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS documents`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS documents_embedding_idx`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchemaFailureIsSchemaError(t *testing.T) {
	s, _, mock := newTestStore(t)

	mock.ExpectExec(`CREATE EXTENSION IF NOT EXISTS vector`).
		WillReturnError(sql.ErrConnDone)

	err := s.EnsureSchema(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchema)
}

func TestInsertWritesAllRecordsInOneTransaction(t *testing.T) {
	s, _, mock := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "documents"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))
	mock.ExpectCommit()

	recs := []store.Record{
		{Content: "chunk one", Embedding: []float32{1, 0, 0}},
		{Content: "chunk two", Embedding: []float32{0, 1, 0}},
	}
	require.NoError(t, s.Insert(context.Background(), recs))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertEmptyBatchIsNoOp(t *testing.T) {
	s, _, mock := newTestStore(t)

	require.NoError(t, s.Insert(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertFailureRollsBackAndReleasesConnection(t *testing.T) {
	s, sqldb, mock := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "documents"`).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := s.Insert(context.Background(), []store.Record{
		{Content: "chunk", Embedding: []float32{1, 2, 3}},
	})
	require.Error(t, err)

	var opErr *Error
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, OpInsert, opErr.Op)

	// The pooled connection must be back regardless of the failure.
	assert.Equal(t, 0, sqldb.Stats().InUse)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchReturnsRowsOrderedByDistance(t *testing.T) {
	s, _, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT content, embedding <-> .+ AS distance FROM documents`).
		WillReturnRows(sqlmock.NewRows([]string{"content", "distance"}).
			AddRow("near chunk", 0.12).
			AddRow("far chunk", 4.5))

	results, err := s.Search(context.Background(), []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "near chunk", results[0].Content)
	assert.Equal(t, 0.12, results[0].Distance)
	assert.Equal(t, "far chunk", results[1].Content)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchEmptyStoreReturnsEmptySlice(t *testing.T) {
	s, _, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT content, embedding <-> .+ AS distance FROM documents`).
		WillReturnRows(sqlmock.NewRows([]string{"content", "distance"}))

	results, err := s.Search(context.Background(), []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchFailureReleasesConnection(t *testing.T) {
	s, sqldb, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT content, embedding <-> .+ AS distance FROM documents`).
		WillReturnError(sql.ErrConnDone)

	_, err := s.Search(context.Background(), []float32{1, 0, 0}, 1)
	require.Error(t, err)

	var opErr *Error
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, OpSearch, opErr.Op)
	assert.Equal(t, 0, sqldb.Stats().InUse)
}

func TestAcquireTimeoutMapsToPoolExhausted(t *testing.T) {
	s, sqldb, _ := newTestStore(t)
	s.acquireTimeout = 50 * time.Millisecond
	sqldb.SetMaxOpenConns(1)

	// Hold the only connection so the search has to wait for the pool.
	conn, err := sqldb.Conn(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	_, err = s.Search(context.Background(), []float32{1, 0, 0}, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPoolExhausted)
}

func TestCallerCancellationIsNotPoolExhaustion(t *testing.T) {
	s, sqldb, _ := newTestStore(t)
	s.acquireTimeout = time.Minute
	sqldb.SetMaxOpenConns(1)

	conn, err := sqldb.Conn(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = s.Search(ctx, []float32{1, 0, 0}, 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPoolExhausted)
}

func TestVectorLiteral(t *testing.T) {
	assert.Equal(t, "[1,0.5,-2]", VectorLiteral([]float32{1, 0.5, -2}))
	assert.Equal(t, "[]", VectorLiteral(nil))
}
