package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"docubot/internal/config"
	"docubot/internal/store"
)

const tableName = "documents"

// Document is one persisted chunk/vector row. Rows are append-only: there is
// no update or delete path.
type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`
	ID            int64     `bun:"id,pk,autoincrement"`
	Content       string    `bun:"content,notnull"`
	Embedding     []float32 `bun:"embedding,notnull,type:vector(768)"`
}

// ConnectDB opens the bounded connection pool described by cfg. The driver is
// selectable between bun's pgdriver (default) and lib/pq.
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode)

	var sqldb *sql.DB
	switch cfg.Driver {
	case "pq":
		var err error
		sqldb, err = sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
	default:
		sqldb = sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	}

	// database/sql is the pool: bound it and keep min connections idle.
	sqldb.SetMaxOpenConns(cfg.MaxConns)
	sqldb.SetMaxIdleConns(cfg.MinConns)
	sqldb.SetConnMaxIdleTime(5 * time.Minute)
	return sqldb, nil
}

// NewDB wraps the pool in a bun DB with the Postgres dialect.
func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// Store is the pgvector-backed store.Store implementation.
type Store struct {
	db             *bun.DB
	dimensions     int
	acquireTimeout time.Duration
	createIndex    bool
}

var _ store.Store = (*Store)(nil)

// NewStore builds a Store over db using the pool and vector settings in cfg.
func NewStore(bunDB *bun.DB, dbCfg *config.DatabaseConfig, dimensions int) *Store {
	return &Store{
		db:             bunDB,
		dimensions:     dimensions,
		acquireTimeout: time.Duration(dbCfg.AcquireTimeoutSec) * time.Second,
		createIndex:    dbCfg.CreateIndex,
	}
}

// EnsureSchema idempotently creates the vector extension and the documents
// table, plus an optional HNSW index for retrieval latency at scale.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("%s: %v: %w", OpCreateExtension, err, ErrSchema)
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id BIGSERIAL PRIMARY KEY,
		content TEXT NOT NULL,
		embedding vector(%d) NOT NULL
	)`, tableName, s.dimensions)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("%s: %v: %w", OpCreateTable, err, ErrSchema)
	}

	if s.createIndex {
		idx := fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_l2_ops)",
			tableName, tableName)
		if _, err := s.db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("%s: %v: %w", OpCreateIndex, err, ErrSchema)
		}
	}
	return nil
}

// Insert writes all records in one transaction-scoped multi-row insert. The
// connection is checked out for the transaction and returned on every exit
// path; a failure rolls back so no partial document is persisted.
func (s *Store) Insert(ctx context.Context, recs []store.Record) error {
	if len(recs) == 0 {
		return nil
	}

	docs := make([]Document, len(recs))
	for i, rec := range recs {
		docs[i] = Document{Content: rec.Content, Embedding: rec.Embedding}
	}

	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	err := s.db.RunInTx(opCtx, nil, func(txCtx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&docs).Exec(txCtx)
		return err
	})
	if err != nil {
		return s.wrapOpErr(ctx, OpInsert, err)
	}
	return nil
}

// Search returns the limit nearest rows by L2 distance, computed by pgvector
// via the <-> operator. Ties break on insertion order for determinism.
func (s *Store) Search(ctx context.Context, embedding []float32, limit int) ([]store.Result, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	var rows []struct {
		Content  string  `bun:"content"`
		Distance float64 `bun:"distance"`
	}
	err := s.db.NewSelect().
		TableExpr(tableName).
		ColumnExpr("content").
		ColumnExpr("embedding <-> ? AS distance", VectorLiteral(embedding)).
		OrderExpr("distance ASC, id ASC").
		Limit(limit).
		Scan(opCtx, &rows)
	if err != nil {
		return nil, s.wrapOpErr(ctx, OpSearch, err)
	}

	results := make([]store.Result, 0, len(rows))
	for _, row := range rows {
		results = append(results, store.Result{Content: row.Content, Distance: row.Distance})
	}
	return results, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// opContext bounds one store operation, which caps the wait for a free
// pooled connection.
func (s *Store) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.acquireTimeout)
}

// wrapOpErr maps an expired acquire deadline to ErrPoolExhausted when the
// caller's own context is still live, and tags everything else with the
// operation name.
func (s *Store) wrapOpErr(parent context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
		return fmt.Errorf("%s: %w", op, ErrPoolExhausted)
	}
	return &Error{Op: op, Err: err}
}

// VectorLiteral renders a float vector in pgvector's text input format,
// e.g. [0.1,0.2,0.3].
func VectorLiteral(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
