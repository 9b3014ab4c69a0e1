package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"

	ierrors "github.com/Aman-CERP/docingest/internal/errors"
)

// pgMetaTable records one row per collection created in the database.
const pgMetaTable = "docingest_collections"

// PGVectorBackend stores each collection in its own Postgres table with a
// pgvector column.
type PGVectorBackend struct {
	dsn string
}

// NewPGVectorBackend returns a backend for the database at dsn.
func NewPGVectorBackend(dsn string) *PGVectorBackend {
	return &PGVectorBackend{dsn: dsn}
}

// tableName quotes a collection name for use as a table identifier.
func tableName(collection string) string {
	return pgx.Identifier{collection}.Sanitize()
}

func createTableSQL(collection string, dims int) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		seq        BIGSERIAL PRIMARY KEY,
		id         TEXT NOT NULL UNIQUE,
		body       TEXT NOT NULL,
		attributes JSONB NOT NULL,
		embedding  vector(%d) NOT NULL
	)`, tableName(collection), dims)
}

// Create makes the collection table and inserts records.
func (b *PGVectorBackend) Create(ctx context.Context, target Target, records []Record) (Collection, error) {
	if b.dsn == "" {
		return nil, ierrors.ConfigError("index.database_url is required for the pgvector backend", nil)
	}
	if !ValidCollectionName(target.Collection) {
		return nil, ierrors.ConfigError(fmt.Sprintf("invalid collection name %q", target.Collection), nil)
	}
	if len(records) == 0 {
		return nil, ierrors.ValidationError("create called without records", nil)
	}
	dims, err := checkDimensions(records, 0)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", b.dsn)
	if err != nil {
		return nil, ierrors.New(ierrors.ErrCodeNetworkUnavailable, fmt.Sprintf("open db: %v", err), err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, ierrors.New(ierrors.ErrCodeNetworkUnavailable, fmt.Sprintf("ping db: %v", err), err)
	}

	if err := bootstrap(ctx, db, target, dims); err != nil {
		_ = db.Close()
		return nil, err
	}

	c := &PGCollection{db: db, table: tableName(target.Collection), dims: dims}
	if err := c.Append(ctx, records); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func bootstrap(ctx context.Context, db *sql.DB, target Target, dims int) error {
	if _, err := db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("create extension: %w", err)
	}

	var exists bool
	if err := db.QueryRowContext(ctx, `SELECT to_regclass($1) IS NOT NULL`, tableName(target.Collection)).Scan(&exists); err != nil {
		return fmt.Errorf("check table: %w", err)
	}
	if exists {
		var n int
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+tableName(target.Collection)).Scan(&n); err != nil {
			return fmt.Errorf("count rows: %w", err)
		}
		if n > 0 {
			return ierrors.New(ierrors.ErrCodeCollectionExists,
				fmt.Sprintf("table %s already holds %d rows", target.Collection, n), nil).
				WithDetail("table", target.Collection)
		}
	}

	if _, err := db.ExecContext(ctx, createTableSQL(target.Collection, dims)); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	meta := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		name       TEXT PRIMARY KEY,
		dimensions INT NOT NULL,
		model      TEXT NOT NULL,
		scheme     TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, pgMetaTable)
	if _, err := db.ExecContext(ctx, meta); err != nil {
		return fmt.Errorf("create meta table: %w", err)
	}

	const upsert = `INSERT INTO ` + pgMetaTable + ` (name, dimensions, model, scheme)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET dimensions = $2, model = $3, scheme = $4, created_at = now()`
	if _, err := db.ExecContext(ctx, upsert, target.Collection, dims, target.Model, target.Scheme); err != nil {
		return fmt.Errorf("record collection: %w", err)
	}
	return nil
}

// PGCollection is an open pgvector collection.
type PGCollection struct {
	mu     sync.Mutex
	db     *sql.DB
	table  string
	dims   int
	count  int
	closed bool
}

// Append inserts records in a single transaction.
func (c *PGCollection) Append(ctx context.Context, records []Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if len(records) == 0 {
		return nil
	}
	if _, err := checkDimensions(records, c.dims); err != nil {
		return err
	}

	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO `+c.table+` (id, body, attributes, embedding) VALUES ($1, $2, $3, $4)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		attrs, err := json.Marshal(nonNilAttrs(r.Attributes))
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("encode attributes for %s: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.Text, string(attrs), pgvector.NewVector(r.Vector)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert chunk %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	c.count += len(records)
	return nil
}

// Count returns the number of records written through this handle.
func (c *PGCollection) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Close closes the connection pool.
func (c *PGCollection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.db.Close()
}
