package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kailas-cloud/sonicweb/internal/db"
	"github.com/kailas-cloud/sonicweb/internal/db/postgres/migrations"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

const uniqueViolation = "23505"

// Config holds connection parameters for a PostgreSQL store.
type Config struct {
	DSN      string
	Schema   string
	MaxConns int
}

// Store implements db.Store via a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a pooled PostgreSQL store. Every new connection creates
// cfg.Schema if missing and pins search_path to it.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	poolCfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, &db.Error{Op: db.OpConnect, Err: err}
	}
	return &Store{pool: pool}, nil
}

func poolConfig(cfg Config) (*pgxpool.Config, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: dsn is required", db.ErrInvalidConfig)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: parse dsn: %w", db.ErrInvalidConfig, err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns) //nolint:gosec // bounded by config validation
	}

	if cfg.Schema != "" {
		schema := pgx.Identifier{cfg.Schema}.Sanitize()
		poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			if _, err := conn.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+schema); err != nil {
				return fmt.Errorf("create schema: %w", err)
			}
			if _, err := conn.Exec(ctx, "SET search_path = "+schema); err != nil {
				return fmt.Errorf("set search_path: %w", err)
			}
			return nil
		}
	}
	return poolCfg, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// WaitForReady polls Ping until the database responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// Migrate applies the embedded PostgreSQL migrations.
func (s *Store) Migrate(ctx context.Context) ([]string, error) {
	return db.Migrate(ctx, s, migrations.FS) //nolint:wrapcheck // already a *db.Error
}

// EnsureVersionTable implements db.MigrationTarget.
func (s *Store) EnsureVersionTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	return err //nolint:wrapcheck // wrapped by db.Migrate
}

// CurrentVersion implements db.MigrationTarget.
func (s *Store) CurrentVersion(ctx context.Context) (int, error) {
	var v int
	err := s.pool.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v)
	return v, err //nolint:wrapcheck // wrapped by db.Migrate
}

// Apply implements db.MigrationTarget.
func (s *Store) Apply(ctx context.Context, version int, script string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error { //nolint:wrapcheck // wrapped by db.Migrate
		if _, err := tx.Exec(ctx, script); err != nil {
			return fmt.Errorf("exec: %w", err)
		}
		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
			return fmt.Errorf("record version: %w", err)
		}
		return nil
	})
}

// InsertDocument stores a document and returns the persisted row.
func (s *Store) InsertDocument(ctx context.Context, objectID, details string) (db.DocumentRow, error) {
	rows, err := s.pool.Query(ctx,
		`INSERT INTO documents (object_id, details) VALUES ($1, $2)
		 RETURNING id, object_id::text, details, created_at`,
		objectID, details)
	if err != nil {
		return db.DocumentRow{}, &db.Error{Op: db.OpInsert, Err: err}
	}

	row, err := pgx.CollectExactlyOneRow(rows, scanDocument)
	if err != nil {
		if isUniqueViolation(err) {
			return db.DocumentRow{}, &db.Error{Op: db.OpInsert, Err: fmt.Errorf("%s: %w", objectID, db.ErrDuplicateKey)}
		}
		return db.DocumentRow{}, &db.Error{Op: db.OpInsert, Err: err}
	}
	return row, nil
}

// SelectDocuments returns the rows whose object_id is in objectIDs, in no particular order.
// Every id must be a UUID.
func (s *Store) SelectDocuments(ctx context.Context, objectIDs []string) ([]db.DocumentRow, error) {
	if len(objectIDs) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, object_id::text, details, created_at
		 FROM documents
		 WHERE object_id = ANY($1::uuid[])`,
		objectIDs)
	if err != nil {
		return nil, &db.Error{Op: db.OpSelect, Err: err}
	}

	out, err := pgx.CollectRows(rows, scanDocument)
	if err != nil {
		return nil, &db.Error{Op: db.OpSelect, Err: err}
	}
	return out, nil
}

// ListDocumentsAfter returns up to limit rows with id > afterSeq, ordered by id.
func (s *Store) ListDocumentsAfter(ctx context.Context, afterSeq int64, limit int) ([]db.DocumentRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, object_id::text, details, created_at
		 FROM documents
		 WHERE id > $1
		 ORDER BY id
		 LIMIT $2`,
		afterSeq, limit)
	if err != nil {
		return nil, &db.Error{Op: db.OpList, Err: err}
	}

	out, err := pgx.CollectRows(rows, scanDocument)
	if err != nil {
		return nil, &db.Error{Op: db.OpList, Err: err}
	}
	return out, nil
}

// CountDocuments returns the number of stored documents.
func (s *Store) CountDocuments(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM documents").Scan(&n); err != nil {
		return 0, &db.Error{Op: db.OpCount, Err: err}
	}
	return n, nil
}

func scanDocument(row pgx.CollectableRow) (db.DocumentRow, error) {
	var r db.DocumentRow
	err := row.Scan(&r.Seq, &r.ObjectID, &r.Details, &r.CreatedAt)
	return r, err //nolint:wrapcheck // wrapped by caller
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
