package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlitedrv "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	"github.com/kailas-cloud/sonicweb/internal/db"
	"github.com/kailas-cloud/sonicweb/internal/db/sqlite/migrations"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// selectChunk bounds the number of bound parameters per IN (...) query.
const selectChunk = 500

// Config holds connection parameters for a SQLite store.
type Config struct {
	Path     string
	MaxConns int
}

// Store implements db.Store on an embedded SQLite database (modernc.org/sqlite, no cgo).
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (creating if needed) the SQLite database at cfg.Path.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: path is required", db.ErrInvalidConfig)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// WAL + busy timeout so concurrent ingests wait instead of failing with SQLITE_BUSY.
	conn, err := sql.Open("sqlite", cfg.Path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, &db.Error{Op: db.OpConnect, Err: err}
	}
	if cfg.MaxConns > 0 {
		conn.SetMaxOpenConns(cfg.MaxConns)
	}

	return &Store{db: conn, path: cfg.Path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() {
	_ = s.db.Close()
}

// WaitForReady polls Ping until the database responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if err := s.Ping(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// Migrate applies the embedded SQLite migrations.
func (s *Store) Migrate(ctx context.Context) ([]string, error) {
	return db.Migrate(ctx, s, migrations.FS) //nolint:wrapcheck // already a *db.Error
}

// EnsureVersionTable implements db.MigrationTarget.
func (s *Store) EnsureVersionTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err //nolint:wrapcheck // wrapped by db.Migrate
}

// CurrentVersion implements db.MigrationTarget.
func (s *Store) CurrentVersion(ctx context.Context) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v)
	return v, err //nolint:wrapcheck // wrapped by db.Migrate
}

// Apply implements db.MigrationTarget.
func (s *Store) Apply(ctx context.Context, version int, script string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		return fmt.Errorf("record version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// InsertDocument stores a document and returns the persisted row.
func (s *Store) InsertDocument(ctx context.Context, objectID, details string) (db.DocumentRow, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO documents (object_id, details, created_at) VALUES (?, ?, ?)",
		objectID, details, now)
	if err != nil {
		if isUniqueViolation(err) {
			return db.DocumentRow{}, &db.Error{Op: db.OpInsert, Err: fmt.Errorf("%s: %w", objectID, db.ErrDuplicateKey)}
		}
		return db.DocumentRow{}, &db.Error{Op: db.OpInsert, Err: err}
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return db.DocumentRow{}, &db.Error{Op: db.OpInsert, Err: err}
	}
	return db.DocumentRow{Seq: seq, ObjectID: objectID, Details: details, CreatedAt: now}, nil
}

// SelectDocuments returns the rows whose object_id is in objectIDs, in no particular order.
func (s *Store) SelectDocuments(ctx context.Context, objectIDs []string) ([]db.DocumentRow, error) {
	out := make([]db.DocumentRow, 0, len(objectIDs))
	for start := 0; start < len(objectIDs); start += selectChunk {
		end := min(start+selectChunk, len(objectIDs))
		chunk := objectIDs[start:end]

		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		q := "SELECT id, object_id, details, created_at FROM documents WHERE object_id IN (" +
			placeholders(len(chunk)) + ")"

		rows, err := s.db.QueryContext(ctx, q, args...)
		if err != nil {
			return nil, &db.Error{Op: db.OpSelect, Err: err}
		}
		got, err := scanRows(rows)
		if err != nil {
			return nil, &db.Error{Op: db.OpSelect, Err: err}
		}
		out = append(out, got...)
	}
	return out, nil
}

// ListDocumentsAfter returns up to limit rows with id > afterSeq, ordered by id.
func (s *Store) ListDocumentsAfter(ctx context.Context, afterSeq int64, limit int) ([]db.DocumentRow, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, object_id, details, created_at FROM documents WHERE id > ? ORDER BY id LIMIT ?",
		afterSeq, limit)
	if err != nil {
		return nil, &db.Error{Op: db.OpList, Err: err}
	}
	out, err := scanRows(rows)
	if err != nil {
		return nil, &db.Error{Op: db.OpList, Err: err}
	}
	return out, nil
}

// CountDocuments returns the number of stored documents.
func (s *Store) CountDocuments(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM documents").Scan(&n); err != nil {
		return 0, &db.Error{Op: db.OpCount, Err: err}
	}
	return n, nil
}

func scanRows(rows *sql.Rows) ([]db.DocumentRow, error) {
	defer rows.Close()

	var out []db.DocumentRow
	for rows.Next() {
		var r db.DocumentRow
		var createdAt sql.NullTime
		if err := rows.Scan(&r.Seq, &r.ObjectID, &r.Details, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		if createdAt.Valid {
			r.CreatedAt = createdAt.Time
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return out, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func isUniqueViolation(err error) bool {
	var se *sqlitedrv.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlitelib.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY
}
