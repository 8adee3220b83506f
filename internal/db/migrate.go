package db

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// MigrationTarget applies migration scripts to a concrete backend.
type MigrationTarget interface {
	EnsureVersionTable(ctx context.Context) error
	CurrentVersion(ctx context.Context) (int, error)
	// Apply runs script and records version atomically.
	Apply(ctx context.Context, version int, script string) error
}

// Migration is a single versioned up-script.
type Migration struct {
	Version int
	Name    string
}

// PendingMigrations lists *.up.sql files in fsys newer than current, ordered by version.
// Files are named NNN_description.up.sql; others are ignored.
func PendingMigrations(fsys fs.FS, current int) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var out []Migration
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= current {
			continue
		}
		out = append(out, Migration{Version: version, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })

	for i := 1; i < len(out); i++ {
		if out[i].Version == out[i-1].Version {
			return nil, fmt.Errorf("duplicate migration version %d (%s, %s)",
				out[i].Version, out[i-1].Name, out[i].Name)
		}
	}
	return out, nil
}

// Migrate applies all pending migrations from fsys to t and returns the applied file names.
func Migrate(ctx context.Context, t MigrationTarget, fsys fs.FS) ([]string, error) {
	if err := t.EnsureVersionTable(ctx); err != nil {
		return nil, &Error{Op: OpMigrate, Err: fmt.Errorf("creating schema_migrations table: %w", err)}
	}

	current, err := t.CurrentVersion(ctx)
	if err != nil {
		return nil, &Error{Op: OpMigrate, Err: fmt.Errorf("getting current version: %w", err)}
	}

	pending, err := PendingMigrations(fsys, current)
	if err != nil {
		return nil, &Error{Op: OpMigrate, Err: err}
	}

	applied := make([]string, 0, len(pending))
	for _, m := range pending {
		content, err := fs.ReadFile(fsys, m.Name)
		if err != nil {
			return applied, &Error{Op: OpMigrate, Err: fmt.Errorf("reading migration %s: %w", m.Name, err)}
		}
		if err := t.Apply(ctx, m.Version, string(content)); err != nil {
			return applied, &Error{Op: OpMigrate, Err: fmt.Errorf("executing migration %s: %w", m.Name, err)}
		}
		applied = append(applied, m.Name)
	}
	return applied, nil
}
