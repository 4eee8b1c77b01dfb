package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"

	posauth "github.com/vndocker/pos-AI-community"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies every embedded SQL migration that has not run yet, in
// filename order. Each file runs in its own transaction together with its
// bookkeeping row.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS posauth_migrations (
			filename   TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("%w: create migrations table: %w", posauth.ErrMigrationFailed, err)
	}

	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("%w: read migrations: %w", posauth.ErrMigrationFailed, err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		applied, err := s.applyMigration(ctx, entry.Name())
		if err != nil {
			return fmt.Errorf("%w: %s: %w", posauth.ErrMigrationFailed, entry.Name(), err)
		}
		if applied {
			s.logger.Info("applied migration", "file", entry.Name())
		}
	}
	return nil
}

func (s *Store) applyMigration(ctx context.Context, name string) (bool, error) {
	data, err := fs.ReadFile(migrationsFS, "migrations/"+name)
	if err != nil {
		return false, err
	}

	applied := false
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var done bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM posauth_migrations WHERE filename = $1)`, name,
		).Scan(&done); err != nil {
			return err
		}
		if done {
			return nil
		}
		if _, err := tx.Exec(ctx, string(data)); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `INSERT INTO posauth_migrations (filename) VALUES ($1)`, name); err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}
