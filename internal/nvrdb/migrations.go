package nvrdb

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migration is one versioned schema change.
type migration struct {
	version int
	name    string
	sql     string
}

// migrator runs pending migrations embedded via embed.FS, tracking
// applied versions in a version table.
type migrator struct {
	db     *sql.DB
	logger *slog.Logger
}

func newMigrator(db *sql.DB, logger *slog.Logger) *migrator {
	return &migrator{db: db, logger: logger}
}

func (m *migrator) run(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at INTEGER NOT NULL
		)`); err != nil {
		return fmt.Errorf("nvrdb: create schema_migrations: %w", err)
	}

	applied := map[int]bool{}
	rows, err := m.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("nvrdb: read schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return err
		}
		applied[v] = true
	}
	rows.Close()

	available, err := m.available()
	if err != nil {
		return err
	}

	for _, mg := range available {
		if applied[mg.version] {
			continue
		}
		tx, err := m.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("nvrdb: begin migration %d: %w", mg.version, err)
		}
		if _, err := tx.ExecContext(ctx, mg.sql); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("nvrdb: migration %d (%s) failed: %w", mg.version, mg.name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
			mg.version, mg.name, time.Now().Unix()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("nvrdb: record migration %d: %w", mg.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("nvrdb: commit migration %d: %w", mg.version, err)
		}
		if m.logger != nil {
			m.logger.Info("applied migration", "version", mg.version, "name", mg.name)
		}
	}
	return nil
}

func (m *migrator) available() ([]migration, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("nvrdb: read migrations dir: %w", err)
	}
	out := make([]migration, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".sql") {
			continue
		}
		prefix, _, ok := strings.Cut(name, "_")
		if !ok {
			continue
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			continue
		}
		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return nil, err
		}
		out = append(out, migration{version: version, name: name, sql: string(data)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}
