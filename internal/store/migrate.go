package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

var migrationFile = regexp.MustCompile(`^(\d+)_([a-z0-9_]+)\.(up|down)\.sql$`)

// Migration is one numbered schema change. Up and Down are file paths.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// ID is the key recorded in schema_migrations, e.g. "0001_bookmarks".
func (m Migration) ID() string {
	return fmt.Sprintf("%04d_%s", m.Version, m.Name)
}

// LoadMigrations pairs the up and down scripts in dir by version, ordered
// by version number. Files that do not look like migrations are ignored.
func LoadMigrations(dir string) ([]Migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	byVersion := map[int]*Migration{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := migrationFile.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		version, err := strconv.Atoi(match[1])
		if err != nil {
			return nil, fmt.Errorf("migration %s: %w", entry.Name(), err)
		}
		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version, Name: match[2]}
			byVersion[version] = m
		}
		if m.Name != match[2] {
			return nil, fmt.Errorf("migration %d has two names: %s and %s", version, m.Name, match[2])
		}
		path := filepath.Join(dir, entry.Name())
		switch match[3] {
		case "up":
			if m.Up != "" {
				return nil, fmt.Errorf("migration %s has two up scripts", m.ID())
			}
			m.Up = path
		case "down":
			if m.Down != "" {
				return nil, fmt.Errorf("migration %s has two down scripts", m.ID())
			}
			m.Down = path
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" || m.Down == "" {
			return nil, fmt.Errorf("migration %s needs both up and down scripts", m.ID())
		}
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

// ApplyMigrations runs every pending up script in version order, each in its
// own transaction together with its schema_migrations row. It returns the
// migrations it applied.
func ApplyMigrations(ctx context.Context, db *sql.DB, dir string) ([]Migration, error) {
	migrations, err := LoadMigrations(dir)
	if err != nil {
		return nil, err
	}
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return nil, err
	}
	applied, err := appliedMigrations(ctx, db)
	if err != nil {
		return nil, err
	}

	var ran []Migration
	for _, m := range migrations {
		if applied[m.ID()] {
			continue
		}
		if err := runMigration(ctx, db, m.Up, `INSERT INTO schema_migrations(version) VALUES($1)`, m.ID()); err != nil {
			return ran, err
		}
		log.Printf("store: applied migration %s", m.ID())
		ran = append(ran, m)
	}
	return ran, nil
}

// RollbackMigrations runs the down scripts of the newest steps applied
// migrations, newest first. steps <= 0 rolls back everything.
func RollbackMigrations(ctx context.Context, db *sql.DB, dir string, steps int) ([]Migration, error) {
	migrations, err := LoadMigrations(dir)
	if err != nil {
		return nil, err
	}
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return nil, err
	}
	applied, err := appliedMigrations(ctx, db)
	if err != nil {
		return nil, err
	}

	var undone []Migration
	for i := len(migrations) - 1; i >= 0; i-- {
		if steps > 0 && len(undone) == steps {
			break
		}
		m := migrations[i]
		if !applied[m.ID()] {
			continue
		}
		if err := runMigration(ctx, db, m.Down, `DELETE FROM schema_migrations WHERE version = $1`, m.ID()); err != nil {
			return undone, err
		}
		log.Printf("store: rolled back migration %s", m.ID())
		undone = append(undone, m)
	}
	return undone, nil
}

func runMigration(ctx context.Context, db *sql.DB, script, bookkeeping, id string) error {
	contents, err := os.ReadFile(script)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", id, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", id, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(contents)); err != nil {
		return fmt.Errorf("run migration %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, bookkeeping, id); err != nil {
		return fmt.Errorf("record migration %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", id, err)
	}
	return nil
}

func ensureMigrationsTable(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	return nil
}

func appliedMigrations(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	applied := map[string]bool{}
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}
