package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ApplyMigrations runs every pending .up.sql file in migrationsDir in
// lexical order, recording each applied version in schema_migrations.
// It is safe to call on every startup.
func ApplyMigrations(ctx context.Context, db *sql.DB, migrationsDir string) error {
	if err := ensureVersionTable(ctx, db); err != nil {
		return err
	}

	pending, err := pendingMigrations(ctx, db, migrationsDir)
	if err != nil {
		return err
	}

	for _, m := range pending {
		contents, err := os.ReadFile(m.path)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", m.version, err)
		}
		if err := applyOne(ctx, db, m.version, string(contents)); err != nil {
			return err
		}
		log.Printf("applied migration %s", m.version)
	}
	return nil
}

type migrationFile struct {
	version string
	path    string
}

func pendingMigrations(ctx context.Context, db *sql.DB, migrationsDir string) ([]migrationFile, error) {
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var files []migrationFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".up.sql") {
			continue
		}
		files = append(files, migrationFile{
			version: entry.Name(),
			path:    filepath.Join(migrationsDir, entry.Name()),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].version < files[j].version })

	var pending []migrationFile
	for _, m := range files {
		applied, err := versionApplied(ctx, db, m.version)
		if err != nil {
			return nil, err
		}
		if !applied {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

func applyOne(ctx context.Context, db *sql.DB, version, contents string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx %s: %w", version, err)
	}

	if _, err := tx.ExecContext(ctx, contents); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("execute migration %s: %w", version, err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version) VALUES($1)`, version); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %s: %w", version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", version, err)
	}
	return nil
}

func ensureVersionTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	return nil
}

func versionApplied(ctx context.Context, db *sql.DB, version string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version=$1)`, version).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check migration %s: %w", version, err)
	}
	return exists, nil
}
