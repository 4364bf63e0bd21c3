package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/go-logr/logr"
	"github.com/jmoiron/sqlx"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrator applies the embedded schema migrations
type Migrator struct {
	db     *sqlx.DB
	fs     fs.FS
	logger logr.Logger
}

// NewMigrator creates a new migrator instance
func NewMigrator(db *sqlx.DB, logger logr.Logger) *Migrator {
	return &Migrator{db: db, fs: migrationFS, logger: logger}
}

// RunMigrations applies every pending migration in file name order
func (m *Migrator) RunMigrations(ctx context.Context) error {
	if err := m.createMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	files, err := m.migrationFiles()
	if err != nil {
		return err
	}

	applied := 0
	for _, fileName := range files {
		ran, err := m.runMigration(ctx, fileName)
		if err != nil {
			return fmt.Errorf("failed to run migration %s: %w", fileName, err)
		}
		if ran {
			applied++
		}
	}

	m.logger.Info("Migrations complete", "applied", applied, "total", len(files))
	return nil
}

func (m *Migrator) migrationFiles() ([]string, error) {
	entries, err := fs.ReadDir(m.fs, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded migrations directory: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func (m *Migrator) createMigrationsTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	_, err := m.db.ExecContext(ctx, query)
	return err
}

// runMigration applies one migration unless it is already recorded
func (m *Migrator) runMigration(ctx context.Context, fileName string) (bool, error) {
	var count int
	if err := m.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM schema_migrations WHERE version = $1", fileName); err != nil {
		return false, fmt.Errorf("failed to check migration status: %w", err)
	}
	if count > 0 {
		m.logger.V(1).Info("Migration already applied, skipping", "version", fileName)
		return false, nil
	}

	content, err := fs.ReadFile(m.fs, "migrations/"+fileName)
	if err != nil {
		return false, fmt.Errorf("failed to read embedded migration file %s: %w", fileName, err)
	}

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	m.logger.Info("Running migration", "version", fileName)
	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return false, fmt.Errorf("failed to execute migration %s: %w", fileName, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", fileName); err != nil {
		return false, fmt.Errorf("failed to record migration %s: %w", fileName, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit migration %s: %w", fileName, err)
	}
	return true, nil
}

// GetMigrationVersion returns the most recently applied migration, or "" when none ran
func (m *Migrator) GetMigrationVersion(ctx context.Context) (string, error) {
	var version string
	err := m.db.GetContext(ctx, &version, "SELECT version FROM schema_migrations ORDER BY applied_at DESC, version DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return version, nil
}
