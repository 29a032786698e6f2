package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DatasetKey is the single key the category tree is stored under. The
// document is the same JSON array the codec serializer produces.
const DatasetKey = "categories"

// Repository persists the dataset document in SQLite.
type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Load returns the stored dataset document and its revision.
func (r *Repository) Load(ctx context.Context) ([]byte, int64, error) {
	var (
		document []byte
		revision int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT document, revision FROM dataset WHERE name = ?`, DatasetKey,
	).Scan(&document, &revision)
	if err != nil {
		return nil, 0, fmt.Errorf("load dataset: %w", err)
	}
	return document, revision, nil
}

// Replace atomically swaps the stored document and bumps the revision.
// It is the only write path: imports and CRUD edits both go through it, so
// a failed decode can never leave a partially written dataset behind.
func (r *Repository) Replace(ctx context.Context, document []byte) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO dataset (name, document, revision) VALUES (?, ?, 1)
		 ON CONFLICT (name) DO UPDATE
		 SET document = excluded.document,
		     revision = dataset.revision + 1,
		     updated_at = CURRENT_TIMESTAMP`,
		DatasetKey, document)
	if err != nil {
		return 0, fmt.Errorf("replace dataset: %w", err)
	}

	var revision int64
	err = tx.QueryRowContext(ctx,
		`SELECT revision FROM dataset WHERE name = ?`, DatasetKey,
	).Scan(&revision)
	if err != nil {
		return 0, fmt.Errorf("read revision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit replace: %w", err)
	}

	slog.InfoContext(ctx, "Dataset replaced",
		"key", DatasetKey,
		"revision", revision,
		"document_bytes", len(document))

	return revision, nil
}
