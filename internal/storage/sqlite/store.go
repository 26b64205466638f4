package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tjfontaine/workflow-lens/internal/domain"
	"github.com/tjfontaine/workflow-lens/internal/storage"
)

// Store is a SQLite implementation of storage.Store.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// New opens the database at dsn. A shared in-memory DSN such as
// "file:workflowlens?mode=memory&cache=shared" lives as long as the store.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Shared-cache databases report SQLITE_LOCKED on concurrent writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS credentials (
			provider TEXT PRIMARY KEY,
			api_key TEXT NOT NULL,
			model TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			provider TEXT NOT NULL,
			model TEXT NOT NULL,
			mode TEXT NOT NULL,
			status TEXT NOT NULL,
			error_message TEXT,
			frames INTEGER NOT NULL DEFAULT 0,
			input_tokens INTEGER NOT NULL DEFAULT 0,
			stale INTEGER NOT NULL DEFAULT 0,
			duration_ns INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_mode ON runs(mode)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

func (s *Store) GetCredential(ctx context.Context, provider domain.ProviderType) (*storage.Credential, error) {
	query := `SELECT provider, api_key, model, updated_at FROM credentials WHERE provider = ?`

	var cred storage.Credential
	err := s.db.QueryRowContext(ctx, query, string(provider)).Scan(
		&cred.Provider, &cred.APIKey, &cred.Model, &cred.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("credential for %s: %w", provider, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	return &cred, nil
}

func (s *Store) PutCredential(ctx context.Context, cred *storage.Credential) error {
	cred.UpdatedAt = time.Now()

	_, err := s.db.ExecContext(ctx, `
	INSERT INTO credentials (provider, api_key, model, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(provider) DO UPDATE SET api_key=excluded.api_key, model=excluded.model, updated_at=excluded.updated_at;
	`, string(cred.Provider), cred.APIKey, cred.Model, cred.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to put credential: %w", err)
	}
	return nil
}

func (s *Store) ListCredentials(ctx context.Context) ([]*storage.Credential, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT provider, api_key, model, updated_at FROM credentials ORDER BY provider ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}
	defer rows.Close()

	var out []*storage.Credential
	for rows.Next() {
		var cred storage.Credential
		if err := rows.Scan(&cred.Provider, &cred.APIKey, &cred.Model, &cred.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		out = append(out, &cred)
	}

	return out, rows.Err()
}

func (s *Store) DeleteCredentials(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM credentials`); err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	return nil
}

func (s *Store) RecordRun(ctx context.Context, run *storage.Run) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	query := `INSERT INTO runs (id, provider, model, mode, status, error_message, frames, input_tokens, stale, duration_ns, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		run.ID, string(run.Provider), run.Model, run.Mode, string(run.Status), run.Error,
		run.Frames, run.InputTokens, run.Stale, int64(run.Duration), run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// ListRuns returns the newest runs first.
func (s *Store) ListRuns(ctx context.Context, opts storage.RunListOptions) ([]*storage.Run, error) {
	query := `SELECT id, provider, model, mode, status, error_message, frames, input_tokens, stale, duration_ns, created_at
	          FROM runs`
	var args []any
	if opts.Mode != "" {
		query += ` WHERE mode = ?`
		args = append(args, opts.Mode)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []*storage.Run
	for rows.Next() {
		var (
			run      storage.Run
			errMsg   sql.NullString
			duration int64
		)
		if err := rows.Scan(&run.ID, &run.Provider, &run.Model, &run.Mode, &run.Status, &errMsg,
			&run.Frames, &run.InputTokens, &run.Stale, &duration, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Error = errMsg.String
		run.Duration = time.Duration(duration)
		out = append(out, &run)
	}

	return out, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
