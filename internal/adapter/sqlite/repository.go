// Package sqlite keeps the folder job ledger in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/neomorfeo/dmgateway/internal/domain"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

//go:embed migrations/*.sql
var migrations embed.FS

// Compile-time check: FolderJobRepository implements domain.FolderJobRepository.
var _ domain.FolderJobRepository = (*FolderJobRepository)(nil)

// FolderJobRepository records the last observed state of every submitted
// folder job. The provisioning service stays authoritative; rows here are
// diagnostics for the job status endpoint.
type FolderJobRepository struct {
	db *sql.DB
}

// New opens a SQLite database, runs migrations, and returns a ready repository.
func New(dataSourceName string) (*FolderJobRepository, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL lets the status endpoint read while the tracker writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	return NewFromDB(db)
}

// NewFromDB wraps an existing database connection, runs migrations, and returns a ready repository.
// Use this when the *sql.DB has been pre-configured (e.g., with otelsql instrumentation).
func NewFromDB(db *sql.DB) (*FolderJobRepository, error) {
	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return &FolderJobRepository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *FolderJobRepository) Close() error {
	return r.db.Close()
}

// DB returns the underlying database connection for use by other adapters (e.g., river).
func (r *FolderJobRepository) DB() *sql.DB {
	return r.db
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

const timeFormat = time.RFC3339Nano

// Save inserts job, or replaces the recorded job for the same cache key.
// A resubmitted request keeps its original created_at.
func (r *FolderJobRepository) Save(ctx context.Context, job domain.FolderJob) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO folder_jobs (cache_key, parent_folder_id, folder_name, job_id, state, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (cache_key) DO UPDATE SET
		   job_id = excluded.job_id,
		   state = excluded.state,
		   updated_at = excluded.updated_at`,
		job.CacheKey, job.ParentFolderID, job.FolderName, job.JobID, string(job.State),
		job.CreatedAt.UTC().Format(timeFormat),
		job.UpdatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("saving folder job: %w", err)
	}
	return nil
}

// Get returns the job recorded for cacheKey, or domain.ErrFolderJobNotFound.
func (r *FolderJobRepository) Get(ctx context.Context, cacheKey string) (domain.FolderJob, error) {
	var job domain.FolderJob
	var state, createdAt, updatedAt string

	err := r.db.QueryRowContext(ctx,
		`SELECT cache_key, parent_folder_id, folder_name, job_id, state, created_at, updated_at
		 FROM folder_jobs WHERE cache_key = ?`, cacheKey,
	).Scan(&job.CacheKey, &job.ParentFolderID, &job.FolderName, &job.JobID, &state, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.FolderJob{}, domain.ErrFolderJobNotFound
		}
		return domain.FolderJob{}, fmt.Errorf("scanning folder job: %w", err)
	}

	job.State = domain.FolderJobState(state)
	job.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	job.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)

	return job, nil
}

// UpdateState records a new state for the job with cacheKey.
func (r *FolderJobRepository) UpdateState(ctx context.Context, cacheKey string, state domain.FolderJobState) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE folder_jobs SET state = ?, updated_at = ? WHERE cache_key = ?`,
		string(state), time.Now().UTC().Format(timeFormat), cacheKey,
	)
	if err != nil {
		return fmt.Errorf("updating folder job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrFolderJobNotFound
	}

	return nil
}
