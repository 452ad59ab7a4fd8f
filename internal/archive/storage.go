package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cuongbtq/issue-runner/internal/domain"
)

// Schema creates the archive table. It is safe to run repeatedly.
const Schema = `
CREATE TABLE IF NOT EXISTS archived_jobs (
	job_id       TEXT PRIMARY KEY,
	queue        TEXT NOT NULL,
	name         TEXT NOT NULL,
	status       TEXT NOT NULL,
	priority     INTEGER NOT NULL DEFAULT 0,
	attempts     INTEGER NOT NULL DEFAULT 0,
	max_attempts INTEGER NOT NULL DEFAULT 0,
	payload      TEXT,
	result       TEXT,
	error        TEXT,
	created_at   TIMESTAMPTZ NOT NULL,
	started_at   TIMESTAMPTZ,
	finished_at  TIMESTAMPTZ NOT NULL,
	archived_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_archived_jobs_finished ON archived_jobs (finished_at DESC, job_id DESC);
CREATE INDEX IF NOT EXISTS idx_archived_jobs_name ON archived_jobs (name);
`

const insertRecord = `
	INSERT INTO archived_jobs (
		job_id, queue, name, status, priority, attempts, max_attempts,
		payload, result, error, created_at, started_at, finished_at, archived_at
	) VALUES (
		:job_id, :queue, :name, :status, :priority, :attempts, :max_attempts,
		:payload, :result, :error, :created_at, :started_at, :finished_at, :archived_at
	)
	ON CONFLICT (job_id) DO NOTHING
`

// Filter narrows a history listing
type Filter struct {
	Queue    string
	Name     string
	Status   string
	PageSize int
	Cursor   *Cursor
}

// Storage persists terminal jobs to PostgreSQL
type Storage struct {
	db     *sqlx.DB
	queue  string
	logger *slog.Logger
	now    func() time.Time
}

// NewStorage creates a storage writing records for the named queue
func NewStorage(db *sqlx.DB, queue string, logger *slog.Logger) *Storage {
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{db: db, queue: queue, logger: logger, now: time.Now}
}

// Migrate creates the archive schema
func (s *Storage) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to migrate archive schema: %w", err)
	}
	return nil
}

// ArchiveJobs inserts jobs in one transaction. Jobs already archived are skipped.
func (s *Storage) ArchiveJobs(ctx context.Context, jobs []*domain.Job) error {
	if len(jobs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareNamedContext(ctx, insertRecord)
	if err != nil {
		return fmt.Errorf("failed to prepare archive insert: %w", err)
	}
	defer stmt.Close()

	archivedAt := s.now().UTC()
	for _, j := range jobs {
		if _, err := stmt.ExecContext(ctx, NewRecord(s.queue, j, archivedAt)); err != nil {
			return fmt.Errorf("failed to archive job %s: %w", j.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit archive: %w", err)
	}

	s.logger.Debug("Archived jobs", slog.Int("count", len(jobs)))
	return nil
}

// GetRecord loads one archived job. Unknown ids yield domain.ErrJobNotFound.
func (s *Storage) GetRecord(ctx context.Context, jobID string) (*Record, error) {
	var r Record
	query := `SELECT ` + recordColumns + ` FROM archived_jobs WHERE job_id = $1`
	if err := s.db.GetContext(ctx, &r, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
		}
		return nil, fmt.Errorf("failed to get archived job: %w", err)
	}
	return &r, nil
}

// List returns up to PageSize+1 records, newest first. The extra record
// tells the caller that another page exists.
func (s *Storage) List(ctx context.Context, filter Filter) ([]Record, error) {
	query, args := buildListQuery(filter)

	var records []Record
	if err := s.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list archived jobs: %w", err)
	}
	return records, nil
}

const recordColumns = `job_id, queue, name, status, priority, attempts, max_attempts,
	payload, result, error, created_at, started_at, finished_at, archived_at`

func buildListQuery(filter Filter) (string, []any) {
	query := `
		SELECT ` + recordColumns + `
		FROM archived_jobs
		WHERE 1=1`
	args := []any{}
	argIdx := 1

	if filter.Queue != "" {
		query += fmt.Sprintf(" AND queue = $%d", argIdx)
		args = append(args, filter.Queue)
		argIdx++
	}
	if filter.Name != "" {
		query += fmt.Sprintf(" AND name = $%d", argIdx)
		args = append(args, filter.Name)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}
	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (finished_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.FinishedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	query += " ORDER BY finished_at DESC, job_id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	return query, args
}
