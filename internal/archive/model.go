package archive

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cuongbtq/issue-runner/internal/domain"
)

// Record is a terminal job as stored in PostgreSQL
type Record struct {
	JobID       string         `db:"job_id"`
	Queue       string         `db:"queue"`
	Name        string         `db:"name"`
	Status      string         `db:"status"`
	Priority    int            `db:"priority"`
	Attempts    int            `db:"attempts"`
	MaxAttempts int            `db:"max_attempts"`
	Payload     sql.NullString `db:"payload"`
	Result      sql.NullString `db:"result"`
	Error       sql.NullString `db:"error"`
	CreatedAt   time.Time      `db:"created_at"`
	StartedAt   sql.NullTime   `db:"started_at"`
	FinishedAt  time.Time      `db:"finished_at"`
	ArchivedAt  time.Time      `db:"archived_at"`
}

// NewRecord converts a completed or failed job
func NewRecord(queue string, j *domain.Job, archivedAt time.Time) Record {
	r := Record{
		JobID:       j.ID,
		Queue:       queue,
		Name:        j.Name,
		Status:      string(j.Status),
		Priority:    j.Priority,
		Attempts:    j.Attempts,
		MaxAttempts: j.MaxAttempts,
		Payload:     nullString(string(j.Payload)),
		Result:      nullString(string(j.Result)),
		Error:       nullString(j.Error),
		CreatedAt:   j.CreatedAt,
		ArchivedAt:  archivedAt,
	}
	if j.StartedAt != nil {
		r.StartedAt = sql.NullTime{Time: *j.StartedAt, Valid: true}
	}
	switch {
	case j.CompletedAt != nil:
		r.FinishedAt = *j.CompletedAt
	case j.FailedAt != nil:
		r.FinishedAt = *j.FailedAt
	default:
		r.FinishedAt = archivedAt
	}
	return r
}

// Job converts the record back into the shape the API returns
func (r Record) Job() *domain.Job {
	j := &domain.Job{
		ID:          r.JobID,
		Name:        r.Name,
		Status:      domain.Status(r.Status),
		Priority:    r.Priority,
		Attempts:    r.Attempts,
		MaxAttempts: r.MaxAttempts,
		Error:       r.Error.String,
		CreatedAt:   r.CreatedAt,
	}
	if r.Payload.Valid {
		j.Payload = json.RawMessage(r.Payload.String)
	}
	if r.Result.Valid {
		j.Result = json.RawMessage(r.Result.String)
	}
	if r.StartedAt.Valid {
		t := r.StartedAt.Time
		j.StartedAt = &t
	}
	finished := r.FinishedAt
	if j.Status == domain.StatusCompleted {
		j.CompletedAt = &finished
	} else {
		j.FailedAt = &finished
	}
	return j
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
