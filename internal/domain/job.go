package domain

import (
	"encoding/json"
	"time"
)

// Job is a unit of asynchronous work
type Job struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Status   Status          `json:"status"`
	Priority int             `json:"priority"`

	Attempts       int           `json:"attempts"`
	MaxAttempts    int           `json:"max_attempts"`
	RetryBaseDelay time.Duration `json:"retry_base_delay"`
	Timeout        time.Duration `json:"timeout"`

	CreatedAt   time.Time  `json:"created_at"`
	ReadyAt     *time.Time `json:"ready_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	FailedAt    *time.Time `json:"failed_at,omitempty"`

	Error  string          `json:"error,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// EnqueueOptions configures a single enqueue call. Zero values fall back
// to the queue's configured defaults.
type EnqueueOptions struct {
	Priority       int
	Delay          time.Duration
	MaxAttempts    int
	RetryBaseDelay time.Duration
	Timeout        time.Duration
}

// QueueStats is the per-partition job count
type QueueStats struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Delayed   int64 `json:"delayed"`
	Total     int64 `json:"total"`
}

// WorkerStatus is the local state of a single worker loop
type WorkerStatus string

const (
	WorkerIdle    WorkerStatus = "idle"
	WorkerBusy    WorkerStatus = "busy"
	WorkerStopped WorkerStatus = "stopped"
	WorkerErrored WorkerStatus = "errored"
)

// WorkerStats is a snapshot of one worker's counters
type WorkerStats struct {
	ID            string       `json:"id"`
	Status        WorkerStatus `json:"status"`
	CurrentJobID  string       `json:"current_job_id,omitempty"`
	ProcessedJobs int64        `json:"processed_jobs"`
	FailedJobs    int64        `json:"failed_jobs"`
	StartedAt     time.Time    `json:"started_at"`
}

// PoolStats aggregates the stats of every worker in a pool
type PoolStats struct {
	PoolSize       int           `json:"pool_size"`
	ActiveWorkers  int           `json:"active_workers"`
	TotalProcessed int64         `json:"total_processed"`
	TotalFailed    int64         `json:"total_failed"`
	Running        bool          `json:"running"`
	Workers        []WorkerStats `json:"workers"`
}
