package domain

import "time"

// Status is the lifecycle state of a job. Exactly one state partition
// holds the job id at any instant and Status always names that partition.
type Status string

// Job status constants
const (
	StatusWaiting   Status = "waiting"
	StatusDelayed   Status = "delayed"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Queue defaults
const (
	DefaultMaxJobs        = 1000
	DefaultMaxAttempts    = 3
	DefaultRetryBaseDelay = 2 * time.Second
	// MaxRetryDelay caps the exponential backoff between attempts.
	MaxRetryDelay      = 300 * time.Second
	DefaultJobTimeout  = 5 * time.Minute
	DefaultLeaseGrace  = 30 * time.Second
	DefaultQueueName   = "default"
	DefaultStorePrefix = "issuerunner"
)

// Worker defaults
const (
	DefaultPollInterval     = time.Second
	DefaultErrorBackoff     = 5 * time.Second
	DefaultStopGrace        = 30 * time.Second
	DefaultMaxJobsPerWorker = 1000
)

// IsTerminal reports whether no further transition is possible from s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusDelayed, StatusActive, StatusCompleted, StatusFailed:
		return true
	}
	return false
}
