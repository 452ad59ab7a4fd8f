// Package janitor recovers stalled jobs and archives or removes terminal
// jobs once their retention has passed.
package janitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/issue-runner/internal/domain"
)

const (
	DefaultInterval           = time.Minute
	DefaultCompletedRetention = 24 * time.Hour
	DefaultFailedRetention    = 7 * 24 * time.Hour
)

// Queue is the part of queue.Queue the janitor needs
type Queue interface {
	RecoverStalled(ctx context.Context) (int, error)
	TerminalJobsBefore(ctx context.Context, status domain.Status, cutoff time.Time) ([]*domain.Job, error)
	RemoveJob(ctx context.Context, id string) error
	CleanCompleted(ctx context.Context, olderThan time.Duration) (int, error)
	CleanFailed(ctx context.Context, olderThan time.Duration) (int, error)
}

// Archiver persists terminal jobs before they leave the queue
type Archiver interface {
	ArchiveJobs(ctx context.Context, jobs []*domain.Job) error
}

// Config holds janitor settings
type Config struct {
	Queue              Queue
	Archive            Archiver // optional
	Logger             *slog.Logger
	Interval           time.Duration
	CompletedRetention time.Duration
	FailedRetention    time.Duration
	Now                func() time.Time
}

// Report summarises one sweep
type Report struct {
	Recovered int
	Archived  int
	Removed   int
}

// Janitor runs periodic queue maintenance
type Janitor struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a janitor
func New(cfg Config) (*Janitor, error) {
	if cfg.Queue == nil {
		return nil, errors.New("janitor: queue is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.CompletedRetention <= 0 {
		cfg.CompletedRetention = DefaultCompletedRetention
	}
	if cfg.FailedRetention <= 0 {
		cfg.FailedRetention = DefaultFailedRetention
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Janitor{
		cfg:    cfg,
		logger: cfg.Logger.With(slog.String("component", "janitor")),
	}, nil
}

// Run sweeps once immediately and then every interval until ctx is cancelled
func (j *Janitor) Run(ctx context.Context) error {
	j.logger.Info("Janitor started",
		slog.Duration("interval", j.cfg.Interval),
		slog.Bool("archive", j.cfg.Archive != nil),
	)

	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := j.Sweep(ctx); err != nil && ctx.Err() == nil {
			j.logger.Error("Janitor sweep failed", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			j.logger.Info("Janitor stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Sweep performs one maintenance pass. Errors from one step do not stop
// the following steps; they are joined into the returned error.
func (j *Janitor) Sweep(ctx context.Context) (Report, error) {
	var report Report
	var errs []error

	recovered, err := j.cfg.Queue.RecoverStalled(ctx)
	report.Recovered = recovered
	if err != nil {
		errs = append(errs, fmt.Errorf("recover stalled: %w", err))
	}

	for _, step := range []struct {
		status    domain.Status
		retention time.Duration
	}{
		{domain.StatusCompleted, j.cfg.CompletedRetention},
		{domain.StatusFailed, j.cfg.FailedRetention},
	} {
		archived, removed, err := j.collect(ctx, step.status, step.retention)
		report.Archived += archived
		report.Removed += removed
		if err != nil {
			errs = append(errs, fmt.Errorf("collect %s: %w", step.status, err))
		}
	}

	if report.Recovered > 0 || report.Removed > 0 {
		j.logger.Info("Janitor sweep finished",
			slog.Int("recovered", report.Recovered),
			slog.Int("archived", report.Archived),
			slog.Int("removed", report.Removed),
		)
	}
	return report, errors.Join(errs...)
}

func (j *Janitor) collect(ctx context.Context, status domain.Status, retention time.Duration) (int, int, error) {
	if j.cfg.Archive == nil {
		var removed int
		var err error
		if status == domain.StatusCompleted {
			removed, err = j.cfg.Queue.CleanCompleted(ctx, retention)
		} else {
			removed, err = j.cfg.Queue.CleanFailed(ctx, retention)
		}
		return 0, removed, err
	}

	jobs, err := j.cfg.Queue.TerminalJobsBefore(ctx, status, j.cfg.Now().Add(-retention))
	if err != nil || len(jobs) == 0 {
		return 0, 0, err
	}

	// Jobs stay in the queue if the archive write fails and are retried next sweep.
	if err := j.cfg.Archive.ArchiveJobs(ctx, jobs); err != nil {
		return 0, 0, err
	}

	removed := 0
	for _, job := range jobs {
		if err := j.cfg.Queue.RemoveJob(ctx, job.ID); err != nil {
			if errors.Is(err, domain.ErrJobNotFound) {
				continue
			}
			return len(jobs), removed, err
		}
		removed++
	}
	return len(jobs), removed, nil
}
