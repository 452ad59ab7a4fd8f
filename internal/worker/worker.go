package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/issue-runner/internal/domain"
)

// JobQueue is the part of queue.Queue a worker drives
type JobQueue interface {
	Dequeue(ctx context.Context) (*domain.Job, error)
	CompleteJob(ctx context.Context, id string, result any) error
	FailJob(ctx context.Context, id string, cause error) (*domain.Job, error)
	DefaultTimeout() time.Duration
}

// Worker is a single poll-execute loop. It runs one job at a time.
type Worker struct {
	id           string
	queue        JobQueue
	registry     *Registry
	metrics      *Metrics
	logger       *slog.Logger
	pollInterval time.Duration
	errorBackoff time.Duration
	stopGrace    time.Duration
	maxJobs      int
	onRetire     func(*Worker)

	mu           sync.Mutex
	status       domain.WorkerStatus
	currentJobID string
	processed    int64
	failed       int64
	dequeued     int
	startedAt    time.Time
	started      bool
	running      bool

	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewWorker creates a worker that takes its timing settings from cfg
func NewWorker(id string, cfg *Config, registry *Registry, metrics *Metrics) *Worker {
	c := cfg.withDefaults()
	return &Worker{
		id:           id,
		queue:        c.Queue,
		registry:     registry,
		metrics:      metrics,
		logger:       c.Logger.With(slog.String("worker_id", id)),
		pollInterval: c.PollInterval,
		errorBackoff: c.ErrorBackoff,
		stopGrace:    c.StopGrace,
		maxJobs:      c.MaxJobsPerWorker,
		status:       domain.WorkerIdle,
		stopCh:       make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// ID returns the worker id
func (w *Worker) ID() string {
	return w.id
}

// Start launches the poll loop and returns immediately. A worker can be
// started once.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.running = true
	w.status = domain.WorkerIdle
	w.startedAt = time.Now()
	w.mu.Unlock()

	w.logger.Info("Starting worker",
		slog.Duration("poll_interval", w.pollInterval),
		slog.Int("max_jobs", w.maxJobs),
	)

	go w.run(ctx)
}

// Stop asks the loop to exit and waits up to the grace period for an
// in-flight job to finish. It never cancels a running handler.
func (w *Worker) Stop() {
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()

	w.signalStop()
	if !started {
		w.mu.Lock()
		w.status = domain.WorkerStopped
		w.mu.Unlock()
		return
	}

	timer := time.NewTimer(w.stopGrace)
	defer timer.Stop()

	select {
	case <-w.done:
		w.logger.Info("Worker stopped")
	case <-timer.C:
		w.logger.Warn("Worker stop grace period elapsed with a job in flight",
			slog.String("job_id", w.Stats().CurrentJobID),
			slog.Duration("grace", w.stopGrace),
		)
	}
}

// Done is closed once the loop has exited
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Stats returns a snapshot of the worker's counters
func (w *Worker) Stats() domain.WorkerStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	return domain.WorkerStats{
		ID:            w.id,
		Status:        w.status,
		CurrentJobID:  w.currentJobID,
		ProcessedJobs: w.processed,
		FailedJobs:    w.failed,
		StartedAt:     w.startedAt,
	}
}

func (w *Worker) signalStop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(w.stopCh)
	})
}

func (w *Worker) isRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Worker) setStatus(s domain.WorkerStatus) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = s
}

func (w *Worker) run(ctx context.Context) {
	retired := w.loop(ctx)

	w.mu.Lock()
	w.running = false
	w.status = domain.WorkerStopped
	w.currentJobID = ""
	w.mu.Unlock()
	close(w.done)

	if retired && w.onRetire != nil {
		w.onRetire(w)
	}
}

// loop polls until stopped. It reports whether the worker retired after
// reaching its job limit.
func (w *Worker) loop(ctx context.Context) bool {
	for {
		if !w.isRunning() || ctx.Err() != nil {
			return false
		}

		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			w.setStatus(domain.WorkerErrored)
			w.logger.Error("Failed to dequeue job, backing off",
				slog.String("error", err.Error()),
				slog.Duration("backoff", w.errorBackoff),
			)
			w.sleep(ctx, w.errorBackoff)
			continue
		}

		if job == nil {
			w.setStatus(domain.WorkerIdle)
			w.sleep(ctx, w.pollInterval)
			continue
		}

		w.processJob(ctx, job)

		if w.reachedLimit() {
			w.logger.Info("Worker reached job limit, retiring",
				slog.Int("max_jobs", w.maxJobs),
			)
			w.signalStop()
			return true
		}
	}
}

func (w *Worker) reachedLimit() bool {
	if w.maxJobs <= 0 {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dequeued >= w.maxJobs
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-w.stopCh:
	case <-ctx.Done():
	}
}
