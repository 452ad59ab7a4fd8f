package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/cuongbtq/issue-runner/internal/domain"
)

// Config holds worker pool configuration
type Config struct {
	Queue            JobQueue
	Logger           *slog.Logger
	Meter            metric.Meter
	PoolSize         int
	MaxJobsPerWorker int
	PollInterval     time.Duration
	ErrorBackoff     time.Duration
	StopGrace        time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	if out.PoolSize <= 0 {
		out.PoolSize = 1
	}
	if out.MaxJobsPerWorker < 0 {
		out.MaxJobsPerWorker = 0
	}
	if out.PollInterval <= 0 {
		out.PollInterval = domain.DefaultPollInterval
	}
	if out.ErrorBackoff <= 0 {
		out.ErrorBackoff = domain.DefaultErrorBackoff
	}
	if out.StopGrace <= 0 {
		out.StopGrace = domain.DefaultStopGrace
	}
	return out
}

// Pool owns a fixed number of worker slots sharing one queue and one
// handler registry. A worker that retires is replaced while the pool runs.
type Pool struct {
	cfg      Config
	registry *Registry
	metrics  *Metrics
	logger   *slog.Logger

	mu               sync.Mutex
	running          bool
	ctx              context.Context
	workers          []*Worker
	seq              int
	retiredProcessed int64
	retiredFailed    int64
}

// NewPool creates a worker pool. Workers are created by Start.
func NewPool(cfg *Config) *Pool {
	c := cfg.withDefaults()

	metrics := NewMetrics()
	if c.Meter != nil {
		metrics = NewMetricsWithMeter(c.Meter)
	}

	return &Pool{
		cfg:      c,
		registry: NewRegistry(),
		metrics:  metrics,
		logger:   c.Logger,
	}
}

// RegisterHandler adds a handler to the shared registry. Handlers added
// after Start are visible to every worker from its next job on.
func (p *Pool) RegisterHandler(name string, h Handler) error {
	if err := p.registry.RegisterHandler(name, h); err != nil {
		return err
	}
	p.logger.Info("Handler registered", slog.String("job_name", name))
	return nil
}

// Start spawns the workers and returns immediately. ctx bounds the
// workers' store calls and handler contexts; Stop does not cancel it.
func (p *Pool) Start(ctx context.Context) error {
	if p.cfg.Queue == nil {
		return fmt.Errorf("worker pool has no queue")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true
	p.ctx = ctx
	p.workers = make([]*Worker, p.cfg.PoolSize)

	p.logger.Info("Starting worker pool",
		slog.Int("pool_size", p.cfg.PoolSize),
		slog.Int("max_jobs_per_worker", p.cfg.MaxJobsPerWorker),
		slog.Any("handlers", p.registry.Names()),
	)

	for slot := range p.workers {
		p.workers[slot] = p.spawnLocked(slot)
	}
	return nil
}

// Stop signals every worker and waits for their graceful shutdown. It
// returns ctx.Err() if ctx ends first.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	workers := append([]*Worker(nil), p.workers...)
	p.mu.Unlock()

	p.logger.Info("Stopping worker pool", slog.Int("workers", len(workers)))

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			w.Stop()
		}(w)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("Worker pool stopped gracefully")
		return nil
	case <-ctx.Done():
		p.logger.Warn("Worker pool shutdown timed out")
		return ctx.Err()
	}
}

// GetStats aggregates the stats of every worker slot. Counters of
// retired workers are included in the totals.
func (p *Pool) GetStats() domain.PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := domain.PoolStats{
		PoolSize:       p.cfg.PoolSize,
		Running:        p.running,
		TotalProcessed: p.retiredProcessed,
		TotalFailed:    p.retiredFailed,
		Workers:        make([]domain.WorkerStats, 0, len(p.workers)),
	}
	for _, w := range p.workers {
		ws := w.Stats()
		stats.Workers = append(stats.Workers, ws)
		stats.TotalProcessed += ws.ProcessedJobs
		stats.TotalFailed += ws.FailedJobs
		if alive(ws.Status) {
			stats.ActiveWorkers++
		}
	}
	return stats
}

// IsHealthy reports whether the pool runs and at least half of its
// workers are neither errored nor stopped.
func (p *Pool) IsHealthy() bool {
	stats := p.GetStats()
	if !stats.Running || stats.PoolSize == 0 {
		return false
	}
	return stats.ActiveWorkers*2 >= stats.PoolSize
}

func alive(s domain.WorkerStatus) bool {
	return s != domain.WorkerErrored && s != domain.WorkerStopped
}

func (p *Pool) spawnLocked(slot int) *Worker {
	p.seq++
	w := NewWorker(fmt.Sprintf("worker-%d", p.seq), &p.cfg, p.registry, p.metrics)
	w.onRetire = func(old *Worker) { p.replace(slot, old) }
	w.Start(p.ctx)
	return w
}

func (p *Pool) replace(slot int, old *Worker) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running || slot >= len(p.workers) || p.workers[slot] != old {
		return
	}

	st := old.Stats()
	p.retiredProcessed += st.ProcessedJobs
	p.retiredFailed += st.FailedJobs
	p.workers[slot] = p.spawnLocked(slot)

	p.logger.Info("Replaced retired worker",
		slog.String("retired_worker_id", old.ID()),
		slog.String("worker_id", p.workers[slot].ID()),
	)
}
