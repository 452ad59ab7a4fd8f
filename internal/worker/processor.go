package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/cuongbtq/issue-runner/internal/domain"
)

// processJob runs one dequeued job and reports the outcome to the queue
func (w *Worker) processJob(ctx context.Context, job *domain.Job) {
	w.mu.Lock()
	w.status = domain.WorkerBusy
	w.currentJobID = job.ID
	w.dequeued++
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.currentJobID = ""
		if w.status == domain.WorkerBusy {
			w.status = domain.WorkerIdle
		}
		w.mu.Unlock()
	}()

	logger := w.logger.With(
		slog.String("job_id", job.ID),
		slog.String("job_name", job.Name),
		slog.Int("attempt", job.Attempts+1),
	)
	logger.Info("Processing job")

	handler, ok := w.registry.Get(job.Name)
	if !ok {
		w.metrics.Record(ctx, job.Name, OutcomeNoHandler, 0)
		w.failJob(ctx, logger, job, &domain.NoHandlerError{Name: job.Name})
		return
	}

	timeout := job.Timeout
	if timeout <= 0 {
		timeout = w.queue.DefaultTimeout()
	}

	start := time.Now()
	result, err := w.executeJob(ctx, logger, handler, job, timeout)
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			// Shutting down; the lease expires and the job is recovered.
			logger.Warn("Worker context cancelled with job in flight",
				slog.String("error", err.Error()),
			)
			return
		}

		outcome := OutcomeFailed
		if errors.Is(err, domain.ErrJobTimeout) {
			outcome = OutcomeTimeout
		}
		w.metrics.Record(ctx, job.Name, outcome, elapsed)

		logger.Error("Job execution failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", elapsed),
		)
		w.failJob(ctx, logger, job, err)
		return
	}

	w.metrics.Record(ctx, job.Name, OutcomeCompleted, elapsed)

	if err := w.queue.CompleteJob(ctx, job.ID, result); err != nil {
		logger.Error("Failed to mark job completed",
			slog.String("error", err.Error()),
		)
		w.mu.Lock()
		w.failed++
		w.mu.Unlock()
		return
	}

	w.mu.Lock()
	w.processed++
	w.mu.Unlock()

	logger.Info("Job completed successfully",
		slog.Duration("duration", elapsed),
	)
}

// executeJob runs the handler under a timeout. The handler's context is
// cancelled when the timeout fires and the worker moves on without waiting
// for it to return.
func (w *Worker) executeJob(
	ctx context.Context,
	logger *slog.Logger,
	handler Handler,
	job *domain.Job,
	timeout time.Duration,
) (any, error) {
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Job handler panicked",
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				done <- outcome{err: &domain.HandlerError{Err: fmt.Errorf("panic: %v", r)}}
			}
		}()

		result, err := handler.Handle(jobCtx, job)
		if err != nil {
			err = &domain.HandlerError{Err: err}
		}
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && errors.Is(jobCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &domain.TimeoutError{Timeout: timeout}
		}
		return out.result, out.err
	case <-jobCtx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logger.Warn("Job timed out, abandoning handler",
			slog.Duration("timeout", timeout),
		)
		return nil, &domain.TimeoutError{Timeout: timeout}
	}
}

func (w *Worker) failJob(ctx context.Context, logger *slog.Logger, job *domain.Job, cause error) {
	w.mu.Lock()
	w.failed++
	w.mu.Unlock()

	updated, err := w.queue.FailJob(ctx, job.ID, cause)
	if err != nil {
		logger.Error("Failed to record job failure",
			slog.String("error", err.Error()),
		)
		return
	}

	if updated.Status == domain.StatusDelayed {
		logger.Info("Job will be retried",
			slog.Int("attempts", updated.Attempts),
			slog.Int("max_attempts", updated.MaxAttempts),
		)
		return
	}
	logger.Warn("Job exceeded max attempts or failed permanently",
		slog.Int("attempts", updated.Attempts),
		slog.Int("max_attempts", updated.MaxAttempts),
	)
}
