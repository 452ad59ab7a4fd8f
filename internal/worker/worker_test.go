package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/issue-runner/internal/domain"
)

// fakeQueue hands out queued jobs and records outcomes
type fakeQueue struct {
	mu         sync.Mutex
	jobs       []*domain.Job
	dequeueErr error
	completed  map[string]any
	failed     map[string]error
}

func newFakeQueue(jobs ...*domain.Job) *fakeQueue {
	return &fakeQueue{
		jobs:      jobs,
		completed: make(map[string]any),
		failed:    make(map[string]error),
	}
}

func (f *fakeQueue) Dequeue(context.Context) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dequeueErr != nil {
		return nil, f.dequeueErr
	}
	if len(f.jobs) == 0 {
		return nil, nil
	}
	j := f.jobs[0]
	f.jobs = f.jobs[1:]
	return j, nil
}

func (f *fakeQueue) CompleteJob(_ context.Context, id string, result any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed[id] = result
	return nil
}

func (f *fakeQueue) FailJob(_ context.Context, id string, cause error) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[id] = cause
	return &domain.Job{ID: id, Status: domain.StatusFailed, Attempts: 1, MaxAttempts: 1}, nil
}

func (f *fakeQueue) DefaultTimeout() time.Duration { return time.Second }

func (f *fakeQueue) setDequeueErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dequeueErr = err
}

func (f *fakeQueue) outcome(id string) (any, error, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.completed[id]; ok {
		return r, nil, true
	}
	if err, ok := f.failed[id]; ok {
		return nil, err, true
	}
	return nil, nil, false
}

func newTestWorker(q JobQueue, registry *Registry) *Worker {
	return NewWorker("w-test", &Config{
		Queue:        q,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		PollInterval: 5 * time.Millisecond,
		ErrorBackoff: 5 * time.Millisecond,
		StopGrace:    50 * time.Millisecond,
	}, registry, nil)
}

func TestWorker_StoreErrorBacksOffAndRecovers(t *testing.T) {
	q := newFakeQueue()
	q.setDequeueErr(domain.NewStoreError("lpop", errors.New("connection refused")))

	w := newTestWorker(q, NewRegistry())
	w.Start(context.Background())
	defer w.Stop()

	require.Eventually(t, func() bool {
		return w.Stats().Status == domain.WorkerErrored
	}, time.Second, time.Millisecond)

	q.setDequeueErr(nil)

	require.Eventually(t, func() bool {
		return w.Stats().Status == domain.WorkerIdle
	}, time.Second, time.Millisecond)
}

func TestWorker_ResultAndErrorClassification(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.RegisterHandler("ok", HandlerFunc(func(context.Context, *domain.Job) (any, error) {
		return map[string]int{"files_changed": 3}, nil
	})))
	require.NoError(t, registry.RegisterHandler("bad", HandlerFunc(func(context.Context, *domain.Job) (any, error) {
		return nil, domain.NewPermanentError(errors.New("repository archived"))
	})))

	q := newFakeQueue(
		&domain.Job{ID: "1", Name: "ok"},
		&domain.Job{ID: "2", Name: "bad"},
		&domain.Job{ID: "3", Name: "nobody"},
	)
	w := newTestWorker(q, registry)
	w.Start(context.Background())
	defer w.Stop()

	require.Eventually(t, func() bool {
		_, _, done := q.outcome("3")
		return done
	}, time.Second, time.Millisecond)

	result, err, _ := q.outcome("1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"files_changed": 3}, result)

	_, err, _ = q.outcome("2")
	assert.ErrorIs(t, err, domain.ErrHandlerFailed)
	assert.True(t, domain.IsPermanent(err))

	_, err, _ = q.outcome("3")
	assert.ErrorIs(t, err, domain.ErrNoHandler)

	stats := w.Stats()
	assert.Equal(t, int64(1), stats.ProcessedJobs)
	assert.Equal(t, int64(2), stats.FailedJobs)
	assert.Equal(t, "w-test", stats.ID)
}

func TestWorker_StopIsBoundedByGrace(t *testing.T) {
	registry := NewRegistry()
	release := make(chan struct{})
	started := make(chan struct{})
	var handlerCtxErr error

	require.NoError(t, registry.RegisterHandler("long", HandlerFunc(func(ctx context.Context, _ *domain.Job) (any, error) {
		close(started)
		<-release
		handlerCtxErr = ctx.Err()
		return nil, nil
	})))

	q := newFakeQueue(&domain.Job{ID: "1", Name: "long", Timeout: time.Minute})
	w := newTestWorker(q, registry)
	w.Start(context.Background())

	<-started
	assert.Equal(t, domain.WorkerBusy, w.Stats().Status)
	assert.Equal(t, "1", w.Stats().CurrentJobID)

	begin := time.Now()
	w.Stop()
	assert.Less(t, time.Since(begin), time.Second)

	close(release)
	<-w.Done()
	assert.NoError(t, handlerCtxErr, "stop must not cancel a running handler")

	_, err, done := q.outcome("1")
	assert.True(t, done)
	assert.NoError(t, err)
	assert.Equal(t, domain.WorkerStopped, w.Stats().Status)
}

func TestWorker_RetiresAfterMaxJobs(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.RegisterHandler("noop", HandlerFunc(func(context.Context, *domain.Job) (any, error) {
		return nil, nil
	})))

	q := newFakeQueue(
		&domain.Job{ID: "1", Name: "noop"},
		&domain.Job{ID: "2", Name: "noop"},
		&domain.Job{ID: "3", Name: "noop"},
	)
	w := newTestWorker(q, registry)
	w.maxJobs = 2

	retired := make(chan *Worker, 1)
	w.onRetire = func(old *Worker) { retired <- old }
	w.Start(context.Background())

	select {
	case got := <-retired:
		assert.Same(t, w, got)
	case <-time.After(time.Second):
		t.Fatal("worker did not retire")
	}

	assert.Equal(t, int64(2), w.Stats().ProcessedJobs)
	assert.Equal(t, domain.WorkerStopped, w.Stats().Status)
	_, _, done := q.outcome("3")
	assert.False(t, done)
}

func TestWorker_StopBeforeStart(t *testing.T) {
	w := newTestWorker(newFakeQueue(), NewRegistry())
	w.Stop()
	assert.Equal(t, domain.WorkerStopped, w.Stats().Status)
}

func TestRegistry_RegisterHandler(t *testing.T) {
	noop := HandlerFunc(func(context.Context, *domain.Job) (any, error) { return nil, nil })

	tests := []struct {
		name    string
		jobName string
		handler Handler
		wantErr error
	}{
		{name: "valid", jobName: "issue.triage", handler: noop},
		{name: "duplicate", jobName: "issue.triage", handler: noop, wantErr: domain.ErrHandlerExists},
		{name: "empty name", jobName: "  ", handler: noop},
		{name: "nil handler", jobName: "issue.bugfix", handler: nil},
	}

	r := NewRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.RegisterHandler(tt.jobName, tt.handler)
			if tt.name == "valid" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}

	assert.Equal(t, []string{"issue.triage"}, r.Names())
	_, ok := r.Get("issue.bugfix")
	assert.False(t, ok)
}

func TestRegister_NilFunc(t *testing.T) {
	var fn func(context.Context, struct{}) (string, error)
	assert.Error(t, Register(NewRegistry(), "x", fn))
}
