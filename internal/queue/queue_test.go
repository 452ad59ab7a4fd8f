package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/issue-runner/internal/domain"
	"github.com/cuongbtq/issue-runner/internal/queue"
	"github.com/cuongbtq/issue-runner/internal/queue/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// hookStore wraps a store to interleave work with, or inject failures
// into, the queue's own store calls.
type hookStore struct {
	queue.Store
	beforeHSet func(key string, fields map[string]string)
	failSAdd   func(key string) error
}

func (s *hookStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if s.beforeHSet != nil {
		s.beforeHSet(key, fields)
	}
	return s.Store.HSet(ctx, key, fields)
}

func (s *hookStore) SAdd(ctx context.Context, key string, members ...string) error {
	if s.failSAdd != nil {
		if err := s.failSAdd(key); err != nil {
			return err
		}
	}
	return s.Store.SAdd(ctx, key, members...)
}

func newHookedQueue(t *testing.T) (*queue.Queue, *hookStore, *clock) {
	t.Helper()
	mem := memstore.New()
	clk := newClock()
	mem.SetClock(clk.Now)
	hs := &hookStore{Store: mem}
	return queue.New(hs, &queue.Config{Name: "issues", Prefix: "test", Clock: clk.Now}), hs, clk
}

func newQueue(t *testing.T, cfg queue.Config) (*queue.Queue, *memstore.Store, *clock) {
	t.Helper()
	store := memstore.New()
	clk := newClock()
	store.SetClock(clk.Now)
	cfg.Clock = clk.Now
	return queue.New(store, &cfg), store, clk
}

func TestQueue_EnqueueDequeue(t *testing.T) {
	ctx := context.Background()
	q, _, _ := newQueue(t, queue.Config{})

	job, err := q.Enqueue(ctx, "issue.triage", map[string]int{"issue": 42}, domain.EnqueueOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaiting, job.Status)
	assert.Equal(t, domain.DefaultMaxAttempts, job.MaxAttempts)
	assert.Equal(t, domain.DefaultJobTimeout, job.Timeout)
	assert.JSONEq(t, `{"issue":42}`, string(job.Payload))

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, domain.StatusActive, got.Status)
	assert.NotNil(t, got.StartedAt)

	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, stored.Status)

	empty, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestQueue_EnqueueValidation(t *testing.T) {
	ctx := context.Background()
	q, _, _ := newQueue(t, queue.Config{})

	tests := []struct {
		name    string
		jobName string
		payload any
		wantErr error
	}{
		{name: "empty name", jobName: " ", payload: nil},
		{name: "invalid raw json", jobName: "x", payload: []byte("{nope"), wantErr: domain.ErrInvalidPayload},
		{name: "unmarshalable payload", jobName: "x", payload: make(chan int), wantErr: domain.ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := q.Enqueue(ctx, tt.jobName, tt.payload, domain.EnqueueOptions{})
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}

	stats, err := q.GetStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
}

func TestQueue_PriorityJumpAhead(t *testing.T) {
	ctx := context.Background()
	q, _, _ := newQueue(t, queue.Config{})

	a, err := q.Enqueue(ctx, "a", nil, domain.EnqueueOptions{Priority: 0})
	require.NoError(t, err)
	b, err := q.Enqueue(ctx, "b", nil, domain.EnqueueOptions{Priority: 5})
	require.NoError(t, err)

	first, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, b.ID, first.ID)

	second, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, a.ID, second.ID)
}

func TestQueue_Capacity(t *testing.T) {
	ctx := context.Background()
	q, _, _ := newQueue(t, queue.Config{MaxJobs: 2})

	for i := 0; i < 2; i++ {
		_, err := q.Enqueue(ctx, "job", nil, domain.EnqueueOptions{})
		require.NoError(t, err)
	}

	_, err := q.Enqueue(ctx, "job", nil, domain.EnqueueOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrQueueFull)

	var full *domain.QueueFullError
	require.True(t, errors.As(err, &full))
	assert.Equal(t, 2, full.Limit)

	stats, err := q.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Waiting)
	assert.Equal(t, int64(2), stats.Total)
}

func TestQueue_DelayedNotDequeuedEarly(t *testing.T) {
	ctx := context.Background()
	q, _, clk := newQueue(t, queue.Config{})

	job, err := q.Enqueue(ctx, "later", nil, domain.EnqueueOptions{Delay: time.Second})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelayed, job.Status)
	require.NotNil(t, job.ReadyAt)

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	clk.Advance(999 * time.Millisecond)
	got, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	clk.Advance(101 * time.Millisecond)
	got, err = q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, job.ID, got.ID)
	assert.Nil(t, got.ReadyAt)
}

func TestQueue_DelayedPromotedInReadinessOrder(t *testing.T) {
	ctx := context.Background()
	q, _, clk := newQueue(t, queue.Config{})

	late, err := q.Enqueue(ctx, "late", nil, domain.EnqueueOptions{Delay: 2 * time.Second})
	require.NoError(t, err)
	early, err := q.Enqueue(ctx, "early", nil, domain.EnqueueOptions{Delay: time.Second})
	require.NoError(t, err)

	clk.Advance(3 * time.Second)

	first, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, early.ID, first.ID)

	second, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, late.ID, second.ID)
}

func TestQueue_CompleteJob(t *testing.T) {
	ctx := context.Background()
	q, _, _ := newQueue(t, queue.Config{})

	job, err := q.Enqueue(ctx, "x", nil, domain.EnqueueOptions{})
	require.NoError(t, err)

	err = q.CompleteJob(ctx, job.ID, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "waiting job cannot complete")

	_, err = q.Dequeue(ctx)
	require.NoError(t, err)

	require.NoError(t, q.CompleteJob(ctx, job.ID, map[string]string{"pr": "#7"}))

	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
	assert.NotNil(t, stored.CompletedAt)
	assert.JSONEq(t, `{"pr":"#7"}`, string(stored.Result))

	err = q.CompleteJob(ctx, job.ID, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "completed is terminal")

	err = q.CompleteJob(ctx, "missing", nil)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)

	stats, err := q.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Completed)
	assert.Equal(t, int64(0), stats.Active)
}

func TestQueue_FailJobExhaustsAttempts(t *testing.T) {
	ctx := context.Background()
	q, _, clk := newQueue(t, queue.Config{})

	job, err := q.Enqueue(ctx, "flaky", nil, domain.EnqueueOptions{MaxAttempts: 2})
	require.NoError(t, err)

	for attempt := 1; attempt <= 2; attempt++ {
		got, err := q.Dequeue(ctx)
		require.NoError(t, err)
		require.NotNil(t, got, "attempt %d", attempt)

		failed, err := q.FailJob(ctx, got.ID, errors.New("boom"))
		require.NoError(t, err)
		assert.Equal(t, attempt, failed.Attempts)
		assert.LessOrEqual(t, failed.Attempts, failed.MaxAttempts)

		clk.Advance(domain.MaxRetryDelay)
	}

	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, stored.Status)
	assert.Equal(t, 2, stored.Attempts)
	assert.Equal(t, "boom", stored.Error)
	assert.NotNil(t, stored.FailedAt)

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestQueue_FailJobBackoffIncreases(t *testing.T) {
	ctx := context.Background()
	q, _, clk := newQueue(t, queue.Config{
		RetryBaseDelay: time.Second,
		MaxRetryDelay:  5 * time.Second,
	})

	_, err := q.Enqueue(ctx, "flaky", nil, domain.EnqueueOptions{MaxAttempts: 6})
	require.NoError(t, err)

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, expected := range want {
		got, err := q.Dequeue(ctx)
		require.NoError(t, err)
		require.NotNil(t, got, "attempt %d", i+1)

		failed, err := q.FailJob(ctx, got.ID, errors.New("boom"))
		require.NoError(t, err)
		assert.Equal(t, domain.StatusDelayed, failed.Status)
		require.NotNil(t, failed.ReadyAt)
		assert.Equal(t, expected, failed.ReadyAt.Sub(clk.Now()), "attempt %d", i+1)

		early, err := q.Dequeue(ctx)
		require.NoError(t, err)
		assert.Nil(t, early, "retry must wait for its backoff")

		clk.Advance(expected)
	}
}

func TestQueue_FailJobPermanent(t *testing.T) {
	ctx := context.Background()
	q, _, _ := newQueue(t, queue.Config{})

	job, err := q.Enqueue(ctx, "unknown", nil, domain.EnqueueOptions{MaxAttempts: 5})
	require.NoError(t, err)
	_, err = q.Dequeue(ctx)
	require.NoError(t, err)

	failed, err := q.FailJob(ctx, job.ID, &domain.NoHandlerError{Name: "unknown"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, failed.Status)
	assert.Equal(t, 1, failed.Attempts)
	assert.Contains(t, failed.Error, "no handler")
}

func TestQueue_FailJobRequiresActive(t *testing.T) {
	ctx := context.Background()
	q, _, _ := newQueue(t, queue.Config{})

	job, err := q.Enqueue(ctx, "x", nil, domain.EnqueueOptions{})
	require.NoError(t, err)

	_, err = q.FailJob(ctx, job.ID, errors.New("boom"))
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = q.FailJob(ctx, "missing", errors.New("boom"))
	assert.ErrorIs(t, err, domain.ErrJobNotFound)

	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Attempts)
}

func TestQueue_ConcurrentDequeueExactlyOnce(t *testing.T) {
	ctx := context.Background()
	q, _, _ := newQueue(t, queue.Config{})

	const jobs = 200
	for i := 0; i < jobs; i++ {
		_, err := q.Enqueue(ctx, "stress", map[string]int{"n": i}, domain.EnqueueOptions{Priority: i % 2})
		require.NoError(t, err)
	}

	var (
		mu   sync.Mutex
		seen = make(map[string]int)
		wg   sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				j, err := q.Dequeue(ctx)
				if err != nil || j == nil {
					return
				}
				mu.Lock()
				seen[j.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, jobs)
	for id, n := range seen {
		assert.Equal(t, 1, n, "job %s dequeued %d times", id, n)
	}

	stats, err := q.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(jobs), stats.Active)
	assert.Equal(t, int64(0), stats.Waiting)
}

func TestQueue_CleanCompleted(t *testing.T) {
	ctx := context.Background()
	q, _, clk := newQueue(t, queue.Config{})

	complete := func(name string) string {
		j, err := q.Enqueue(ctx, name, nil, domain.EnqueueOptions{})
		require.NoError(t, err)
		got, err := q.Dequeue(ctx)
		require.NoError(t, err)
		require.NoError(t, q.CompleteJob(ctx, got.ID, nil))
		return j.ID
	}

	old := complete("old")
	clk.Advance(2 * time.Hour)
	recent := complete("recent")

	failing, err := q.Enqueue(ctx, "failing", nil, domain.EnqueueOptions{MaxAttempts: 1})
	require.NoError(t, err)
	_, err = q.Dequeue(ctx)
	require.NoError(t, err)
	_, err = q.FailJob(ctx, failing.ID, errors.New("boom"))
	require.NoError(t, err)

	clk.Advance(30 * time.Minute)

	removed, err := q.CleanCompleted(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = q.GetJob(ctx, old)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
	_, err = q.GetJob(ctx, recent)
	assert.NoError(t, err)
	_, err = q.GetJob(ctx, failing.ID)
	assert.NoError(t, err, "failed jobs are not touched by CleanCompleted")

	removed, err = q.CleanFailed(ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	stats, err := q.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Completed)
	assert.Equal(t, int64(0), stats.Failed)
}

func TestQueue_RemoveJob(t *testing.T) {
	ctx := context.Background()
	q, _, _ := newQueue(t, queue.Config{})

	tests := []struct {
		name  string
		delay time.Duration
	}{
		{name: "waiting job"},
		{name: "delayed job", delay: time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j, err := q.Enqueue(ctx, "x", nil, domain.EnqueueOptions{Delay: tt.delay})
			require.NoError(t, err)

			require.NoError(t, q.RemoveJob(ctx, j.ID))

			_, err = q.GetJob(ctx, j.ID)
			assert.ErrorIs(t, err, domain.ErrJobNotFound)

			stats, err := q.GetStats(ctx)
			require.NoError(t, err)
			assert.Zero(t, stats.Total)
		})
	}

	assert.ErrorIs(t, q.RemoveJob(ctx, "missing"), domain.ErrJobNotFound)
}

func TestQueue_Obliterate(t *testing.T) {
	ctx := context.Background()
	q, store, _ := newQueue(t, queue.Config{Name: "issues", Prefix: "test"})

	for i := 0; i < 150; i++ {
		_, err := q.Enqueue(ctx, "x", nil, domain.EnqueueOptions{})
		require.NoError(t, err)
	}
	_, err := q.Dequeue(ctx)
	require.NoError(t, err)

	require.NoError(t, q.Obliterate(ctx))

	stats, err := q.GetStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)

	exists, err := store.Exists(ctx, "test:issues:ids")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestQueue_RecoverStalled(t *testing.T) {
	ctx := context.Background()
	q, _, clk := newQueue(t, queue.Config{JobTimeout: time.Minute, LeaseGrace: 10 * time.Second})

	stalled, err := q.Enqueue(ctx, "stalled", nil, domain.EnqueueOptions{})
	require.NoError(t, err)
	_, err = q.Dequeue(ctx)
	require.NoError(t, err)

	n, err := q.RecoverStalled(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "lease still held")

	clk.Advance(71 * time.Second)

	n, err = q.RecoverStalled(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := q.GetJob(ctx, stalled.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelayed, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	assert.Contains(t, stored.Error, "stalled")
}

func TestQueue_ListJobs(t *testing.T) {
	ctx := context.Background()
	q, _, clk := newQueue(t, queue.Config{})

	var ids []string
	for i := 0; i < 3; i++ {
		j, err := q.Enqueue(ctx, fmt.Sprintf("job-%d", i), nil, domain.EnqueueOptions{})
		require.NoError(t, err)
		ids = append(ids, j.ID)
		clk.Advance(time.Millisecond)
	}

	waiting, err := q.ListJobs(ctx, domain.StatusWaiting, 2)
	require.NoError(t, err)
	require.Len(t, waiting, 2)
	assert.Equal(t, ids[0], waiting[0].ID)

	for i := 0; i < 3; i++ {
		j, err := q.Dequeue(ctx)
		require.NoError(t, err)
		require.NoError(t, q.CompleteJob(ctx, j.ID, json.RawMessage(`"ok"`)))
	}

	completed, err := q.ListJobs(ctx, domain.StatusCompleted, 10)
	require.NoError(t, err)
	require.Len(t, completed, 3)
	for i, j := range completed {
		assert.Equal(t, ids[i], j.ID)
	}

	_, err = q.ListJobs(ctx, domain.Status("bogus"), 10)
	assert.Error(t, err)
}

func TestQueue_EnqueueBlankName(t *testing.T) {
	q, _, _ := newQueue(t, queue.Config{})

	_, err := q.Enqueue(context.Background(), "  \t", nil, domain.EnqueueOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidJob)
}

func TestQueue_SubMillisecondDurations(t *testing.T) {
	ctx := context.Background()
	q, _, clk := newQueue(t, queue.Config{})

	job, err := q.Enqueue(ctx, "fast", nil, domain.EnqueueOptions{
		Timeout:        800 * time.Microsecond,
		RetryBaseDelay: 500 * time.Microsecond,
	})
	require.NoError(t, err)

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 800*time.Microsecond, got.Timeout)
	assert.Equal(t, 500*time.Microsecond, got.RetryBaseDelay)

	failed, err := q.FailJob(ctx, job.ID, errors.New("boom"))
	require.NoError(t, err)
	require.NotNil(t, failed.ReadyAt)
	assert.Equal(t, clk.Now().Add(500*time.Microsecond), *failed.ReadyAt)
}

func TestQueue_RemoveDuringTransition(t *testing.T) {
	tests := []struct {
		name    string
		status  domain.Status
		opts    domain.EnqueueOptions
		prepare func(t *testing.T, q *queue.Queue, clk *clock)
		act     func(q *queue.Queue, id string) error
		wantErr error
	}{
		{
			name:   "complete",
			status: domain.StatusCompleted,
			prepare: func(t *testing.T, q *queue.Queue, _ *clock) {
				_, err := q.Dequeue(context.Background())
				require.NoError(t, err)
			},
			act: func(q *queue.Queue, id string) error {
				return q.CompleteJob(context.Background(), id, "ok")
			},
			wantErr: domain.ErrJobNotFound,
		},
		{
			name:   "retry",
			status: domain.StatusDelayed,
			prepare: func(t *testing.T, q *queue.Queue, _ *clock) {
				_, err := q.Dequeue(context.Background())
				require.NoError(t, err)
			},
			act: func(q *queue.Queue, id string) error {
				_, err := q.FailJob(context.Background(), id, errors.New("boom"))
				return err
			},
			wantErr: domain.ErrJobNotFound,
		},
		{
			name:   "promote",
			status: domain.StatusWaiting,
			opts:   domain.EnqueueOptions{Delay: time.Minute},
			prepare: func(_ *testing.T, _ *queue.Queue, clk *clock) {
				clk.Advance(2 * time.Minute)
			},
			act: func(q *queue.Queue, _ string) error {
				j, err := q.Dequeue(context.Background())
				if j != nil {
					return fmt.Errorf("dequeued removed job %s", j.ID)
				}
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			q, hs, clk := newHookedQueue(t)

			job, err := q.Enqueue(ctx, "issue.triage", nil, tt.opts)
			require.NoError(t, err)
			tt.prepare(t, q, clk)

			removed := false
			hs.beforeHSet = func(key string, fields map[string]string) {
				if removed || fields["status"] != string(tt.status) {
					return
				}
				removed = true
				require.NoError(t, q.RemoveJob(ctx, job.ID))
			}

			err = tt.act(q, job.ID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			require.True(t, removed)

			_, err = q.GetJob(ctx, job.ID)
			assert.ErrorIs(t, err, domain.ErrJobNotFound)

			stats, err := q.GetStats(ctx)
			require.NoError(t, err)
			assert.Zero(t, stats.Total)
		})
	}
}

func TestQueue_DequeueRequeuesOnStoreError(t *testing.T) {
	ctx := context.Background()
	q, hs, _ := newHookedQueue(t)

	first, err := q.Enqueue(ctx, "first", nil, domain.EnqueueOptions{})
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, "second", nil, domain.EnqueueOptions{})
	require.NoError(t, err)

	failures := 1
	hs.failSAdd = func(key string) error {
		if strings.HasSuffix(key, ":active") && failures > 0 {
			failures--
			return errors.New("connection reset")
		}
		return nil
	}

	got, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Nil(t, got)

	stats, err := q.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Waiting)
	assert.Zero(t, stats.Active)

	stored, err := q.GetJob(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaiting, stored.Status)
	assert.Nil(t, stored.StartedAt)

	got, err = q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID, "requeued job keeps its place at the head")
}

func TestQueue_DequeueQuarantinesCorruptRecord(t *testing.T) {
	ctx := context.Background()
	q, store, _ := newQueue(t, queue.Config{Name: "issues", Prefix: "test"})

	bad, err := q.Enqueue(ctx, "bad", nil, domain.EnqueueOptions{})
	require.NoError(t, err)
	good, err := q.Enqueue(ctx, "good", nil, domain.EnqueueOptions{})
	require.NoError(t, err)

	require.NoError(t, store.HSet(ctx, "test:issues:job:"+bad.ID, map[string]string{"priority": "high"}))

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, good.ID, got.ID)

	stats, err := q.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(1), stats.Active)
	assert.Equal(t, int64(2), stats.Total)

	stored, err := q.GetJob(ctx, bad.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, stored.Status)
	assert.Equal(t, "bad", stored.Name)
	assert.Zero(t, stored.Priority)
	assert.Contains(t, stored.Error, `invalid priority "high"`)
	assert.NotNil(t, stored.FailedAt)
}
