package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cuongbtq/issue-runner/internal/domain"
	"github.com/google/uuid"
)

// Config holds queue configuration
type Config struct {
	Name           string
	Prefix         string
	MaxJobs        int
	MaxAttempts    int
	RetryBaseDelay time.Duration
	MaxRetryDelay  time.Duration
	JobTimeout     time.Duration
	LeaseGrace     time.Duration
	Logger         *slog.Logger
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Queue is a capacity-bounded job store with five state partitions:
// waiting (list), delayed, active, completed and failed (sets).
//
// Priority is a one-level preference: jobs with priority > 0 are pushed
// to the head of the waiting list, everything else to the tail. Two
// prioritized jobs are not reordered relative to each other.
type Queue struct {
	store  Store
	keys   keys
	cfg    Config
	policy RetryPolicy
	logger *slog.Logger
	now    func() time.Time
}

// New creates a new Queue on top of store
func New(store Store, cfg *Config) *Queue {
	c := *cfg
	if c.Name == "" {
		c.Name = domain.DefaultQueueName
	}
	if c.Prefix == "" {
		c.Prefix = domain.DefaultStorePrefix
	}
	if c.MaxJobs <= 0 {
		c.MaxJobs = domain.DefaultMaxJobs
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = domain.DefaultMaxAttempts
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = domain.DefaultRetryBaseDelay
	}
	if c.MaxRetryDelay <= 0 {
		c.MaxRetryDelay = domain.MaxRetryDelay
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = domain.DefaultJobTimeout
	}
	if c.LeaseGrace <= 0 {
		c.LeaseGrace = domain.DefaultLeaseGrace
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}

	return &Queue{
		store:  store,
		keys:   newKeys(c.Prefix, c.Name),
		cfg:    c,
		policy: RetryPolicy{Max: c.MaxRetryDelay},
		logger: c.Logger.With(slog.String("queue", c.Name)),
		now:    c.Clock,
	}
}

// Name returns the queue name
func (q *Queue) Name() string {
	return q.cfg.Name
}

// DefaultTimeout returns the execution timeout applied to jobs enqueued without one
func (q *Queue) DefaultTimeout() time.Duration {
	return q.cfg.JobTimeout
}

// Enqueue creates a job in Waiting (no delay) or Delayed state. It fails
// with a *domain.QueueFullError, creating nothing, when the waiting list
// is at capacity.
func (q *Queue) Enqueue(ctx context.Context, name string, payload any, opts domain.EnqueueOptions) (*domain.Job, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidJob)
	}

	raw, err := encodePayload(payload)
	if err != nil {
		return nil, err
	}

	waiting, err := q.store.LLen(ctx, q.keys.waiting())
	if err != nil {
		return nil, domain.NewStoreError("llen", err)
	}
	if waiting >= int64(q.cfg.MaxJobs) {
		return nil, &domain.QueueFullError{Limit: q.cfg.MaxJobs, Waiting: waiting}
	}

	now := q.now()
	j := &domain.Job{
		ID:             newJobID(now),
		Name:           name,
		Payload:        raw,
		Status:         domain.StatusWaiting,
		Priority:       opts.Priority,
		MaxAttempts:    opts.MaxAttempts,
		RetryBaseDelay: opts.RetryBaseDelay,
		Timeout:        opts.Timeout,
		CreatedAt:      now,
	}
	if j.MaxAttempts <= 0 {
		j.MaxAttempts = q.cfg.MaxAttempts
	}
	if j.RetryBaseDelay <= 0 {
		j.RetryBaseDelay = q.cfg.RetryBaseDelay
	}
	if j.Timeout <= 0 {
		j.Timeout = q.cfg.JobTimeout
	}
	if opts.Delay > 0 {
		readyAt := now.Add(opts.Delay)
		j.Status = domain.StatusDelayed
		j.ReadyAt = &readyAt
	}

	if err := q.store.HSet(ctx, q.keys.job(j.ID), encodeJob(j)); err != nil {
		return nil, domain.NewStoreError("hset", err)
	}
	if err := q.store.SAdd(ctx, q.keys.ids(), j.ID); err != nil {
		return nil, domain.NewStoreError("sadd", err)
	}

	if j.Status == domain.StatusDelayed {
		err = q.store.SAdd(ctx, q.keys.delayed(), j.ID)
	} else {
		err = q.pushWaiting(ctx, j.ID, j.Priority)
	}
	if err != nil {
		return nil, domain.NewStoreError("enqueue", err)
	}

	q.logger.Debug("Job enqueued",
		slog.String("job_id", j.ID),
		slog.String("job_name", j.Name),
		slog.String("status", string(j.Status)),
		slog.Int("priority", j.Priority),
	)

	return j, nil
}

// Dequeue promotes due delayed jobs, then atomically pops the next
// waiting job and marks it Active. It returns nil, nil when nothing is
// ready; callers poll again after an interval.
func (q *Queue) Dequeue(ctx context.Context) (*domain.Job, error) {
	if err := q.promoteDelayed(ctx); err != nil {
		return nil, err
	}

	for {
		id, ok, err := q.store.LPop(ctx, q.keys.waiting())
		if err != nil {
			return nil, domain.NewStoreError("lpop", err)
		}
		if !ok {
			return nil, nil
		}

		fields, err := q.store.HGetAll(ctx, q.keys.job(id))
		if err != nil {
			q.requeue(ctx, id)
			return nil, domain.NewStoreError("hgetall", err)
		}
		if len(fields) == 0 {
			// Removed between push and pop.
			q.logger.Warn("Skipping waiting id without job record", slog.String("job_id", id))
			continue
		}

		j, err := decodeJob(fields)
		if err != nil {
			if qerr := q.quarantine(ctx, id, fields, err); qerr != nil {
				q.requeue(ctx, id)
				return nil, qerr
			}
			continue
		}

		now := q.now()
		j.Status = domain.StatusActive
		j.StartedAt = &now
		j.ReadyAt = nil

		if err := q.activate(ctx, j, now); err != nil {
			q.requeue(ctx, id)
			return nil, err
		}

		known, err := q.stillKnown(ctx, id)
		if err != nil {
			// Active with a lease: stalled-job recovery picks it up.
			return nil, err
		}
		if !known {
			continue
		}

		q.logger.Debug("Job dequeued",
			slog.String("job_id", j.ID),
			slog.String("job_name", j.Name),
			slog.Int("attempts", j.Attempts),
		)

		return j, nil
	}
}

// CompleteJob moves an active job to completed and stores its result
func (q *Queue) CompleteJob(ctx context.Context, id string, result any) error {
	if err := q.ensureExists(ctx, id); err != nil {
		return err
	}

	raw, err := encodePayload(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	moved, err := q.store.SMove(ctx, q.keys.active(), q.keys.completed(), id)
	if err != nil {
		return domain.NewStoreError("smove", err)
	}
	if !moved {
		return q.transitionError(ctx, id, domain.StatusCompleted)
	}

	if err := q.store.HSet(ctx, q.keys.job(id), map[string]string{
		fieldStatus:      string(domain.StatusCompleted),
		fieldCompletedAt: encodeTime(q.now()),
		fieldResult:      string(raw),
	}); err != nil {
		return domain.NewStoreError("hset", err)
	}

	known, err := q.stillKnown(ctx, id)
	if err != nil {
		return err
	}
	if !known {
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}

	q.releaseLease(ctx, id)

	q.logger.Debug("Job completed", slog.String("job_id", id))
	return nil
}

// FailJob records a failed attempt. While attempts < maxAttempts the job
// goes back to Delayed with an exponential backoff; otherwise, or when
// cause is permanent, it becomes Failed. The updated job is returned.
func (q *Queue) FailJob(ctx context.Context, id string, cause error) (*domain.Job, error) {
	j, err := q.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if j.Status != domain.StatusActive {
		return nil, fmt.Errorf("%w: job %s is %s", domain.ErrInvalidTransition, id, j.Status)
	}
	if cause == nil {
		cause = errors.New("unknown error")
	}

	now := q.now()
	attempts := j.Attempts + 1
	retry := attempts < j.MaxAttempts && !domain.IsPermanent(cause)

	target := domain.StatusFailed
	if retry {
		target = domain.StatusDelayed
	}

	// Only the holder of the active membership gets past SMove, so the
	// attempts increment below happens exactly once per failure.
	moved, err := q.store.SMove(ctx, q.keys.active(), q.keys.partition(target), id)
	if err != nil {
		return nil, domain.NewStoreError("smove", err)
	}
	if !moved {
		return nil, q.transitionError(ctx, id, target)
	}

	stored, err := q.store.HIncrBy(ctx, q.keys.job(id), fieldAttempts, 1)
	if err != nil {
		return nil, domain.NewStoreError("hincrby", err)
	}
	j.Attempts = int(stored)
	j.Status = target
	j.Error = cause.Error()

	fields := map[string]string{
		fieldStatus: string(target),
		fieldError:  j.Error,
	}
	if retry {
		readyAt := now.Add(q.policy.Delay(j.RetryBaseDelay, j.Attempts))
		j.ReadyAt = &readyAt
		fields[fieldReadyAt] = encodeTime(readyAt)
	} else {
		j.FailedAt = &now
		fields[fieldFailedAt] = encodeTime(now)
	}

	if err := q.store.HSet(ctx, q.keys.job(id), fields); err != nil {
		return nil, domain.NewStoreError("hset", err)
	}

	known, err := q.stillKnown(ctx, id)
	if err != nil {
		return nil, err
	}
	if !known {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}

	q.releaseLease(ctx, id)

	if retry {
		q.logger.Info("Job scheduled for retry",
			slog.String("job_id", id),
			slog.String("job_name", j.Name),
			slog.Int("attempt", j.Attempts),
			slog.Int("max_attempts", j.MaxAttempts),
			slog.Time("ready_at", *j.ReadyAt),
			slog.String("error", j.Error),
		)
	} else {
		q.logger.Warn("Job failed permanently",
			slog.String("job_id", id),
			slog.String("job_name", j.Name),
			slog.Int("attempts", j.Attempts),
			slog.String("error", j.Error),
		)
	}

	return j, nil
}

// GetJob loads a job by id
func (q *Queue) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	fields, err := q.store.HGetAll(ctx, q.keys.job(id))
	if err != nil {
		return nil, domain.NewStoreError("hgetall", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}

	j, err := decodeJob(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", id, err)
	}
	return j, nil
}

// ListJobs returns up to limit jobs in the given state. Set-backed states
// are returned oldest first.
func (q *Queue) ListJobs(ctx context.Context, status domain.Status, limit int) ([]*domain.Job, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("unknown job status %q", status)
	}
	if limit <= 0 {
		limit = 100
	}

	var ids []string
	var err error
	if status == domain.StatusWaiting {
		ids, err = q.store.LRange(ctx, q.keys.waiting(), 0, int64(limit-1))
		if err != nil {
			return nil, domain.NewStoreError("lrange", err)
		}
	} else {
		ids, err = q.store.SMembers(ctx, q.keys.partition(status))
		if err != nil {
			return nil, domain.NewStoreError("smembers", err)
		}
		sort.Strings(ids)
		if len(ids) > limit {
			ids = ids[:limit]
		}
	}

	jobs := make([]*domain.Job, 0, len(ids))
	for _, id := range ids {
		j, err := q.GetJob(ctx, id)
		if errors.Is(err, domain.ErrJobNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// GetStats returns the size of every state partition
func (q *Queue) GetStats(ctx context.Context) (*domain.QueueStats, error) {
	waiting, err := q.store.LLen(ctx, q.keys.waiting())
	if err != nil {
		return nil, domain.NewStoreError("llen", err)
	}

	counts := make(map[domain.Status]int64, 4)
	for _, s := range []domain.Status{domain.StatusDelayed, domain.StatusActive, domain.StatusCompleted, domain.StatusFailed} {
		n, err := q.store.SCard(ctx, q.keys.partition(s))
		if err != nil {
			return nil, domain.NewStoreError("scard", err)
		}
		counts[s] = n
	}

	stats := &domain.QueueStats{
		Waiting:   waiting,
		Delayed:   counts[domain.StatusDelayed],
		Active:    counts[domain.StatusActive],
		Completed: counts[domain.StatusCompleted],
		Failed:    counts[domain.StatusFailed],
	}
	stats.Total = stats.Waiting + stats.Delayed + stats.Active + stats.Completed + stats.Failed
	return stats, nil
}

// TerminalJobsBefore returns completed or failed jobs whose terminal
// timestamp is strictly before cutoff.
func (q *Queue) TerminalJobsBefore(ctx context.Context, status domain.Status, cutoff time.Time) ([]*domain.Job, error) {
	var field string
	switch status {
	case domain.StatusCompleted:
		field = fieldCompletedAt
	case domain.StatusFailed:
		field = fieldFailedAt
	default:
		return nil, fmt.Errorf("%s is not a terminal status", status)
	}

	ids, err := q.store.SMembers(ctx, q.keys.partition(status))
	if err != nil {
		return nil, domain.NewStoreError("smembers", err)
	}
	sort.Strings(ids)

	var jobs []*domain.Job
	for _, id := range ids {
		raw, ok, err := q.store.HGet(ctx, q.keys.job(id), field)
		if err != nil {
			return nil, domain.NewStoreError("hget", err)
		}
		if !ok {
			continue
		}
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || !time.UnixMilli(ms).Before(cutoff) {
			continue
		}

		j, err := q.GetJob(ctx, id)
		if errors.Is(err, domain.ErrJobNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// CleanCompleted removes completed jobs older than olderThan and returns how many were removed
func (q *Queue) CleanCompleted(ctx context.Context, olderThan time.Duration) (int, error) {
	return q.clean(ctx, domain.StatusCompleted, olderThan)
}

// CleanFailed removes failed jobs older than olderThan and returns how many were removed
func (q *Queue) CleanFailed(ctx context.Context, olderThan time.Duration) (int, error) {
	return q.clean(ctx, domain.StatusFailed, olderThan)
}

func (q *Queue) clean(ctx context.Context, status domain.Status, olderThan time.Duration) (int, error) {
	jobs, err := q.TerminalJobsBefore(ctx, status, q.now().Add(-olderThan))
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, j := range jobs {
		if err := q.RemoveJob(ctx, j.ID); err != nil {
			if errors.Is(err, domain.ErrJobNotFound) {
				continue
			}
			return removed, err
		}
		removed++
	}

	if removed > 0 {
		q.logger.Info("Cleaned terminal jobs",
			slog.String("status", string(status)),
			slog.Int("removed", removed),
			slog.Duration("older_than", olderThan),
		)
	}
	return removed, nil
}

// RemoveJob deletes a job record and its partition membership.
//
// Removing the id from the ids set is the claim. A transition running
// concurrently checks that membership after its own writes and undoes
// them, so a removed job never comes back as a partial record.
func (q *Queue) RemoveJob(ctx context.Context, id string) error {
	claimed, err := q.store.SRem(ctx, q.keys.ids(), id)
	if err != nil {
		return domain.NewStoreError("srem", err)
	}
	if claimed == 0 {
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	return q.purge(ctx, id)
}

// purge drops the job record, its lease and every partition membership.
func (q *Queue) purge(ctx context.Context, id string) error {
	if err := q.store.Del(ctx, q.keys.job(id), q.keys.lease(id)); err != nil {
		return domain.NewStoreError("del", err)
	}
	if _, err := q.store.LRem(ctx, q.keys.waiting(), id); err != nil {
		return domain.NewStoreError("lrem", err)
	}
	for _, s := range []domain.Status{domain.StatusDelayed, domain.StatusActive, domain.StatusCompleted, domain.StatusFailed} {
		if _, err := q.store.SRem(ctx, q.keys.partition(s), id); err != nil {
			return domain.NewStoreError("srem", err)
		}
	}
	return nil
}

// stillKnown reports whether id survived until now. When RemoveJob got
// to it first, whatever the caller wrote after its claim is purged.
func (q *Queue) stillKnown(ctx context.Context, id string) (bool, error) {
	ok, err := q.store.SIsMember(ctx, q.keys.ids(), id)
	if err != nil {
		return false, domain.NewStoreError("sismember", err)
	}
	if ok {
		return true, nil
	}
	if err := q.purge(ctx, id); err != nil {
		return false, err
	}
	q.logger.Warn("Job removed during state transition", slog.String("job_id", id))
	return false, nil
}

// Obliterate deletes every job and partition of the queue. Administrative use only.
func (q *Queue) Obliterate(ctx context.Context) error {
	ids, err := q.store.SMembers(ctx, q.keys.ids())
	if err != nil {
		return domain.NewStoreError("smembers", err)
	}

	const batch = 100
	for start := 0; start < len(ids); start += batch {
		end := min(start+batch, len(ids))
		keys := make([]string, 0, 2*(end-start))
		for _, id := range ids[start:end] {
			keys = append(keys, q.keys.job(id), q.keys.lease(id))
		}
		if err := q.store.Del(ctx, keys...); err != nil {
			return domain.NewStoreError("del", err)
		}
	}

	if err := q.store.Del(ctx,
		q.keys.waiting(), q.keys.delayed(), q.keys.active(),
		q.keys.completed(), q.keys.failed(), q.keys.ids(),
	); err != nil {
		return domain.NewStoreError("del", err)
	}

	q.logger.Warn("Queue obliterated", slog.Int("jobs_removed", len(ids)))
	return nil
}

// RecoverStalled fails every active job whose lease has expired, which
// happens when the process running it died. It returns the number of
// jobs recovered.
func (q *Queue) RecoverStalled(ctx context.Context) (int, error) {
	ids, err := q.store.SMembers(ctx, q.keys.active())
	if err != nil {
		return 0, domain.NewStoreError("smembers", err)
	}

	recovered := 0
	for _, id := range ids {
		alive, err := q.store.Exists(ctx, q.keys.lease(id))
		if err != nil {
			return recovered, domain.NewStoreError("exists", err)
		}
		if alive {
			continue
		}

		_, err = q.FailJob(ctx, id, domain.ErrJobStalled)
		if errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, domain.ErrJobNotFound) {
			// Finished or removed while we were looking.
			continue
		}
		if err != nil {
			return recovered, err
		}
		recovered++
	}

	if recovered > 0 {
		q.logger.Warn("Recovered stalled jobs", slog.Int("count", recovered))
	}
	return recovered, nil
}

// promoteDelayed moves due delayed jobs to the waiting list in
// readiness order. SRem is the claim: only the caller that removed the
// id from the delayed set pushes it.
func (q *Queue) promoteDelayed(ctx context.Context) error {
	ids, err := q.store.SMembers(ctx, q.keys.delayed())
	if err != nil {
		return domain.NewStoreError("smembers", err)
	}
	if len(ids) == 0 {
		return nil
	}

	type due struct {
		id      string
		readyAt int64
	}
	now := q.now().UnixMilli()
	var ready []due

	for _, id := range ids {
		raw, ok, err := q.store.HGet(ctx, q.keys.job(id), fieldReadyAt)
		if err != nil {
			return domain.NewStoreError("hget", err)
		}
		if !ok || raw == "" {
			// Orphaned member; nothing to promote.
			if _, err := q.store.SRem(ctx, q.keys.delayed(), id); err != nil {
				return domain.NewStoreError("srem", err)
			}
			continue
		}
		readyAt, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			q.logger.Error("Invalid ready_at on delayed job",
				slog.String("job_id", id),
				slog.String("ready_at", raw),
			)
			continue
		}
		if readyAt <= now {
			ready = append(ready, due{id: id, readyAt: readyAt})
		}
	}

	sort.Slice(ready, func(i, k int) bool {
		if ready[i].readyAt == ready[k].readyAt {
			return ready[i].id < ready[k].id
		}
		return ready[i].readyAt < ready[k].readyAt
	})

	for _, d := range ready {
		claimed, err := q.store.SRem(ctx, q.keys.delayed(), d.id)
		if err != nil {
			return domain.NewStoreError("srem", err)
		}
		if claimed == 0 {
			continue
		}

		priority := 0
		if raw, ok, err := q.store.HGet(ctx, q.keys.job(d.id), fieldPriority); err == nil && ok {
			priority, _ = strconv.Atoi(raw)
		}

		if err := q.store.HSet(ctx, q.keys.job(d.id), map[string]string{
			fieldStatus: string(domain.StatusWaiting),
		}); err != nil {
			return domain.NewStoreError("hset", err)
		}
		if err := q.pushWaiting(ctx, d.id, priority); err != nil {
			return domain.NewStoreError("push", err)
		}
		if _, err := q.stillKnown(ctx, d.id); err != nil {
			return err
		}

		q.logger.Debug("Delayed job promoted", slog.String("job_id", d.id))
	}

	return nil
}

func (q *Queue) pushWaiting(ctx context.Context, id string, priority int) error {
	if priority > 0 {
		return q.store.LPush(ctx, q.keys.waiting(), id)
	}
	return q.store.RPush(ctx, q.keys.waiting(), id)
}

// activate marks a popped job Active. The lease must exist before the
// job shows up in the active set so that stalled-job recovery never sees
// an active job without one.
func (q *Queue) activate(ctx context.Context, j *domain.Job, now time.Time) error {
	if err := q.store.HSet(ctx, q.keys.job(j.ID), map[string]string{
		fieldStatus:    string(domain.StatusActive),
		fieldStartedAt: encodeTime(now),
		fieldReadyAt:   "",
	}); err != nil {
		return domain.NewStoreError("hset", err)
	}
	if err := q.acquireLease(ctx, j, now); err != nil {
		return err
	}
	if err := q.store.SAdd(ctx, q.keys.active(), j.ID); err != nil {
		return domain.NewStoreError("sadd", err)
	}
	return nil
}

// requeue undoes a failed activation and puts the id back at the head
// of the waiting list, where LPop found it.
func (q *Queue) requeue(ctx context.Context, id string) {
	ctx = context.WithoutCancel(ctx)

	var errs []error
	if _, err := q.store.SRem(ctx, q.keys.active(), id); err != nil {
		errs = append(errs, err)
	}
	if err := q.store.Del(ctx, q.keys.lease(id)); err != nil {
		errs = append(errs, err)
	}
	if err := q.store.HSet(ctx, q.keys.job(id), map[string]string{
		fieldStatus:    string(domain.StatusWaiting),
		fieldStartedAt: "",
	}); err != nil {
		errs = append(errs, err)
	}
	if err := q.store.LPush(ctx, q.keys.waiting(), id); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		_, err := q.stillKnown(ctx, id)
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		q.logger.Error("Failed to requeue job after activation error",
			slog.String("job_id", id),
			slog.String("error", err.Error()),
		)
		return
	}
	q.logger.Warn("Job requeued after activation error", slog.String("job_id", id))
}

// quarantine moves a job whose record cannot be decoded to failed. The
// unparsable fields are blanked so the record reads back and the
// janitor can archive or clean it like any other failed job.
func (q *Queue) quarantine(ctx context.Context, id string, fields map[string]string, cause error) error {
	now := q.now()
	repair := map[string]string{
		fieldStatus:   string(domain.StatusFailed),
		fieldError:    "corrupt job record: " + cause.Error(),
		fieldFailedAt: encodeTime(now),
	}
	for k, v := range repair {
		fields[k] = v
	}

	var fe *fieldParseError
	for err := cause; errors.As(err, &fe); _, err = decodeJob(fields) {
		fields[fe.field] = ""
		repair[fe.field] = ""
	}

	if err := q.store.HSet(ctx, q.keys.job(id), repair); err != nil {
		return domain.NewStoreError("hset", err)
	}
	if err := q.store.SAdd(ctx, q.keys.failed(), id); err != nil {
		return domain.NewStoreError("sadd", err)
	}
	if _, err := q.stillKnown(ctx, id); err != nil {
		return err
	}

	q.logger.Error("Moved undecodable job to failed",
		slog.String("job_id", id),
		slog.String("error", cause.Error()),
	)
	return nil
}

func (q *Queue) acquireLease(ctx context.Context, j *domain.Job, now time.Time) error {
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = q.cfg.JobTimeout
	}

	key := q.keys.lease(j.ID)
	if err := q.store.HSet(ctx, key, map[string]string{
		"job_id":      j.ID,
		"acquired_at": encodeTime(now),
	}); err != nil {
		return domain.NewStoreError("hset", err)
	}
	if err := q.store.Expire(ctx, key, timeout+q.cfg.LeaseGrace); err != nil {
		return domain.NewStoreError("expire", err)
	}
	return nil
}

func (q *Queue) releaseLease(ctx context.Context, id string) {
	if err := q.store.Del(ctx, q.keys.lease(id)); err != nil {
		q.logger.Warn("Failed to release job lease",
			slog.String("job_id", id),
			slog.String("error", err.Error()),
		)
	}
}

func (q *Queue) ensureExists(ctx context.Context, id string) error {
	ok, err := q.store.Exists(ctx, q.keys.job(id))
	if err != nil {
		return domain.NewStoreError("exists", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	return nil
}

func (q *Queue) transitionError(ctx context.Context, id string, target domain.Status) error {
	current := "unknown"
	if raw, ok, err := q.store.HGet(ctx, q.keys.job(id), fieldStatus); err == nil && ok {
		current = raw
	}
	return fmt.Errorf("%w: job %s is %s, cannot move to %s", domain.ErrInvalidTransition, id, current, target)
}

// newJobID returns a time-prefixed id; ids sort by creation time.
func newJobID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%013d-%s", now.UnixMilli(), suffix)
}

func encodePayload(v any) (json.RawMessage, error) {
	switch p := v.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return p, nil
	case []byte:
		if len(p) > 0 && !json.Valid(p) {
			return nil, fmt.Errorf("%w: not valid JSON", domain.ErrInvalidPayload)
		}
		return json.RawMessage(p), nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	return raw, nil
}
