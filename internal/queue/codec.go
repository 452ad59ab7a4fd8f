package queue

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/cuongbtq/issue-runner/internal/domain"
)

// Hash field names of a job record.
const (
	fieldID             = "id"
	fieldName           = "name"
	fieldPayload        = "payload"
	fieldStatus         = "status"
	fieldPriority       = "priority"
	fieldAttempts       = "attempts"
	fieldMaxAttempts    = "max_attempts"
	fieldRetryBaseDelay = "retry_base_delay_ns"
	fieldTimeout        = "timeout_ns"
	fieldCreatedAt      = "created_at"
	fieldReadyAt        = "ready_at"
	fieldStartedAt      = "started_at"
	fieldCompletedAt    = "completed_at"
	fieldFailedAt       = "failed_at"
	fieldError          = "error"
	fieldResult         = "result"
)

func encodeJob(j *domain.Job) map[string]string {
	fields := map[string]string{
		fieldID:             j.ID,
		fieldName:           j.Name,
		fieldPayload:        string(j.Payload),
		fieldStatus:         string(j.Status),
		fieldPriority:       strconv.Itoa(j.Priority),
		fieldAttempts:       strconv.Itoa(j.Attempts),
		fieldMaxAttempts:    strconv.Itoa(j.MaxAttempts),
		fieldRetryBaseDelay: strconv.FormatInt(int64(j.RetryBaseDelay), 10),
		fieldTimeout:        strconv.FormatInt(int64(j.Timeout), 10),
		fieldCreatedAt:      encodeTime(j.CreatedAt),
	}
	if j.ReadyAt != nil {
		fields[fieldReadyAt] = encodeTime(*j.ReadyAt)
	}
	if j.StartedAt != nil {
		fields[fieldStartedAt] = encodeTime(*j.StartedAt)
	}
	return fields
}

func decodeJob(fields map[string]string) (*domain.Job, error) {
	if len(fields) == 0 {
		return nil, domain.ErrJobNotFound
	}

	j := &domain.Job{
		ID:     fields[fieldID],
		Name:   fields[fieldName],
		Status: domain.Status(fields[fieldStatus]),
		Error:  fields[fieldError],
	}
	if p := fields[fieldPayload]; p != "" {
		j.Payload = json.RawMessage(p)
	}
	if r := fields[fieldResult]; r != "" {
		j.Result = json.RawMessage(r)
	}

	var err error
	if j.Priority, err = atoi(fields, fieldPriority); err != nil {
		return nil, err
	}
	if j.Attempts, err = atoi(fields, fieldAttempts); err != nil {
		return nil, err
	}
	if j.MaxAttempts, err = atoi(fields, fieldMaxAttempts); err != nil {
		return nil, err
	}

	base, err := atoi64(fields, fieldRetryBaseDelay)
	if err != nil {
		return nil, err
	}
	j.RetryBaseDelay = time.Duration(base)

	timeout, err := atoi64(fields, fieldTimeout)
	if err != nil {
		return nil, err
	}
	j.Timeout = time.Duration(timeout)

	createdAt, err := decodeTime(fields, fieldCreatedAt)
	if err != nil {
		return nil, err
	}
	if createdAt != nil {
		j.CreatedAt = *createdAt
	}
	if j.ReadyAt, err = decodeTime(fields, fieldReadyAt); err != nil {
		return nil, err
	}
	if j.StartedAt, err = decodeTime(fields, fieldStartedAt); err != nil {
		return nil, err
	}
	if j.CompletedAt, err = decodeTime(fields, fieldCompletedAt); err != nil {
		return nil, err
	}
	if j.FailedAt, err = decodeTime(fields, fieldFailedAt); err != nil {
		return nil, err
	}

	return j, nil
}

func encodeTime(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func decodeTime(fields map[string]string, field string) (*time.Time, error) {
	raw, ok := fields[field]
	if !ok || raw == "" {
		return nil, nil
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, &fieldParseError{field: field, value: raw, err: err}
	}
	t := time.UnixMilli(ms)
	return &t, nil
}

func atoi(fields map[string]string, field string) (int, error) {
	n, err := atoi64(fields, field)
	return int(n), err
}

func atoi64(fields map[string]string, field string) (int64, error) {
	raw, ok := fields[field]
	if !ok || raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &fieldParseError{field: field, value: raw, err: err}
	}
	return n, nil
}

// fieldParseError reports a hash field that does not parse.
type fieldParseError struct {
	field string
	value string
	err   error
}

func (e *fieldParseError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.field, e.value, e.err)
}

func (e *fieldParseError) Unwrap() error { return e.err }
