package queue

import "github.com/cuongbtq/issue-runner/internal/domain"

// keys names every store key owned by one queue. All keys share the
// "{prefix}:{queue}:" namespace so several queues can live in one store.
type keys struct {
	base string
}

func newKeys(prefix, queue string) keys {
	return keys{base: prefix + ":" + queue + ":"}
}

func (k keys) waiting() string   { return k.base + "waiting" }
func (k keys) delayed() string   { return k.base + "delayed" }
func (k keys) active() string    { return k.base + "active" }
func (k keys) completed() string { return k.base + "completed" }
func (k keys) failed() string    { return k.base + "failed" }

// ids tracks every job id the queue knows about, in any state.
func (k keys) ids() string { return k.base + "ids" }

func (k keys) job(id string) string   { return k.base + "job:" + id }
func (k keys) lease(id string) string { return k.base + "lease:" + id }

// partition returns the set key for a set-backed state. Waiting is a
// list and has no set key.
func (k keys) partition(s domain.Status) string {
	switch s {
	case domain.StatusDelayed:
		return k.delayed()
	case domain.StatusActive:
		return k.active()
	case domain.StatusCompleted:
		return k.completed()
	case domain.StatusFailed:
		return k.failed()
	}
	return ""
}
