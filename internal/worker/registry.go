package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cuongbtq/issue-runner/internal/domain"
)

// Handler executes one job and returns its result. The context is
// cancelled when the job's timeout fires.
type Handler interface {
	Handle(ctx context.Context, job *domain.Job) (any, error)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, job *domain.Job) (any, error)

func (f HandlerFunc) Handle(ctx context.Context, job *domain.Job) (any, error) {
	return f(ctx, job)
}

// Registrar accepts handler registrations; both Registry and Pool satisfy it.
type Registrar interface {
	RegisterHandler(name string, h Handler) error
}

// Registry maps job names to handlers. It is safe for concurrent use, so
// handlers registered while workers run are picked up on their next job.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty handler registry
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// RegisterHandler adds h under name. Names must be unique.
func (r *Registry) RegisterHandler(name string, h Handler) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("handler name is required")
	}
	if h == nil {
		return fmt.Errorf("handler for %q is nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("%w: %s", domain.ErrHandlerExists, name)
	}
	r.handlers[name] = h
	return nil
}

// Get returns the handler registered under name
func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered job names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register adds a typed handler. The job payload is JSON-decoded into P
// before fn runs; a payload that does not decode fails the job permanently.
// The value fn returns is stored as the job result.
//
// This is a package-level function because Go does not allow generic
// methods on non-generic types.
func Register[P, R any](r Registrar, name string, fn func(ctx context.Context, payload P) (R, error)) error {
	if fn == nil {
		return fmt.Errorf("handler for %q is nil", name)
	}

	return r.RegisterHandler(name, HandlerFunc(func(ctx context.Context, job *domain.Job) (any, error) {
		var payload P
		if len(job.Payload) > 0 {
			if err := json.Unmarshal(job.Payload, &payload); err != nil {
				return nil, domain.NewPermanentError(
					fmt.Errorf("%w: job %q: %v", domain.ErrInvalidPayload, name, err),
				)
			}
		}
		return fn(ctx, payload)
	}))
}
