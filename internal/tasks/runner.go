package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/issue-runner/internal/worker"
)

// Outcome is the result stored on a completed issue job
type Outcome struct {
	Summary        string   `json:"summary"`
	PullRequestURL string   `json:"pull_request_url,omitempty"`
	Labels         []string `json:"labels,omitempty"`
}

// Runner performs the GitHub and AI work behind each job. Implementations
// must return when ctx is cancelled.
type Runner interface {
	FixBug(ctx context.Context, issue IssuePayload) (*Outcome, error)
	ImplementFeature(ctx context.Context, issue IssuePayload) (*Outcome, error)
	Triage(ctx context.Context, issue IssuePayload) (*Outcome, error)
}

// Register binds the issue job names to runner on r
func Register(r worker.Registrar, runner Runner) error {
	if err := worker.Register(r, JobBugfix, runner.FixBug); err != nil {
		return fmt.Errorf("failed to register %s: %w", JobBugfix, err)
	}
	if err := worker.Register(r, JobFeature, runner.ImplementFeature); err != nil {
		return fmt.Errorf("failed to register %s: %w", JobFeature, err)
	}
	if err := worker.Register(r, JobTriage, runner.Triage); err != nil {
		return fmt.Errorf("failed to register %s: %w", JobTriage, err)
	}
	return nil
}

// DryRunner logs what it would do and waits Delay, honoring cancellation.
// It stands in for real provider clients in local runs.
type DryRunner struct {
	Logger *slog.Logger
	Delay  time.Duration
}

func (d *DryRunner) FixBug(ctx context.Context, issue IssuePayload) (*Outcome, error) {
	return d.run(ctx, "fix", issue)
}

func (d *DryRunner) ImplementFeature(ctx context.Context, issue IssuePayload) (*Outcome, error) {
	return d.run(ctx, "feature", issue)
}

func (d *DryRunner) Triage(ctx context.Context, issue IssuePayload) (*Outcome, error) {
	return d.run(ctx, "triage", issue)
}

func (d *DryRunner) run(ctx context.Context, kind string, issue IssuePayload) (*Outcome, error) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Dry run",
		slog.String("kind", kind),
		slog.String("repository", issue.Repository),
		slog.Int("issue_number", issue.IssueNumber),
	)

	if d.Delay > 0 {
		timer := time.NewTimer(d.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	out := &Outcome{
		Summary: fmt.Sprintf("dry run: %s for %s#%d", kind, issue.Repository, issue.IssueNumber),
	}
	if kind == "triage" {
		out.Labels = []string{"needs-triage"}
	}
	return out, nil
}
