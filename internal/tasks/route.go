package tasks

import (
	"errors"
	"fmt"

	"github.com/cuongbtq/issue-runner/internal/domain"
)

// Job names produced by Route
const (
	JobBugfix  = "issue.bugfix"
	JobFeature = "issue.feature"
	JobTriage  = "issue.triage"
)

// HighPriority is assigned to issues labelled priority:high
const HighPriority = 5

// ErrIgnoredEvent is returned for events that do not produce a job
var ErrIgnoredEvent = errors.New("event does not produce a job")

// IssuePayload is the job payload every issue handler receives
type IssuePayload struct {
	DeliveryID  string   `json:"delivery_id,omitempty"`
	Repository  string   `json:"repository"`
	CloneURL    string   `json:"clone_url,omitempty"`
	BaseBranch  string   `json:"base_branch,omitempty"`
	IssueNumber int      `json:"issue_number"`
	Title       string   `json:"title"`
	Body        string   `json:"body,omitempty"`
	URL         string   `json:"url,omitempty"`
	Labels      []string `json:"labels,omitempty"`
	Sender      string   `json:"sender,omitempty"`
}

// Assignment is a routed event: the job to enqueue and how
type Assignment struct {
	JobName string
	Payload IssuePayload
	Options domain.EnqueueOptions
}

var actionable = map[string]bool{
	"opened":   true,
	"labeled":  true,
	"reopened": true,
}

// Route maps an issue event to a job. Labels decide the job: bug goes to
// the bug-fix workflow, enhancement or feature to the feature workflow,
// anything else to triage. priority:high jumps the queue.
func Route(e *IssueEvent) (*Assignment, error) {
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	if !actionable[e.Action] {
		return nil, fmt.Errorf("%w: action %q", ErrIgnoredEvent, e.Action)
	}

	a := &Assignment{
		JobName: JobTriage,
		Payload: IssuePayload{
			DeliveryID:  e.DeliveryID,
			Repository:  e.Repository.FullName,
			CloneURL:    e.Repository.CloneURL,
			BaseBranch:  e.Repository.DefaultBranch,
			IssueNumber: e.Issue.Number,
			Title:       e.Issue.Title,
			Body:        e.Issue.Body,
			URL:         e.Issue.HTMLURL,
			Labels:      e.LabelNames(),
			Sender:      e.Sender.Login,
		},
	}

	switch {
	case e.HasLabel("bug"):
		a.JobName = JobBugfix
	case e.HasLabel("enhancement"), e.HasLabel("feature"):
		a.JobName = JobFeature
	}

	if e.HasLabel("priority:high") {
		a.Options.Priority = HighPriority
	}
	return a, nil
}
