package tasks

import (
	"errors"
	"fmt"
	"strings"
)

// IssueEvent is the subset of a GitHub "issues" webhook delivery the
// runner needs. DeliveryID carries the X-GitHub-Delivery header.
type IssueEvent struct {
	DeliveryID string     `json:"delivery_id,omitempty"`
	Action     string     `json:"action"`
	Issue      Issue      `json:"issue"`
	Repository Repository `json:"repository"`
	Sender     User       `json:"sender"`
}

type Issue struct {
	Number  int     `json:"number"`
	Title   string  `json:"title"`
	Body    string  `json:"body"`
	HTMLURL string  `json:"html_url"`
	State   string  `json:"state"`
	Labels  []Label `json:"labels"`
}

type Label struct {
	Name string `json:"name"`
}

type Repository struct {
	FullName      string `json:"full_name"`
	CloneURL      string `json:"clone_url"`
	DefaultBranch string `json:"default_branch"`
}

type User struct {
	Login string `json:"login"`
}

// Validate checks the fields every route depends on
func (e *IssueEvent) Validate() error {
	var errs []error
	if e.Action == "" {
		errs = append(errs, errors.New("action is required"))
	}
	if e.Issue.Number <= 0 {
		errs = append(errs, errors.New("issue.number must be positive"))
	}
	if !strings.Contains(e.Repository.FullName, "/") {
		errs = append(errs, fmt.Errorf("repository.full_name %q is not owner/name", e.Repository.FullName))
	}
	return errors.Join(errs...)
}

// HasLabel reports whether the issue carries name, ignoring case
func (e *IssueEvent) HasLabel(name string) bool {
	for _, l := range e.Issue.Labels {
		if strings.EqualFold(l.Name, name) {
			return true
		}
	}
	return false
}

// LabelNames returns the issue's label names
func (e *IssueEvent) LabelNames() []string {
	names := make([]string, 0, len(e.Issue.Labels))
	for _, l := range e.Issue.Labels {
		names = append(names, l.Name)
	}
	return names
}
