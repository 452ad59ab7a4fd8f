package tasks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/issue-runner/internal/domain"
)

func newEvent(action string, labels ...string) *IssueEvent {
	e := &IssueEvent{
		DeliveryID: "d-1",
		Action:     action,
		Issue: Issue{
			Number:  42,
			Title:   "Crash on empty config",
			HTMLURL: "https://github.com/acme/widgets/issues/42",
		},
		Repository: Repository{FullName: "acme/widgets", DefaultBranch: "main"},
		Sender:     User{Login: "octocat"},
	}
	for _, l := range labels {
		e.Issue.Labels = append(e.Issue.Labels, Label{Name: l})
	}
	return e
}

func TestRoute(t *testing.T) {
	tests := []struct {
		name         string
		event        *IssueEvent
		wantJob      string
		wantPriority int
		wantErr      error
	}{
		{name: "bug label", event: newEvent("opened", "bug"), wantJob: JobBugfix},
		{name: "bug label case insensitive", event: newEvent("labeled", "Bug"), wantJob: JobBugfix},
		{name: "enhancement", event: newEvent("opened", "enhancement"), wantJob: JobFeature},
		{name: "feature", event: newEvent("reopened", "feature"), wantJob: JobFeature},
		{name: "bug wins over feature", event: newEvent("opened", "feature", "bug"), wantJob: JobBugfix},
		{name: "unlabelled goes to triage", event: newEvent("opened"), wantJob: JobTriage},
		{name: "high priority", event: newEvent("opened", "bug", "priority:high"), wantJob: JobBugfix, wantPriority: HighPriority},
		{name: "closed is ignored", event: newEvent("closed", "bug"), wantErr: ErrIgnoredEvent},
		{name: "edited is ignored", event: newEvent("edited"), wantErr: ErrIgnoredEvent},
		{name: "missing issue number", event: func() *IssueEvent { e := newEvent("opened"); e.Issue.Number = 0; return e }(), wantErr: domain.ErrInvalidPayload},
		{name: "bad repository name", event: func() *IssueEvent { e := newEvent("opened"); e.Repository.FullName = "widgets"; return e }(), wantErr: domain.ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Route(tt.event)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantJob, got.JobName)
			assert.Equal(t, tt.wantPriority, got.Options.Priority)
			assert.Equal(t, "acme/widgets", got.Payload.Repository)
			assert.Equal(t, 42, got.Payload.IssueNumber)
			assert.Equal(t, "main", got.Payload.BaseBranch)
			assert.Equal(t, "d-1", got.Payload.DeliveryID)
		})
	}
}
