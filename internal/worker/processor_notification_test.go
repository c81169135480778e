package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cuongbtq/collabute-be/internal/jobs"
)

func TestRenderNotification(t *testing.T) {
	tests := []struct {
		name        string
		typ         string
		data        map[string]any
		wantTitle   string
		wantMessage string
	}{
		{
			name:        "issue assigned",
			typ:         jobs.NotificationIssueAssigned,
			data:        map[string]any{"title": "Fix login redirect"},
			wantTitle:   "Issue Assigned",
			wantMessage: `You've been assigned to issue "Fix login redirect"`,
		},
		{
			name:        "message received",
			typ:         jobs.NotificationMessageReceived,
			data:        map[string]any{"senderName": "Alice"},
			wantTitle:   "New Message",
			wantMessage: "You received a new message from Alice",
		},
		{
			name:        "project invitation",
			typ:         jobs.NotificationProjectInvitation,
			data:        map[string]any{"projectName": "Collabute"},
			wantTitle:   "Project Invitation",
			wantMessage: `You've been invited to join project "Collabute"`,
		},
		{
			name:        "issue comment",
			typ:         jobs.NotificationIssueComment,
			data:        map[string]any{"issueTitle": "Slow queries"},
			wantTitle:   "New Comment",
			wantMessage: `New comment on issue "Slow queries"`,
		},
		{
			name:        "unknown type falls back to generic",
			typ:         "billing_alert",
			data:        map[string]any{"amount": 42},
			wantTitle:   "Notification",
			wantMessage: "New notification of type: billing_alert",
		},
		{
			name:        "missing template field renders empty",
			typ:         jobs.NotificationMessageReceived,
			data:        nil,
			wantTitle:   "New Message",
			wantMessage: "You received a new message from ",
		},
		{
			name:        "non-string template field renders empty",
			typ:         jobs.NotificationIssueAssigned,
			data:        map[string]any{"title": 123},
			wantTitle:   "Issue Assigned",
			wantMessage: `You've been assigned to issue ""`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, message := renderNotification(tt.typ, tt.data)
			assert.Equal(t, tt.wantTitle, title)
			assert.Equal(t, tt.wantMessage, message)
		})
	}
}
