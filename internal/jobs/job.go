package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuongbtq/collabute-be/internal/domain"
)

// Queue names. One queue per job kind, consumed by one processor.
const (
	QueueEmail         = "email"
	QueueGitHubSync    = "github-sync"
	QueueNotifications = "notifications"
)

// Job names within each queue
const (
	JobSendEmail        = "send-email"
	JobSyncRepository   = "sync-repository"
	JobSendNotification = "send-notification"
)

// Backoff types
const (
	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"
)

// Notification types rendered by the notification processor. Unknown types
// fall back to a generic message rather than failing the job.
const (
	NotificationIssueAssigned     = "issue_assigned"
	NotificationMessageReceived   = "message_received"
	NotificationProjectInvitation = "project_invitation"
	NotificationIssueComment      = "issue_comment"
)

// BackoffPolicy is the delay strategy applied between retry attempts
type BackoffPolicy struct {
	Type    string `json:"type"`
	DelayMS int64  `json:"delay_ms"`
}

// NextDelay returns the delay to apply before the given attempt is retried.
// attempt is 1-based: the delay after the first failed attempt uses attempt=1.
func (p BackoffPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := time.Duration(p.DelayMS) * time.Millisecond
	if p.Type == BackoffExponential {
		return base << (attempt - 1)
	}
	return base
}

// Job is the envelope stored in the queue backend. Immutable after enqueue
// except for the queue-managed Attempt and LastError fields.
type Job struct {
	ID          string          `json:"id"`
	Queue       string          `json:"queue"`
	Name        string          `json:"name"`
	Payload     json.RawMessage `json:"payload"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"max_attempts"`
	Backoff     BackoffPolicy   `json:"backoff"`
	CreatedAt   int64           `json:"created_at"`
	ReadyAt     int64           `json:"ready_at,omitempty"`
	LastError   string          `json:"last_error,omitempty"`

	// claimed holds the envelope exactly as it sits in the active list, so
	// the queue can release it after the attempt finishes
	claimed string
}

// EmailJobData is the payload for send-email jobs
type EmailJobData struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject"`
	Template string         `json:"template"`
	Data     map[string]any `json:"data"`
}

func (d EmailJobData) Validate() error {
	if d.To == "" {
		return fmt.Errorf("%w: email recipient is required", domain.ErrValidation)
	}
	if d.Subject == "" {
		return fmt.Errorf("%w: email subject is required", domain.ErrValidation)
	}
	if d.Template == "" {
		return fmt.Errorf("%w: email template is required", domain.ErrValidation)
	}
	return nil
}

// GitHubSyncJobData is the payload for sync-repository jobs
type GitHubSyncJobData struct {
	UserID       string `json:"user_id"`
	RepositoryID string `json:"repository_id"`
}

func (d GitHubSyncJobData) Validate() error {
	if d.UserID == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	if d.RepositoryID == "" {
		return fmt.Errorf("%w: repository id is required", domain.ErrValidation)
	}
	return nil
}

// NotificationJobData is the payload for send-notification jobs
type NotificationJobData struct {
	UserID string         `json:"user_id"`
	Type   string         `json:"type"`
	Data   map[string]any `json:"data"`
}

func (d NotificationJobData) Validate() error {
	if d.UserID == "" {
		return fmt.Errorf("%w: notification user id is required", domain.ErrValidation)
	}
	if d.Type == "" {
		return fmt.Errorf("%w: notification type is required", domain.ErrValidation)
	}
	return nil
}

// policy holds the per-queue retry defaults
type policy struct {
	maxAttempts int
	backoff     BackoffPolicy
}

// Retry defaults per queue: email and notifications back off exponentially,
// repository sync uses a fixed delay and fewer attempts.
var queuePolicies = map[string]policy{
	QueueEmail: {
		maxAttempts: 3,
		backoff:     BackoffPolicy{Type: BackoffExponential, DelayMS: 2000},
	},
	QueueGitHubSync: {
		maxAttempts: 2,
		backoff:     BackoffPolicy{Type: BackoffFixed, DelayMS: 5000},
	},
	QueueNotifications: {
		maxAttempts: 3,
		backoff:     BackoffPolicy{Type: BackoffExponential, DelayMS: 1000},
	},
}

// QueueNames returns the known queue names in a stable order
func QueueNames() []string {
	return []string{QueueEmail, QueueGitHubSync, QueueNotifications}
}
