package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/collabute-be/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// messageReceivedDelay batches rapid-fire message notifications
const messageReceivedDelay = time.Second

// Dispatcher is the typed enqueue facade over the named queues, plus the
// administrative queue control operations.
type Dispatcher struct {
	queues map[string]*Queue
	logger *slog.Logger
}

// NewDispatcher creates the dispatcher with one queue per job kind
func NewDispatcher(rdb *redis.Client, retention int, logger *slog.Logger) *Dispatcher {
	queues := make(map[string]*Queue, 3)
	for _, name := range QueueNames() {
		queues[name] = NewQueue(rdb, name, retention, logger)
	}
	return &Dispatcher{
		queues: queues,
		logger: logger,
	}
}

// Queue returns the named queue, or ErrUnknownQueue
func (d *Dispatcher) Queue(name string) (*Queue, error) {
	q, ok := d.queues[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownQueue, name)
	}
	return q, nil
}

func (d *Dispatcher) enqueue(ctx context.Context, queueName, jobName string, payload any, delay time.Duration) (string, error) {
	q := d.queues[queueName]

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	pol := queuePolicies[queueName]
	now := time.Now()

	job := &Job{
		ID:          uuid.New().String(),
		Queue:       queueName,
		Name:        jobName,
		Payload:     raw,
		MaxAttempts: pol.maxAttempts,
		Backoff:     pol.backoff,
		CreatedAt:   now.UnixMilli(),
	}
	if delay > 0 {
		job.ReadyAt = now.Add(delay).UnixMilli()
	}

	if err := q.Push(ctx, job); err != nil {
		d.logger.Error("Failed to enqueue job",
			slog.String("queue", queueName),
			slog.String("job_name", jobName),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("%w: %v", domain.ErrQueueUnavailable, err)
	}

	d.logger.Info("Job enqueued",
		slog.String("queue", queueName),
		slog.String("job_name", jobName),
		slog.String("job_id", job.ID),
		slog.Duration("delay", delay),
	)
	return job.ID, nil
}

// SendEmail enqueues a send-email job, optionally delayed
func (d *Dispatcher) SendEmail(ctx context.Context, data EmailJobData, delay time.Duration) (string, error) {
	if err := data.Validate(); err != nil {
		return "", err
	}
	return d.enqueue(ctx, QueueEmail, JobSendEmail, data, delay)
}

// SendWelcomeEmail enqueues the welcome email for a new user
func (d *Dispatcher) SendWelcomeEmail(ctx context.Context, userEmail, userName string) (string, error) {
	return d.SendEmail(ctx, EmailJobData{
		To:       userEmail,
		Subject:  "Welcome to Collabute!",
		Template: "welcome",
		Data:     map[string]any{"userName": userName},
	}, 0)
}

// SendProjectInvitationEmail enqueues a project invitation email
func (d *Dispatcher) SendProjectInvitationEmail(ctx context.Context, userEmail, projectName, inviterName, inviteLink string) (string, error) {
	return d.SendEmail(ctx, EmailJobData{
		To:       userEmail,
		Subject:  fmt.Sprintf("You've been invited to %s", projectName),
		Template: "project-invitation",
		Data: map[string]any{
			"projectName": projectName,
			"inviterName": inviterName,
			"inviteLink":  inviteLink,
		},
	}, 0)
}

// SendIssueAssignedEmail enqueues an issue assignment email
func (d *Dispatcher) SendIssueAssignedEmail(ctx context.Context, userEmail, assigneeName, issueTitle, projectName, issueLink string) (string, error) {
	return d.SendEmail(ctx, EmailJobData{
		To:       userEmail,
		Subject:  fmt.Sprintf("New issue assigned: %s", issueTitle),
		Template: "issue-assigned",
		Data: map[string]any{
			"assigneeName": assigneeName,
			"issueTitle":   issueTitle,
			"projectName":  projectName,
			"issueLink":    issueLink,
		},
	}, 0)
}

// ScheduleGitHubSync enqueues a one-shot repository sync, optionally delayed
func (d *Dispatcher) ScheduleGitHubSync(ctx context.Context, data GitHubSyncJobData, delay time.Duration) (string, error) {
	if err := data.Validate(); err != nil {
		return "", err
	}
	return d.enqueue(ctx, QueueGitHubSync, JobSyncRepository, data, delay)
}

// SendNotification enqueues a send-notification job, optionally delayed
func (d *Dispatcher) SendNotification(ctx context.Context, data NotificationJobData, delay time.Duration) (string, error) {
	if err := data.Validate(); err != nil {
		return "", err
	}
	return d.enqueue(ctx, QueueNotifications, JobSendNotification, data, delay)
}

// SendMessageReceivedNotification enqueues a message_received notification.
// Delivery is delayed slightly so rapid-fire messages can batch.
func (d *Dispatcher) SendMessageReceivedNotification(ctx context.Context, userID string, data map[string]any) (string, error) {
	return d.SendNotification(ctx, NotificationJobData{
		UserID: userID,
		Type:   NotificationMessageReceived,
		Data:   data,
	}, messageReceivedDelay)
}

// SendIssueAssignedNotification enqueues an issue_assigned notification
func (d *Dispatcher) SendIssueAssignedNotification(ctx context.Context, userID string, data map[string]any) (string, error) {
	return d.SendNotification(ctx, NotificationJobData{
		UserID: userID,
		Type:   NotificationIssueAssigned,
		Data:   data,
	}, 0)
}

// SendProjectInvitationNotification enqueues a project_invitation notification
func (d *Dispatcher) SendProjectInvitationNotification(ctx context.Context, userID string, data map[string]any) (string, error) {
	return d.SendNotification(ctx, NotificationJobData{
		UserID: userID,
		Type:   NotificationProjectInvitation,
		Data:   data,
	}, 0)
}

// Stats returns per-queue job counts
func (d *Dispatcher) Stats(ctx context.Context) (map[string]QueueStats, error) {
	stats := make(map[string]QueueStats, len(d.queues))
	for name, q := range d.queues {
		s, err := q.Stats(ctx)
		if err != nil {
			return nil, err
		}
		stats[name] = s
	}
	return stats, nil
}

// PauseQueue stops dispatch for the named queue
func (d *Dispatcher) PauseQueue(ctx context.Context, name string) error {
	q, err := d.Queue(name)
	if err != nil {
		return err
	}
	return q.Pause(ctx)
}

// ResumeQueue resumes dispatch for the named queue
func (d *Dispatcher) ResumeQueue(ctx context.Context, name string) error {
	q, err := d.Queue(name)
	if err != nil {
		return err
	}
	return q.Resume(ctx)
}

// ClearQueue removes completed, failed and active records for the named queue
func (d *Dispatcher) ClearQueue(ctx context.Context, name string) error {
	q, err := d.Queue(name)
	if err != nil {
		return err
	}
	return q.Clear(ctx)
}
