package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/collabute-be/internal/domain"
	"github.com/cuongbtq/collabute-be/internal/jobs"
	"github.com/cuongbtq/collabute-be/internal/notify"
	"github.com/google/uuid"
)

// notificationTemplate renders the title and message for one notification type
type notificationTemplate struct {
	title  string
	render func(data map[string]any) string
}

// Fixed template table keyed by notification type. Unknown types use the
// generic fallback instead of failing the job.
var notificationTemplates = map[string]notificationTemplate{
	jobs.NotificationIssueAssigned: {
		title: "Issue Assigned",
		render: func(data map[string]any) string {
			return fmt.Sprintf("You've been assigned to issue %q", stringField(data, "title"))
		},
	},
	jobs.NotificationMessageReceived: {
		title: "New Message",
		render: func(data map[string]any) string {
			return fmt.Sprintf("You received a new message from %s", stringField(data, "senderName"))
		},
	},
	jobs.NotificationProjectInvitation: {
		title: "Project Invitation",
		render: func(data map[string]any) string {
			return fmt.Sprintf("You've been invited to join project %q", stringField(data, "projectName"))
		},
	},
	jobs.NotificationIssueComment: {
		title: "New Comment",
		render: func(data map[string]any) string {
			return fmt.Sprintf("New comment on issue %q", stringField(data, "issueTitle"))
		},
	},
}

func stringField(data map[string]any, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

// renderNotification builds the user-facing title and message for a
// notification type and payload
func renderNotification(typ string, data map[string]any) (title, message string) {
	tmpl, ok := notificationTemplates[typ]
	if !ok {
		return "Notification", fmt.Sprintf("New notification of type: %s", typ)
	}
	return tmpl.title, tmpl.render(data)
}

// NotificationProcessor synthesizes user notifications and hands them to the
// real-time delivery path
type NotificationProcessor struct {
	publisher *notify.Publisher
	logger    *slog.Logger
}

// NewNotificationProcessor creates the notifications queue processor
func NewNotificationProcessor(pub *notify.Publisher, logger *slog.Logger) *NotificationProcessor {
	return &NotificationProcessor{
		publisher: pub,
		logger:    logger,
	}
}

func (p *NotificationProcessor) Queue() string {
	return jobs.QueueNotifications
}

func (p *NotificationProcessor) Process(ctx context.Context, job *jobs.Job) error {
	var data jobs.NotificationJobData
	if err := json.Unmarshal(job.Payload, &data); err != nil {
		return fmt.Errorf("%w: malformed notification payload: %v", domain.ErrValidation, err)
	}
	if err := data.Validate(); err != nil {
		return err
	}

	title, message := renderNotification(data.Type, data.Data)

	rawData, err := json.Marshal(data.Data)
	if err != nil {
		// Delivery is best-effort: drop the extra payload, keep the message
		p.logger.Warn("Failed to encode notification data, delivering without it",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		rawData = nil
	}

	n := &notify.Notification{
		ID:        uuid.New().String(),
		UserID:    data.UserID,
		Type:      data.Type,
		Title:     title,
		Message:   message,
		Data:      rawData,
		CreatedAt: time.Now(),
	}

	if err := p.publisher.Publish(ctx, n); err != nil {
		return domain.NewExternalServiceError("notify", err)
	}

	p.logger.Info("Notification delivered",
		slog.String("job_id", job.ID),
		slog.String("user_id", data.UserID),
		slog.String("type", data.Type),
	)
	return nil
}
