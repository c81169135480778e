package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/collabute-be/internal/domain"
	"github.com/cuongbtq/collabute-be/internal/email"
	"github.com/cuongbtq/collabute-be/internal/jobs"
)

// EmailProcessor delivers send-email jobs through the email service
type EmailProcessor struct {
	email  *email.Service
	logger *slog.Logger
}

// NewEmailProcessor creates the email queue processor
func NewEmailProcessor(svc *email.Service, logger *slog.Logger) *EmailProcessor {
	return &EmailProcessor{
		email:  svc,
		logger: logger,
	}
}

func (p *EmailProcessor) Queue() string {
	return jobs.QueueEmail
}

func (p *EmailProcessor) Process(ctx context.Context, job *jobs.Job) error {
	var data jobs.EmailJobData
	if err := json.Unmarshal(job.Payload, &data); err != nil {
		return fmt.Errorf("%w: malformed email payload: %v", domain.ErrValidation, err)
	}
	if err := data.Validate(); err != nil {
		return err
	}

	p.logger.Info("Processing email job",
		slog.String("job_id", job.ID),
		slog.String("to", data.To),
		slog.Int("attempt", job.Attempt),
	)

	id, err := p.email.Send(ctx, email.Message{
		To:       data.To,
		Subject:  data.Subject,
		Template: data.Template,
		Data:     data.Data,
	})
	if err != nil {
		// Provider errors propagate so the queue retries per policy
		return err
	}

	p.logger.Info("Email job completed",
		slog.String("job_id", job.ID),
		slog.String("to", data.To),
		slog.String("email_id", id),
	)
	return nil
}
