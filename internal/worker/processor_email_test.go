package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/collabute-be/internal/domain"
	"github.com/cuongbtq/collabute-be/internal/email"
	"github.com/cuongbtq/collabute-be/internal/jobs"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func emailJob(t *testing.T, data jobs.EmailJobData) *jobs.Job {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return &jobs.Job{
		ID:      "job-1",
		Queue:   jobs.QueueEmail,
		Name:    jobs.JobSendEmail,
		Payload: raw,
		Attempt: 1,
	}
}

func TestEmailProcessor_Process(t *testing.T) {
	// No API key, so a valid job renders and is dropped without error.
	svc := email.NewService(&email.Config{From: "noreply@collabute.dev"}, discardLogger())
	p := NewEmailProcessor(svc, discardLogger())
	ctx := context.Background()

	assert.Equal(t, jobs.QueueEmail, p.Queue())

	t.Run("valid job", func(t *testing.T) {
		job := emailJob(t, jobs.EmailJobData{
			To:       "alice@example.com",
			Subject:  "Welcome",
			Template: "welcome",
			Data:     map[string]any{"userName": "Alice"},
		})
		assert.NoError(t, p.Process(ctx, job))
	})

	t.Run("malformed payload is terminal", func(t *testing.T) {
		job := &jobs.Job{ID: "job-2", Queue: jobs.QueueEmail, Payload: []byte("{not json")}
		err := p.Process(ctx, job)
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.False(t, domain.IsRetryable(err))
	})

	t.Run("incomplete payload is terminal", func(t *testing.T) {
		job := emailJob(t, jobs.EmailJobData{Subject: "Welcome"})
		err := p.Process(ctx, job)
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.False(t, domain.IsRetryable(err))
	})
}
