package jobs

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/cuongbtq/collabute-be/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcher_Queue(t *testing.T) {
	d := NewDispatcher(nil, 100, discardLogger())

	tests := []struct {
		name      string
		queueName string
		wantErr   error
	}{
		{name: "email queue exists", queueName: QueueEmail},
		{name: "github-sync queue exists", queueName: QueueGitHubSync},
		{name: "notifications queue exists", queueName: QueueNotifications},
		{name: "unknown queue", queueName: "payments", wantErr: domain.ErrUnknownQueue},
		{name: "empty name", queueName: "", wantErr: domain.ErrUnknownQueue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := d.Queue(tt.queueName)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, q)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, q)
			assert.Equal(t, tt.queueName, q.Name())
		})
	}
}

func TestDispatcher_QueueControls_UnknownQueue(t *testing.T) {
	d := NewDispatcher(nil, 100, discardLogger())
	ctx := context.Background()

	assert.ErrorIs(t, d.PauseQueue(ctx, "bogus"), domain.ErrUnknownQueue)
	assert.ErrorIs(t, d.ResumeQueue(ctx, "bogus"), domain.ErrUnknownQueue)
	assert.ErrorIs(t, d.ClearQueue(ctx, "bogus"), domain.ErrUnknownQueue)
}

func TestDispatcher_Enqueue_InvalidPayload(t *testing.T) {
	d := NewDispatcher(nil, 100, discardLogger())
	ctx := context.Background()

	// Each typed enqueue validates the payload before touching Redis,
	// so an invalid payload never reaches the queue.
	_, err := d.SendEmail(ctx, EmailJobData{Subject: "hi", Template: "welcome"}, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = d.ScheduleGitHubSync(ctx, GitHubSyncJobData{UserID: "u1"}, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = d.SendNotification(ctx, NotificationJobData{UserID: "u1"}, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
