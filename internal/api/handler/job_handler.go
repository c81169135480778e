package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/collabute-be/internal/api/dto"
	"github.com/cuongbtq/collabute-be/internal/jobs"
	"github.com/gin-gonic/gin"
)

// JobHandler handles queue-related HTTP requests
type JobHandler struct {
	logger     *slog.Logger
	dispatcher *jobs.Dispatcher
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:     deps.Logger,
		dispatcher: deps.Dispatcher,
	}
}

// SendTestEmail handles POST /api/v1/jobs/email/test
// Enqueues an email job on the email queue
func (h *JobHandler) SendTestEmail(c *gin.Context) {
	var req dto.SendTestEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	jobID, err := h.dispatcher.SendEmail(c.Request.Context(), jobs.EmailJobData{
		To:       req.To,
		Subject:  req.Subject,
		Template: req.Template,
		Data:     req.Data,
	}, time.Duration(req.DelayMS)*time.Millisecond)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, dto.EnqueueResponse{
		JobID: jobID,
		Queue: jobs.QueueEmail,
	})
}

// TriggerGitHubSync handles POST /api/v1/jobs/github-sync/:repository_id
// Enqueues a repository sync job on the github-sync queue
func (h *JobHandler) TriggerGitHubSync(c *gin.Context) {
	// The body only carries an optional delay
	var req dto.TriggerGitHubSyncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.logger.Error("Invalid request body", slog.String("error", err.Error()))
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request body",
			})
			return
		}
	}

	user := CurrentUser(c)
	jobID, err := h.dispatcher.ScheduleGitHubSync(c.Request.Context(), jobs.GitHubSyncJobData{
		UserID:       user.ID,
		RepositoryID: c.Param("repository_id"),
	}, time.Duration(req.DelayMS)*time.Millisecond)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, dto.EnqueueResponse{
		JobID: jobID,
		Queue: jobs.QueueGitHubSync,
	})
}

// SendTestNotification handles POST /api/v1/jobs/notifications/test
// Enqueues a notification job on the notifications queue
func (h *JobHandler) SendTestNotification(c *gin.Context) {
	var req dto.SendTestNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	jobID, err := h.dispatcher.SendNotification(c.Request.Context(), jobs.NotificationJobData{
		UserID: req.UserID,
		Type:   req.Type,
		Data:   req.Data,
	}, time.Duration(req.DelayMS)*time.Millisecond)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, dto.EnqueueResponse{
		JobID: jobID,
		Queue: jobs.QueueNotifications,
	})
}

// GetQueueStats handles GET /api/v1/jobs/stats
// Reports per-queue counts across the five job states
func (h *JobHandler) GetQueueStats(c *gin.Context) {
	stats, err := h.dispatcher.Stats(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	queues := make(map[string]dto.QueueStatsDTO, len(stats))
	for name, s := range stats {
		queues[name] = dto.QueueStatsDTO{
			Waiting:   s.Waiting,
			Active:    s.Active,
			Completed: s.Completed,
			Failed:    s.Failed,
			Delayed:   s.Delayed,
		}
	}

	c.JSON(http.StatusOK, dto.QueueStatsResponse{Queues: queues})
}

// PauseQueue handles POST /api/v1/jobs/queues/:queue/pause
func (h *JobHandler) PauseQueue(c *gin.Context) {
	queue := c.Param("queue")
	if err := h.dispatcher.PauseQueue(c.Request.Context(), queue); err != nil {
		writeError(c, h.logger, err)
		return
	}

	h.logger.Info("Queue paused", slog.String("queue", queue))
	c.JSON(http.StatusOK, gin.H{"queue": queue, "paused": true})
}

// ResumeQueue handles POST /api/v1/jobs/queues/:queue/resume
func (h *JobHandler) ResumeQueue(c *gin.Context) {
	queue := c.Param("queue")
	if err := h.dispatcher.ResumeQueue(c.Request.Context(), queue); err != nil {
		writeError(c, h.logger, err)
		return
	}

	h.logger.Info("Queue resumed", slog.String("queue", queue))
	c.JSON(http.StatusOK, gin.H{"queue": queue, "paused": false})
}

// ClearQueue handles POST /api/v1/jobs/queues/:queue/clear
// Drops completed, failed and active entries. Waiting and delayed jobs stay.
func (h *JobHandler) ClearQueue(c *gin.Context) {
	queue := c.Param("queue")
	if err := h.dispatcher.ClearQueue(c.Request.Context(), queue); err != nil {
		writeError(c, h.logger, err)
		return
	}

	h.logger.Info("Queue cleared", slog.String("queue", queue))
	c.JSON(http.StatusOK, gin.H{"queue": queue, "cleared": true})
}
