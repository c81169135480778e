package dto

type SendTestEmailRequest struct {
	To       string         `json:"to" binding:"required,email"`
	Subject  string         `json:"subject" binding:"required"`
	Template string         `json:"template" binding:"required"`
	Data     map[string]any `json:"data"`
	DelayMS  int64          `json:"delay_ms"`
}

// TriggerGitHubSyncRequest is the optional body of a sync trigger; the
// repository comes from the URL
type TriggerGitHubSyncRequest struct {
	DelayMS int64 `json:"delay_ms"`
}

type SendTestNotificationRequest struct {
	UserID  string         `json:"user_id" binding:"required"`
	Type    string         `json:"type" binding:"required"`
	Data    map[string]any `json:"data"`
	DelayMS int64          `json:"delay_ms"`
}

type EnqueueResponse struct {
	JobID string `json:"job_id"`
	Queue string `json:"queue"`
}

type QueueStatsDTO struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Delayed   int64 `json:"delayed"`
}

type QueueStatsResponse struct {
	Queues map[string]QueueStatsDTO `json:"queues"`
}
