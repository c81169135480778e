package dto

type CreateConversationRequest struct {
	Title          string   `json:"title"`
	Type           string   `json:"type" binding:"required"`
	ProjectID      string   `json:"project_id"`
	ParticipantIDs []string `json:"participant_ids"`
}

type SendMessageRequest struct {
	Content   string `json:"content" binding:"required"`
	ReplyToID string `json:"reply_to_id"`
}

type ListMessagesRequest struct {
	Limit  int    `form:"limit"`
	Before string `form:"before"`
}

type AddParticipantRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type OnlineUsersResponse struct {
	UserIDs []string `json:"user_ids"`
}
