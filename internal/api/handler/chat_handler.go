package handler

import (
	"log/slog"
	"net/http"

	"github.com/cuongbtq/collabute-be/internal/api/dto"
	"github.com/cuongbtq/collabute-be/internal/chat"
	"github.com/gin-gonic/gin"
)

// ChatHandler handles conversation and message HTTP requests
type ChatHandler struct {
	logger  *slog.Logger
	service *chat.Service
	gateway *chat.Gateway
}

// NewChatHandler creates a new ChatHandler instance
func NewChatHandler(deps *Dependencies) *ChatHandler {
	return &ChatHandler{
		logger:  deps.Logger,
		service: deps.ChatService,
		gateway: deps.Gateway,
	}
}

// CreateConversation handles POST /api/v1/chat/conversations
func (h *ChatHandler) CreateConversation(c *gin.Context) {
	var req dto.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	conv, err := h.service.CreateConversation(c.Request.Context(), CurrentUser(c), chat.CreateConversationInput{
		Title:          req.Title,
		Type:           req.Type,
		ProjectID:      req.ProjectID,
		ParticipantIDs: req.ParticipantIDs,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, conv)
}

// ListConversations handles GET /api/v1/chat/conversations
func (h *ChatHandler) ListConversations(c *gin.Context) {
	conversations, err := h.service.ListConversations(c.Request.Context(), CurrentUser(c).ID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

// GetConversation handles GET /api/v1/chat/conversations/:conversation_id
func (h *ChatHandler) GetConversation(c *gin.Context) {
	conv, err := h.service.GetConversation(c.Request.Context(), CurrentUser(c), c.Param("conversation_id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, conv)
}

// ListParticipants handles GET /api/v1/chat/conversations/:conversation_id/participants
func (h *ChatHandler) ListParticipants(c *gin.Context) {
	participants, err := h.service.ListParticipants(c.Request.Context(), CurrentUser(c), c.Param("conversation_id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"participants": participants})
}

// AddParticipant handles POST /api/v1/chat/conversations/:conversation_id/participants
func (h *ChatHandler) AddParticipant(c *gin.Context) {
	var req dto.AddParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	participant, err := h.service.AddParticipant(c.Request.Context(), CurrentUser(c), c.Param("conversation_id"), req.UserID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, participant)
}

// RemoveParticipant handles DELETE /api/v1/chat/conversations/:conversation_id/participants/:user_id
func (h *ChatHandler) RemoveParticipant(c *gin.Context) {
	err := h.service.RemoveParticipant(c.Request.Context(), CurrentUser(c), c.Param("conversation_id"), c.Param("user_id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// SendMessage handles POST /api/v1/chat/conversations/:conversation_id/messages
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	msg, err := h.service.SendMessage(c.Request.Context(), CurrentUser(c), c.Param("conversation_id"), req.Content, req.ReplyToID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// ListMessages handles GET /api/v1/chat/conversations/:conversation_id/messages
func (h *ChatHandler) ListMessages(c *gin.Context) {
	var req dto.ListMessagesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	messages, err := h.service.ListMessages(c.Request.Context(), CurrentUser(c), c.Param("conversation_id"), req.Limit, req.Before)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// DeleteMessage handles DELETE /api/v1/chat/messages/:message_id
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	_, err := h.service.DeleteMessage(c.Request.Context(), CurrentUser(c), c.Param("message_id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// MarkAsRead handles POST /api/v1/chat/conversations/:conversation_id/read
func (h *ChatHandler) MarkAsRead(c *gin.Context) {
	latest, err := h.service.MarkAsRead(c.Request.Context(), CurrentUser(c), c.Param("conversation_id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	resp := gin.H{"conversation_id": c.Param("conversation_id")}
	if latest != nil {
		resp["last_read_message_id"] = latest.ID
	}
	c.JSON(http.StatusOK, resp)
}

// GetOnlineUsers handles GET /api/v1/chat/online
func (h *ChatHandler) GetOnlineUsers(c *gin.Context) {
	c.JSON(http.StatusOK, dto.OnlineUsersResponse{
		UserIDs: h.gateway.Registry().OnlineUsers(),
	})
}
