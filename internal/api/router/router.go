package router

import (
	"net/http"

	"github.com/cuongbtq/collabute-be/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "collabute-api-service",
		})
	})

	// Websocket gateway authenticates inside the handler, before the upgrade
	r.GET("/ws/chat", deps.Gateway.HandleWebSocket)

	jobHandler := handler.NewJobHandler(deps)
	chatHandler := handler.NewChatHandler(deps)

	// API v1 routes, all behind bearer auth
	v1 := r.Group("/api/v1")
	v1.Use(AuthMiddleware(deps.Auth, deps.Logger))
	{
		jobs := v1.Group("/jobs")
		{
			// POST /api/v1/jobs/email/test - Enqueue an email job
			jobs.POST("/email/test", jobHandler.SendTestEmail)

			// POST /api/v1/jobs/github-sync/:repository_id - Enqueue a repository sync job
			jobs.POST("/github-sync/:repository_id", jobHandler.TriggerGitHubSync)

			// POST /api/v1/jobs/notifications/test - Enqueue a notification job
			jobs.POST("/notifications/test", jobHandler.SendTestNotification)

			// GET /api/v1/jobs/stats - Per-queue state counts, admin only
			jobs.GET("/stats", RequireAdmin(), jobHandler.GetQueueStats)

			// Queue control is admin only
			queues := jobs.Group("/queues", RequireAdmin())
			{
				queues.POST("/:queue/pause", jobHandler.PauseQueue)
				queues.POST("/:queue/resume", jobHandler.ResumeQueue)
				queues.POST("/:queue/clear", jobHandler.ClearQueue)
			}
		}

		chat := v1.Group("/chat")
		{
			chat.POST("/conversations", chatHandler.CreateConversation)
			chat.GET("/conversations", chatHandler.ListConversations)
			chat.GET("/conversations/:conversation_id", chatHandler.GetConversation)
			chat.GET("/conversations/:conversation_id/participants", chatHandler.ListParticipants)
			chat.POST("/conversations/:conversation_id/participants", chatHandler.AddParticipant)
			chat.DELETE("/conversations/:conversation_id/participants/:user_id", chatHandler.RemoveParticipant)
			chat.POST("/conversations/:conversation_id/messages", chatHandler.SendMessage)
			chat.GET("/conversations/:conversation_id/messages", chatHandler.ListMessages)
			chat.POST("/conversations/:conversation_id/read", chatHandler.MarkAsRead)
			chat.DELETE("/messages/:message_id", chatHandler.DeleteMessage)
			chat.GET("/online", chatHandler.GetOnlineUsers)
		}
	}

	return r
}
