package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cuongbtq/collabute-be/internal/auth"
	"github.com/cuongbtq/collabute-be/internal/domain"
	"github.com/cuongbtq/collabute-be/internal/jobs"
	"github.com/cuongbtq/collabute-be/internal/model"
	"github.com/cuongbtq/collabute-be/internal/notify"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client events
const (
	EventSendMessage = "send-message"
	EventJoin        = "join-conversation"
	EventLeave       = "leave-conversation"
	EventTypingStart = "typing-start"
	EventTypingStop  = "typing-stop"
	EventMarkAsRead  = "mark-as-read"
	EventDeleteWSMsg = "delete-message"
	EventOnlineUsers = "online-users"
)

// Server events
const (
	EventConnected        = "connected"
	EventUserOnline       = "user-online"
	EventUserOffline      = "user-offline"
	EventNewMessage       = "new-message"
	EventMessageSent      = "message-sent"
	EventMessageDeleted   = "message-deleted"
	EventJoined           = "joined-conversation"
	EventLeft             = "left-conversation"
	EventUserJoined       = "user-joined"
	EventUserLeft         = "user-left"
	EventUserTyping       = "user-typing"
	EventConversationRead = "conversation-read"
	EventNotification     = "notification"
	EventError            = "error"
)

// wsEvent is the envelope for every frame in both directions
type wsEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type sendMessagePayload struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
	ReplyToID      string `json:"replyToId,omitempty"`
}

type conversationPayload struct {
	ConversationID string `json:"conversationId"`
}

type deleteMessagePayload struct {
	MessageID string `json:"messageId"`
}

// connection is one websocket held by a user. Writes are serialized by mu.
type connection struct {
	id   string
	user *model.User
	ws   *websocket.Conn
	mu   sync.Mutex
}

func (c *connection) send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event, err)
	}
	frame, err := json.Marshal(wsEvent{Event: event, Data: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal %s frame: %w", event, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

// Gateway terminates websocket connections, routes chat events and delivers
// notifications published by the worker.
type Gateway struct {
	service    *Service
	auth       *auth.Service
	dispatcher *jobs.Dispatcher
	registry   *Registry
	logger     *slog.Logger

	mu        sync.RWMutex
	conns     map[string]*connection
	userConns map[string]map[string]*connection
	rooms     map[string]map[string]*connection
}

func NewGateway(service *Service, authSvc *auth.Service, dispatcher *jobs.Dispatcher, logger *slog.Logger) *Gateway {
	return &Gateway{
		service:    service,
		auth:       authSvc,
		dispatcher: dispatcher,
		registry:   NewRegistry(),
		logger:     logger,
		conns:      make(map[string]*connection),
		userConns:  make(map[string]map[string]*connection),
		rooms:      make(map[string]map[string]*connection),
	}
}

// Registry exposes the presence registry, mainly for the HTTP handlers
func (g *Gateway) Registry() *Registry {
	return g.registry
}

// HandleWebSocket authenticates and upgrades a websocket request. The token
// comes from the Authorization header or a token query parameter, and is
// verified before the upgrade so failures surface as plain 401 responses.
func (g *Gateway) HandleWebSocket(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if token == "" {
		token = c.Query("token")
	}

	user, err := g.auth.VerifyToken(c.Request.Context(), token)
	if err != nil {
		g.logger.Warn("Websocket authentication failed",
			slog.String("error", err.Error()),
		)
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.logger.Error("Failed to upgrade websocket connection",
			slog.String("error", err.Error()),
		)
		return
	}

	conn := &connection{
		id:   uuid.NewString(),
		user: user,
		ws:   ws,
	}
	g.register(conn)
	defer g.unregister(conn)

	if err := conn.send(EventConnected, gin.H{"userId": user.ID}); err != nil {
		g.logger.Warn("Failed to send connected event",
			slog.String("conn_id", conn.id),
			slog.String("error", err.Error()),
		)
	}

	g.joinUserConversations(c.Request.Context(), conn)
	g.readLoop(c.Request.Context(), conn)
}

func (g *Gateway) register(conn *connection) {
	g.mu.Lock()
	g.conns[conn.id] = conn
	byUser, ok := g.userConns[conn.user.ID]
	if !ok {
		byUser = make(map[string]*connection)
		g.userConns[conn.user.ID] = byUser
	}
	byUser[conn.id] = conn
	total := len(g.conns)
	g.mu.Unlock()

	first := g.registry.Add(conn.user.ID, conn.id)
	g.logger.Info("Websocket client connected",
		slog.String("conn_id", conn.id),
		slog.String("user_id", conn.user.ID),
		slog.Int("total", total),
	)

	if first {
		g.broadcastAll(EventUserOnline, gin.H{"userId": conn.user.ID}, conn.id)
	}
}

func (g *Gateway) unregister(conn *connection) {
	g.mu.Lock()
	delete(g.conns, conn.id)
	if byUser, ok := g.userConns[conn.user.ID]; ok {
		delete(byUser, conn.id)
		if len(byUser) == 0 {
			delete(g.userConns, conn.user.ID)
		}
	}
	for room, members := range g.rooms {
		delete(members, conn.id)
		if len(members) == 0 {
			delete(g.rooms, room)
		}
	}
	remaining := len(g.conns)
	g.mu.Unlock()

	conn.ws.Close()
	last := g.registry.Remove(conn.user.ID, conn.id)
	g.logger.Info("Websocket client disconnected",
		slog.String("conn_id", conn.id),
		slog.String("user_id", conn.user.ID),
		slog.Int("remaining", remaining),
	)

	if last {
		g.broadcastAll(EventUserOffline, gin.H{"userId": conn.user.ID}, conn.id)
	}
}

// joinUserConversations puts a fresh connection into the room of every
// conversation its user participates in
func (g *Gateway) joinUserConversations(ctx context.Context, conn *connection) {
	conversations, err := g.service.ListConversations(ctx, conn.user.ID)
	if err != nil {
		g.logger.Error("Failed to list conversations for new connection",
			slog.String("user_id", conn.user.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	g.mu.Lock()
	for _, conv := range conversations {
		members, ok := g.rooms[conv.ID]
		if !ok {
			members = make(map[string]*connection)
			g.rooms[conv.ID] = members
		}
		members[conn.id] = conn
	}
	g.mu.Unlock()
}

func (g *Gateway) readLoop(ctx context.Context, conn *connection) {
	for {
		_, raw, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				g.logger.Warn("Websocket read error",
					slog.String("conn_id", conn.id),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var event wsEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			g.sendError(conn, "malformed event")
			continue
		}

		if err := g.dispatch(ctx, conn, event); err != nil {
			g.logger.Warn("Websocket event failed",
				slog.String("conn_id", conn.id),
				slog.String("event", event.Event),
				slog.String("error", err.Error()),
			)
			g.sendError(conn, err.Error())
		}
	}
}

func (g *Gateway) dispatch(ctx context.Context, conn *connection, event wsEvent) error {
	switch event.Event {
	case EventSendMessage:
		return g.handleSendMessage(ctx, conn, event.Data)
	case EventJoin:
		return g.handleJoin(ctx, conn, event.Data)
	case EventLeave:
		return g.handleLeave(ctx, conn, event.Data)
	case EventTypingStart:
		return g.handleTyping(ctx, conn, event.Data, true)
	case EventTypingStop:
		return g.handleTyping(ctx, conn, event.Data, false)
	case EventMarkAsRead:
		return g.handleMarkAsRead(ctx, conn, event.Data)
	case EventDeleteWSMsg:
		return g.handleDeleteMessage(ctx, conn, event.Data)
	case EventOnlineUsers:
		return conn.send(EventOnlineUsers, gin.H{"userIds": g.registry.OnlineUsers()})
	default:
		return fmt.Errorf("unknown event %q", event.Event)
	}
}

func (g *Gateway) handleSendMessage(ctx context.Context, conn *connection, data json.RawMessage) error {
	var payload sendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("malformed send-message payload: %w", domain.ErrValidation)
	}

	msg, err := g.service.SendMessage(ctx, conn.user, payload.ConversationID, payload.Content, payload.ReplyToID)
	if err != nil {
		return err
	}

	g.broadcastRoom(payload.ConversationID, EventNewMessage, msg, conn.id)
	if err := conn.send(EventMessageSent, msg); err != nil {
		g.logger.Warn("Failed to ack message to sender",
			slog.String("conn_id", conn.id),
			slog.String("error", err.Error()),
		)
	}

	g.notifyMessageRecipients(ctx, conn.user, msg)
	return nil
}

// notifyMessageRecipients enqueues a delayed message_received notification
// for every participant except the sender. Enqueue failures are logged and
// never fail the send.
func (g *Gateway) notifyMessageRecipients(ctx context.Context, sender *model.User, msg *model.Message) {
	participants, err := g.service.ListParticipants(ctx, sender, msg.ConversationID)
	if err != nil {
		g.logger.Error("Failed to list participants for message notification",
			slog.String("conversation_id", msg.ConversationID),
			slog.String("error", err.Error()),
		)
		return
	}

	for _, p := range participants {
		if p.UserID == sender.ID {
			continue
		}
		_, err := g.dispatcher.SendMessageReceivedNotification(ctx, p.UserID, map[string]any{
			"conversationId": msg.ConversationID,
			"messageId":      msg.ID,
			"senderName":     sender.Name,
		})
		if err != nil {
			g.logger.Error("Failed to enqueue message notification",
				slog.String("user_id", p.UserID),
				slog.String("message_id", msg.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (g *Gateway) handleJoin(ctx context.Context, conn *connection, data json.RawMessage) error {
	var payload conversationPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("malformed join-conversation payload: %w", domain.ErrValidation)
	}

	ok, err := g.service.IsParticipant(ctx, payload.ConversationID, conn.user.ID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("not a participant of conversation %s: %w", payload.ConversationID, domain.ErrForbidden)
	}

	g.mu.Lock()
	members, exists := g.rooms[payload.ConversationID]
	if !exists {
		members = make(map[string]*connection)
		g.rooms[payload.ConversationID] = members
	}
	members[conn.id] = conn
	g.mu.Unlock()

	if err := conn.send(EventJoined, gin.H{"conversationId": payload.ConversationID}); err != nil {
		return err
	}
	g.broadcastRoom(payload.ConversationID, EventUserJoined, gin.H{
		"conversationId": payload.ConversationID,
		"userId":         conn.user.ID,
	}, conn.id)
	return nil
}

func (g *Gateway) handleLeave(_ context.Context, conn *connection, data json.RawMessage) error {
	var payload conversationPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("malformed leave-conversation payload: %w", domain.ErrValidation)
	}

	g.mu.Lock()
	if members, ok := g.rooms[payload.ConversationID]; ok {
		delete(members, conn.id)
		if len(members) == 0 {
			delete(g.rooms, payload.ConversationID)
		}
	}
	g.mu.Unlock()

	if err := conn.send(EventLeft, gin.H{"conversationId": payload.ConversationID}); err != nil {
		return err
	}
	g.broadcastRoom(payload.ConversationID, EventUserLeft, gin.H{
		"conversationId": payload.ConversationID,
		"userId":         conn.user.ID,
	}, conn.id)
	return nil
}

func (g *Gateway) handleTyping(ctx context.Context, conn *connection, data json.RawMessage, isTyping bool) error {
	var payload conversationPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("malformed typing payload: %w", domain.ErrValidation)
	}

	ok, err := g.service.IsParticipant(ctx, payload.ConversationID, conn.user.ID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("not a participant of conversation %s: %w", payload.ConversationID, domain.ErrForbidden)
	}

	g.broadcastRoom(payload.ConversationID, EventUserTyping, gin.H{
		"conversationId": payload.ConversationID,
		"userId":         conn.user.ID,
		"isTyping":       isTyping,
	}, conn.id)
	return nil
}

func (g *Gateway) handleMarkAsRead(ctx context.Context, conn *connection, data json.RawMessage) error {
	var payload conversationPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("malformed mark-as-read payload: %w", domain.ErrValidation)
	}

	latest, err := g.service.MarkAsRead(ctx, conn.user, payload.ConversationID)
	if err != nil {
		return err
	}
	if latest == nil {
		return nil
	}

	g.broadcastRoom(payload.ConversationID, EventConversationRead, gin.H{
		"conversationId":    payload.ConversationID,
		"userId":            conn.user.ID,
		"lastReadMessageId": latest.ID,
		"readAt":            time.Now().UTC(),
	}, conn.id)
	return nil
}

func (g *Gateway) handleDeleteMessage(ctx context.Context, conn *connection, data json.RawMessage) error {
	var payload deleteMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("malformed delete-message payload: %w", domain.ErrValidation)
	}

	msg, err := g.service.DeleteMessage(ctx, conn.user, payload.MessageID)
	if err != nil {
		return err
	}

	g.broadcastRoom(msg.ConversationID, EventMessageDeleted, gin.H{
		"conversationId": msg.ConversationID,
		"messageId":      msg.ID,
		"deletedBy":      conn.user.ID,
	}, "")
	return nil
}

// DeliverNotification pushes a worker-published notification to every live
// connection of the target user. It is wired to the notify subscriber.
func (g *Gateway) DeliverNotification(userID string, n *notify.Notification) {
	g.mu.RLock()
	conns := make([]*connection, 0, len(g.userConns[userID]))
	for _, conn := range g.userConns[userID] {
		conns = append(conns, conn)
	}
	g.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.send(EventNotification, n); err != nil {
			g.logger.Warn("Failed to deliver notification",
				slog.String("conn_id", conn.id),
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (g *Gateway) sendError(conn *connection, message string) {
	if err := conn.send(EventError, gin.H{"message": message}); err != nil {
		g.logger.Warn("Failed to send error event",
			slog.String("conn_id", conn.id),
			slog.String("error", err.Error()),
		)
	}
}

// broadcastRoom fans an event out to the members of a conversation room,
// skipping the connection named by exclude
func (g *Gateway) broadcastRoom(conversationID, event string, data any, exclude string) {
	g.mu.RLock()
	members := make([]*connection, 0, len(g.rooms[conversationID]))
	for id, conn := range g.rooms[conversationID] {
		if id == exclude {
			continue
		}
		members = append(members, conn)
	}
	g.mu.RUnlock()

	for _, conn := range members {
		if err := conn.send(event, data); err != nil {
			g.logger.Warn("Failed to broadcast to room member",
				slog.String("conn_id", conn.id),
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}
}

// broadcastAll fans an event out to every connection, skipping exclude
func (g *Gateway) broadcastAll(event string, data any, exclude string) {
	g.mu.RLock()
	conns := make([]*connection, 0, len(g.conns))
	for id, conn := range g.conns {
		if id == exclude {
			continue
		}
		conns = append(conns, conn)
	}
	g.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.send(event, data); err != nil {
			g.logger.Warn("Failed to broadcast event",
				slog.String("conn_id", conn.id),
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}
}
