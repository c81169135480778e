package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/collabute-be/internal/auth"
	"github.com/cuongbtq/collabute-be/internal/domain"
	"github.com/cuongbtq/collabute-be/internal/jobs"
	"github.com/cuongbtq/collabute-be/internal/model"
)

// fakeAuthStore resolves tokens of the form "tok-{user}" against the chat
// fake store's users.
type fakeAuthStore struct {
	store    *fakeStore
	sessions map[string]string
}

func (f *fakeAuthStore) GetSession(_ context.Context, token string) (*model.Session, error) {
	userID, ok := f.sessions[token]
	if !ok {
		return nil, fmt.Errorf("session: %w", domain.ErrNotFound)
	}
	return &model.Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Hour),
		CreatedAt: time.Now(),
	}, nil
}

func (f *fakeAuthStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	return f.store.GetUser(ctx, id)
}

func newTestGatewayServer(t *testing.T, store *fakeStore, sessions map[string]string) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(store, logger)
	authSvc := auth.NewService(&fakeAuthStore{store: store, sessions: sessions}, logger)
	gw := NewGateway(svc, authSvc, jobs.NewDispatcher(nil, 100, logger), logger)

	router := gin.New()
	router.GET("/ws", gw.HandleWebSocket)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func dialWS(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readEvent reads frames until one with the wanted event name arrives,
// skipping presence and room chatter in between.
func readEvent(t *testing.T, conn *websocket.Conn, want string) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)

		var event wsEvent
		require.NoError(t, json.Unmarshal(raw, &event))
		if event.Event != want {
			continue
		}

		var data map[string]any
		if len(event.Data) > 0 {
			require.NoError(t, json.Unmarshal(event.Data, &data))
		}
		return data
	}
}

func TestGateway_RejectsBadToken(t *testing.T) {
	store := newFakeStore()
	srv := newTestGatewayServer(t, store, map[string]string{})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=bogus"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestGateway_MarkAsRead_BroadcastsReadReceipt(t *testing.T) {
	store := newFakeStore()
	addUser(store, "alice", model.UserRoleUser)
	addUser(store, "bob", model.UserRoleUser)
	addConversation(store, "conv-1", model.ConversationTypeGroup, "alice")
	addMember(store, "conv-1", "alice", model.ParticipantRoleAdmin)
	addMember(store, "conv-1", "bob", model.ParticipantRoleMember)
	addMessage(store, "msg-1", "conv-1", "alice", time.Now())

	srv := newTestGatewayServer(t, store, map[string]string{
		"tok-alice": "alice",
		"tok-bob":   "bob",
	})

	alice := dialWS(t, srv, "tok-alice")
	readEvent(t, alice, EventConnected)
	bob := dialWS(t, srv, "tok-bob")
	readEvent(t, bob, EventConnected)

	payload, err := json.Marshal(map[string]string{"conversationId": "conv-1"})
	require.NoError(t, err)
	require.NoError(t, bob.WriteJSON(wsEvent{Event: EventMarkAsRead, Data: payload}))

	data := readEvent(t, alice, EventConversationRead)
	assert.Equal(t, "conv-1", data["conversationId"])
	assert.Equal(t, "bob", data["userId"])
	assert.Equal(t, "msg-1", data["lastReadMessageId"])

	// The receipt carries the server's read timestamp
	readAt, ok := data["readAt"].(string)
	require.True(t, ok, "readAt missing from read receipt")
	_, err = time.Parse(time.RFC3339Nano, readAt)
	assert.NoError(t, err)

	p, err := store.GetParticipant(context.Background(), "conv-1", "bob")
	require.NoError(t, err)
	require.NotNil(t, p.LastReadMessageID)
	assert.Equal(t, "msg-1", *p.LastReadMessageID)
}
