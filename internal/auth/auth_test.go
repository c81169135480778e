package auth

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/collabute-be/internal/domain"
	"github.com/cuongbtq/collabute-be/internal/model"
)

type fakeStore struct {
	sessions map[string]*model.Session
	users    map[string]*model.User
}

func (f *fakeStore) GetSession(_ context.Context, token string) (*model.Session, error) {
	s, ok := f.sessions[token]
	if !ok {
		return nil, fmt.Errorf("session: %w", domain.ErrNotFound)
	}
	return s, nil
}

func (f *fakeStore) GetUser(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	return u, nil
}

func TestService_VerifyToken(t *testing.T) {
	store := &fakeStore{
		sessions: map[string]*model.Session{
			"tok-valid":   {Token: "tok-valid", UserID: "alice", ExpiresAt: time.Now().Add(time.Hour)},
			"tok-expired": {Token: "tok-expired", UserID: "alice", ExpiresAt: time.Now().Add(-time.Minute)},
			"tok-forever": {Token: "tok-forever", UserID: "alice"},
			"tok-orphan":  {Token: "tok-orphan", UserID: "ghost", ExpiresAt: time.Now().Add(time.Hour)},
		},
		users: map[string]*model.User{
			"alice": {ID: "alice", Email: "alice@example.com", Role: model.UserRoleUser},
		},
	}
	svc := NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{name: "valid token", token: "tok-valid"},
		{name: "token with surrounding whitespace", token: "  tok-valid  "},
		{name: "session without expiry never expires", token: "tok-forever"},
		{name: "empty token", token: "", wantErr: true},
		{name: "blank token", token: "   ", wantErr: true},
		{name: "unknown token", token: "tok-nope", wantErr: true},
		{name: "expired session", token: "tok-expired", wantErr: true},
		{name: "session for missing user", token: "tok-orphan", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.VerifyToken(ctx, tt.token)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrUnauthorized)
				assert.Nil(t, user)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, user)
			assert.Equal(t, "alice", user.ID)
		})
	}
}
