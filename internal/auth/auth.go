package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cuongbtq/collabute-be/internal/domain"
	"github.com/cuongbtq/collabute-be/internal/model"
)

// Store provides access to sessions and their users
type Store interface {
	GetSession(ctx context.Context, token string) (*model.Session, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
}

// Service resolves bearer tokens to users
type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

// VerifyToken resolves an opaque session token to its user. Unknown or
// expired tokens yield domain.ErrUnauthorized.
func (s *Service) VerifyToken(ctx context.Context, token string) (*model.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("missing token: %w", domain.ErrUnauthorized)
	}

	session, err := s.store.GetSession(ctx, token)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, fmt.Errorf("unknown token: %w", domain.ErrUnauthorized)
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if !session.ExpiresAt.IsZero() && session.ExpiresAt.Before(time.Now()) {
		return nil, fmt.Errorf("session expired: %w", domain.ErrUnauthorized)
	}

	user, err := s.store.GetUser(ctx, session.UserID)
	if err != nil {
		if domain.IsNotFound(err) {
			s.logger.Warn("Session references missing user",
				slog.String("user_id", session.UserID),
			)
			return nil, fmt.Errorf("unknown user: %w", domain.ErrUnauthorized)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	return user, nil
}
