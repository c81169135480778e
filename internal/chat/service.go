package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cuongbtq/collabute-be/internal/domain"
	"github.com/cuongbtq/collabute-be/internal/model"
	"github.com/google/uuid"
)

// Store is the persistence surface the chat service needs
type Store interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetProject(ctx context.Context, id string) (*model.Project, error)
	IsProjectMember(ctx context.Context, projectID, userID string) (bool, error)

	CreateConversation(ctx context.Context, conv *model.Conversation, participants []model.Participant) error
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	ListUserConversations(ctx context.Context, userID string) ([]model.Conversation, error)

	GetParticipant(ctx context.Context, conversationID, userID string) (*model.Participant, error)
	ListParticipants(ctx context.Context, conversationID string) ([]model.Participant, error)
	AddParticipant(ctx context.Context, p *model.Participant) error
	RemoveParticipant(ctx context.Context, conversationID, userID string) error
	UpdateLastRead(ctx context.Context, conversationID, userID, messageID string) error

	CreateMessage(ctx context.Context, m *model.Message) error
	GetMessage(ctx context.Context, id string) (*model.Message, error)
	ListMessages(ctx context.Context, conversationID string, limit int, beforeID string) ([]model.Message, error)
	DeleteMessage(ctx context.Context, id string) error
	GetLatestMessage(ctx context.Context, conversationID string) (*model.Message, error)
}

const (
	defaultMessagePageSize = 50
	maxMessagePageSize     = 100
)

// Service implements conversation and message operations with their
// authorization rules. It is shared by the HTTP handlers and the websocket
// gateway.
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

// CreateConversationInput carries the fields for a new conversation
type CreateConversationInput struct {
	Title          string
	Type           string
	ProjectID      string
	ParticipantIDs []string
}

// CreateConversation creates a conversation with the actor as its admin
// participant. PROJECT conversations require the actor to be the project
// owner or a collaborator.
func (s *Service) CreateConversation(ctx context.Context, actor *model.User, input CreateConversationInput) (*model.Conversation, error) {
	switch input.Type {
	case model.ConversationTypePrivate, model.ConversationTypeGroup, model.ConversationTypeProject:
	default:
		return nil, fmt.Errorf("invalid conversation type %q: %w", input.Type, domain.ErrValidation)
	}

	var projectID *string
	if input.Type == model.ConversationTypeProject {
		if input.ProjectID == "" {
			return nil, fmt.Errorf("project conversation requires a project: %w", domain.ErrValidation)
		}

		project, err := s.store.GetProject(ctx, input.ProjectID)
		if err != nil {
			return nil, err
		}

		if project.OwnerID != actor.ID {
			member, err := s.store.IsProjectMember(ctx, project.ID, actor.ID)
			if err != nil {
				return nil, err
			}
			if !member {
				return nil, fmt.Errorf("not a member of project %s: %w", project.ID, domain.ErrForbidden)
			}
		}
		projectID = &project.ID
	}

	now := time.Now()
	conv := &model.Conversation{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(input.Title),
		Type:        input.Type,
		ProjectID:   projectID,
		CreatedByID: actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	participants := []model.Participant{{
		ConversationID: conv.ID,
		UserID:         actor.ID,
		Role:           model.ParticipantRoleAdmin,
		JoinedAt:       now,
	}}
	for _, id := range input.ParticipantIDs {
		if id == actor.ID {
			continue
		}
		if _, err := s.store.GetUser(ctx, id); err != nil {
			return nil, err
		}
		participants = append(participants, model.Participant{
			ConversationID: conv.ID,
			UserID:         id,
			Role:           model.ParticipantRoleMember,
			JoinedAt:       now,
		})
	}

	if err := s.store.CreateConversation(ctx, conv, participants); err != nil {
		return nil, err
	}

	s.logger.Info("Conversation created",
		slog.String("conversation_id", conv.ID),
		slog.String("type", conv.Type),
		slog.String("created_by", actor.ID),
	)
	return conv, nil
}

// ListConversations returns the conversations the user participates in
func (s *Service) ListConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	return s.store.ListUserConversations(ctx, userID)
}

// GetConversation returns a conversation the actor participates in
func (s *Service) GetConversation(ctx context.Context, actor *model.User, conversationID string) (*model.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireParticipant(ctx, conversationID, actor.ID); err != nil {
		return nil, err
	}
	return conv, nil
}

// ListParticipants returns the participants of a conversation the actor
// belongs to
func (s *Service) ListParticipants(ctx context.Context, actor *model.User, conversationID string) ([]model.Participant, error) {
	if _, err := s.requireParticipant(ctx, conversationID, actor.ID); err != nil {
		return nil, err
	}
	return s.store.ListParticipants(ctx, conversationID)
}

// SendMessage persists a message from the actor in the conversation. A reply
// target must be a message of the same conversation.
func (s *Service) SendMessage(ctx context.Context, actor *model.User, conversationID, content, replyToID string) (*model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("message content is empty: %w", domain.ErrValidation)
	}

	if _, err := s.requireParticipant(ctx, conversationID, actor.ID); err != nil {
		return nil, err
	}

	var replyTo *string
	if replyToID != "" {
		target, err := s.store.GetMessage(ctx, replyToID)
		if err != nil {
			if domain.IsNotFound(err) {
				return nil, fmt.Errorf("reply target does not exist: %w", domain.ErrValidation)
			}
			return nil, err
		}
		if target.ConversationID != conversationID {
			return nil, fmt.Errorf("reply target belongs to another conversation: %w", domain.ErrValidation)
		}
		replyTo = &target.ID
	}

	msg := &model.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       actor.ID,
		Content:        content,
		ReplyToID:      replyTo,
		CreatedAt:      time.Now(),
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessages returns messages of a conversation the actor belongs to,
// newest first. beforeID narrows the page to messages older than the given
// message.
func (s *Service) ListMessages(ctx context.Context, actor *model.User, conversationID string, limit int, beforeID string) ([]model.Message, error) {
	if _, err := s.requireParticipant(ctx, conversationID, actor.ID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultMessagePageSize
	}
	if limit > maxMessagePageSize {
		limit = maxMessagePageSize
	}
	return s.store.ListMessages(ctx, conversationID, limit, beforeID)
}

// DeleteMessage removes a message. Only the sender or a conversation admin
// may delete it.
func (s *Service) DeleteMessage(ctx context.Context, actor *model.User, messageID string) (*model.Message, error) {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}

	if msg.SenderID != actor.ID && actor.Role != model.UserRoleAdmin {
		p, err := s.requireParticipant(ctx, msg.ConversationID, actor.ID)
		if err != nil {
			return nil, err
		}
		if p.Role != model.ParticipantRoleAdmin {
			return nil, fmt.Errorf("only the sender or an admin may delete a message: %w", domain.ErrForbidden)
		}
	}

	if err := s.store.DeleteMessage(ctx, messageID); err != nil {
		return nil, err
	}

	s.logger.Info("Message deleted",
		slog.String("message_id", messageID),
		slog.String("deleted_by", actor.ID),
	)
	return msg, nil
}

// AddParticipant adds a user to a conversation. Only conversation admins may
// add participants; adding an existing participant is a validation error.
func (s *Service) AddParticipant(ctx context.Context, actor *model.User, conversationID, userID string) (*model.Participant, error) {
	actorPart, err := s.requireParticipant(ctx, conversationID, actor.ID)
	if err != nil {
		return nil, err
	}
	if actorPart.Role != model.ParticipantRoleAdmin {
		return nil, fmt.Errorf("only admins may add participants: %w", domain.ErrForbidden)
	}

	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	if _, err := s.store.GetParticipant(ctx, conversationID, userID); err == nil {
		return nil, fmt.Errorf("user %s is already a participant: %w", userID, domain.ErrValidation)
	} else if !domain.IsNotFound(err) {
		return nil, err
	}

	p := &model.Participant{
		ConversationID: conversationID,
		UserID:         userID,
		Role:           model.ParticipantRoleMember,
		JoinedAt:       time.Now(),
	}
	if err := s.store.AddParticipant(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// RemoveParticipant removes a user from a conversation. Admins may remove
// anyone; regular members may only remove themselves.
func (s *Service) RemoveParticipant(ctx context.Context, actor *model.User, conversationID, userID string) error {
	actorPart, err := s.requireParticipant(ctx, conversationID, actor.ID)
	if err != nil {
		return err
	}
	if actorPart.Role != model.ParticipantRoleAdmin && actor.ID != userID {
		return fmt.Errorf("only admins may remove other participants: %w", domain.ErrForbidden)
	}

	if _, err := s.store.GetParticipant(ctx, conversationID, userID); err != nil {
		return err
	}
	return s.store.RemoveParticipant(ctx, conversationID, userID)
}

// MarkAsRead advances the actor's read pointer to the latest message of the
// conversation. It returns the message the pointer now rests on, or nil when
// the conversation has no messages.
func (s *Service) MarkAsRead(ctx context.Context, actor *model.User, conversationID string) (*model.Message, error) {
	if _, err := s.requireParticipant(ctx, conversationID, actor.ID); err != nil {
		return nil, err
	}

	latest, err := s.store.GetLatestMessage(ctx, conversationID)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	if err := s.store.UpdateLastRead(ctx, conversationID, actor.ID, latest.ID); err != nil {
		return nil, err
	}
	return latest, nil
}

// IsParticipant reports whether the user belongs to the conversation
func (s *Service) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	_, err := s.store.GetParticipant(ctx, conversationID, userID)
	if err != nil {
		if domain.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Service) requireParticipant(ctx context.Context, conversationID, userID string) (*model.Participant, error) {
	p, err := s.store.GetParticipant(ctx, conversationID, userID)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, fmt.Errorf("user %s is not a participant of conversation %s: %w", userID, conversationID, domain.ErrForbidden)
		}
		return nil, err
	}
	return p, nil
}
