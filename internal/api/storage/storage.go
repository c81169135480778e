package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cuongbtq/collabute-be/internal/domain"
	"github.com/cuongbtq/collabute-be/internal/model"
	"github.com/cuongbtq/collabute-be/shared/postgresql"
	"github.com/jmoiron/sqlx"
)

// Storage implements the persistence used by the chat service, the auth
// service and the HTTP handlers.
type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

func (s *Storage) GetUser(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	query := `
		SELECT id, email, name, avatar_url, role, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	err := s.db.GetContext(ctx, &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

func (s *Storage) GetSession(ctx context.Context, token string) (*model.Session, error) {
	var session model.Session
	query := `
		SELECT token, user_id, expires_at, created_at
		FROM sessions
		WHERE token = $1
	`

	err := s.db.GetContext(ctx, &session, query, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return &session, nil
}

func (s *Storage) GetProject(ctx context.Context, id string) (*model.Project, error) {
	var project model.Project
	query := `
		SELECT id, name, owner_id, created_at, updated_at
		FROM projects
		WHERE id = $1
	`

	err := s.db.GetContext(ctx, &project, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return &project, nil
}

func (s *Storage) IsProjectMember(ctx context.Context, projectID, userID string) (bool, error) {
	var collab model.ProjectCollaborator
	query := `
		SELECT project_id, user_id, role, created_at
		FROM project_collaborators
		WHERE project_id = $1 AND user_id = $2
	`

	err := s.db.GetContext(ctx, &collab, query, projectID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check project membership: %w", err)
	}

	return true, nil
}

// CreateConversation inserts the conversation and its initial participants in
// one transaction
func (s *Storage) CreateConversation(ctx context.Context, conv *model.Conversation, participants []model.Participant) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	convQuery := `
		INSERT INTO conversations (
			id, title, type, project_id, created_by_id, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`
	_, err = tx.ExecContext(
		ctx,
		convQuery,
		conv.ID,
		conv.Title,
		conv.Type,
		conv.ProjectID,
		conv.CreatedByID,
		conv.CreatedAt,
		conv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}

	partQuery := `
		INSERT INTO conversation_participants (
			conversation_id, user_id, role, joined_at
		) VALUES (
			$1, $2, $3, $4
		)
	`
	for _, p := range participants {
		_, err = tx.ExecContext(ctx, partQuery, p.ConversationID, p.UserID, p.Role, p.JoinedAt)
		if err != nil {
			return fmt.Errorf("failed to add participant %s: %w", p.UserID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit conversation: %w", err)
	}

	return nil
}

func (s *Storage) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	query := `
		SELECT id, title, type, project_id, created_by_id, created_at, updated_at
		FROM conversations
		WHERE id = $1
	`

	err := s.db.GetContext(ctx, &conv, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("conversation %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	return &conv, nil
}

func (s *Storage) ListUserConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	query := `
		SELECT c.id, c.title, c.type, c.project_id, c.created_by_id, c.created_at, c.updated_at
		FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id
		WHERE p.user_id = $1
		ORDER BY c.updated_at DESC
	`

	var conversations []model.Conversation
	err := s.db.SelectContext(ctx, &conversations, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	return conversations, nil
}

func (s *Storage) GetParticipant(ctx context.Context, conversationID, userID string) (*model.Participant, error) {
	var participant model.Participant
	query := `
		SELECT conversation_id, user_id, role, last_read_message_id, joined_at
		FROM conversation_participants
		WHERE conversation_id = $1 AND user_id = $2
	`

	err := s.db.GetContext(ctx, &participant, query, conversationID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("participant %s in %s: %w", userID, conversationID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}

	return &participant, nil
}

func (s *Storage) ListParticipants(ctx context.Context, conversationID string) ([]model.Participant, error) {
	query := `
		SELECT conversation_id, user_id, role, last_read_message_id, joined_at
		FROM conversation_participants
		WHERE conversation_id = $1
		ORDER BY joined_at ASC
	`

	var participants []model.Participant
	err := s.db.SelectContext(ctx, &participants, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}

	return participants, nil
}

func (s *Storage) AddParticipant(ctx context.Context, p *model.Participant) error {
	query := `
		INSERT INTO conversation_participants (
			conversation_id, user_id, role, joined_at
		) VALUES (
			$1, $2, $3, $4
		)
	`

	_, err := s.db.ExecContext(ctx, query, p.ConversationID, p.UserID, p.Role, p.JoinedAt)
	if err != nil {
		return fmt.Errorf("failed to add participant: %w", err)
	}

	return nil
}

func (s *Storage) RemoveParticipant(ctx context.Context, conversationID, userID string) error {
	query := `
		DELETE FROM conversation_participants
		WHERE conversation_id = $1 AND user_id = $2
	`

	result, err := s.db.ExecContext(ctx, query, conversationID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove participant: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check removed rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("participant %s in %s: %w", userID, conversationID, domain.ErrNotFound)
	}

	return nil
}

func (s *Storage) UpdateLastRead(ctx context.Context, conversationID, userID, messageID string) error {
	query := `
		UPDATE conversation_participants
		SET last_read_message_id = $3
		WHERE conversation_id = $1 AND user_id = $2
	`

	result, err := s.db.ExecContext(ctx, query, conversationID, userID, messageID)
	if err != nil {
		return fmt.Errorf("failed to update read pointer: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check updated rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("participant %s in %s: %w", userID, conversationID, domain.ErrNotFound)
	}

	return nil
}

func (s *Storage) CreateMessage(ctx context.Context, m *model.Message) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO messages (
			id, conversation_id, sender_id, content, reply_to_id, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
	`
	_, err = tx.ExecContext(
		ctx,
		query,
		m.ID,
		m.ConversationID,
		m.SenderID,
		m.Content,
		m.ReplyToID,
		m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	// Messages bump the conversation so listing stays ordered by activity
	_, err = tx.ExecContext(ctx, `UPDATE conversations SET updated_at = $2 WHERE id = $1`, m.ConversationID, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit message: %w", err)
	}

	return nil
}

func (s *Storage) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	var msg model.Message
	query := `
		SELECT id, conversation_id, sender_id, content, reply_to_id, created_at
		FROM messages
		WHERE id = $1
	`

	err := s.db.GetContext(ctx, &msg, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return &msg, nil
}

// ListMessages returns a page of messages newest first. When beforeID names
// an existing message the page contains only messages older than it, keyed on
// (created_at, id) for stable pagination.
func (s *Storage) ListMessages(ctx context.Context, conversationID string, limit int, beforeID string) ([]model.Message, error) {
	query := `
		SELECT id, conversation_id, sender_id, content, reply_to_id, created_at
		FROM messages
		WHERE conversation_id = $1
	`
	args := []interface{}{conversationID}
	argIdx := 2

	if beforeID != "" {
		before, err := s.GetMessage(ctx, beforeID)
		if err != nil {
			return nil, err
		}
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, before.CreatedAt, before.ID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	var messages []model.Message
	err := s.db.SelectContext(ctx, &messages, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	return messages, nil
}

func (s *Storage) DeleteMessage(ctx context.Context, id string) error {
	query := `DELETE FROM messages WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("message %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

func (s *Storage) GetLatestMessage(ctx context.Context, conversationID string) (*model.Message, error) {
	var msg model.Message
	query := `
		SELECT id, conversation_id, sender_id, content, reply_to_id, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	err := s.db.GetContext(ctx, &msg, query, conversationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no messages in %s: %w", conversationID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get latest message: %w", err)
	}

	return &msg, nil
}

func (s *Storage) GetRepository(ctx context.Context, id string) (*model.Repository, error) {
	var repo model.Repository
	query := `
		SELECT id, project_id, full_name, description, language, default_branch,
		       sync_enabled, pushed_at, synced_at, created_at, updated_at
		FROM repositories
		WHERE id = $1
	`

	err := s.db.GetContext(ctx, &repo, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("repository %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get repository: %w", err)
	}

	return &repo, nil
}
