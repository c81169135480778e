package model

import "time"

// User roles
const (
	UserRoleAdmin = "ADMIN"
	UserRoleUser  = "USER"
)

// Conversation types
const (
	ConversationTypePrivate = "PRIVATE"
	ConversationTypeGroup   = "GROUP"
	ConversationTypeProject = "PROJECT"
)

// Participant roles within a conversation
const (
	ParticipantRoleAdmin  = "ADMIN"
	ParticipantRoleMember = "MEMBER"
)

type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Name      string    `db:"name" json:"name"`
	AvatarURL string    `db:"avatar_url" json:"avatarUrl"`
	Role      string    `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Session is an opaque bearer token issued by the hosted auth provider and
// mirrored into our store. Expired sessions are treated as absent.
type Session struct {
	Token     string    `db:"token" json:"-"`
	UserID    string    `db:"user_id" json:"userId"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type Project struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	OwnerID   string    `db:"owner_id" json:"ownerId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

type ProjectCollaborator struct {
	ProjectID string    `db:"project_id" json:"projectId"`
	UserID    string    `db:"user_id" json:"userId"`
	Role      string    `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type Conversation struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Type        string    `db:"type" json:"type"`
	ProjectID   *string   `db:"project_id" json:"projectId"`
	CreatedByID string    `db:"created_by_id" json:"createdById"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// Participant attaches a user to a conversation with a role and a read cursor.
// Primary key: (ConversationID, UserID).
type Participant struct {
	ConversationID    string    `db:"conversation_id" json:"conversationId"`
	UserID            string    `db:"user_id" json:"userId"`
	Role              string    `db:"role" json:"role"`
	LastReadMessageID *string   `db:"last_read_message_id" json:"lastReadMessageId"`
	JoinedAt          time.Time `db:"joined_at" json:"joinedAt"`
}

type Message struct {
	ID             string    `db:"id" json:"id"`
	ConversationID string    `db:"conversation_id" json:"conversationId"`
	SenderID       string    `db:"sender_id" json:"senderId"`
	Content        string    `db:"content" json:"content"`
	ReplyToID      *string   `db:"reply_to_id" json:"replyToId"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

// Repository is a GitHub repository connected to a project. The sync worker
// refreshes the metadata columns from the GitHub API.
type Repository struct {
	ID            string     `db:"id" json:"id"`
	ProjectID     string     `db:"project_id" json:"projectId"`
	FullName      string     `db:"full_name" json:"fullName"`
	Description   string     `db:"description" json:"description"`
	Language      string     `db:"language" json:"language"`
	DefaultBranch string     `db:"default_branch" json:"defaultBranch"`
	SyncEnabled   bool       `db:"sync_enabled" json:"syncEnabled"`
	PushedAt      *time.Time `db:"pushed_at" json:"pushedAt"`
	SyncedAt      *time.Time `db:"synced_at" json:"syncedAt"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updatedAt"`
}
