package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/collabute-be/internal/domain"
	"github.com/cuongbtq/collabute-be/internal/model"
	"github.com/jmoiron/sqlx"
)

// Storage handles all database operations for the worker
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// GetRepository retrieves a connected repository by its ID
func (s *Storage) GetRepository(ctx context.Context, repositoryID string) (*model.Repository, error) {
	query := `
		SELECT id, project_id, full_name, description, language, default_branch,
		       sync_enabled, pushed_at, synced_at, created_at, updated_at
		FROM repositories
		WHERE id = $1
	`

	var repo model.Repository
	err := s.db.GetContext(ctx, &repo, query, repositoryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: repository %s", domain.ErrNotFound, repositoryID)
		}
		return nil, fmt.Errorf("failed to get repository: %w", err)
	}

	return &repo, nil
}

// ListSyncEnabledRepositories returns all repositories with periodic sync
// enabled, together with their project owner for job attribution.
func (s *Storage) ListSyncEnabledRepositories(ctx context.Context) ([]SyncTarget, error) {
	query := `
		SELECT r.id AS repository_id, p.owner_id AS user_id
		FROM repositories r
		JOIN projects p ON p.id = r.project_id
		WHERE r.sync_enabled = true
	`

	var targets []SyncTarget
	if err := s.db.SelectContext(ctx, &targets, query); err != nil {
		return nil, fmt.Errorf("failed to list sync-enabled repositories: %w", err)
	}
	return targets, nil
}

// SyncTarget identifies one repository due for periodic sync
type SyncTarget struct {
	RepositoryID string `db:"repository_id"`
	UserID       string `db:"user_id"`
}

// RepositorySyncData is the metadata subset written back after a sync
type RepositorySyncData struct {
	Description   string
	Language      string
	DefaultBranch string
	PushedAt      *time.Time
}

// UpdateRepositorySyncData writes the synced metadata and stamps synced_at
func (s *Storage) UpdateRepositorySyncData(ctx context.Context, repositoryID string, data RepositorySyncData) error {
	query := `
		UPDATE repositories
		SET description = $2,
		    language = $3,
		    default_branch = $4,
		    pushed_at = $5,
		    synced_at = now(),
		    updated_at = now()
		WHERE id = $1
	`

	res, err := s.db.ExecContext(ctx, query,
		repositoryID,
		data.Description,
		data.Language,
		data.DefaultBranch,
		data.PushedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update repository sync data: %w", err)
	}

	rows, err := res.RowsAffected()
	if err == nil && rows == 0 {
		return fmt.Errorf("%w: repository %s", domain.ErrNotFound, repositoryID)
	}

	s.logger.Debug("Repository sync data updated",
		slog.String("repository_id", repositoryID),
	)
	return nil
}
