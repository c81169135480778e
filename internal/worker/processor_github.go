package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/collabute-be/internal/domain"
	"github.com/cuongbtq/collabute-be/internal/github"
	"github.com/cuongbtq/collabute-be/internal/jobs"
	"github.com/cuongbtq/collabute-be/internal/worker/storage"
)

// GitHubSyncProcessor refreshes a connected repository's metadata from the
// GitHub API
type GitHubSyncProcessor struct {
	gh      *github.Client
	storage *storage.Storage
	logger  *slog.Logger
}

// NewGitHubSyncProcessor creates the github-sync queue processor
func NewGitHubSyncProcessor(gh *github.Client, st *storage.Storage, logger *slog.Logger) *GitHubSyncProcessor {
	return &GitHubSyncProcessor{
		gh:      gh,
		storage: st,
		logger:  logger,
	}
}

func (p *GitHubSyncProcessor) Queue() string {
	return jobs.QueueGitHubSync
}

func (p *GitHubSyncProcessor) Process(ctx context.Context, job *jobs.Job) error {
	var data jobs.GitHubSyncJobData
	if err := json.Unmarshal(job.Payload, &data); err != nil {
		return fmt.Errorf("%w: malformed sync payload: %v", domain.ErrValidation, err)
	}
	if err := data.Validate(); err != nil {
		return err
	}

	p.logger.Info("Processing repository sync job",
		slog.String("job_id", job.ID),
		slog.String("repository_id", data.RepositoryID),
		slog.String("user_id", data.UserID),
		slog.Int("attempt", job.Attempt),
	)

	repo, err := p.storage.GetRepository(ctx, data.RepositoryID)
	if err != nil {
		return err
	}

	syncData, err := p.gh.SyncRepositoryData(ctx, repo.FullName)
	if err != nil {
		return err
	}

	var pushedAt *time.Time
	if ts := syncData.Repository.GetPushedAt(); !ts.IsZero() {
		t := ts.Time
		pushedAt = &t
	}

	if err := p.storage.UpdateRepositorySyncData(ctx, repo.ID, storage.RepositorySyncData{
		Description:   syncData.Repository.GetDescription(),
		Language:      syncData.Repository.GetLanguage(),
		DefaultBranch: syncData.Repository.GetDefaultBranch(),
		PushedAt:      pushedAt,
	}); err != nil {
		return err
	}

	p.logger.Info("Repository sync completed",
		slog.String("job_id", job.ID),
		slog.String("repository", repo.FullName),
		slog.Int("issues", len(syncData.Issues)),
		slog.Int("commits", len(syncData.Commits)),
		slog.Int("branches", len(syncData.Branches)),
	)
	return nil
}
