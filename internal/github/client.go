package github

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cuongbtq/collabute-be/internal/domain"
	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

// SyncData is the snapshot fetched from GitHub for one repository
type SyncData struct {
	Repository *github.Repository
	Issues     []*github.Issue
	Commits    []*github.RepositoryCommit
	Branches   []*github.Branch
}

// Client wraps the GitHub REST API for repository sync
type Client struct {
	gh     *github.Client
	logger *slog.Logger
}

// NewClient creates a GitHub client. An empty token yields an unauthenticated
// client subject to the anonymous rate limit.
func NewClient(token string, logger *slog.Logger) *Client {
	var gh *github.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		gh = github.NewClient(oauth2.NewClient(context.Background(), ts))
	} else {
		gh = github.NewClient(nil)
	}

	return &Client{
		gh:     gh,
		logger: logger,
	}
}

// splitFullName splits "owner/repo" into its parts
func splitFullName(fullName string) (owner, repo string, err error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: invalid repository full name %q", domain.ErrValidation, fullName)
	}
	return parts[0], parts[1], nil
}

// GetRepository fetches repository metadata
func (c *Client) GetRepository(ctx context.Context, fullName string) (*github.Repository, error) {
	owner, repo, err := splitFullName(fullName)
	if err != nil {
		return nil, err
	}

	r, _, err := c.gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, domain.NewExternalServiceError("github", fmt.Errorf("failed to get repository %s: %w", fullName, err))
	}
	return r, nil
}

// ListIssues fetches all issues for the repository
func (c *Client) ListIssues(ctx context.Context, fullName string) ([]*github.Issue, error) {
	owner, repo, err := splitFullName(fullName)
	if err != nil {
		return nil, err
	}

	var all []*github.Issue
	opts := &github.IssueListByRepoOptions{
		State:       "all",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	for {
		issues, resp, err := c.gh.Issues.ListByRepo(ctx, owner, repo, opts)
		if err != nil {
			return nil, domain.NewExternalServiceError("github", fmt.Errorf("failed to list issues for %s: %w", fullName, err))
		}
		all = append(all, issues...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// ListCommits fetches the most recent page of commits on the default branch
func (c *Client) ListCommits(ctx context.Context, fullName string) ([]*github.RepositoryCommit, error) {
	owner, repo, err := splitFullName(fullName)
	if err != nil {
		return nil, err
	}

	commits, _, err := c.gh.Repositories.ListCommits(ctx, owner, repo, &github.CommitsListOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	})
	if err != nil {
		return nil, domain.NewExternalServiceError("github", fmt.Errorf("failed to list commits for %s: %w", fullName, err))
	}
	return commits, nil
}

// ListBranches fetches all branches for the repository
func (c *Client) ListBranches(ctx context.Context, fullName string) ([]*github.Branch, error) {
	owner, repo, err := splitFullName(fullName)
	if err != nil {
		return nil, err
	}

	var all []*github.Branch
	opts := &github.BranchListOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}
	for {
		branches, resp, err := c.gh.Repositories.ListBranches(ctx, owner, repo, opts)
		if err != nil {
			return nil, domain.NewExternalServiceError("github", fmt.Errorf("failed to list branches for %s: %w", fullName, err))
		}
		all = append(all, branches...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// SyncRepositoryData fetches repository metadata, issues, commits and
// branches concurrently. Any single failure fails the whole sync.
func (c *Client) SyncRepositoryData(ctx context.Context, fullName string) (*SyncData, error) {
	c.logger.Info("Fetching repository data from GitHub",
		slog.String("repository", fullName),
	)

	data := &SyncData{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		r, err := c.GetRepository(gctx, fullName)
		data.Repository = r
		return err
	})
	g.Go(func() error {
		issues, err := c.ListIssues(gctx, fullName)
		data.Issues = issues
		return err
	})
	g.Go(func() error {
		commits, err := c.ListCommits(gctx, fullName)
		data.Commits = commits
		return err
	})
	g.Go(func() error {
		branches, err := c.ListBranches(gctx, fullName)
		data.Branches = branches
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.logger.Info("Repository data fetched",
		slog.String("repository", fullName),
		slog.Int("issues", len(data.Issues)),
		slog.Int("commits", len(data.Commits)),
		slog.Int("branches", len(data.Branches)),
	)
	return data, nil
}
