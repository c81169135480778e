package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/collabute-be/internal/jobs"
	"github.com/cuongbtq/collabute-be/internal/worker/storage"
	"github.com/robfig/cron/v3"
)

// Config holds worker configuration
type Config struct {
	Logger       *slog.Logger
	Dispatcher   *jobs.Dispatcher
	Storage      *storage.Storage
	Processors   []Processor
	Concurrency  int
	PollInterval time.Duration
	ClaimBlock   time.Duration
	JobTimeout   time.Duration
	SyncSchedule string
}

// Worker runs the queue consumers and the recurring sync scheduler
type Worker struct {
	logger       *slog.Logger
	dispatcher   *jobs.Dispatcher
	storage      *storage.Storage
	processors   []Processor
	concurrency  int
	pollInterval time.Duration
	claimBlock   time.Duration
	jobTimeout   time.Duration
	syncSchedule string
	cron         *cron.Cron
	wg           sync.WaitGroup
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	return &Worker{
		logger:       cfg.Logger,
		dispatcher:   cfg.Dispatcher,
		storage:      cfg.Storage,
		processors:   cfg.Processors,
		concurrency:  cfg.Concurrency,
		pollInterval: cfg.PollInterval,
		claimBlock:   cfg.ClaimBlock,
		jobTimeout:   cfg.JobTimeout,
		syncSchedule: cfg.SyncSchedule,
		cron:         cron.New(),
	}
}

// Start spawns the consumers and the recurring sync schedule, then blocks
// until the context is canceled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.Int("processors", len(w.processors)),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	for _, p := range w.processors {
		queue, err := w.dispatcher.Queue(p.Queue())
		if err != nil {
			return fmt.Errorf("processor references unknown queue: %w", err)
		}

		for i := 0; i < w.concurrency; i++ {
			consumer := NewConsumer(queue, p, w.logger, w.pollInterval, w.claimBlock, w.jobTimeout)
			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				consumer.Run(ctx)
			}()
		}
	}

	if w.syncSchedule != "" {
		if _, err := w.cron.AddFunc(w.syncSchedule, func() {
			w.enqueuePeriodicSyncs(ctx)
		}); err != nil {
			return fmt.Errorf("failed to register sync schedule: %w", err)
		}
		w.cron.Start()

		w.logger.Info("Recurring repository sync scheduled",
			slog.String("schedule", w.syncSchedule),
		)
	}

	<-ctx.Done()
	w.logger.Info("Worker context canceled, stopping...")
	return nil
}

// Stop waits for the consumers to finish and halts the scheduler
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.cron.Stop()
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}

// enqueuePeriodicSyncs re-enqueues a sync job for every sync-enabled
// repository
func (w *Worker) enqueuePeriodicSyncs(ctx context.Context) {
	targets, err := w.storage.ListSyncEnabledRepositories(ctx)
	if err != nil {
		w.logger.Error("Failed to list repositories for periodic sync",
			slog.String("error", err.Error()),
		)
		return
	}

	for _, t := range targets {
		jobID, err := w.dispatcher.ScheduleGitHubSync(ctx, jobs.GitHubSyncJobData{
			UserID:       t.UserID,
			RepositoryID: t.RepositoryID,
		}, 0)
		if err != nil {
			w.logger.Error("Failed to enqueue periodic sync",
				slog.String("repository_id", t.RepositoryID),
				slog.String("error", err.Error()),
			)
			continue
		}

		w.logger.Debug("Periodic sync enqueued",
			slog.String("repository_id", t.RepositoryID),
			slog.String("job_id", jobID),
		)
	}

	w.logger.Info("Periodic repository sync pass finished",
		slog.Int("repositories", len(targets)),
	)
}
