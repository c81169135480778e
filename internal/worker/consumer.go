package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/cuongbtq/collabute-be/internal/domain"
	"github.com/cuongbtq/collabute-be/internal/jobs"
)

// Consumer drives one queue: it promotes due delayed jobs, claims waiting
// jobs and hands them to the queue's processor, reporting the outcome back to
// the queue. Retry policy lives in the queue, not here.
type Consumer struct {
	queue        *jobs.Queue
	processor    Processor
	logger       *slog.Logger
	pollInterval time.Duration
	claimBlock   time.Duration
	jobTimeout   time.Duration
}

// NewConsumer creates a consumer for the processor's queue
func NewConsumer(queue *jobs.Queue, processor Processor, logger *slog.Logger, pollInterval, claimBlock, jobTimeout time.Duration) *Consumer {
	return &Consumer{
		queue:        queue,
		processor:    processor,
		logger:       logger,
		pollInterval: pollInterval,
		claimBlock:   claimBlock,
		jobTimeout:   jobTimeout,
	}
}

// Run processes jobs until the context is canceled. An executing job always
// runs to completion or failure; cancellation takes effect between jobs.
func (c *Consumer) Run(ctx context.Context) {
	c.logger.Info("Queue consumer started",
		slog.String("queue", c.queue.Name()),
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Queue consumer stopped",
				slog.String("queue", c.queue.Name()),
			)
			return
		default:
		}

		paused, err := c.queue.IsPaused(ctx)
		if err != nil {
			c.logAndWait(ctx, "Failed to check pause flag", err)
			continue
		}
		if paused {
			c.sleep(ctx, c.pollInterval)
			continue
		}

		if _, err := c.queue.PromoteDue(ctx, time.Now()); err != nil {
			c.logAndWait(ctx, "Failed to promote delayed jobs", err)
			continue
		}

		job, err := c.queue.Claim(ctx, c.claimBlock)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.logAndWait(ctx, "Failed to claim job", err)
			continue
		}
		if job == nil {
			continue
		}

		c.execute(ctx, job)
	}
}

// execute runs a single attempt of the claimed job
func (c *Consumer) execute(ctx context.Context, job *jobs.Job) {
	job.Attempt++

	c.logger.Info("Processing job",
		slog.String("queue", c.queue.Name()),
		slog.String("job_id", job.ID),
		slog.String("job_name", job.Name),
		slog.Int("attempt", job.Attempt),
		slog.Int("max_attempts", job.MaxAttempts),
	)

	jobCtx, cancel := context.WithTimeout(ctx, c.jobTimeout)
	err := c.processor.Process(jobCtx, job)
	cancel()

	// Outcome bookkeeping must survive shutdown of the consumer context
	reportCtx, reportCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer reportCancel()

	if err != nil {
		c.logger.Error("Job attempt failed",
			slog.String("queue", c.queue.Name()),
			slog.String("job_id", job.ID),
			slog.Int("attempt", job.Attempt),
			slog.String("error", err.Error()),
		)

		retried, retryErr := c.queue.Retry(reportCtx, job, err, domain.IsRetryable(err))
		if retryErr != nil {
			c.logger.Error("Failed to record job failure",
				slog.String("queue", c.queue.Name()),
				slog.String("job_id", job.ID),
				slog.String("error", retryErr.Error()),
			)
			return
		}
		if !retried {
			c.logger.Warn("Job moved to failed set",
				slog.String("queue", c.queue.Name()),
				slog.String("job_id", job.ID),
				slog.Int("attempts", job.Attempt),
			)
		}
		return
	}

	if err := c.queue.Complete(reportCtx, job); err != nil {
		c.logger.Error("Failed to record job completion",
			slog.String("queue", c.queue.Name()),
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	c.logger.Info("Job completed successfully",
		slog.String("queue", c.queue.Name()),
		slog.String("job_id", job.ID),
		slog.Int("attempt", job.Attempt),
	)
}

func (c *Consumer) logAndWait(ctx context.Context, msg string, err error) {
	c.logger.Error(msg,
		slog.String("queue", c.queue.Name()),
		slog.String("error", err.Error()),
	)
	c.sleep(ctx, c.pollInterval)
}

func (c *Consumer) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
