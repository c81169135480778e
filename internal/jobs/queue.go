package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRetention = 100

// QueueStats is a point-in-time snapshot of one queue's job counts. It is
// eventually consistent with in-flight mutations.
type QueueStats struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Delayed   int64 `json:"delayed"`
}

// Queue is a named, durable channel of jobs of one kind, backed by Redis.
//
// Layout per queue:
//
//	jobs:{name}:waiting    LIST  ready jobs, FIFO (LPUSH / BLMOVE)
//	jobs:{name}:delayed    ZSET  jobs scheduled for later, scored by ready time (unix ms)
//	jobs:{name}:active     LIST  jobs claimed by a processor, removed on a terminal outcome
//	jobs:{name}:completed  LIST  terminal successes, capped by retention
//	jobs:{name}:failed     LIST  terminal failures, capped by retention
//	jobs:{name}:paused     flag  present while dispatch is paused
type Queue struct {
	rdb       *redis.Client
	name      string
	retention int
	logger    *slog.Logger
}

// NewQueue creates a queue handle. retention caps the completed and failed
// lists; values <= 0 use the default.
func NewQueue(rdb *redis.Client, name string, retention int, logger *slog.Logger) *Queue {
	if retention <= 0 {
		retention = defaultRetention
	}
	return &Queue{
		rdb:       rdb,
		name:      name,
		retention: retention,
		logger:    logger,
	}
}

// Name returns the queue name
func (q *Queue) Name() string {
	return q.name
}

func (q *Queue) key(suffix string) string {
	return "jobs:" + q.name + ":" + suffix
}

// Push stores the job in the waiting list, or in the delayed set when its
// ready time is in the future.
func (q *Queue) Push(ctx context.Context, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	now := time.Now().UnixMilli()
	if job.ReadyAt > now {
		if err := q.rdb.ZAdd(ctx, q.key("delayed"), redis.Z{
			Score:  float64(job.ReadyAt),
			Member: raw,
		}).Err(); err != nil {
			return fmt.Errorf("failed to add delayed job: %w", err)
		}

		q.logger.Debug("Job delayed",
			slog.String("queue", q.name),
			slog.String("job_id", job.ID),
			slog.Int64("ready_at", job.ReadyAt),
		)
		return nil
	}

	if err := q.rdb.LPush(ctx, q.key("waiting"), raw).Err(); err != nil {
		return fmt.Errorf("failed to push job: %w", err)
	}

	q.logger.Debug("Job enqueued",
		slog.String("queue", q.name),
		slog.String("job_id", job.ID),
	)
	return nil
}

// promoteScript atomically moves due delayed entries into the waiting list.
// Concurrent consumers promote the same queue, so read-then-push in two round
// trips would enqueue the same attempt twice.
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, raw in ipairs(due) do
	redis.call('ZREM', KEYS[1], raw)
	redis.call('LPUSH', KEYS[2], raw)
end
return #due
`)

// PromoteDue moves delayed jobs whose ready time has passed into the waiting
// list. Returns the number of promoted jobs.
func (q *Queue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	promoted, err := promoteScript.Run(ctx, q.rdb,
		[]string{q.key("delayed"), q.key("waiting")},
		now.UnixMilli(), 100,
	).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to promote delayed jobs: %w", err)
	}

	if promoted > 0 {
		q.logger.Debug("Promoted delayed jobs",
			slog.String("queue", q.name),
			slog.Int("count", promoted),
		)
	}
	return promoted, nil
}

// Claim blocks up to the given duration for a waiting job and moves it into
// the active list in one step, so a claimed job survives a crashing worker.
// Returns nil when no job became available.
func (q *Queue) Claim(ctx context.Context, block time.Duration) (*Job, error) {
	raw, err := q.rdb.BLMove(ctx, q.key("waiting"), q.key("active"), "RIGHT", "LEFT", block).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		q.rdb.LRem(ctx, q.key("active"), 1, raw)
		q.logger.Error("Discarding malformed job envelope",
			slog.String("queue", q.name),
			slog.String("error", err.Error()),
		)
		return nil, nil
	}
	job.claimed = raw

	return &job, nil
}

// release drops the claimed envelope from the active list
func (q *Queue) release(ctx context.Context, job *Job) error {
	if job.claimed == "" {
		return nil
	}
	if err := q.rdb.LRem(ctx, q.key("active"), 1, job.claimed).Err(); err != nil {
		return fmt.Errorf("failed to clear active job: %w", err)
	}
	return nil
}

// Complete removes the job from the active list and records it in the
// completed list.
func (q *Queue) Complete(ctx context.Context, job *Job) error {
	if err := q.release(ctx, job); err != nil {
		return err
	}

	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	pipe := q.rdb.Pipeline()
	pipe.LPush(ctx, q.key("completed"), raw)
	pipe.LTrim(ctx, q.key("completed"), 0, int64(q.retention)-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record completed job: %w", err)
	}
	return nil
}

// Retry reschedules a failed job per its backoff policy, or parks it in the
// failed list once attempts are exhausted or the error is terminal. Returns
// true when the job was rescheduled.
func (q *Queue) Retry(ctx context.Context, job *Job, jobErr error, retryable bool) (bool, error) {
	if err := q.release(ctx, job); err != nil {
		return false, err
	}

	job.LastError = jobErr.Error()

	if retryable && job.Attempt < job.MaxAttempts {
		delay := job.Backoff.NextDelay(job.Attempt)
		job.ReadyAt = time.Now().Add(delay).UnixMilli()

		raw, err := json.Marshal(job)
		if err != nil {
			return false, fmt.Errorf("failed to marshal job: %w", err)
		}

		if err := q.rdb.ZAdd(ctx, q.key("delayed"), redis.Z{
			Score:  float64(job.ReadyAt),
			Member: raw,
		}).Err(); err != nil {
			return false, fmt.Errorf("failed to schedule retry: %w", err)
		}

		q.logger.Info("Job scheduled for retry",
			slog.String("queue", q.name),
			slog.String("job_id", job.ID),
			slog.Int("attempt", job.Attempt),
			slog.Int("max_attempts", job.MaxAttempts),
			slog.Duration("delay", delay),
		)
		return true, nil
	}

	raw, err := json.Marshal(job)
	if err != nil {
		return false, fmt.Errorf("failed to marshal job: %w", err)
	}

	// Terminal failure: retained for operator inspection, capped by retention
	pipe := q.rdb.Pipeline()
	pipe.LPush(ctx, q.key("failed"), raw)
	pipe.LTrim(ctx, q.key("failed"), 0, int64(q.retention)-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to record failed job: %w", err)
	}

	q.logger.Warn("Job failed permanently",
		slog.String("queue", q.name),
		slog.String("job_id", job.ID),
		slog.Int("attempt", job.Attempt),
		slog.String("error", jobErr.Error()),
	)
	return false, nil
}

// Stats returns current counts for each job state
func (q *Queue) Stats(ctx context.Context) (QueueStats, error) {
	pipe := q.rdb.Pipeline()
	waiting := pipe.LLen(ctx, q.key("waiting"))
	active := pipe.LLen(ctx, q.key("active"))
	completed := pipe.LLen(ctx, q.key("completed"))
	failed := pipe.LLen(ctx, q.key("failed"))
	delayed := pipe.ZCard(ctx, q.key("delayed"))

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return QueueStats{}, fmt.Errorf("failed to read queue stats: %w", err)
	}

	return QueueStats{
		Waiting:   waiting.Val(),
		Active:    active.Val(),
		Completed: completed.Val(),
		Failed:    failed.Val(),
		Delayed:   delayed.Val(),
	}, nil
}

// Pause stops dispatch to processors. In-flight jobs are unaffected.
func (q *Queue) Pause(ctx context.Context) error {
	if err := q.rdb.Set(ctx, q.key("paused"), "1", 0).Err(); err != nil {
		return fmt.Errorf("failed to pause queue: %w", err)
	}
	q.logger.Info("Queue paused", slog.String("queue", q.name))
	return nil
}

// Resume re-enables dispatch to processors
func (q *Queue) Resume(ctx context.Context) error {
	if err := q.rdb.Del(ctx, q.key("paused")).Err(); err != nil {
		return fmt.Errorf("failed to resume queue: %w", err)
	}
	q.logger.Info("Queue resumed", slog.String("queue", q.name))
	return nil
}

// IsPaused reports whether dispatch is currently paused
func (q *Queue) IsPaused(ctx context.Context) (bool, error) {
	n, err := q.rdb.Exists(ctx, q.key("paused")).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check pause flag: %w", err)
	}
	return n > 0, nil
}

// Clear removes completed, failed and active job records. Waiting and delayed
// jobs are deliberately left in place: clear is cleanup of terminal and stuck
// entries, not a drain.
func (q *Queue) Clear(ctx context.Context) error {
	if err := q.rdb.Del(ctx, q.key("completed"), q.key("failed"), q.key("active")).Err(); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	q.logger.Info("Queue cleared", slog.String("queue", q.name))
	return nil
}
