package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testQueue(t *testing.T, retention int) (*miniredis.Miniredis, *Queue) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, NewQueue(rdb, QueueEmail, retention, discardLogger())
}

func testJob(id string, readyAt int64) *Job {
	payload, _ := json.Marshal(EmailJobData{To: "alice@example.com", Subject: "hi", Template: "welcome"})
	return &Job{
		ID:          id,
		Queue:       QueueEmail,
		Name:        JobSendEmail,
		Payload:     payload,
		MaxAttempts: 3,
		Backoff:     BackoffPolicy{Type: BackoffFixed, DelayMS: 1},
		CreatedAt:   time.Now().UnixMilli(),
		ReadyAt:     readyAt,
	}
}

func TestQueue_PushClaimComplete(t *testing.T) {
	_, q := testQueue(t, 10)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, testJob("job-1", 0)))

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Waiting)

	job, err := q.Claim(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "job-1", job.ID)

	// Claiming moves the envelope into the active list in the same step
	stats, err = q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Waiting)
	assert.Equal(t, int64(1), stats.Active)

	require.NoError(t, q.Complete(ctx, job))

	stats, err = q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Active)
	assert.Equal(t, int64(1), stats.Completed)
}

func TestQueue_Claim_Empty(t *testing.T) {
	_, q := testQueue(t, 10)

	job, err := q.Claim(context.Background(), 50*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestQueue_Claim_MalformedEnvelope(t *testing.T) {
	mr, q := testQueue(t, 10)
	ctx := context.Background()

	mr.Lpush("jobs:email:waiting", "{not json")

	job, err := q.Claim(ctx, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, job)

	// The discarded envelope must not linger in the active list
	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Active)
}

func TestQueue_PromoteDue(t *testing.T) {
	_, q := testQueue(t, 10)
	ctx := context.Background()

	readyAt := time.Now().Add(time.Minute).UnixMilli()
	require.NoError(t, q.Push(ctx, testJob("job-1", readyAt)))

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Delayed)
	assert.Equal(t, int64(0), stats.Waiting)

	promoted, err := q.PromoteDue(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, promoted)

	promoted, err = q.PromoteDue(ctx, time.Now().Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, promoted)

	stats, err = q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Delayed)
	assert.Equal(t, int64(1), stats.Waiting)
}

func TestQueue_PromoteDue_ConcurrentConsumers(t *testing.T) {
	_, q := testQueue(t, 10)
	ctx := context.Background()

	// Several consumers promote the same queue concurrently. Each due entry
	// must land in the waiting list exactly once, otherwise one attempt would
	// execute more than once.
	for i := 0; i < 20; i++ {
		require.NoError(t, q.Push(ctx, testJob("job-1", time.Now().Add(time.Minute).UnixMilli())))

		var wg sync.WaitGroup
		var total int64
		var mu sync.Mutex
		due := time.Now().Add(2 * time.Minute)
		for c := 0; c < 4; c++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				n, err := q.PromoteDue(ctx, due)
				assert.NoError(t, err)
				mu.Lock()
				total += int64(n)
				mu.Unlock()
			}()
		}
		wg.Wait()

		stats, err := q.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, int64(1), stats.Waiting)
		assert.Equal(t, int64(0), stats.Delayed)

		job, err := q.Claim(ctx, 50*time.Millisecond)
		require.NoError(t, err)
		require.NotNil(t, job)
		require.NoError(t, q.Complete(ctx, job))
	}
}

func TestQueue_Retry(t *testing.T) {
	ctx := context.Background()
	jobErr := errors.New("smtp connection refused")

	t.Run("retryable below max reschedules", func(t *testing.T) {
		_, q := testQueue(t, 10)
		require.NoError(t, q.Push(ctx, testJob("job-1", 0)))
		job, err := q.Claim(ctx, 50*time.Millisecond)
		require.NoError(t, err)
		job.Attempt = 1

		retried, err := q.Retry(ctx, job, jobErr, true)
		require.NoError(t, err)
		assert.True(t, retried)

		stats, err := q.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), stats.Active)
		assert.Equal(t, int64(1), stats.Delayed)
		assert.Equal(t, int64(0), stats.Failed)
	})

	t.Run("exhausted attempts park in failed", func(t *testing.T) {
		_, q := testQueue(t, 10)
		require.NoError(t, q.Push(ctx, testJob("job-1", 0)))
		job, err := q.Claim(ctx, 50*time.Millisecond)
		require.NoError(t, err)
		job.Attempt = job.MaxAttempts

		retried, err := q.Retry(ctx, job, jobErr, true)
		require.NoError(t, err)
		assert.False(t, retried)

		stats, err := q.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), stats.Active)
		assert.Equal(t, int64(0), stats.Delayed)
		assert.Equal(t, int64(1), stats.Failed)
	})

	t.Run("terminal error skips remaining attempts", func(t *testing.T) {
		_, q := testQueue(t, 10)
		require.NoError(t, q.Push(ctx, testJob("job-1", 0)))
		job, err := q.Claim(ctx, 50*time.Millisecond)
		require.NoError(t, err)
		job.Attempt = 1

		retried, err := q.Retry(ctx, job, jobErr, false)
		require.NoError(t, err)
		assert.False(t, retried)

		stats, err := q.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), stats.Delayed)
		assert.Equal(t, int64(1), stats.Failed)
	})
}

func TestQueue_PauseResume(t *testing.T) {
	_, q := testQueue(t, 10)
	ctx := context.Background()

	paused, err := q.IsPaused(ctx)
	require.NoError(t, err)
	assert.False(t, paused)

	require.NoError(t, q.Pause(ctx))
	paused, err = q.IsPaused(ctx)
	require.NoError(t, err)
	assert.True(t, paused)

	require.NoError(t, q.Resume(ctx))
	paused, err = q.IsPaused(ctx)
	require.NoError(t, err)
	assert.False(t, paused)
}

func TestQueue_Clear_SparesWaitingAndDelayed(t *testing.T) {
	_, q := testQueue(t, 10)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, testJob("job-done", 0)))
	done, err := q.Claim(ctx, 50*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, q.Complete(ctx, done))

	require.NoError(t, q.Push(ctx, testJob("job-stuck", 0)))
	_, err = q.Claim(ctx, 50*time.Millisecond)
	require.NoError(t, err)

	require.NoError(t, q.Push(ctx, testJob("job-waiting", 0)))
	require.NoError(t, q.Push(ctx, testJob("job-delayed", time.Now().Add(time.Hour).UnixMilli())))

	require.NoError(t, q.Clear(ctx))

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Completed)
	assert.Equal(t, int64(0), stats.Failed)
	assert.Equal(t, int64(0), stats.Active)
	assert.Equal(t, int64(1), stats.Waiting)
	assert.Equal(t, int64(1), stats.Delayed)
}

func TestQueue_CompletedRetention(t *testing.T) {
	_, q := testQueue(t, 3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Push(ctx, testJob("job", 0)))
		job, err := q.Claim(ctx, 50*time.Millisecond)
		require.NoError(t, err)
		require.NoError(t, q.Complete(ctx, job))
	}

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Completed)
}
