package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/collabute-be/internal/domain"
	"github.com/cuongbtq/collabute-be/internal/jobs"
)

type stubProcessor struct {
	calls atomic.Int32
	err   error
}

func (p *stubProcessor) Queue() string { return jobs.QueueEmail }

func (p *stubProcessor) Process(ctx context.Context, job *jobs.Job) error {
	p.calls.Add(1)
	return p.err
}

func testConsumer(t *testing.T, proc *stubProcessor) (*jobs.Queue, *Consumer) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	queue := jobs.NewQueue(rdb, jobs.QueueEmail, 10, discardLogger())
	consumer := NewConsumer(queue, proc, discardLogger(), 10*time.Millisecond, 20*time.Millisecond, time.Second)
	return queue, consumer
}

func testConsumerJob(maxAttempts int) *jobs.Job {
	return &jobs.Job{
		ID:          "job-1",
		Queue:       jobs.QueueEmail,
		Name:        jobs.JobSendEmail,
		Payload:     []byte(`{}`),
		MaxAttempts: maxAttempts,
		Backoff:     jobs.BackoffPolicy{Type: jobs.BackoffFixed, DelayMS: 1},
		CreatedAt:   time.Now().UnixMilli(),
	}
}

func TestConsumer_CompletesJob(t *testing.T) {
	proc := &stubProcessor{}
	queue, consumer := testConsumer(t, proc)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, queue.Push(ctx, testConsumerJob(3)))
	go consumer.Run(ctx)

	require.Eventually(t, func() bool {
		stats, err := queue.Stats(context.Background())
		return err == nil && stats.Completed == 1
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, int32(1), proc.calls.Load())
}

func TestConsumer_RetriesUntilFailed(t *testing.T) {
	proc := &stubProcessor{err: errors.New("smtp connection refused")}
	queue, consumer := testConsumer(t, proc)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, queue.Push(ctx, testConsumerJob(2)))
	go consumer.Run(ctx)

	// Each attempt fails and backs off through the delayed set until the
	// attempt budget is spent, then the job parks in the failed list.
	require.Eventually(t, func() bool {
		stats, err := queue.Stats(context.Background())
		return err == nil && stats.Failed == 1
	}, 5*time.Second, 20*time.Millisecond)
	cancel()

	assert.Equal(t, int32(2), proc.calls.Load())
	stats, err := queue.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Waiting)
	assert.Equal(t, int64(0), stats.Delayed)
	assert.Equal(t, int64(0), stats.Active)
}

func TestConsumer_TerminalErrorFailsImmediately(t *testing.T) {
	proc := &stubProcessor{err: fmt.Errorf("%w: bad payload", domain.ErrValidation)}
	queue, consumer := testConsumer(t, proc)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, queue.Push(ctx, testConsumerJob(3)))
	go consumer.Run(ctx)

	require.Eventually(t, func() bool {
		stats, err := queue.Stats(context.Background())
		return err == nil && stats.Failed == 1
	}, 5*time.Second, 20*time.Millisecond)
	cancel()

	assert.Equal(t, int32(1), proc.calls.Load())
}

func TestConsumer_PauseBlocksDispatch(t *testing.T) {
	proc := &stubProcessor{}
	queue, consumer := testConsumer(t, proc)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, queue.Pause(ctx))
	require.NoError(t, queue.Push(ctx, testConsumerJob(3)))
	go consumer.Run(ctx)

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(0), proc.calls.Load())

	stats, err := queue.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Waiting)

	require.NoError(t, queue.Resume(ctx))
	require.Eventually(t, func() bool {
		stats, err := queue.Stats(context.Background())
		return err == nil && stats.Completed == 1
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, int32(1), proc.calls.Load())
}
