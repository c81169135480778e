package worker

import (
	"context"

	"github.com/cuongbtq/collabute-be/internal/jobs"
)

// Processor executes one job's side effect per attempt. Processors are
// stateless: retry and backoff are owned entirely by the queue, so a
// processor reports failure by returning the error and never loops itself.
type Processor interface {
	Queue() string
	Process(ctx context.Context, job *jobs.Job) error
}
