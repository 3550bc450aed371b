package ports

import (
	"context"

	"github.com/soryxie/code-contests/internal/domain/execution"
)

// JobProducer supplies jobs to the executor service.
//
// NextJob returns io.EOF once the source is exhausted.
type JobProducer interface {
	NextJob(ctx context.Context) (execution.Job, error)
}
