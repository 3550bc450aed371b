package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/soryxie/code-contests/internal/domain/execution"
	"github.com/soryxie/code-contests/internal/ports"
)

// Service feeds jobs from a producer through the harness.
type Service struct {
	harness *Harness
	logger  *zap.Logger
}

// NewService constructs a Service around harness.
func NewService(harness *Harness, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{harness: harness, logger: logger}
}

// ExecuteFromProducer pulls jobs from the supplied producer and runs them with bounded parallelism.
//
// If maxJobs is greater than zero the execution stops after the specified
// number of jobs has been processed. Otherwise it keeps consuming until the
// context is cancelled or the producer signals completion via io.EOF.
//
// When onReport is provided it is invoked after every job with the
// corresponding run report.
func (s *Service) ExecuteFromProducer(
	ctx context.Context,
	producer ports.JobProducer,
	maxJobs int,
	maxParallel int,
	onReport func(execution.RunReport),
) error {
	if maxParallel <= 0 {
		maxParallel = 1
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxParallel)
	processed := 0

	finish := func(err error) error {
		wg.Wait()
		return err
	}

	for {
		if maxJobs > 0 && processed >= maxJobs {
			return finish(nil)
		}

		job, err := producer.NextJob(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) {
				return finish(nil)
			}

			return finish(fmt.Errorf("get next job: %w", err))
		}

		sem <- struct{}{}
		wg.Add(1)
		processed++
		go func(job execution.Job) {
			defer wg.Done()
			defer func() { <-sem }()

			report := s.Execute(ctx, job)
			if onReport != nil {
				onReport(report)
			}
		}(job)
	}
}

// Execute runs a single job to completion.
func (s *Service) Execute(ctx context.Context, job execution.Job) execution.RunReport {
	s.logger.Debug("executing job",
		zap.String("job_id", job.ID),
		zap.String("language", string(job.Solution.Language)),
		zap.Int("tests", len(job.Tests)),
	)

	result, err := s.harness.Test(ctx, job.Solution, job.Tests, job.Options)
	if err != nil {
		return execution.RunReport{Job: job, Err: err}
	}
	return execution.RunReport{Job: job, Result: &result}
}

// Close releases any resources owned by the underlying runtime.
func (s *Service) Close() error {
	return s.harness.Close()
}
