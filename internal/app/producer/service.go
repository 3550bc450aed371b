package producer

import (
	"context"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/soryxie/code-contests/internal/domain/execution"
	"github.com/soryxie/code-contests/internal/infra/dataset"
	"github.com/soryxie/code-contests/internal/ports"
)

// Service implements ports.JobProducer over an in-memory job catalogue.
type Service struct {
	mu    sync.Mutex
	jobs  []execution.Job
	index int
}

var _ ports.JobProducer = (*Service)(nil)

// NewService builds a producer serving jobs in order.
func NewService(jobs ...execution.Job) *Service {
	s := &Service{}
	for _, job := range jobs {
		s.AddJob(job)
	}
	return s
}

// FromProblem builds one job per solution of problem written in lang. Every job
// shares the problem's first maxTests tests.
func FromProblem(problem dataset.Problem, lang execution.Language, maxTests int, options execution.Options) *Service {
	tests := problem.TestCases(maxTests)
	solutions := problem.FilterSolutions(lang)

	s := &Service{jobs: make([]execution.Job, 0, len(solutions))}
	for _, solution := range solutions {
		s.AddJob(execution.Job{
			ID:       solution.ID,
			Solution: solution,
			Tests:    tests,
			Options:  options,
		})
	}
	return s
}

// NextJob returns the next queued job, or io.EOF once the catalogue is drained.
func (s *Service) NextJob(ctx context.Context) (execution.Job, error) {
	select {
	case <-ctx.Done():
		return execution.Job{}, ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index >= len(s.jobs) {
		return execution.Job{}, io.EOF
	}

	job := s.jobs[s.index]
	s.index++

	return job, nil
}

// AddJob allows extending the producer catalogue at runtime.
func (s *Service) AddJob(job execution.Job) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Solution.ID == "" {
		job.Solution.ID = job.ID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs = append(s.jobs, job)
}

// Len reports how many jobs were queued in total.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}
