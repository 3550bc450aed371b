package executor

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soryxie/code-contests/internal/domain/execution"
	"github.com/soryxie/code-contests/internal/ports"
)

func TestExecuteFromProducerRespectsMaxParallel(t *testing.T) {
	t.Parallel()

	jobs := []execution.Job{
		newJob("j1"),
		newJob("j2"),
		newJob("j3"),
		newJob("j4"),
	}

	maxParallel := 2
	startCh := make(chan struct{}, len(jobs))
	releaseCh := make(chan struct{})
	tracker := &concurrencyTracker{}

	runner := &stubRunner{
		prepareFn: func(ctx context.Context, solution execution.Solution, limits execution.RunLimits) (ports.PreparedSolution, *execution.Result, error) {
			return &stubPreparedSolution{
				runFn: func(ctx context.Context, stdin string) (*execution.Result, error) {
					done := tracker.enter()
					select {
					case startCh <- struct{}{}:
					default:
					}
					select {
					case <-releaseCh:
					case <-ctx.Done():
						done()
						return nil, ctx.Err()
					}
					done()
					return &execution.Result{Status: execution.StatusOK, Stdout: "ok"}, nil
				},
			}, nil, nil
		},
	}

	producer := &sequenceJobProducer{jobs: jobs}
	service := NewService(NewHarness(runner), nil)
	defer func() {
		if err := service.Close(); err != nil {
			t.Fatalf("close service: %v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	var mu sync.Mutex
	var reports []execution.RunReport

	go func() {
		errCh <- service.ExecuteFromProducer(ctx, producer, 0, maxParallel, func(report execution.RunReport) {
			mu.Lock()
			reports = append(reports, report)
			mu.Unlock()
		})
	}()

	for range jobs {
		select {
		case <-startCh:
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for job to start")
		}
		releaseCh <- struct{}{}
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("ExecuteFromProducer error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("ExecuteFromProducer did not finish")
	}

	if tracker.maxActive > maxParallel {
		t.Fatalf("expected max %d concurrent runs, got %d", maxParallel, tracker.maxActive)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(reports) != len(jobs) {
		t.Fatalf("expected %d reports, got %d", len(jobs), len(reports))
	}
	for _, report := range reports {
		if report.Err != nil || report.Result == nil || !report.Result.AllPassed() {
			t.Fatalf("expected passing report, got %#v", report)
		}
	}
}

func TestExecuteFromProducerStopsAfterMaxJobs(t *testing.T) {
	t.Parallel()

	producer := &sequenceJobProducer{jobs: []execution.Job{newJob("a"), newJob("b"), newJob("c")}}
	service := NewService(NewHarness(preparedRunner(&stubPreparedSolution{
		runFn: func(ctx context.Context, stdin string) (*execution.Result, error) {
			return &execution.Result{Status: execution.StatusOK, Stdout: "ok"}, nil
		},
	})), nil)

	var count atomic.Int32
	err := service.ExecuteFromProducer(context.Background(), producer, 2, 1, func(execution.RunReport) {
		count.Add(1)
	})
	if err != nil {
		t.Fatalf("ExecuteFromProducer error: %v", err)
	}
	if got := count.Load(); got != 2 {
		t.Fatalf("expected 2 reports, got %d", got)
	}
}

func TestExecuteFromProducerProducerError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("producer failed")
	service := NewService(NewHarness(&stubRunner{
		prepareFn: func(ctx context.Context, solution execution.Solution, limits execution.RunLimits) (ports.PreparedSolution, *execution.Result, error) {
			t.Fatalf("unexpected prepare call")
			return nil, nil, nil
		},
	}), nil)
	defer func() {
		if err := service.Close(); err != nil {
			t.Fatalf("close service: %v", err)
		}
	}()

	err := service.ExecuteFromProducer(context.Background(), errorJobProducer{err: wantErr}, 0, 1, nil)
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected error wrapping %v, got %v", wantErr, err)
	}
}

func TestExecutePrepareError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("prepare failed")
	service := NewService(NewHarness(&stubRunner{
		prepareFn: func(ctx context.Context, solution execution.Solution, limits execution.RunLimits) (ports.PreparedSolution, *execution.Result, error) {
			return nil, nil, wantErr
		},
	}), nil)

	report := service.Execute(context.Background(), newJob("j1"))
	if !errors.Is(report.Err, wantErr) {
		t.Fatalf("expected report err %v, got %v", wantErr, report.Err)
	}
	if report.Result != nil {
		t.Fatalf("expected no result, got %#v", report.Result)
	}
}

func TestExecuteBuildFailure(t *testing.T) {
	t.Parallel()

	service := NewService(NewHarness(&stubRunner{
		prepareFn: func(ctx context.Context, solution execution.Solution, limits execution.RunLimits) (ports.PreparedSolution, *execution.Result, error) {
			return nil, &execution.Result{Status: execution.StatusBuildFail, Stderr: "syntax error"}, nil
		},
	}), nil)

	report := service.Execute(context.Background(), newJob("build"))
	if report.Err != nil {
		t.Fatalf("expected no error, got %v", report.Err)
	}
	if report.Result == nil || report.Result.Compilation.Succeeded() {
		t.Fatalf("expected compilation failure, got %#v", report.Result)
	}
	if report.Result.Tests[0].Status != execution.TestSkipped {
		t.Fatalf("expected skipped test, got %q", report.Result.Tests[0].Status)
	}
}

func TestServiceCloseClosesRuntime(t *testing.T) {
	t.Parallel()

	var closed atomic.Bool
	service := NewService(NewHarness(&stubRunner{closeFn: func() error {
		closed.Store(true)
		return nil
	}}), nil)

	if err := service.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if !closed.Load() {
		t.Fatalf("expected runtime to be closed")
	}
}

func newJob(id string) execution.Job {
	return execution.Job{
		ID:       id,
		Solution: execution.Solution{ID: id, Language: execution.LanguagePython3},
		Tests:    []execution.TestCase{{Number: 1, ExpectedOutput: "ok\n"}},
		Options:  execution.DefaultOptions(),
	}
}

type concurrencyTracker struct {
	mu        sync.Mutex
	active    int
	maxActive int
}

func (c *concurrencyTracker) enter() func() {
	c.mu.Lock()
	c.active++
	if c.active > c.maxActive {
		c.maxActive = c.active
	}
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		c.active--
		c.mu.Unlock()
	}
}

type stubRunner struct {
	prepareFn func(ctx context.Context, solution execution.Solution, limits execution.RunLimits) (ports.PreparedSolution, *execution.Result, error)
	closeFn   func() error
}

func (s *stubRunner) Prepare(ctx context.Context, solution execution.Solution, limits execution.RunLimits) (ports.PreparedSolution, *execution.Result, error) {
	if s.prepareFn != nil {
		return s.prepareFn(ctx, solution, limits)
	}
	return nil, nil, nil
}

func (s *stubRunner) Close() error {
	if s.closeFn != nil {
		return s.closeFn()
	}
	return nil
}

type stubPreparedSolution struct {
	runFn  func(ctx context.Context, stdin string) (*execution.Result, error)
	calls  atomic.Int64
	closed atomic.Bool
}

func (s *stubPreparedSolution) Run(ctx context.Context, stdin string) (*execution.Result, error) {
	s.calls.Add(1)
	if s.runFn != nil {
		return s.runFn(ctx, stdin)
	}
	return nil, errors.New("unexpected run invocation")
}

func (s *stubPreparedSolution) Close() error {
	s.closed.Store(true)
	return nil
}

type sequenceJobProducer struct {
	jobs  []execution.Job
	index int
	mu    sync.Mutex
}

func (p *sequenceJobProducer) NextJob(ctx context.Context) (execution.Job, error) {
	select {
	case <-ctx.Done():
		return execution.Job{}, ctx.Err()
	default:
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.index >= len(p.jobs) {
		return execution.Job{}, io.EOF
	}

	job := p.jobs[p.index]
	p.index++
	return job, nil
}

type errorJobProducer struct {
	err error
}

func (p errorJobProducer) NextJob(ctx context.Context) (execution.Job, error) {
	return execution.Job{}, p.err
}
