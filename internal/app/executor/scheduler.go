package executor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/soryxie/code-contests/internal/compare"
	"github.com/soryxie/code-contests/internal/domain/execution"
	"github.com/soryxie/code-contests/internal/ports"
)

// sigsysExitCode is the exit status of a process killed by a seccomp filter.
const sigsysExitCode = 128 + 31

var sandboxDiagnostics = []string{
	"read-only file system",
	"network is unreachable",
}

// scheduler runs the tests of one solution on a bounded pool of workers.
//
// Workers claim indices in submission order. Under stop-on-first-failure the
// lowest failing index is tracked in firstFail; higher indices are not started,
// in-flight ones are cancelled, and after the pool drains every index above it is
// forced to skipped so the result does not depend on the pool size.
type scheduler struct {
	prepared   ports.PreparedSolution
	lang       execution.Language
	comparator compare.Comparator
	tests      []execution.TestCase
	options    execution.Options
	observer   Observer
	logger     *zap.Logger

	next      atomic.Int64
	firstFail atomic.Int64
	outcomes  []execution.TestOutcome

	mu       sync.Mutex
	inFlight map[int]context.CancelFunc
}

func newScheduler(
	prepared ports.PreparedSolution,
	lang execution.Language,
	comparator compare.Comparator,
	tests []execution.TestCase,
	options execution.Options,
	observer Observer,
	logger *zap.Logger,
) *scheduler {
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &scheduler{
		prepared:   prepared,
		lang:       lang,
		comparator: comparator,
		tests:      tests,
		options:    options,
		observer:   observer,
		logger:     logger,
		outcomes:   make([]execution.TestOutcome, len(tests)),
		inFlight:   make(map[int]context.CancelFunc),
	}
	s.firstFail.Store(int64(len(tests)))
	return s
}

func (s *scheduler) run(ctx context.Context) ([]execution.TestOutcome, error) {
	n := len(s.tests)
	if n == 0 {
		return s.outcomes, nil
	}

	workers := s.options.PoolSize
	if workers > n {
		workers = n
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			s.work(ctx)
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run tests: %w", err)
	}

	if s.options.StopOnFirstFailure {
		k := int(s.firstFail.Load())
		for idx := k + 1; idx < n; idx++ {
			s.outcomes[idx] = execution.SkippedOutcome(s.tests[idx])
		}
		if k < n {
			s.logger.Debug("stopped on first failure",
				zap.Int("test_index", k),
				zap.Int("skipped", n-k-1),
			)
		}
	}
	return s.outcomes, nil
}

func (s *scheduler) work(ctx context.Context) {
	n := int64(len(s.tests))
	for ctx.Err() == nil {
		idx := s.next.Add(1) - 1
		if idx >= n {
			return
		}
		if s.stopped(idx) {
			s.outcomes[idx] = execution.SkippedOutcome(s.tests[idx])
			continue
		}
		s.outcomes[idx] = s.execute(ctx, int(idx))
	}
}

func (s *scheduler) stopped(idx int64) bool {
	return s.options.StopOnFirstFailure && idx > s.firstFail.Load()
}

func (s *scheduler) execute(ctx context.Context, idx int) execution.TestOutcome {
	test := s.tests[idx]

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.track(idx, cancel)
	defer s.untrack(idx)
	// A failure may have been recorded between claiming idx and tracking it.
	if s.stopped(int64(idx)) {
		return execution.SkippedOutcome(test)
	}

	s.observer.TestStarted()
	result, err := s.prepared.Run(runCtx, test.Input)

	var outcome execution.TestOutcome
	if runCtx.Err() != nil && ctx.Err() == nil {
		outcome = execution.SkippedOutcome(test)
	} else {
		outcome = classify(test, result, err, s.comparator)
	}
	s.observer.TestFinished(s.lang, outcome)

	s.logger.Debug("test finished",
		zap.Int("test_index", idx),
		zap.Int("test_number", test.Number),
		zap.String("status", string(outcome.Status)),
		zap.String("reason", string(outcome.Reason)),
		zap.Duration("duration", outcome.Duration),
	)

	if s.options.StopOnFirstFailure && outcome.Unsuccessful() {
		s.recordFailure(idx)
	}
	return outcome
}

// recordFailure lowers firstFail to idx and cancels in-flight tests above it.
func (s *scheduler) recordFailure(idx int) {
	for {
		current := s.firstFail.Load()
		if int64(idx) >= current {
			return
		}
		if s.firstFail.CompareAndSwap(current, int64(idx)) {
			break
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for other, cancel := range s.inFlight {
		if other > idx {
			cancel()
		}
	}
}

func (s *scheduler) track(idx int, cancel context.CancelFunc) {
	s.mu.Lock()
	s.inFlight[idx] = cancel
	s.mu.Unlock()
}

func (s *scheduler) untrack(idx int) {
	s.mu.Lock()
	delete(s.inFlight, idx)
	s.mu.Unlock()
}

// classify turns a raw run into a test verdict.
func classify(test execution.TestCase, result *execution.Result, err error, comparator compare.Comparator) execution.TestOutcome {
	outcome := execution.TestOutcome{Case: test}
	if result != nil {
		outcome.Stdout = result.Stdout
		outcome.Stderr = result.Stderr
		outcome.ExitCode = result.ExitCode
		outcome.Duration = result.Duration
	}

	if err != nil {
		outcome.Status = execution.TestFailed
		outcome.Reason = execution.ReasonInternalError
		outcome.Error = err.Error()
		return outcome
	}
	if result == nil {
		outcome.Status = execution.TestFailed
		outcome.Reason = execution.ReasonInternalError
		outcome.Error = "runner returned no result"
		return outcome
	}

	switch result.Status {
	case execution.StatusTimeLimit:
		outcome.Status = execution.TestTimedOut
	case execution.StatusMemoryLimit:
		outcome.Status = execution.TestFailed
		outcome.Reason = execution.ReasonMemoryLimit
	case execution.StatusOK, "":
		switch {
		case sandboxViolation(result):
			outcome.Status = execution.TestFailed
			outcome.Reason = execution.ReasonSandboxViolation
		case result.OutputTruncated:
			outcome.Status = execution.TestFailed
			outcome.Reason = execution.ReasonOutputLimit
		case result.ExitCode != 0:
			outcome.Status = execution.TestFailed
			outcome.Reason = execution.ReasonRuntimeError
		case comparator.Compare(result.Stdout, test.ExpectedOutput):
			outcome.Status = execution.TestPassed
		default:
			outcome.Status = execution.TestFailed
			outcome.Reason = execution.ReasonWrongAnswer
		}
	default:
		outcome.Status = execution.TestFailed
		outcome.Reason = execution.ReasonInternalError
		outcome.Error = fmt.Sprintf("unexpected run status %q", result.Status)
	}
	return outcome
}

func sandboxViolation(result *execution.Result) bool {
	if result.ExitCode == sigsysExitCode {
		return true
	}
	if result.ExitCode == 0 {
		return false
	}
	stderr := strings.ToLower(result.Stderr)
	for _, marker := range sandboxDiagnostics {
		if strings.Contains(stderr, marker) {
			return true
		}
	}
	return false
}
