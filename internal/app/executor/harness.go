package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/soryxie/code-contests/internal/compare"
	"github.com/soryxie/code-contests/internal/domain/execution"
	"github.com/soryxie/code-contests/internal/ports"
)

// Observer receives progress notifications from the harness. Implementations must
// be safe for concurrent use.
type Observer interface {
	TestStarted()
	TestFinished(lang execution.Language, outcome execution.TestOutcome)
	RunFinished(lang execution.Language, result *execution.MultiTestResult, err error)
}

type nopObserver struct{}

func (nopObserver) TestStarted()                                                      {}
func (nopObserver) TestFinished(execution.Language, execution.TestOutcome)            {}
func (nopObserver) RunFinished(execution.Language, *execution.MultiTestResult, error) {}

// Harness compiles a solution once and runs it against an ordered list of tests.
type Harness struct {
	runtime     ports.Runner
	comparators *compare.Registry
	observer    Observer
	logger      *zap.Logger
}

// HarnessOption customises a Harness.
type HarnessOption func(*Harness)

// WithObserver installs an observer, typically a metrics recorder.
func WithObserver(o Observer) HarnessOption {
	return func(h *Harness) {
		if o != nil {
			h.observer = o
		}
	}
}

// WithLogger sets the logger used for run and test events.
func WithLogger(logger *zap.Logger) HarnessOption {
	return func(h *Harness) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithComparators replaces the comparator registry.
func WithComparators(r *compare.Registry) HarnessOption {
	return func(h *Harness) {
		if r != nil {
			h.comparators = r
		}
	}
}

// NewHarness constructs a Harness backed by runtime.
func NewHarness(runtime ports.Runner, opts ...HarnessOption) *Harness {
	h := &Harness{
		runtime:     runtime,
		comparators: compare.NewRegistry(),
		observer:    nopObserver{},
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Test runs solution against tests and returns one outcome per test, in order.
//
// Compilation failures are reported in the result. The returned error is set
// only for invalid options, infrastructure failures during preparation and
// cancellation of ctx.
func (h *Harness) Test(ctx context.Context, solution execution.Solution, tests []execution.TestCase, options execution.Options) (execution.MultiTestResult, error) {
	result, err := h.test(ctx, solution, tests, options)
	if err != nil {
		h.observer.RunFinished(solution.Language, nil, err)
		h.logger.Warn("run aborted",
			zap.String("solution_id", solution.ID),
			zap.String("language", string(solution.Language)),
			zap.Error(err),
		)
		return execution.MultiTestResult{}, err
	}

	h.observer.RunFinished(solution.Language, &result, nil)
	summary := result.Summary()
	h.logger.Info("run finished",
		zap.String("solution_id", solution.ID),
		zap.String("language", string(solution.Language)),
		zap.String("compilation", string(summary.Compilation)),
		zap.Int("total", summary.Total),
		zap.Int("passed", summary.Passed),
		zap.Int("failed", summary.Failed),
		zap.Int("timed_out", summary.TimedOut),
		zap.Int("skipped", summary.Skipped),
		zap.Duration("total_time", result.TotalTime()),
	)
	return result, nil
}

func (h *Harness) test(ctx context.Context, solution execution.Solution, tests []execution.TestCase, options execution.Options) (execution.MultiTestResult, error) {
	if err := options.Validate(); err != nil {
		return execution.MultiTestResult{}, err
	}
	comparator, err := h.comparators.Resolve(options.Comparator)
	if err != nil {
		return execution.MultiTestResult{}, fmt.Errorf("%w: %w", execution.ErrInvalidOptions, err)
	}

	start := time.Now()
	prepared, build, err := h.runtime.Prepare(ctx, solution, options.Limits())
	if err != nil {
		return execution.MultiTestResult{}, fmt.Errorf("prepare solution: %w", err)
	}
	if build != nil {
		if prepared != nil {
			_ = prepared.Close()
		}
		compilation := execution.CompilationFromBuild(build)
		h.logger.Debug("compilation failed",
			zap.String("solution_id", solution.ID),
			zap.String("diagnostic", compilation.Diagnostic),
		)
		return execution.Aggregate(compilation, execution.SkippedOutcomes(tests)), nil
	}
	if prepared == nil {
		return execution.MultiTestResult{}, errors.New("runner returned nil prepared solution without build result")
	}
	defer prepared.Close()

	compilation := execution.CompilationSucceeded()
	compilation.Duration = time.Since(start)

	outcomes, err := h.RunAll(ctx, prepared, solution.Language, comparator, tests, options)
	if err != nil {
		return execution.MultiTestResult{}, err
	}
	return execution.Aggregate(compilation, outcomes), nil
}

// RunAll dispatches every test to prepared under the scheduling policy in options.
// The returned slice is index-aligned with tests.
func (h *Harness) RunAll(
	ctx context.Context,
	prepared ports.PreparedSolution,
	lang execution.Language,
	comparator compare.Comparator,
	tests []execution.TestCase,
	options execution.Options,
) ([]execution.TestOutcome, error) {
	if err := options.Validate(); err != nil {
		return nil, err
	}
	s := newScheduler(prepared, lang, comparator, tests, options, h.observer, h.logger)
	return s.run(ctx)
}

// Close releases the underlying runtime.
func (h *Harness) Close() error {
	return h.runtime.Close()
}
