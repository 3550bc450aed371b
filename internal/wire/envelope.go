// Package wire defines the JSON envelopes exchanged with job submitters.
package wire

import (
	"errors"
	"fmt"
	"time"

	"github.com/soryxie/code-contests/internal/domain/execution"
)

// ErrInvalidJob is returned when a job envelope cannot describe a run.
var ErrInvalidJob = errors.New("invalid job")

// JobEnvelope is a solution submitted together with its tests.
type JobEnvelope struct {
	Type     string           `json:"type,omitempty"`
	ID       string           `json:"id,omitempty"`
	Language string           `json:"language"`
	Source   string           `json:"source"`
	Tests    []TestCase       `json:"tests"`
	Options  *OptionsEnvelope `json:"options,omitempty"`
}

// TestCase is one input/expected-output pair.
type TestCase struct {
	Number         int    `json:"number,omitempty"`
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
}

// OptionsEnvelope overrides the receiver's default options. Absent fields keep
// the defaults.
type OptionsEnvelope struct {
	PoolSize           *int   `json:"pool_size,omitempty"`
	StopOnFirstFailure *bool  `json:"stop_on_first_failure,omitempty"`
	TimeLimitMs        int64  `json:"time_limit_ms,omitempty"`
	MemoryLimitBytes   int64  `json:"memory_limit_bytes,omitempty"`
	Comparator         string `json:"comparator,omitempty"`
}

// ToJob validates the envelope and converts it into a Job. The job ID falls
// back to fallbackID when the envelope carries none.
func (e JobEnvelope) ToJob(defaults execution.Options, fallbackID string) (execution.Job, error) {
	if e.Source == "" {
		return execution.Job{}, fmt.Errorf("%w: missing source", ErrInvalidJob)
	}
	if e.Language == "" {
		return execution.Job{}, fmt.Errorf("%w: missing language", ErrInvalidJob)
	}
	lang, err := execution.ParseLanguage(e.Language)
	if err != nil {
		return execution.Job{}, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}

	options := e.Options.apply(defaults)
	if err := options.Validate(); err != nil {
		return execution.Job{}, fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}

	id := e.ID
	if id == "" {
		id = fallbackID
	}

	return execution.Job{
		ID: id,
		Solution: execution.Solution{
			ID:       id,
			Language: lang,
			Source:   e.Source,
		},
		Tests:   e.toTests(),
		Options: options,
	}, nil
}

func (o *OptionsEnvelope) apply(defaults execution.Options) execution.Options {
	options := defaults
	if o == nil {
		return options
	}
	if o.PoolSize != nil {
		options.PoolSize = *o.PoolSize
	}
	if o.StopOnFirstFailure != nil {
		options.StopOnFirstFailure = *o.StopOnFirstFailure
	}
	if o.TimeLimitMs != 0 {
		options.TimeLimit = time.Duration(o.TimeLimitMs) * time.Millisecond
	}
	if o.MemoryLimitBytes != 0 {
		options.MemoryLimitBytes = o.MemoryLimitBytes
	}
	if o.Comparator != "" {
		options.Comparator = o.Comparator
	}
	return options
}

func (e JobEnvelope) toTests() []execution.TestCase {
	tests := make([]execution.TestCase, len(e.Tests))
	for idx, test := range e.Tests {
		number := test.Number
		if number <= 0 {
			number = idx + 1
		}
		tests[idx] = execution.TestCase{
			Number:         number,
			Input:          test.Input,
			ExpectedOutput: test.ExpectedOutput,
		}
	}
	return tests
}

// ResultEnvelope is the published form of a RunReport. Durations are nanoseconds.
type ResultEnvelope struct {
	ID          string               `json:"id"`
	Language    execution.Language   `json:"language,omitempty"`
	Compilation *CompilationEnvelope `json:"compilation,omitempty"`
	Tests       []TestResult         `json:"tests,omitempty"`
	Summary     *execution.Summary   `json:"summary,omitempty"`
	Error       string               `json:"error,omitempty"`
	Timestamp   time.Time            `json:"timestamp"`
}

// CompilationEnvelope reports the build step.
type CompilationEnvelope struct {
	Status     execution.CompilationStatus `json:"status"`
	Diagnostic string                      `json:"diagnostic,omitempty"`
	DurationNs int64                       `json:"duration_ns"`
}

// TestResult reports one test outcome.
type TestResult struct {
	Number     int                     `json:"number"`
	Status     execution.TestStatus    `json:"status"`
	Reason     execution.FailureReason `json:"reason,omitempty"`
	ExitCode   int64                   `json:"exit_code"`
	DurationNs int64                   `json:"duration_ns"`
	Stdout     string                  `json:"stdout,omitempty"`
	Stderr     string                  `json:"stderr,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

// NewResultEnvelope flattens report for publication.
func NewResultEnvelope(report execution.RunReport, now time.Time) ResultEnvelope {
	envelope := ResultEnvelope{
		ID:        report.Job.ID,
		Language:  report.Job.Solution.Language,
		Timestamp: now.UTC(),
	}
	if report.Err != nil {
		envelope.Error = report.Err.Error()
	}
	if report.Result == nil {
		return envelope
	}

	result := report.Result
	envelope.Compilation = &CompilationEnvelope{
		Status:     result.Compilation.Status,
		Diagnostic: result.Compilation.Diagnostic,
		DurationNs: result.Compilation.Duration.Nanoseconds(),
	}
	envelope.Tests = make([]TestResult, len(result.Tests))
	for idx, test := range result.Tests {
		envelope.Tests[idx] = TestResult{
			Number:     test.Case.Number,
			Status:     test.Status,
			Reason:     test.Reason,
			ExitCode:   test.ExitCode,
			DurationNs: test.Duration.Nanoseconds(),
			Stdout:     test.Stdout,
			Stderr:     test.Stderr,
			Error:      test.Error,
		}
	}
	summary := result.Summary()
	envelope.Summary = &summary
	return envelope
}
