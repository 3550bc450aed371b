package execution

import "time"

// MultiTestResult is the ordered record of a full test-suite run against one solution.
//
// Tests is index-aligned with the submitted test cases and always has the same length.
type MultiTestResult struct {
	Compilation CompilationOutcome
	Tests       []TestOutcome
}

// Aggregate assembles the final result of a run.
func Aggregate(compilation CompilationOutcome, outcomes []TestOutcome) MultiTestResult {
	tests := make([]TestOutcome, len(outcomes))
	copy(tests, outcomes)
	return MultiTestResult{
		Compilation: compilation,
		Tests:       tests,
	}
}

// PassedCount returns the number of passed tests.
func (r MultiTestResult) PassedCount() int {
	passed := 0
	for _, test := range r.Tests {
		if test.Status == TestPassed {
			passed++
		}
	}
	return passed
}

// AllPassed reports whether compilation succeeded and every test passed.
func (r MultiTestResult) AllPassed() bool {
	if !r.Compilation.Succeeded() || len(r.Tests) == 0 {
		return false
	}
	return r.PassedCount() == len(r.Tests)
}

// TotalTime sums the durations of passed tests, gated on correctness: any failed or
// timed out test zeroes the total for the run.
func (r MultiTestResult) TotalTime() time.Duration {
	var total time.Duration
	for _, test := range r.Tests {
		switch test.Status {
		case TestFailed, TestTimedOut:
			return 0
		case TestPassed:
			total += test.Duration
		}
	}
	return total
}

// Summary is the flattened view consumed by reporting collaborators.
// Durations are nanoseconds.
type Summary struct {
	Compilation   CompilationStatus `json:"compilation"`
	Total         int               `json:"total"`
	Passed        int               `json:"passed"`
	Failed        int               `json:"failed"`
	TimedOut      int               `json:"timed_out"`
	Skipped       int               `json:"skipped"`
	TotalTimeNano int64             `json:"total_time_ns"`
}

// Summary derives the counters reported alongside the result.
func (r MultiTestResult) Summary() Summary {
	summary := Summary{
		Compilation:   r.Compilation.Status,
		Total:         len(r.Tests),
		TotalTimeNano: r.TotalTime().Nanoseconds(),
	}
	for _, test := range r.Tests {
		switch test.Status {
		case TestPassed:
			summary.Passed++
		case TestFailed:
			summary.Failed++
		case TestTimedOut:
			summary.TimedOut++
		case TestSkipped:
			summary.Skipped++
		}
	}
	return summary
}
