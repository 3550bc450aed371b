package execution

import "time"

// TestCase describes a single stdin/stdout expectation pair for a solution.
type TestCase struct {
	Number         int
	Input          string
	ExpectedOutput string
}

// TestStatus is the terminal state of a single test case.
type TestStatus string

const (
	TestPassed   TestStatus = "passed"
	TestFailed   TestStatus = "failed"
	TestTimedOut TestStatus = "timed_out"
	TestSkipped  TestStatus = "skipped"
)

// FailureReason refines a failed outcome.
type FailureReason string

const (
	ReasonNone             FailureReason = ""
	ReasonWrongAnswer      FailureReason = "wrong_answer"
	ReasonRuntimeError     FailureReason = "runtime_error"
	ReasonMemoryLimit      FailureReason = "memory_limit"
	ReasonSandboxViolation FailureReason = "sandbox_violation"
	ReasonOutputLimit      FailureReason = "output_limit"
	ReasonInternalError    FailureReason = "internal_error"
)

// TestOutcome captures the result of executing a single TestCase.
//
// Skipped outcomes never ran, so Duration and the captured streams stay empty.
type TestOutcome struct {
	Case     TestCase
	Status   TestStatus
	Reason   FailureReason
	Stdout   string
	Stderr   string
	ExitCode int64
	Duration time.Duration
	Error    string
}

// Terminal reports whether the test ran to a verdict.
func (o TestOutcome) Terminal() bool {
	return o.Status == TestPassed || o.Status == TestFailed || o.Status == TestTimedOut
}

// Unsuccessful reports whether the outcome triggers stop-on-first-failure.
func (o TestOutcome) Unsuccessful() bool {
	return o.Status == TestFailed || o.Status == TestTimedOut
}

// SkippedOutcome returns the placeholder outcome for a test that never ran.
func SkippedOutcome(test TestCase) TestOutcome {
	return TestOutcome{Case: test, Status: TestSkipped}
}

// SkippedOutcomes marks every test as skipped, preserving order.
func SkippedOutcomes(tests []TestCase) []TestOutcome {
	outcomes := make([]TestOutcome, len(tests))
	for idx, test := range tests {
		outcomes[idx] = SkippedOutcome(test)
	}
	return outcomes
}
