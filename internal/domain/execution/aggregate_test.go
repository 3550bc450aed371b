package execution

import (
	"errors"
	"testing"
	"time"
)

func TestTotalTimeSumsPassedDurations(t *testing.T) {
	t.Parallel()

	result := Aggregate(CompilationSucceeded(), []TestOutcome{
		{Status: TestPassed, Duration: 10 * time.Millisecond},
		{Status: TestPassed, Duration: 20 * time.Millisecond},
		{Status: TestPassed, Duration: 30 * time.Millisecond},
	})

	if got := result.TotalTime(); got != 60*time.Millisecond {
		t.Fatalf("expected total 60ms, got %v", got)
	}
	if got := result.PassedCount(); got != 3 {
		t.Fatalf("expected 3 passed, got %d", got)
	}
	if !result.AllPassed() {
		t.Fatalf("expected AllPassed")
	}
}

func TestTotalTimeZeroedByFailure(t *testing.T) {
	t.Parallel()

	cases := map[string]TestStatus{
		"failed":    TestFailed,
		"timed out": TestTimedOut,
	}
	for name, status := range cases {
		status := status
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			result := Aggregate(CompilationSucceeded(), []TestOutcome{
				{Status: TestPassed, Duration: 10 * time.Millisecond},
				{Status: status, Duration: 20 * time.Millisecond},
				{Status: TestSkipped},
			})
			if got := result.TotalTime(); got != 0 {
				t.Fatalf("expected zero total time, got %v", got)
			}
			if result.AllPassed() {
				t.Fatalf("expected AllPassed to be false")
			}
		})
	}
}

func TestCompilationFailureSummary(t *testing.T) {
	t.Parallel()

	tests := []TestCase{{Number: 1}, {Number: 2}, {Number: 3}}
	result := Aggregate(CompilationFromBuild(&Result{Status: StatusBuildFail, Stderr: "syntax error\n"}), SkippedOutcomes(tests))

	if result.Compilation.Status != CompilationFailure {
		t.Fatalf("expected compilation failure, got %q", result.Compilation.Status)
	}
	if result.Compilation.Diagnostic != "syntax error" {
		t.Fatalf("unexpected diagnostic %q", result.Compilation.Diagnostic)
	}

	summary := result.Summary()
	if summary.Total != 3 || summary.Skipped != 3 {
		t.Fatalf("expected 3 skipped of 3, got %+v", summary)
	}
	if summary.TotalTimeNano != 0 {
		t.Fatalf("expected zero total time, got %d", summary.TotalTimeNano)
	}
	for idx, test := range result.Tests {
		if test.Case.Number != idx+1 {
			t.Fatalf("expected order to be preserved at %d, got %d", idx, test.Case.Number)
		}
	}
}

func TestCompilationFromBuildTimeout(t *testing.T) {
	t.Parallel()

	outcome := CompilationFromBuild(&Result{Status: StatusTimeLimit})
	if outcome.Succeeded() {
		t.Fatalf("expected failure")
	}
	if outcome.Diagnostic != "compilation timed out" {
		t.Fatalf("unexpected diagnostic %q", outcome.Diagnostic)
	}
}

func TestAggregateCopiesOutcomes(t *testing.T) {
	t.Parallel()

	outcomes := []TestOutcome{{Status: TestPassed}}
	result := Aggregate(CompilationSucceeded(), outcomes)
	outcomes[0].Status = TestFailed

	if result.Tests[0].Status != TestPassed {
		t.Fatalf("expected result to own its outcomes")
	}
}

func TestOptionsValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		options Options
		wantErr bool
	}{
		{name: "defaults", options: DefaultOptions()},
		{name: "zero pool", options: Options{PoolSize: 0}, wantErr: true},
		{name: "negative pool", options: Options{PoolSize: -3}, wantErr: true},
		{name: "negative time limit", options: Options{PoolSize: 1, TimeLimit: -time.Second}, wantErr: true},
		{name: "negative memory", options: Options{PoolSize: 1, MemoryLimitBytes: -1}, wantErr: true},
		{name: "with limits", options: Options{PoolSize: 2, TimeLimit: time.Second, MemoryLimitBytes: 1 << 20}},
	}

	for _, tc := range cases {
		err := tc.options.Validate()
		if tc.wantErr && !errors.Is(err, ErrInvalidOptions) {
			t.Fatalf("%s: expected ErrInvalidOptions, got %v", tc.name, err)
		}
		if !tc.wantErr && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
	}
}

func TestParseLanguage(t *testing.T) {
	t.Parallel()

	cases := map[string]Language{
		"python":  LanguagePython3,
		"Python3": LanguagePython3,
		"py2":     LanguagePython2,
		"C++":     LanguageCPP,
		" java ":  LanguageJava,
		"golang":  LanguageGo,
	}
	for input, want := range cases {
		got, err := ParseLanguage(input)
		if err != nil {
			t.Fatalf("ParseLanguage(%q) returned error: %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseLanguage(%q) = %q, want %q", input, got, want)
		}
	}

	if _, err := ParseLanguage("cobol"); err == nil {
		t.Fatalf("expected error for unknown language")
	}
}

func TestRunLimitsOver(t *testing.T) {
	t.Parallel()

	defaults := RunLimits{TimeLimit: 10 * time.Second, MemoryLimitBytes: 256 << 20}

	got := RunLimits{TimeLimit: time.Second, MemoryLimitBytes: -1}.Over(defaults)
	if got.TimeLimit != time.Second || got.MemoryLimitBytes != defaults.MemoryLimitBytes {
		t.Fatalf("unexpected limits %+v", got)
	}
	if got := (RunLimits{}).Over(defaults); got != defaults {
		t.Fatalf("zero limits should keep defaults, got %+v", got)
	}
}
