package execution

import (
	"strings"
	"time"
)

// CompilationStatus reports whether a solution produced a runnable artifact.
type CompilationStatus string

const (
	CompilationSuccess CompilationStatus = "success"
	CompilationFailure CompilationStatus = "failure"
)

// CompilationOutcome is the result of the build step that precedes every test.
type CompilationOutcome struct {
	Status     CompilationStatus
	Diagnostic string
	Duration   time.Duration
}

// Succeeded reports whether tests may run.
func (c CompilationOutcome) Succeeded() bool {
	return c.Status == CompilationSuccess
}

// CompilationSucceeded is the outcome for interpreted languages and successful builds.
func CompilationSucceeded() CompilationOutcome {
	return CompilationOutcome{Status: CompilationSuccess}
}

// CompilationFromBuild converts a failed build result reported by a runtime.
func CompilationFromBuild(build *Result) CompilationOutcome {
	if build == nil {
		return CompilationSucceeded()
	}

	diagnostic := strings.TrimSpace(build.Stderr)
	if diagnostic == "" {
		diagnostic = strings.TrimSpace(build.Stdout)
	}
	switch build.Status {
	case StatusTimeLimit:
		diagnostic = joinDiagnostic("compilation timed out", diagnostic)
	case StatusMemoryLimit:
		diagnostic = joinDiagnostic("compilation exceeded memory limit", diagnostic)
	}

	return CompilationOutcome{
		Status:     CompilationFailure,
		Diagnostic: diagnostic,
		Duration:   build.Duration,
	}
}

func joinDiagnostic(prefix, detail string) string {
	if detail == "" {
		return prefix
	}
	return prefix + ": " + detail
}
