package execution

import "time"

// Status classifies a raw program execution reported by a runtime.
type Status string

const (
	StatusOK          Status = "OK"
	StatusTimeLimit   Status = "TL"
	StatusMemoryLimit Status = "ML"
	StatusBuildFail   Status = "BF"
)

// Result captures the outcome of a single process execution inside the sandbox.
type Result struct {
	Status Status
	Stdout string
	Stderr string
	// OutputTruncated is set when the captured streams were cut at the capture limit.
	OutputTruncated bool
	ExitCode        int64
	Duration        time.Duration
}
