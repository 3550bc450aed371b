package ports

import (
	"context"

	"github.com/soryxie/code-contests/internal/domain/execution"
)

// PreparedSolution represents a compiled or otherwise ready-to-run solution.
//
// Run starts a fresh sandboxed process for every call; implementations must be
// safe for concurrent use.
type PreparedSolution interface {
	Run(ctx context.Context, stdin string) (*execution.Result, error)
	Close() error
}

// Runner prepares solutions written in various languages.
//
// A non-nil build result reports a compilation failure; the prepared solution is
// nil in that case. A non-nil error is a run-level failure.
type Runner interface {
	Prepare(ctx context.Context, solution execution.Solution, limits execution.RunLimits) (PreparedSolution, *execution.Result, error)
	Close() error
}
