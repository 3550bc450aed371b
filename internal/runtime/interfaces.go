package runtime

import (
	"context"

	"github.com/soryxie/code-contests/internal/domain/execution"
	"github.com/soryxie/code-contests/internal/ports"
)

// Engine prepares solutions by delegating to language-specific modules.
type Engine interface {
	ports.Runner
	Languages() []execution.Language
}

// Module provides runtime support for a specific language.
type Module interface {
	Language() execution.Language
	Prepare(ctx context.Context, solution execution.Solution, limits execution.RunLimits) (ports.PreparedSolution, *execution.Result, error)
	Close() error
}
