package ports

import (
	"context"

	"github.com/soryxie/code-contests/internal/domain/execution"
)

// RunReportPublisher publishes run reports to an external system.
type RunReportPublisher interface {
	PublishRunReport(ctx context.Context, report execution.RunReport) error
	Close() error
}

// RunReportStore persists run reports for later inspection.
type RunReportStore interface {
	SaveRunReport(ctx context.Context, report execution.RunReport) error
	Close() error
}
