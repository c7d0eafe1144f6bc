package out

import (
	"context"

	"support_worker/core/domain"
)

// =============================================================================
// RunReporter (MongoDB - audit log of processed emails)
// =============================================================================

// RunReporter records what the workflow did with each email.
type RunReporter interface {
	Record(ctx context.Context, outcome *domain.EmailOutcome) error
	SaveSummary(ctx context.Context, summary *domain.RunSummary) error
}
