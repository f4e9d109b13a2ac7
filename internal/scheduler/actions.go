package scheduler

import (
	"context"
	"fmt"

	"github.com/opentalon/leadgate/internal/analysis"
	"github.com/opentalon/leadgate/internal/store"
)

const (
	ActionReanalyzePending = "reanalyze_pending"

	defaultReanalyzeLimit = 20
)

// PendingSource lists leads with no successful analysis.
type PendingSource interface {
	PendingAnalysis(ctx context.Context, limit int) ([]store.LeadRecord, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, lead analysis.Lead, leadID int64) analysis.Outcome
}

// ReanalyzePending re-runs analysis for up to job.Limit pending leads, oldest first.
func ReanalyzePending(leads PendingSource, an Analyzer) Action {
	return func(ctx context.Context, job Job) (string, error) {
		limit := job.Limit
		if limit <= 0 {
			limit = defaultReanalyzeLimit
		}
		pending, err := leads.PendingAnalysis(ctx, limit)
		if err != nil {
			return "", fmt.Errorf("list pending leads: %w", err)
		}
		ok := 0
		for _, rec := range pending {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if an.Analyze(ctx, rec.Lead(), rec.ID).Success {
				ok++
			}
		}
		return fmt.Sprintf("reanalyzed %d leads, %d succeeded", len(pending), ok), nil
	}
}
