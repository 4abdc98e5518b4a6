package notification

import (
	"context"

	"github.com/leano777/bidflow-personal-edition-sub003/internal/platform/observability"
	"github.com/leano777/bidflow-personal-edition-sub003/internal/pricing"
)

// NoOpPublisher logs refresh events instead of publishing them.
// Use this when SNS is not configured (local development, testing).
type NoOpPublisher struct {
	logger *observability.Logger
}

// NewNoOpPublisher creates a publisher that only logs refresh events.
func NewNoOpPublisher(logger *observability.Logger) *NoOpPublisher {
	return &NoOpPublisher{
		logger: logger,
	}
}

// NotifyRefresh logs the refresh event.
// Implements pricing.RefreshNotifier.
func (p *NoOpPublisher) NotifyRefresh(ctx context.Context, event pricing.RefreshEvent) error {
	if p.logger != nil {
		p.logger.LogInfo(ctx, "catalog refreshed (SNS disabled)",
			"event_id", event.ID,
			"source", event.Source,
			"csi_codes", event.CSICodes,
			"locations", event.Locations,
			"escalations", event.Escalations,
			"skipped_rows", event.SkippedRows,
			"duration_ms", event.Duration.Milliseconds(),
		)
	}
	return nil
}
