package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/nhatro-erp/nhatro-erp/internal/jobs"
	"github.com/nhatro-erp/nhatro-erp/internal/tenancy"
)

// NewLeaseRefreshHandler builds the handler for the nightly lease
// status refresh.
func NewLeaseRefreshHandler(svc *tenancy.Service, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		tracker := metrics.Track("lease_refresh")
		changed, err := svc.RefreshLeaseStatuses(ctx)
		if err != nil {
			if logger != nil {
				logger.Error("lease status refresh", slog.Any("error", err))
			}
			return tracker.End(err)
		}
		metrics.AddLeaseStatusChanges(changed)
		if logger != nil {
			logger.Info("lease status refresh", slog.Int("changed", changed))
		}
		return tracker.End(nil)
	}
}
