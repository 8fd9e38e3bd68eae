package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/busradar/internal/core/domain"
)

// ForecastRefreshWorkflowID is the fixed ID of the cron workflow, so only one
// schedule runs per namespace.
const ForecastRefreshWorkflowID = "busradar-forecast-refresh"

// RefreshResult summarises one refresh run.
type RefreshResult struct {
	Areas     int
	Published bool
	ValidTo   time.Time
}

// ForecastRefreshWorkflow fetches the forecast and publishes it. A forecast
// with no areas is not published, so subscribers keep the previous one.
func ForecastRefreshWorkflow(ctx workflow.Context) (RefreshResult, error) {
	logger := workflow.GetLogger(ctx)

	fetchCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: 5 * time.Second,
			MaximumAttempts: 3,
		},
	})
	publishCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 15 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 5,
		},
	})

	var snap domain.ForecastSnapshot
	if err := workflow.ExecuteActivity(fetchCtx, "FetchForecast").Get(ctx, &snap); err != nil {
		return RefreshResult{}, err
	}

	result := RefreshResult{Areas: len(snap.Areas), ValidTo: snap.ValidTo}
	if len(snap.Areas) == 0 {
		logger.Warn("forecast has no areas, skipping publish")
		return result, nil
	}

	if err := workflow.ExecuteActivity(publishCtx, "PublishForecast", &snap).Get(ctx, nil); err != nil {
		return result, err
	}

	result.Published = true
	logger.Info("forecast published", "areas", result.Areas)
	return result, nil
}
