package workflow

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/edvin/metering/internal/activity"
	"github.com/edvin/metering/internal/config"
	"github.com/edvin/metering/internal/core"
)

// CollectUsageWorkflow runs on a cron schedule and performs one usage
// collection sweep. A sweep already running elsewhere is not a failure.
func CollectUsageWorkflow(ctx workflow.Context) (*core.SweepSummary, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: config.SweepTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        30 * time.Second,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{activity.ErrTypeSweepRunning},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	logger := workflow.GetLogger(ctx)

	var result core.SweepSummary
	err := workflow.ExecuteActivity(ctx, "CollectUsage", activity.CollectUsageParams{
		Now: workflow.Now(ctx),
	}).Get(ctx, &result)
	if err != nil {
		var appErr *temporal.ApplicationError
		if errors.As(err, &appErr) && appErr.Type() == activity.ErrTypeSweepRunning {
			logger.Info("usage sweep already running, skipping")
			return &core.SweepSummary{}, nil
		}
		return nil, err
	}

	if result.Errors > 0 {
		logger.Warn("usage sweep finished with tenant errors",
			"errors", result.Errors, "failed_tenants", result.FailedTenants)
	}
	return &result, nil
}
