package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/temporal"
)

// ActivityLogInterceptor logs every activity execution with zerolog and
// gives untyped activity errors the activity name as their type, so
// failures are told apart in the Temporal UI.
type ActivityLogInterceptor struct {
	interceptor.WorkerInterceptorBase
	logger zerolog.Logger
}

func NewActivityLogInterceptor(logger zerolog.Logger) *ActivityLogInterceptor {
	return &ActivityLogInterceptor{logger: logger.With().Str("component", "activity").Logger()}
}

func (i *ActivityLogInterceptor) InterceptActivity(
	ctx context.Context,
	next interceptor.ActivityInboundInterceptor,
) interceptor.ActivityInboundInterceptor {
	return &activityLogInbound{next: next, logger: i.logger}
}

type activityLogInbound struct {
	interceptor.ActivityInboundInterceptorBase
	next   interceptor.ActivityInboundInterceptor
	logger zerolog.Logger
}

func (a *activityLogInbound) Init(outbound interceptor.ActivityOutboundInterceptor) error {
	return a.next.Init(outbound)
}

func (a *activityLogInbound) ExecuteActivity(
	ctx context.Context,
	in *interceptor.ExecuteActivityInput,
) (interface{}, error) {
	info := activity.GetInfo(ctx)
	name := info.ActivityType.Name
	start := time.Now()

	result, err := a.next.ExecuteActivity(ctx, in)

	ev := a.logger.Info()
	if err != nil {
		ev = a.logger.Error().Err(err)
	}
	ev.Str("activity", name).
		Str("workflow_id", info.WorkflowExecution.ID).
		Int32("attempt", info.Attempt).
		Dur("duration", time.Since(start)).
		Msg("activity finished")

	if err == nil {
		return result, nil
	}
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.Type() != "" {
		return result, err
	}
	return result, temporal.NewApplicationError(err.Error(), name, err)
}
