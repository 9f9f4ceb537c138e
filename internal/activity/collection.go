package activity

import (
	"context"
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"

	"github.com/edvin/metering/internal/core"
)

// ErrTypeSweepRunning marks a sweep refused because another one holds the
// lock. Retrying it is pointless.
const ErrTypeSweepRunning = "SWEEP_RUNNING"

// Sweeper runs a usage collection sweep.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (*core.SweepResult, error)
}

// Collection contains the usage collection activities.
type Collection struct {
	sweeper Sweeper
}

func NewCollection(sweeper Sweeper) *Collection {
	return &Collection{sweeper: sweeper}
}

// CollectUsageParams holds the parameters for CollectUsage.
type CollectUsageParams struct {
	// Now is the sweep time; the sweep collects up to the start of its hour.
	Now time.Time `json:"now"`
}

// CollectUsage runs one sweep over every tenant and returns its summary.
// The per-window results stay in the sweep logs.
func (a *Collection) CollectUsage(ctx context.Context, params CollectUsageParams) (*core.SweepSummary, error) {
	result, err := a.sweeper.Sweep(ctx, params.Now)
	if err != nil {
		if errors.Is(err, core.ErrSweepRunning) {
			return nil, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeSweepRunning, err)
		}
		return nil, err
	}
	summary := result.Summary()
	return &summary, nil
}
