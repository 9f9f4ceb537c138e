package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/metering/internal/api/response"
	"github.com/edvin/metering/internal/core"
	"github.com/edvin/metering/internal/model"
)

// Collector runs usage sweeps.
type Collector interface {
	Sweep(ctx context.Context, now time.Time) (*core.SweepResult, error)
	LastCollected(ctx context.Context) (time.Time, error)
}

// UsageReader reads raw aggregated usage.
type UsageReader interface {
	Usage(ctx context.Context, tenantID string, start, end time.Time) (*model.Statement, error)
}

// SalesOrders generates and re-derives sales orders.
type SalesOrders interface {
	Generate(ctx context.Context, tenantID string, end time.Time, draft bool) (*model.Statement, error)
	Regenerate(ctx context.Context, tenantID string, target time.Time) (*model.Statement, error)
	RegenerateRange(ctx context.Context, tenantID string, start, end time.Time) ([]*model.Statement, error)
}

// writeServiceError maps core errors onto status codes.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *core.ValidationError
	var uerr *core.UpstreamError
	switch {
	case errors.As(err, &verr):
		response.WriteErrors(w, http.StatusBadRequest, []string{verr.Msg})
	case errors.Is(err, core.ErrSweepRunning):
		response.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, core.ErrConflict):
		response.WriteError(w, http.StatusConflict, err.Error())
	case errors.As(err, &uerr):
		response.WriteError(w, http.StatusBadGateway, err.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		response.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
