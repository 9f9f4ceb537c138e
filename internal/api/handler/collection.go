package handler

import (
	"net/http"
	"time"

	"github.com/edvin/metering/internal/api/response"
)

type Collection struct {
	svc Collector
	now func() time.Time
}

func NewCollection(svc Collector) *Collection {
	return &Collection{svc: svc, now: time.Now}
}

// LastCollected godoc
//
//	@Summary		Last collected time
//	@Description	Returns the ceiling of the last sweep that committed usage, or the dawn of time when nothing has been collected yet.
//	@Tags			Collection
//	@Security		ApiKeyAuth
//	@Success		200 {object} map[string]string
//	@Failure		500 {object} response.ErrorResponse
//	@Router			/last_collected [get]
func (h *Collection) LastCollected(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.LastCollected(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]time.Time{"last_collected": t.UTC()})
}

// CollectUsage godoc
//
//	@Summary		Collect usage
//	@Description	Runs a sweep over every tenant and reports per-tenant results. Failed tenants are reported in the body with a 200.
//	@Tags			Collection
//	@Security		ApiKeyAuth
//	@Success		200 {object} core.SweepResult
//	@Failure		409 {object} response.ErrorResponse
//	@Failure		502 {object} response.ErrorResponse
//	@Failure		500 {object} response.ErrorResponse
//	@Router			/collect_usage [post]
func (h *Collection) CollectUsage(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Sweep(r.Context(), h.now())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, result)
}
