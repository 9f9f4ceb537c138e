package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/edvin/metering/internal/api/request"
	"github.com/edvin/metering/internal/api/response"
	"github.com/edvin/metering/internal/core"
)

const overlapMsg = "IntegrityError, existing sales_order overlap."

type SalesOrder struct {
	svc SalesOrders
	now func() time.Time
}

func NewSalesOrder(svc SalesOrders) *SalesOrder {
	return &SalesOrder{svc: svc, now: time.Now}
}

// Commit godoc
//
//	@Summary		Generate a sales order
//	@Description	Generates and records a sales order from the end of the tenant's last one up to end (YYYY-MM-DD, default today at midnight UTC).
//	@Tags			Sales orders
//	@Security		ApiKeyAuth
//	@Param			body body request.SalesOrder true "Tenant and end date"
//	@Success		200 {object} model.Statement
//	@Failure		400 {object} response.ErrorsResponse
//	@Failure		409 {object} map[string]string
//	@Failure		500 {object} response.ErrorResponse
//	@Router			/sales_order [post]
func (h *SalesOrder) Commit(w http.ResponseWriter, r *http.Request) {
	var req request.SalesOrder
	if err := request.Decode(r, &req); err != nil {
		response.WriteErrors(w, http.StatusBadRequest, request.Messages(err))
		return
	}

	end := h.now().UTC().Truncate(24 * time.Hour)
	if req.End != "" {
		var err error
		if end, err = request.ParseDate("end", req.End); err != nil {
			response.WriteErrors(w, http.StatusBadRequest, []string{err.Error()})
			return
		}
	}

	st, err := h.svc.Generate(r.Context(), req.Tenant, end, false)
	if err != nil {
		if errors.Is(err, core.ErrConflict) {
			response.WriteJSON(w, http.StatusConflict, map[string]string{"id": req.Tenant, "error": overlapMsg})
			return
		}
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, st)
}

// Draft godoc
//
//	@Summary		Draft a sales order
//	@Description	Builds the statement a sales order would produce without recording it. end may be a date or a timestamp and defaults to now.
//	@Tags			Sales orders
//	@Security		ApiKeyAuth
//	@Param			body body request.SalesOrder true "Tenant and end"
//	@Success		200 {object} model.Statement
//	@Failure		400 {object} response.ErrorsResponse
//	@Failure		500 {object} response.ErrorResponse
//	@Router			/sales_draft [post]
func (h *SalesOrder) Draft(w http.ResponseWriter, r *http.Request) {
	var req request.SalesOrder
	if err := request.Decode(r, &req); err != nil {
		response.WriteErrors(w, http.StatusBadRequest, request.Messages(err))
		return
	}

	end := h.now().UTC()
	if req.End != "" {
		var err error
		if end, err = request.ParseDateOrTime("end", req.End); err != nil {
			response.WriteErrors(w, http.StatusBadRequest, []string{err.Error()})
			return
		}
	}

	st, err := h.svc.Generate(r.Context(), req.Tenant, end, true)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, st)
}

// Historic godoc
//
//	@Summary		Regenerate a sales order
//	@Description	Re-derives the recorded sales order containing date.
//	@Tags			Sales orders
//	@Security		ApiKeyAuth
//	@Param			body body request.SalesHistoric true "Tenant and date"
//	@Success		200 {object} model.Statement
//	@Failure		400 {object} response.ErrorsResponse
//	@Failure		500 {object} response.ErrorResponse
//	@Router			/sales_historic [post]
func (h *SalesOrder) Historic(w http.ResponseWriter, r *http.Request) {
	var req request.SalesHistoric
	if err := request.Decode(r, &req); err != nil {
		response.WriteErrors(w, http.StatusBadRequest, request.Messages(err))
		return
	}
	date, err := request.ParseDateOrTime("date", req.Date)
	if err != nil {
		response.WriteErrors(w, http.StatusBadRequest, []string{err.Error()})
		return
	}

	st, err := h.svc.Regenerate(r.Context(), req.Tenant, date)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, st)
}

// Range godoc
//
//	@Summary		Regenerate sales orders in a range
//	@Description	Re-derives every recorded sales order intersecting [start, end). end defaults to now.
//	@Tags			Sales orders
//	@Security		ApiKeyAuth
//	@Param			body body request.SalesRange true "Tenant and range"
//	@Success		200 {array} model.Statement
//	@Failure		400 {object} response.ErrorsResponse
//	@Failure		500 {object} response.ErrorResponse
//	@Router			/sales_range [post]
func (h *SalesOrder) Range(w http.ResponseWriter, r *http.Request) {
	var req request.SalesRange
	if err := request.Decode(r, &req); err != nil {
		response.WriteErrors(w, http.StatusBadRequest, request.Messages(err))
		return
	}

	var problems []string
	start, err := request.ParseDateOrTime("start", req.Start)
	if err != nil {
		problems = append(problems, err.Error())
	}
	end := h.now().UTC()
	if req.End != "" {
		if end, err = request.ParseDateOrTime("end", req.End); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if len(problems) == 0 && end.Before(start) {
		problems = append(problems, "end must be after start")
	}
	if len(problems) > 0 {
		response.WriteErrors(w, http.StatusBadRequest, problems)
		return
	}

	statements, err := h.svc.RegenerateRange(r.Context(), req.Tenant, start, end)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, statements)
}
