package handler

import (
	"net/http"

	"github.com/edvin/metering/internal/api/request"
	"github.com/edvin/metering/internal/api/response"
)

type Usage struct {
	svc UsageReader
}

func NewUsage(svc UsageReader) *Usage {
	return &Usage{svc: svc}
}

// Get godoc
//
//	@Summary		Get raw usage
//	@Description	Returns a tenant's raw aggregated usage between start and end (YYYY-MM-DDTHH:MM:SS).
//	@Tags			Usage
//	@Security		ApiKeyAuth
//	@Param			tenant query string true "Tenant ID"
//	@Param			start query string true "Start timestamp"
//	@Param			end query string true "End timestamp"
//	@Success		200 {object} model.Statement
//	@Failure		400 {object} response.ErrorsResponse
//	@Failure		500 {object} response.ErrorResponse
//	@Router			/get_usage [get]
func (h *Usage) Get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tenant := q.Get("tenant")

	var problems []string
	if tenant == "" {
		problems = append(problems, "tenant is required")
	}
	start, err := request.ParseDateTime("start", q.Get("start"))
	if err != nil {
		problems = append(problems, err.Error())
	}
	end, err := request.ParseDateTime("end", q.Get("end"))
	if err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) == 0 && end.Before(start) {
		problems = append(problems, "end must be after start")
	}
	if len(problems) > 0 {
		response.WriteErrors(w, http.StatusBadRequest, problems)
		return
	}

	st, err := h.svc.Usage(r.Context(), tenant, start, end)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, st)
}
