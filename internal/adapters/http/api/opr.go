package api

import (
	"context"
	"net/http"
	"strings"
)

// OPRDependencies defines the interface for OPR computation.
type OPRDependencies interface {
	CalcSingleStatOPR(ctx context.Context, eventCode, statistic string, season int) (map[int]float64, error)
}

// OPRHandler handles OPR requests.
type OPRHandler struct {
	deps OPRDependencies
}

// NewOPRHandler creates a new OPR handler.
func NewOPRHandler(deps OPRDependencies) *OPRHandler {
	return &OPRHandler{deps: deps}
}

// HandleGetOPR handles GET /opr/{season}/{event}/{statistic} requests.
func (h *OPRHandler) HandleGetOPR(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_opr"
	season, err := parseSeason(r)
	if err != nil {
		writeServiceError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	event := strings.TrimSpace(r.PathValue("event"))
	if event == "" {
		writeServiceError(w, NewKind(op, ErrBadRequest))
		return
	}
	oprs, err := h.deps.CalcSingleStatOPR(r.Context(), event, r.PathValue("statistic"), season)
	if err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, oprs)
}
