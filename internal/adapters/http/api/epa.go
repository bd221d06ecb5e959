package api

import (
	"context"
	"net/http"
)

// EPADependencies defines the interface for EPA lookups.
type EPADependencies interface {
	GetEPA(ctx context.Context, team int, at *int64) (float64, error)
	GetAllEPAs(ctx context.Context, team int) (map[int64]float64, error)
}

// EPAHandler handles EPA requests.
type EPAHandler struct {
	deps EPADependencies
}

// NewEPAHandler creates a new EPA handler.
func NewEPAHandler(deps EPADependencies) *EPAHandler {
	return &EPAHandler{deps: deps}
}

// HandleGetEPA handles GET /epa/{season}/{team}[?time=T]. Without time the
// response maps match start times to EPA; with time it is a single number.
func (h *EPAHandler) HandleGetEPA(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_epa"
	if _, err := parseSeason(r); err != nil {
		writeServiceError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	team, err := parseTeam(r)
	if err != nil {
		writeServiceError(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	raw := r.URL.Query().Get("time")
	if raw == "" {
		all, err := h.deps.GetAllEPAs(r.Context(), team)
		if err != nil {
			writeServiceError(w, Wrap(op, err))
			return
		}
		writeJSON(w, http.StatusOK, all)
		return
	}

	at, err := parseTime(raw)
	if err != nil {
		writeServiceError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	v, err := h.deps.GetEPA(r.Context(), team, &at)
	if err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, v)
}
