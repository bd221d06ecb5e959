package api

import (
	"context"
	"net/http"

	"github.com/okian/scoutstat/internal/domain/epa"
)

// RankDependencies defines the interface for rank operations.
type RankDependencies interface {
	GetRanks(ctx context.Context) (map[int]epa.Rank, error)
	Rank(ctx context.Context, team int) (Entry, error)
}

// RankHandler handles rank requests.
type RankHandler struct {
	deps RankDependencies
}

// NewRankHandler creates a new rank handler.
func NewRankHandler(deps RankDependencies) *RankHandler {
	return &RankHandler{deps: deps}
}

// HandleGetRanks handles GET /ranks and GET /epa/{season}/ranks.
func (h *RankHandler) HandleGetRanks(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_ranks"
	if r.PathValue("season") != "" {
		if _, err := parseSeason(r); err != nil {
			writeServiceError(w, WrapKind(op, ErrBadRequest, err))
			return
		}
	}
	ranks, err := h.deps.GetRanks(r.Context())
	if err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, ranks)
}

// HandleGetRank handles GET /rank/{team} requests.
func (h *RankHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rank"
	team, err := parseTeam(r)
	if err != nil {
		writeServiceError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	entry, err := h.deps.Rank(r.Context(), team)
	if err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
