// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	service "github.com/okian/scoutstat/internal/app"
	"github.com/okian/scoutstat/internal/domain/epa"
	"github.com/okian/scoutstat/internal/domain/match"
	"github.com/okian/scoutstat/internal/domain/types"
	"github.com/okian/scoutstat/pkg/logger"
	"golang.org/x/time/rate"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	OPRDependencies
	EPADependencies
	RankDependencies
	LeaderboardDependencies
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	oprHandler         *OPRHandler
	epaHandler         *EPAHandler
	rankHandler        *RankHandler
	leaderboardHandler *LeaderboardHandler

	maxLimit int
	limiter  *rate.Limiter
	logger   logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		maxLimit: defaultMaxLimit,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler(statsProvider)
	s.statsHandler = NewStatsHandler(statsProvider)
	s.oprHandler = NewOPRHandler(deps)
	s.epaHandler = NewEPAHandler(deps)
	s.rankHandler = NewRankHandler(deps)
	s.leaderboardHandler = NewLeaderboardHandler(deps, s.maxLimit)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	handle := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.Handle(pattern, RequestID(MetricsMiddleware(h, endpoint), s.logger))
	}

	handle("GET /healthz", "healthz", s.healthHandler.HandleHealth)
	handle("GET /metrics", "metrics", s.healthHandler.HandleMetrics)
	handle("GET /stats", "stats", s.statsHandler.HandleStats)

	// OPR runs on the worker pool, so it is the only rate-limited route.
	handle("GET /opr/{season}/{event}/{statistic}", "opr", RateLimit(s.limiter, s.oprHandler.HandleGetOPR))

	handle("GET /epa/{season}/ranks", "ranks", s.rankHandler.HandleGetRanks)
	handle("GET /epa/{season}/{team}", "epa", s.epaHandler.HandleGetEPA)
	handle("GET /ranks", "ranks", s.rankHandler.HandleGetRanks)
	handle("GET /rank/{team}", "rank", s.rankHandler.HandleGetRank)
	handle("GET /leaderboard", "leaderboard", s.leaderboardHandler.HandleGetLeaderboard)
}

type errorResponse struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	resp := errorResponse{Code: code, Message: msg}
	var unknown *match.UnknownStatisticError
	if errors.As(err, &unknown) {
		resp.Suggestions = unknown.Suggestions
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps domain and service errors to HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, match.ErrUnsupportedSeason),
		errors.Is(err, match.ErrUnknownStatistic):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, ErrNotFound), errors.Is(err, epa.ErrUnrankedTeam):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, ErrBackpressure), errors.Is(err, service.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate_limited", err)
	case errors.Is(err, service.ErrNotReady),
		errors.Is(err, service.ErrNotStarted),
		errors.Is(err, epa.ErrNotInitialized):
		writeError(w, http.StatusServiceUnavailable, "not_ready", err)
	case errors.Is(err, service.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// parseSeason reads the {season} path value; only supported seasons pass.
func parseSeason(r *http.Request) (int, error) {
	season, err := strconv.Atoi(r.PathValue("season"))
	if err != nil {
		return 0, ErrBadRequest
	}
	if err := match.SupportedSeason(season); err != nil {
		return 0, err
	}
	return season, nil
}

// parseTeam reads the {team} path value as a positive team number.
func parseTeam(r *http.Request) (int, error) {
	team, err := strconv.Atoi(r.PathValue("team"))
	if err != nil || team <= 0 {
		return 0, ErrBadRequest
	}
	return team, nil
}

// parseTime reads an epoch seconds value, floored to whole seconds.
func parseTime(raw string) (int64, error) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrBadRequest
	}
	return int64(math.Floor(f)), nil
}
