package api

import (
	"net/http"

	"github.com/okian/scoutstat/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthHandler handles health and metrics requests.
type HealthHandler struct {
	stats   StatsProvider
	metrics http.Handler
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(stats StatsProvider) *HealthHandler {
	return &HealthHandler{
		stats:   stats,
		metrics: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

type healthResponse struct {
	Status string `json:"status"`
	Ready  bool   `json:"ready"`
}

// HandleHealth handles GET /healthz requests.
// Clients asking for text/plain or OpenMetrics get Prometheus metrics;
// everyone else gets a JSON status that turns 503 until ratings are ready.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if wantsMetrics(r) {
		h.metrics.ServeHTTP(w, r)
		return
	}
	ready := false
	if h.stats != nil {
		ready, _ = h.stats.GetStats()["ready"].(bool)
	}
	if !ready {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "starting"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Ready: true})
}

// HandleMetrics handles GET /metrics requests.
func (h *HealthHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}

func wantsMetrics(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return containsFold(accept, "application/openmetrics-text") || containsFold(accept, "text/plain")
}
