package metrics

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// handler handles metrics requests.
type handler struct {
	logger *slog.Logger
	prom   http.Handler
}

// New creates a new metrics handler serving gatherer.
func New(logger *slog.Logger, gatherer prometheus.Gatherer) http.Handler {
	return &handler{
		logger: logger,
		prom: promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
			ErrorLog: slog.NewLogLogger(logger.Handler(), slog.LevelError),
		}),
	}
}

// ServeHTTP processes metrics requests.
func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("Handling metrics request", "path", r.URL.Path, "method", r.Method)

	h.prom.ServeHTTP(w, r)
}
