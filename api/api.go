package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bmcpi/efiboot/internal/config"
	sloghttp "github.com/samber/slog-http"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HandlerMapping is a map of routes to http.Handlers.
type HandlerMapping map[string]http.Handler

// Api represents the HTTP API server with all its dependencies.
type Api struct {
	config     *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	handlers   HandlerMapping
}

// New creates a new Api instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) *Api {
	return &Api{
		config:   cfg,
		logger:   logger,
		handlers: make(HandlerMapping),
	}
}

// AddHandler registers handler for a ServeMux pattern such as
// "GET /v1/boot-source".
func (a *Api) AddHandler(pattern string, handler http.Handler) {
	if handler != nil {
		a.handlers[pattern] = otelhttp.WithRouteTag(pattern, handler)
	} else {
		a.logger.Warn("Attempted to add nil handler", "pattern", pattern)
	}
}

// Handler returns the routed handler with tracing, request logging and
// panic recovery.
func (a *Api) Handler() http.Handler {
	mux := http.NewServeMux()
	for pattern, handler := range a.handlers {
		mux.Handle(pattern, handler)
	}

	// wrap the mux with an OpenTelemetry interceptor
	httpHandler := otelhttp.NewHandler(mux, "efiboot-http")

	config := sloghttp.Config{
		WithRequestID:      true,
		WithUserAgent:      true,
		WithRequestBody:    false,
		WithResponseBody:   false,
		WithRequestHeader:  false,
		WithResponseHeader: false,

		// Filter health checks and scrapes
		Filters: []sloghttp.Filter{
			sloghttp.IgnorePathContains("/healthcheck"),
			sloghttp.IgnorePathContains("/metrics"),
		},
	}

	httpHandler = sloghttp.Recovery(httpHandler)
	return sloghttp.NewWithConfig(a.logger, config)(httpHandler)
}

// Start starts the HTTP server. It blocks until Shutdown is called.
func (a *Api) Start() error {
	a.httpServer = &http.Server{
		Addr:         a.getAddress(),
		Handler:      a.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	a.logger.Info("Starting HTTP server", "address", a.httpServer.Addr)

	err := a.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.logger.Error("HTTP server failed to start", "error", err)
		return err
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (a *Api) Shutdown() error {
	if a.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		a.logger.Info("Shutting down HTTP server...")
		err := a.httpServer.Shutdown(ctx)
		if err != nil {
			a.logger.Error("Failed to shutdown HTTP server gracefully", "error", err)
			return err
		}

		a.logger.Info("HTTP server shutdown complete")
	}

	return nil
}

// getAddress returns the server address from config.
func (a *Api) getAddress() string {
	return fmt.Sprintf("%s:%d", a.config.Address, a.config.Port)
}
