package health

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/bmcpi/efiboot/internal/firmware/efi"
)

// Checker reports whether EFI variables can be read.
type Checker interface {
	Available() error
}

// handler handles health check requests.
type handler struct {
	logger    *slog.Logger
	gitRev    string
	startTime time.Time
	vars      Checker
}

// New creates a new health handler. vars may be nil.
func New(logger *slog.Logger, gitRev string, startTime time.Time, vars Checker) http.Handler {
	return &handler{
		logger:    logger,
		gitRev:    gitRev,
		startTime: startTime,
		vars:      vars,
	}
}

// ServeHTTP processes health check requests. The service stays healthy on
// machines without EFI variables; the variable state is reported alongside.
func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("Handling health check", "path", r.URL.Path, "method", r.Method)

	response := map[string]any{
		"status":     "healthy",
		"git_rev":    h.gitRev,
		"uptime":     time.Since(h.startTime).Seconds(),
		"goroutines": runtime.NumGoroutine(),
	}
	if h.vars != nil {
		response["efi_variables"] = "available"
		if err := h.vars.Available(); err != nil {
			response["efi_variables"] = efi.Kind(err)
		}
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode health response", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
