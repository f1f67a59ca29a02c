package bootsource

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/bmcpi/efiboot/internal/bootsource"
	"github.com/bmcpi/efiboot/internal/firmware/efi"
)

// Resolver produces the boot source on every request.
type Resolver interface {
	Resolve() (*bootsource.Result, error)
}

// handler serves the boot source as JSON.
type handler struct {
	logger   *slog.Logger
	resolver Resolver
}

// New creates a new boot source handler.
func New(logger *slog.Logger, resolver Resolver) http.Handler {
	return &handler{
		logger:   logger,
		resolver: resolver,
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, efi.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, efi.ErrUnsupported):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// ServeHTTP processes boot source requests.
func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("Handling boot source request", "path", r.URL.Path, "method", r.Method)

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var (
		body   any
		status = http.StatusOK
	)
	res, err := h.resolver.Resolve()
	if err != nil {
		status = statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("Failed to resolve boot source", "error", err)
		}
		body = errorResponse{Error: err.Error(), Kind: efi.Kind(err)}
	} else {
		body = res
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode boot source response", "error", err)
	}
}
