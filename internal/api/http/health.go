package http

import (
	"context"
	"net/http"
	"time"
)

// Pinger is the slice of the object store the health check needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthResponse is the response of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Storage string `json:"storage,omitempty"`
}

// HealthHandler reports process and storage health.
type HealthHandler struct {
	service string
	pinger  Pinger
}

// NewHealthHandler creates a health handler. The pinger may be nil, in which
// case storage health is not probed.
func NewHealthHandler(service string, pinger Pinger) *HealthHandler {
	return &HealthHandler{service: service, pinger: pinger}
}

// ServeHTTP handles GET /health.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Service: h.service}

	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := h.pinger.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Storage = err.Error()
		} else {
			resp.Storage = "ok"
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
