package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"authgate/internal/model"
)

const healthProbeTimeout = 2 * time.Second

// HealthProbe checks whether the authentication service is serving.
type HealthProbe func(ctx context.Context) error

type HealthHandler struct {
	probe HealthProbe
}

func NewHealthHandler(probe HealthProbe) *HealthHandler {
	return &HealthHandler{probe: probe}
}

// Check reports 200 while the upstream is serving and 503 otherwise.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	if h.probe == nil {
		writeSuccess(w, http.StatusOK, model.HealthResponse{Status: "ok", Upstream: "unknown"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
	defer cancel()

	if err := h.probe(ctx); err != nil {
		slog.WarnContext(ctx, "auth service health probe failed", "error", err)
		writeSuccess(w, http.StatusServiceUnavailable, model.HealthResponse{Status: "degraded", Upstream: "unavailable"})
		return
	}

	writeSuccess(w, http.StatusOK, model.HealthResponse{Status: "ok", Upstream: "serving"})
}
