package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// CheckFunc probes one backing service.
type CheckFunc func(ctx context.Context) error

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	checks map[string]CheckFunc
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler. checks maps a component name
// (postgres, redis, s3) to its probe; it may be empty.
func NewHealthHandler(checks map[string]CheckFunc, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{checks: checks, logger: logger.With(slog.String("handler", "health"))}
}

// HealthCheck reports "ok" when every configured component answers and
// "degraded" otherwise. The process itself is alive either way, so the
// status code stays 200.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := "ok"
	components := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			components[name] = err.Error()
			status = "degraded"
			h.logger.WarnContext(ctx, "health check failed",
				slog.String("component", name),
				slog.String("error", err.Error()),
			)
			continue
		}
		components[name] = "ok"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     status,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"components": components,
	})
}
