package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pagecraft/engine/internal/api/types"
	appErr "github.com/pagecraft/engine/pkg/errors"
	"github.com/pagecraft/engine/pkg/logger"
)

const readinessTimeout = 10 * time.Second

// ReadyFunc reports whether a dependency can serve traffic.
type ReadyFunc func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]ReadyFunc
}

// NewHealthHandler builds the probe handler. Every named check must pass
// for readiness.
func NewHealthHandler(checks map[string]ReadyFunc) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: map[string]string{"status": "ok"}})
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	status := map[string]string{}
	var failed error
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			logger.L().Warn("readiness check failed", zap.String("check", name), zap.Error(err))
			status[name] = "unavailable"
			failed = err
			continue
		}
		status[name] = "ok"
	}
	if failed != nil {
		writeJSON(w, http.StatusServiceUnavailable, types.APIResponse{
			Success: false,
			Data:    status,
			Error:   &types.APIError{Code: string(appErr.CodeUnavailable), Message: "not ready"},
		})
		return
	}
	status["status"] = "ready"
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: status})
}
