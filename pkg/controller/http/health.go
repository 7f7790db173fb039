package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/gokadzev/dlcount/pkg/domain/model"
	"github.com/gokadzev/dlcount/pkg/domain/types"
)

type resultHandler struct {
	path   string
	state  *RefreshState
	logger *slog.Logger
}

// handleHealth handles health check requests
func (h *resultHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := &model.HealthStatus{
		Status:      "healthy",
		Service:     "dlcount",
		Version:     types.Version,
		RefreshedAt: h.state.RefreshedAt(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(status); err != nil {
		h.logger.Error("Failed to encode health response", "error", err)
	}
}

// handleResult serves the last emitted download count file
func (h *resultHandler) handleResult(w http.ResponseWriter, r *http.Request) {
	if h.state.RefreshedAt() == nil {
		writeError(w, h.logger, errors.New("download count not available yet"), http.StatusServiceUnavailable)
		return
	}

	data, err := os.ReadFile(h.path)
	if err != nil {
		h.logger.Error("Failed to read result file", "error", err, "path", h.path)
		writeError(w, h.logger, errors.New("failed to read download count"), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Error("Failed to write result response", "error", err)
	}
}
