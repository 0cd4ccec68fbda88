package health

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// HTTPHandler serves the health endpoints from a Manager's snapshots.
type HTTPHandler struct {
	manager *Manager
	logger  *zap.Logger
}

// NewHTTPHandler builds the handler.
func NewHTTPHandler(manager *Manager, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{manager: manager, logger: logger}
}

// RegisterRoutes mounts the health endpoints.
func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/health/ready", h.handleReady)
	mux.HandleFunc("/health/live", h.handleLive)
	mux.HandleFunc("/health/detailed", h.handleDetailed)
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := h.manager.Snapshot()
	code := http.StatusOK
	if snap.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	h.writeJSON(w, code, map[string]interface{}{
		"status":    snap.Status.String(),
		"message":   snap.Message,
		"ready":     snap.Ready,
		"timestamp": snap.Timestamp.Unix(),
	})
}

func (h *HTTPHandler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.manager.Ready() {
		h.writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ready"})
		return
	}
	h.writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "not ready"})
}

// Liveness is process liveness only. A worker wedged on dependencies is
// still alive; restarting it would not help.
func (h *HTTPHandler) handleLive(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"status": "alive"})
}

func (h *HTTPHandler) handleDetailed(w http.ResponseWriter, r *http.Request) {
	snap := h.manager.Snapshot()
	code := http.StatusOK
	if snap.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	h.writeJSON(w, code, snap)
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}
