package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vidsmith/internal/common"
	"github.com/ternarybob/vidsmith/internal/interfaces"
)

// APIHandler serves the system endpoints: version, liveness and readiness.
type APIHandler struct {
	storage interfaces.StorageManager
	broker  interfaces.Broker
	config  *common.Config
	logger  arbor.ILogger
}

func NewAPIHandler(storage interfaces.StorageManager, broker interfaces.Broker, config *common.Config) *APIHandler {
	return &APIHandler{
		storage: storage,
		broker:  broker,
		config:  config,
		logger:  common.GetLogger(),
	}
}

// VersionHandler returns build information.
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version":    common.GetVersion(),
		"build":      common.Build,
		"git_commit": common.GitCommit,
	})
}

// HealthHandler reports database liveness: 200 when the store answers,
// 503 otherwise.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	if err := h.storage.Ping(r.Context()); err != nil {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// LiveHandler answers 200 whenever the process is up.
func (h *APIHandler) LiveHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ExtendedHealthHandler adds the broker and the configured external
// services to the database check. Status is "healthy" when everything
// answers, "degraded" when only non-critical pieces fail, "unhealthy"
// when the store is down.
func (h *APIHandler) ExtendedHealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	checks := map[string]string{}
	status := "healthy"

	if err := h.storage.Ping(r.Context()); err != nil {
		checks["database"] = err.Error()
		status = "unhealthy"
	} else {
		checks["database"] = "ok"
	}

	if err := h.broker.Ping(r.Context()); err != nil {
		checks["broker"] = err.Error()
		if status == "healthy" {
			status = "degraded"
		}
	} else {
		checks["broker"] = "ok"
	}

	services := map[string]string{
		"tts":           h.config.TTS.BaseURL,
		"image":         h.config.Image.BaseURL,
		"storage":       h.config.Storage.BaseURL,
		"digital_human": h.config.DigitalHuman.BaseURL,
	}
	for name, baseURL := range services {
		if baseURL == "" {
			checks[name] = "disabled"
			continue
		}
		checks[name] = "configured"
	}

	httpStatus := http.StatusOK
	if status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}
	WriteJSON(w, httpStatus, map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

// ReadyHandler reports whether the durable store and broker are reachable.
func (h *APIHandler) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	checks := map[string]string{"database": "ok", "broker": "ok"}
	healthy := true

	if err := h.storage.Ping(r.Context()); err != nil {
		checks["database"] = err.Error()
		healthy = false
	}
	if err := h.broker.Ping(r.Context()); err != nil {
		checks["broker"] = err.Error()
		healthy = false
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	WriteJSON(w, status, map[string]interface{}{
		"ready":  healthy,
		"checks": checks,
	})
}

// NotFoundHandler handles unmatched API routes with a JSON response.
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, map[string]interface{}{
		"error":   "Not Found",
		"path":    r.URL.Path,
		"message": "The requested endpoint does not exist",
	})
}
