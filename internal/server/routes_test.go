package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/vidsmith/internal/app"
	"github.com/ternarybob/vidsmith/internal/broker"
	"github.com/ternarybob/vidsmith/internal/common"
	"github.com/ternarybob/vidsmith/internal/handlers"
	"github.com/ternarybob/vidsmith/internal/storage/sqlite"
)

func setupApp(t *testing.T) *app.App {
	t.Helper()

	cfg := common.NewDefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "test.db")
	cfg.Broker.Path = t.TempDir()

	storage, err := sqlite.NewManager(common.GetLogger(), &cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })

	queueBroker, err := broker.NewBadgerBroker(common.GetLogger(), &cfg.Broker)
	require.NoError(t, err)
	t.Cleanup(func() { queueBroker.Close() })

	return &app.App{
		Config:         cfg,
		Logger:         common.GetLogger(),
		StorageManager: storage,
		Broker:         queueBroker,
		APIHandler:     handlers.NewAPIHandler(storage, queueBroker, cfg),
	}
}

func TestRoutes_HealthAtRoot(t *testing.T) {
	s := &Server{app: setupApp(t)}
	router := s.setupRoutes()

	for _, path := range []string{"/health", "/health/live", "/health/extended", "/ready"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	// The old prefixed form is gone.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/health", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProbe_ServesHealthSurface(t *testing.T) {
	probe := NewProbe(setupApp(t))

	rec := httptest.NewRecorder()
	probe.router.ServeHTTP(rec, httptest.NewRequest("GET", "/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, true, body["ready"])

	rec = httptest.NewRecorder()
	probe.router.ServeHTTP(rec, httptest.NewRequest("GET", "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
