package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/vidsmith/internal/common"
	"github.com/ternarybob/vidsmith/internal/interfaces"
	"github.com/ternarybob/vidsmith/internal/models"
	"github.com/ternarybob/vidsmith/internal/storage/sqlite"
)

func setupStorage(t *testing.T) interfaces.StorageManager {
	t.Helper()

	config := &common.DatabaseConfig{
		Path:          filepath.Join(t.TempDir(), "test.db"),
		WALMode:       true,
		BusyTimeoutMS: 5000,
		CacheSizeMB:   16,
	}
	manager, err := sqlite.NewManager(common.GetLogger(), config)
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return manager
}

func authedRequest(method, target, userID string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	return req.WithContext(ContextWithUser(req.Context(), userID))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(dst))
}

func TestCreateJobHandler_AppliesDefaults(t *testing.T) {
	storage := setupStorage(t)
	handler := NewJobHandler(storage, nil)

	req := authedRequest("POST", "/api/v1/jobs", "user-1", map[string]interface{}{
		"title":       "Morning recap",
		"content":     "Three stories today.",
		"language_id": "lang-1",
	})
	rec := httptest.NewRecorder()
	handler.CreateJobHandler(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var job models.Job
	decodeBody(t, rec, &job)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "user-1", job.UserID)
	assert.Equal(t, 1.0, job.SpeechSpeed)
}

func TestCreateJobHandler_RejectsMissingLanguage(t *testing.T) {
	storage := setupStorage(t)
	handler := NewJobHandler(storage, nil)

	req := authedRequest("POST", "/api/v1/jobs", "user-1", map[string]interface{}{
		"title":   "No language",
		"content": "Body.",
	})
	rec := httptest.NewRecorder()
	handler.CreateJobHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobByIDHandler_ForeignJobReadsAsNotFound(t *testing.T) {
	storage := setupStorage(t)
	handler := NewJobHandler(storage, nil)

	job := &models.Job{
		ID:          common.NewID(),
		UserID:      "user-2",
		Title:       "Someone else's job",
		Content:     "Hidden.",
		LanguageID:  "lang-1",
		SpeechSpeed: 1.0,
	}
	require.NoError(t, storage.Jobs().SaveJob(context.Background(), job))

	req := authedRequest("GET", "/api/v1/jobs/"+job.ID, "user-1", nil)
	rec := httptest.NewRecorder()
	handler.JobByIDHandler(rec, req, job.ID)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelHandler_OnlyPendingExecutions(t *testing.T) {
	storage := setupStorage(t)
	handler := NewJobHandler(storage, nil)

	job := &models.Job{
		ID:          common.NewID(),
		UserID:      "user-1",
		Title:       "Cancel me",
		Content:     "Body.",
		LanguageID:  "lang-1",
		SpeechSpeed: 1.0,
	}
	require.NoError(t, storage.Jobs().SaveJob(context.Background(), job))

	execution := models.NewJobExecution(common.NewID(), job.ID, "host-1", 0)
	require.NoError(t, storage.Executions().CreateExecution(context.Background(), execution))

	req := authedRequest("POST", "/api/v1/jobs/"+job.ID+"/cancel", "user-1", nil)
	rec := httptest.NewRecorder()
	handler.CancelHandler(rec, req, job.ID)
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := storage.Executions().GetExecution(context.Background(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)

	// A second cancel hits a terminal execution and conflicts.
	rec = httptest.NewRecorder()
	handler.CancelHandler(rec, authedRequest("POST", "/api/v1/jobs/"+job.ID+"/cancel", "user-1", nil), job.ID)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLanguageHandlers_CRUDRoundTrip(t *testing.T) {
	storage := setupStorage(t)
	handler := NewCatalogHandler(storage.Catalog())

	req := authedRequest("POST", "/api/v1/languages", "user-1", map[string]string{
		"name": "Mandarin",
		"code": "zh-CN",
	})
	rec := httptest.NewRecorder()
	handler.CreateLanguageHandler(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var language models.Language
	decodeBody(t, rec, &language)
	require.NotEmpty(t, language.ID)

	rec = httptest.NewRecorder()
	handler.LanguageHandler(rec, authedRequest("PUT", "/api/v1/languages/"+language.ID, "user-1", map[string]string{
		"name": "Mandarin (Taiwan)",
		"code": "zh-TW",
	}), language.ID)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.LanguageHandler(rec, authedRequest("GET", "/api/v1/languages/"+language.ID, "user-1", nil), language.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &language)
	assert.Equal(t, "zh-TW", language.Code)

	// Other users cannot see the row.
	rec = httptest.NewRecorder()
	handler.LanguageHandler(rec, authedRequest("GET", "/api/v1/languages/"+language.ID, "user-2", nil), language.ID)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	handler.LanguageHandler(rec, authedRequest("DELETE", "/api/v1/languages/"+language.ID, "user-1", nil), language.ID)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.LanguageHandler(rec, authedRequest("GET", "/api/v1/languages/"+language.ID, "user-1", nil), language.ID)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPageParams_Clamping(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/v1/jobs?page=0&page_size=500", nil)
	page := PageParams(req)
	assert.Equal(t, 1, page.Number)
	assert.Equal(t, 100, page.Size)

	req = httptest.NewRequest("GET", "/api/v1/jobs?page=3&page_size=10", nil)
	page = PageParams(req)
	assert.Equal(t, 3, page.Number)
	assert.Equal(t, 10, page.Size)
}
