package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vidsmith/internal/common"
	"github.com/ternarybob/vidsmith/internal/interfaces"
	"github.com/ternarybob/vidsmith/internal/models"
)

// JobHandler serves job CRUD plus the dispatch surface: submitting a job onto
// the processing queue, inspecting its executions and splits, cancelling a
// pending run, and requesting a single-scene image regeneration.
type JobHandler struct {
	storage interfaces.StorageManager
	broker  interfaces.Broker
	logger  arbor.ILogger
}

func NewJobHandler(storage interfaces.StorageManager, broker interfaces.Broker) *JobHandler {
	return &JobHandler{
		storage: storage,
		broker:  broker,
		logger:  common.GetLogger(),
	}
}

// ListJobsHandler lists the caller's jobs, newest run order first. The
// language_id query parameter narrows the result.
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	query := interfaces.Query{
		Filters: []interfaces.Filter{{Field: "user_id", Op: interfaces.OpEq, Value: UserID(r)}},
		Order:   []interfaces.Order{{Field: "run_order", Descending: true}},
		Page:    PageParams(r),
	}
	if languageID := r.URL.Query().Get("language_id"); languageID != "" {
		query.Filters = append(query.Filters, interfaces.Filter{Field: "language_id", Op: interfaces.OpEq, Value: languageID})
	}
	if title := r.URL.Query().Get("title"); title != "" {
		query.Filters = append(query.Filters, interfaces.Filter{Field: "title", Op: interfaces.OpILike, Value: "%" + title + "%"})
	}

	jobs, err := h.storage.Jobs().ListJobs(r.Context(), query)
	if err != nil {
		WriteStorageError(w, err, "jobs")
		return
	}
	total, err := h.storage.Jobs().CountJobs(r.Context(), query)
	if err != nil {
		WriteStorageError(w, err, "jobs")
		return
	}

	WriteJSON(w, http.StatusOK, ListResponse{
		Items:    jobs,
		Page:     query.Page.Number,
		PageSize: query.Page.Size,
		Total:    total,
	})
}

// CreateJobHandler stores a new job configuration. Creation does not enqueue;
// dispatch is a separate, explicit submit.
func (h *JobHandler) CreateJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var job models.Job
	if !DecodeJSON(w, r, &job) {
		return
	}
	job.ID = common.NewID()
	job.UserID = UserID(r)
	if job.SpeechSpeed == 0 {
		job.SpeechSpeed = 1.0
	}
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt

	if err := job.Validate(); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.storage.Jobs().SaveJob(r.Context(), &job); err != nil {
		WriteStorageError(w, err, "job")
		return
	}

	WriteJSON(w, http.StatusCreated, &job)
}

// JobByIDHandler serves GET/PUT/DELETE for one job.
func (h *JobHandler) JobByIDHandler(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case "GET":
		job := h.getOwnedJob(w, r, id)
		if job == nil {
			return
		}
		WriteJSON(w, http.StatusOK, job)
	case "PUT":
		existing := h.getOwnedJob(w, r, id)
		if existing == nil {
			return
		}
		var update models.Job
		if !DecodeJSON(w, r, &update) {
			return
		}
		existing.Title = update.Title
		existing.Content = update.Content
		existing.LanguageID = update.LanguageID
		existing.VoiceID = update.VoiceID
		existing.TopicID = update.TopicID
		existing.AccountID = update.AccountID
		existing.SpeechSpeed = update.SpeechSpeed
		existing.Horizontal = update.Horizontal
		existing.Extras = update.Extras
		existing.RunOrder = update.RunOrder
		existing.UpdatedAt = time.Now()
		if err := existing.Validate(); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := h.storage.Jobs().SaveJob(r.Context(), existing); err != nil {
			WriteStorageError(w, err, "job")
			return
		}
		WriteJSON(w, http.StatusOK, existing)
	case "DELETE":
		if h.getOwnedJob(w, r, id) == nil {
			return
		}
		if err := h.storage.Jobs().DeleteJob(r.Context(), id); err != nil {
			WriteStorageError(w, err, "job")
			return
		}
		WriteSuccess(w, "job deleted")
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type submitRequest struct {
	Priority int `json:"priority"`
}

// SubmitJobHandler enqueues a job onto the processing queue.
func (h *JobHandler) SubmitJobHandler(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	job := h.getOwnedJob(w, r, id)
	if job == nil {
		return
	}
	if err := job.Validate(); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req submitRequest
	if r.ContentLength > 0 && !DecodeJSON(w, r, &req) {
		return
	}
	priority := req.Priority
	if priority < 1 || priority > 10 {
		priority = 5
	}

	payload := interfaces.TaskPayload{
		TaskName: interfaces.TaskProcessVideoJob,
		Kwargs:   map[string]any{"job_id": job.ID},
	}
	if err := h.broker.Enqueue(r.Context(), interfaces.QueueVideoProcessing, payload, priority, 0); err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to enqueue job")
		return
	}

	h.logger.Info().Str("job_id", job.ID).Int("priority", priority).Msg("Job submitted")
	WriteJSON(w, http.StatusAccepted, map[string]string{
		"status": "queued",
		"job_id": job.ID,
	})
}

// ListExecutionsHandler lists executions for one job, newest first.
func (h *JobHandler) ListExecutionsHandler(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	if h.getOwnedJob(w, r, id) == nil {
		return
	}

	query := interfaces.Query{
		Filters: []interfaces.Filter{{Field: "job_id", Op: interfaces.OpEq, Value: id}},
		Order:   []interfaces.Order{{Field: "created_at", Descending: true}},
		Page:    PageParams(r),
	}
	executions, err := h.storage.Executions().ListExecutions(r.Context(), query)
	if err != nil {
		WriteStorageError(w, err, "executions")
		return
	}
	WriteJSON(w, http.StatusOK, ListResponse{Items: executions, Page: query.Page.Number, PageSize: query.Page.Size})
}

// LatestExecutionHandler returns the most recent execution for a job.
func (h *JobHandler) LatestExecutionHandler(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	if h.getOwnedJob(w, r, id) == nil {
		return
	}
	execution, err := h.storage.Executions().LatestExecution(r.Context(), id)
	if err != nil {
		WriteStorageError(w, err, "execution")
		return
	}
	WriteJSON(w, http.StatusOK, execution)
}

// CancelHandler cancels the latest execution while it is still PENDING.
// RUNNING executions are owned by their worker and cannot be cancelled.
func (h *JobHandler) CancelHandler(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	if h.getOwnedJob(w, r, id) == nil {
		return
	}

	execution, err := h.storage.Executions().LatestExecution(r.Context(), id)
	if err != nil {
		WriteStorageError(w, err, "execution")
		return
	}
	if execution.Status != models.StatusPending {
		WriteError(w, http.StatusConflict, "only pending executions can be cancelled")
		return
	}
	if err := h.storage.Executions().TransitionExecution(r.Context(), execution.ID, models.StatusCancelled, "Cancelled by user"); err != nil {
		WriteStorageError(w, err, "execution")
		return
	}
	WriteSuccess(w, "execution cancelled")
}

// ListSplitsHandler lists the stored scene boundaries for a job.
func (h *JobHandler) ListSplitsHandler(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	if h.getOwnedJob(w, r, id) == nil {
		return
	}
	splits, err := h.storage.Splits().ListSplits(r.Context(), id)
	if err != nil {
		WriteStorageError(w, err, "splits")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"splits": splits})
}

type regenerateRequest struct {
	Prompt string `json:"prompt"`
}

// RegenerateImageHandler enqueues a single-scene image regeneration.
func (h *JobHandler) RegenerateImageHandler(w http.ResponseWriter, r *http.Request, id string, index string) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	if h.getOwnedJob(w, r, id) == nil {
		return
	}
	splitIndex, err := strconv.Atoi(index)
	if err != nil || splitIndex < 0 {
		WriteError(w, http.StatusBadRequest, "invalid split index")
		return
	}

	var req regenerateRequest
	if r.ContentLength > 0 && !DecodeJSON(w, r, &req) {
		return
	}

	payload := interfaces.TaskPayload{
		TaskName: interfaces.TaskGenerateSingleImage,
		Kwargs: map[string]any{
			"job_id":      id,
			"split_index": splitIndex,
		},
	}
	if req.Prompt != "" {
		payload.Kwargs["prompt"] = req.Prompt
	}
	if err := h.broker.Enqueue(r.Context(), interfaces.QueueVideoProcessing, payload, 7, 0); err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to enqueue image regeneration")
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":      "queued",
		"job_id":      id,
		"split_index": splitIndex,
	})
}

// DeadLettersHandler lists dead-lettered messages, defaulting to the video
// processing queue.
func (h *JobHandler) DeadLettersHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	queue := r.URL.Query().Get("queue")
	if queue == "" {
		queue = interfaces.QueueVideoProcessing
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	letters, err := h.broker.DeadLetters(r.Context(), queue, limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to list dead letters")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"queue":        queue,
		"dead_letters": letters,
	})
}

func (h *JobHandler) getOwnedJob(w http.ResponseWriter, r *http.Request, id string) *models.Job {
	job, err := h.storage.Jobs().GetJob(r.Context(), id)
	if err != nil {
		WriteStorageError(w, err, "job")
		return nil
	}
	if job.UserID != UserID(r) {
		WriteError(w, http.StatusNotFound, "job not found")
		return nil
	}
	return job
}
