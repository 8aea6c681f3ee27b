package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ResultKeys is the artifact bundle persisted on a successful execution.
// Values are object-store keys; absent artifacts are null in the stored JSON.
type ResultKeys struct {
	VideoKey *string `json:"video_oss_key"`
	CoverKey *string `json:"cover_oss_key"`
	AudioKey *string `json:"audio_oss_key"`
	SRTKey   *string `json:"srt_oss_key"`
}

// ToJSON serializes the result bundle for storage on the execution row.
func (r *ResultKeys) ToJSON() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to marshal result keys: %w", err)
	}
	return string(data), nil
}

// ResultKeysFromJSON parses a stored result bundle.
func ResultKeysFromJSON(data string) (*ResultKeys, error) {
	var keys ResultKeys
	if err := json.Unmarshal([]byte(data), &keys); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result keys: %w", err)
	}
	return &keys, nil
}

// JobExecution is one attempt at executing a Job. It owns all mutable
// lifecycle state; the worker that created the row owns it until a terminal
// edge.
type JobExecution struct {
	ID             string          `json:"id"`
	JobID          string          `json:"job_id"`
	Status         ExecutionStatus `json:"status"`
	StatusDetail   string          `json:"status_detail"`
	WorkerHostname string          `json:"worker_hostname"`
	StartedAt      *time.Time      `json:"started_at,omitempty"`
	FinishedAt     *time.Time      `json:"finished_at,omitempty"`
	RetryCount     int             `json:"retry_count"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	ResultKey      string          `json:"result_key,omitempty"` // JSON-serialized ResultKeys
	Metadata       map[string]any  `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	DeletedAt      *time.Time      `json:"deleted_at,omitempty"`
}

// NewJobExecution creates a PENDING execution row for the given job.
func NewJobExecution(id, jobID, hostname string, retryCount int) *JobExecution {
	now := time.Now()
	return &JobExecution{
		ID:             id,
		JobID:          jobID,
		Status:         StatusPending,
		WorkerHostname: hostname,
		RetryCount:     retryCount,
		Metadata:       make(map[string]any),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Transition moves the execution to a new status, enforcing the legal edge
// set. started_at is set on the first PENDING->RUNNING edge; finished_at on
// any edge into a terminal state.
func (e *JobExecution) Transition(to ExecutionStatus, detail string) error {
	if !CanTransition(e.Status, to) {
		return fmt.Errorf("illegal status transition %s -> %s for execution %s", e.Status, to, e.ID)
	}

	now := time.Now()
	if e.Status == StatusPending && to == StatusRunning {
		e.StartedAt = &now
	}
	if to.IsTerminal() {
		e.FinishedAt = &now
	}

	e.Status = to
	e.StatusDetail = detail
	e.UpdatedAt = now
	return nil
}

// SetMetadata stores a metadata value, lazily allocating the map.
func (e *JobExecution) SetMetadata(key string, value any) {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}
	e.Metadata[key] = value
}

// StepExecutionRecord is the per-step transient state aggregated into the
// execution metadata on terminal edges. It is never persisted directly.
type StepExecutionRecord struct {
	Name        string     `json:"name"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Status      string     `json:"status"` // "success", "failed", "skipped"
	Error       string     `json:"error,omitempty"`
}
