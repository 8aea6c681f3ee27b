package models

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// JobSplit is a scene boundary for a job: a contiguous time range of the
// generated audio with its own prompt and image. (job_id, index) is unique.
type JobSplit struct {
	ID              string     `json:"id,omitempty"`
	JobID           string     `json:"job_id,omitempty"`
	Index           int        `json:"index"`
	StartMS         int64      `json:"start"` // Milliseconds relative to the generated audio
	EndMS           int64      `json:"end"`
	Text            string     `json:"text"`
	Prompt          string     `json:"prompt"`
	ImageCandidates []string   `json:"image_candidates,omitempty"`
	SelectedImageID string     `json:"selected_image_id,omitempty"`
	VideoPath       string     `json:"video_path,omitempty"`
	CreatedAt       time.Time  `json:"created_at,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at,omitempty"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
}

// DurationMS returns the scene length in milliseconds.
func (s *JobSplit) DurationMS() int64 {
	return s.EndMS - s.StartMS
}

// SplitFile is the on-disk splits.json schema. Within a single execution the
// on-disk file is authoritative; the DB mirror is best-effort.
type SplitFile struct {
	Splits []JobSplit `json:"splits"`
}

// WriteSplitFile persists splits to workspace/splits.json.
func WriteSplitFile(path string, splits []JobSplit) error {
	data, err := json.MarshalIndent(&SplitFile{Splits: splits}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal splits: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write splits file: %w", err)
	}
	return nil
}

// ReadSplitFile loads splits from a splits.json file.
func ReadSplitFile(path string) ([]JobSplit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read splits file: %w", err)
	}
	var file SplitFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal splits file: %w", err)
	}
	return file.Splits, nil
}
