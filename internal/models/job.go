package models

import (
	"fmt"
	"time"
)

// Job is the immutable configuration of a video to produce. Execution state is
// never stored on the Job; configuration fields change only via the update API.
type Job struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	Title       string         `json:"title"`
	Content     string         `json:"content"` // Script text
	LanguageID  string         `json:"language_id"`
	VoiceID     string         `json:"voice_id"`
	TopicID     string         `json:"topic_id"`
	AccountID   string         `json:"account_id"`
	SpeechSpeed float64        `json:"speech_speed"`
	Horizontal  bool           `json:"is_horizontal"`
	Extras      map[string]any `json:"extras"`
	RunOrder    int            `json:"run_order"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   *time.Time     `json:"deleted_at,omitempty"`
}

// Validate checks the fields required before a job can be enqueued.
func (j *Job) Validate() error {
	if j.UserID == "" {
		return fmt.Errorf("job user id is required")
	}
	if j.Title == "" {
		return fmt.Errorf("job title is required")
	}
	if j.Content == "" {
		return fmt.Errorf("job content is required")
	}
	if j.LanguageID == "" {
		return fmt.Errorf("job language id is required")
	}
	if j.SpeechSpeed <= 0 {
		return fmt.Errorf("job speech speed must be positive")
	}
	return nil
}

// ExtraBool reads a boolean flag from the extras map, tolerating JSON decoding
// artifacts.
func (j *Job) ExtraBool(key string) bool {
	if j.Extras == nil {
		return false
	}
	b, _ := j.Extras[key].(bool)
	return b
}

// ExtraString reads a string from the extras map.
func (j *Job) ExtraString(key string) string {
	if j.Extras == nil {
		return ""
	}
	s, _ := j.Extras[key].(string)
	return s
}

// ExtraMap reads a nested object from the extras map, tolerating the
// map[string]any typing JSON decoding produces.
func (j *Job) ExtraMap(key string) map[string]any {
	if j.Extras == nil {
		return nil
	}
	m, _ := j.Extras[key].(map[string]any)
	return m
}
