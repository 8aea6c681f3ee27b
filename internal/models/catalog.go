package models

import (
	"time"
)

// Catalog entities are owned by a user, carry display metadata plus
// pipeline-relevant configuration, and support soft delete. Jobs reference
// catalog ids, not snapshots - catalog changes affect future executions only.

// Language describes a synthesis/subtitle language.
type Language struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Name      string     `json:"name"`
	Code      string     `json:"code"` // e.g. "zh-CN"
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Voice references a speaker sample used as the TTS voice reference.
type Voice struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Name      string     `json:"name"`
	Path      string     `json:"path"` // Reference audio sample location
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Topic carries the prompt templates driving image generation.
type Topic struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	Name        string         `json:"name"`
	ImagePrefix string         `json:"image_prefix"` // Prepended to every scene prompt
	CoverPrompt string         `json:"cover_prompt"` // Optional replacement prompt for scene 0
	StyleName   string         `json:"style_name"`   // Optional style-adapter name
	StyleWeight float64        `json:"style_weight"` // Adapter weight, meaningful only with StyleName
	Extras      map[string]any `json:"extras"`       // Free-form generator knobs (segment duration, transitions, ...)
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   *time.Time     `json:"deleted_at,omitempty"`
}

// DigitalHumanSettings configures the optional lip-synced overlay for an account.
type DigitalHumanSettings struct {
	Mode          string   `json:"mode"` // "fullscreen" or "corner"
	VideoPath     string   `json:"video_path"`
	IntroDuration float64  `json:"intro_duration"` // Seconds of human intro
	OutroDuration float64  `json:"outro_duration"` // Seconds of human outro, 0 disables
	Transitions   []string `json:"transitions"`    // xfade transition names, empty disables
	// Corner-mode overlay placement and chroma key. Zero values fall back to
	// the defaults (1000, 300) and 0.1.
	CornerX         int     `json:"corner_x"`
	CornerY         int     `json:"corner_y"`
	ChromaThreshold float64 `json:"chroma_threshold"`
}

// SubtitleStyle configures the burn-in renderer. Color is a named entry in the
// BGR color map used by the subtitle filter.
type SubtitleStyle struct {
	Font     string `json:"font"`
	FontSize int    `json:"font_size"`
	Color    string `json:"color"`
}

// Account carries logo location and digital-human/subtitle styling.
type Account struct {
	ID            string                `json:"id"`
	UserID        string                `json:"user_id"`
	Name          string                `json:"name"`
	LogoPath      string                `json:"logo_path"`
	DigitalHuman  *DigitalHumanSettings `json:"digital_human,omitempty"`
	SubtitleStyle *SubtitleStyle        `json:"subtitle_style,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
	DeletedAt     *time.Time            `json:"deleted_at,omitempty"`
}

// CornerDefaults returns the corner-mode overlay position and chroma-key
// threshold, falling back to the documented defaults when unset.
func (d *DigitalHumanSettings) CornerDefaults() (x, y int, threshold float64) {
	x, y, threshold = 1000, 300, 0.1
	if d == nil {
		return
	}
	if d.CornerX > 0 {
		x = d.CornerX
	}
	if d.CornerY > 0 {
		y = d.CornerY
	}
	if d.ChromaThreshold > 0 {
		threshold = d.ChromaThreshold
	}
	return
}
