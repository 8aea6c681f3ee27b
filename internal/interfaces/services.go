package interfaces

import (
	"context"

	"github.com/ternarybob/vidsmith/internal/models"
)

// Service clients capture every outbound network dependency behind an
// abstract interface. Implementations adapt HTTP/REST endpoints; they time
// out, classify errors, and never retry internally beyond a single
// transport-level retry - semantic retries are a broker concern.

// SynthesizeRequest describes one text-to-speech call.
type SynthesizeRequest struct {
	Text          string
	Language      string
	VoicePath     string // Optional speaker reference sample
	Volume        int    // 0..100
	SpeechRate    float64
	OutputPath    string
	SRTOutputPath string // Optional; empty skips subtitle timing
}

// SynthesizeResult is the synthesizer response. AudioPath exists on success.
type SynthesizeResult struct {
	Success         bool
	AudioPath       string
	SRTPath         string
	DurationSeconds float64
	Error           string
}

// TTSService synthesizes speech and per-sentence SRT timing.
type TTSService interface {
	Synthesize(ctx context.Context, req SynthesizeRequest) (*SynthesizeResult, error)
}

// ImageRequest describes one image generation call.
type ImageRequest struct {
	Prompt      string
	Width       int
	Height      int
	Steps       int
	StyleName   string
	StyleWeight float64
	OutputPath  string
	Extra       map[string]any
}

// ImageResult is one image generation outcome.
type ImageResult struct {
	Status                string // "success" or "failed"
	OutputPath            string
	GenerationTimeSeconds float64
	Error                 string
}

// ImageGenerationService generates scene images. GenerateBatch preserves the
// order of the request slice in its results and may execute in parallel.
type ImageGenerationService interface {
	GenerateSingle(ctx context.Context, req ImageRequest) (*ImageResult, error)
	GenerateBatch(ctx context.Context, reqs []ImageRequest, jobID string) ([]*ImageResult, error)
}

// UploadResult is one object-store upload outcome.
type UploadResult struct {
	Success bool
	FileKey string
	URL     string
	Error   string
}

// BatchUploadResult aggregates a multi-artifact upload. There is no
// transaction across items.
type BatchUploadResult struct {
	Results      map[string]*UploadResult // Keyed by artifact type
	TotalSize    int64
	SuccessCount int
	FailedCount  int
}

// FileStorageService is the shared object store. Keys are absent until an
// upload finishes; re-uploading a key overwrites (last writer wins).
type FileStorageService interface {
	Upload(ctx context.Context, localPath, key string, metadata map[string]string) (*UploadResult, error)
	UploadBatch(ctx context.Context, files map[string]string, prefix string, metadata map[string]string) (*BatchUploadResult, error)
	DownloadURL(ctx context.Context, key string, expiresInSeconds int) (string, error)
	Delete(ctx context.Context, key string) (bool, error)
}

// DigitalHumanMode selects fullscreen splice or corner overlay.
type DigitalHumanMode string

const (
	DigitalHumanFullscreen DigitalHumanMode = "fullscreen"
	DigitalHumanCorner     DigitalHumanMode = "corner"
)

// DigitalHumanService generates a lip-synced composite. A nil result path
// with nil error means the feature is disabled or not configured; hard
// failures propagate as errors but are non-fatal at pipeline level.
type DigitalHumanService interface {
	Generate(ctx context.Context, originVideoPath, audioPath string, settings *models.DigitalHumanSettings, mode DigitalHumanMode, enableTransition bool) (string, error)
}

// LLMService answers prompts. Responses are cached for at least 24h keyed by
// (prompt, model) so image-description generation is idempotent across
// retries.
type LLMService interface {
	Chat(ctx context.Context, prompt, model string) (string, error)
}
