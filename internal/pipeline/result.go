package pipeline

import (
	"github.com/ternarybob/vidsmith/internal/models"
)

// StepResult is the tagged output of one step. Concrete result types embed
// nothing; the step name tags the variant in the result manager.
type StepResult interface {
	ResultStep() string
}

// TTSResult is the synthesized narration.
type TTSResult struct {
	AudioPath       string
	SRTPath         string
	DurationSeconds float64
}

func (TTSResult) ResultStep() string { return StepTTS }

// SubtitleResult is the validated (and possibly script-converted) SRT.
type SubtitleResult struct {
	SRTPath       string
	SubtitleCount int
}

func (SubtitleResult) ResultStep() string { return StepSubtitle }

// SplitResult is the scene boundary set.
type SplitResult struct {
	Splits        []models.JobSplit
	SplitFilePath string
}

func (SplitResult) ResultStep() string { return StepSplit }

// ImageStepResult is the per-scene image set, positionally aligned with the
// splits.
type ImageStepResult struct {
	ImagePaths            []string
	SelectedImages        []string
	GenerationTimeSeconds float64
	ParallelCount         int
}

func (ImageStepResult) ResultStep() string { return StepImage }

// VideoResult is the silent composite video.
type VideoResult struct {
	VideoPath       string
	DurationSeconds float64
	SegmentCount    int
}

func (VideoResult) ResultStep() string { return StepVideo }

// DigitalHumanResult is the optional lip-synced composite. An empty
// VideoPath means the overlay was skipped or failed non-fatally.
type DigitalHumanResult struct {
	VideoPath       string
	DurationSeconds float64
}

func (DigitalHumanResult) ResultStep() string { return StepDigitalHuman }

// PostProcessResult is the finished local video plus the transcoded
// narration track.
type PostProcessResult struct {
	FinalVideoPath  string
	AudioPath       string
	ProcessingSteps []string
}

func (PostProcessResult) ResultStep() string { return StepPostProcess }

// UploadStatus summarizes an upload bundle.
type UploadStatus string

const (
	UploadSuccess UploadStatus = "success"
	UploadPartial UploadStatus = "partial"
	UploadFailed  UploadStatus = "failed"
)

// UploadStepResult is the object-store key bundle.
type UploadStepResult struct {
	Keys   models.ResultKeys
	URLs   map[string]string
	Sizes  map[string]int64
	Status UploadStatus
}

func (UploadStepResult) ResultStep() string { return StepUpload }

// ResultManager stores step results by step name.
type ResultManager struct {
	results map[string]StepResult
}

func NewResultManager() *ResultManager {
	return &ResultManager{results: make(map[string]StepResult)}
}

// Put stores a result under its step name.
func (m *ResultManager) Put(result StepResult) {
	m.results[result.ResultStep()] = result
}

// Get returns the result for a step, or nil.
func (m *ResultManager) Get(step string) StepResult {
	return m.results[step]
}

// All returns the full result map.
func (m *ResultManager) All() map[string]StepResult {
	out := make(map[string]StepResult, len(m.results))
	for k, v := range m.results {
		out[k] = v
	}
	return out
}

// Typed accessors used by the step input resolver.

func (m *ResultManager) TTS() (TTSResult, bool) {
	r, ok := m.results[StepTTS].(TTSResult)
	return r, ok
}

func (m *ResultManager) Subtitle() (SubtitleResult, bool) {
	r, ok := m.results[StepSubtitle].(SubtitleResult)
	return r, ok
}

func (m *ResultManager) Split() (SplitResult, bool) {
	r, ok := m.results[StepSplit].(SplitResult)
	return r, ok
}

func (m *ResultManager) Image() (ImageStepResult, bool) {
	r, ok := m.results[StepImage].(ImageStepResult)
	return r, ok
}

func (m *ResultManager) Video() (VideoResult, bool) {
	r, ok := m.results[StepVideo].(VideoResult)
	return r, ok
}

func (m *ResultManager) DigitalHuman() (DigitalHumanResult, bool) {
	r, ok := m.results[StepDigitalHuman].(DigitalHumanResult)
	return r, ok
}

func (m *ResultManager) PostProcess() (PostProcessResult, bool) {
	r, ok := m.results[StepPostProcess].(PostProcessResult)
	return r, ok
}

func (m *ResultManager) Upload() (UploadStepResult, bool) {
	r, ok := m.results[StepUpload].(UploadStepResult)
	return r, ok
}
