package steps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/vidsmith/internal/interfaces"
	"github.com/ternarybob/vidsmith/internal/pipeline"
	"github.com/ternarybob/vidsmith/internal/services"
)

// TTSStep synthesizes the narration track and per-sentence SRT timing into
// workspace/audio/. Failure here is fatal: nothing downstream can run without
// the audio.
type TTSStep struct {
	pipeline.BaseStep
	deps Deps
}

func NewTTSStep(deps Deps) *TTSStep {
	return &TTSStep{deps: deps}
}

func (s *TTSStep) Name() string { return pipeline.StepTTS }

func (s *TTSStep) Description() string {
	return "Synthesize narration audio and subtitle timing from the job script"
}

func (s *TTSStep) Validate(ctx context.Context, pctx *pipeline.Context) error {
	if pctx.Job.Content == "" {
		return fmt.Errorf("job has no script content")
	}
	if pctx.Language == nil {
		return fmt.Errorf("job language is not loaded")
	}
	if pctx.Workspace == "" {
		return fmt.Errorf("workspace directory is not set")
	}
	return nil
}

func (s *TTSStep) Execute(ctx context.Context, pctx *pipeline.Context) (pipeline.StepResult, error) {
	audioDir := filepath.Join(pctx.Workspace, "audio")
	if err := os.MkdirAll(audioDir, 0755); err != nil {
		return nil, &pipeline.StepError{Step: s.Name(), Permanent: true, Err: fmt.Errorf("failed to create audio directory: %w", err)}
	}

	req := interfaces.SynthesizeRequest{
		Text:          pctx.Job.Content,
		Language:      pctx.Language.Code,
		Volume:        100,
		SpeechRate:    pctx.Job.SpeechSpeed,
		OutputPath:    filepath.Join(audioDir, "speech.wav"),
		SRTOutputPath: filepath.Join(audioDir, "subtitle.srt"),
	}
	if pctx.Voice != nil {
		req.VoicePath = pctx.Voice.Path
	}

	result, err := s.deps.TTS.Synthesize(ctx, req)
	if err != nil {
		return nil, &pipeline.StepError{Step: s.Name(), Permanent: !services.IsTransient(err), Err: err}
	}
	if !result.Success {
		return nil, &pipeline.StepError{Step: s.Name(), Permanent: true, Err: fmt.Errorf("synthesis rejected: %s", result.Error)}
	}
	if _, err := os.Stat(req.OutputPath); err != nil {
		return nil, &pipeline.StepError{Step: s.Name(), Permanent: false, Err: fmt.Errorf("synthesizer reported success but audio is missing: %w", err)}
	}

	s.deps.Logger.Info().
		Str("job_id", pctx.Job.ID).
		Float64("duration_seconds", result.DurationSeconds).
		Msg("Narration synthesized")

	return pipeline.TTSResult{
		AudioPath:       req.OutputPath,
		SRTPath:         req.SRTOutputPath,
		DurationSeconds: result.DurationSeconds,
	}, nil
}
