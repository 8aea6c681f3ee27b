package steps

import (
	"context"

	"github.com/ternarybob/vidsmith/internal/interfaces"
	"github.com/ternarybob/vidsmith/internal/pipeline"
)

// DigitalHumanStep overlays a lip-synced presenter onto the composite. The
// step only runs when the job opts in and the account is configured, and its
// failures are non-fatal: the pipeline continues with the plain composite.
type DigitalHumanStep struct {
	pipeline.BaseStep
	deps Deps
}

func NewDigitalHumanStep(deps Deps) *DigitalHumanStep {
	return &DigitalHumanStep{deps: deps}
}

func (s *DigitalHumanStep) Name() string { return pipeline.StepDigitalHuman }

func (s *DigitalHumanStep) Description() string {
	return "Overlay the lip-synced presenter onto the composite"
}

func (s *DigitalHumanStep) ShouldExecute(pctx *pipeline.Context) bool {
	return pctx.DigitalHumanEnabled()
}

func (s *DigitalHumanStep) Validate(ctx context.Context, pctx *pipeline.Context) error {
	return nil
}

func (s *DigitalHumanStep) Execute(ctx context.Context, pctx *pipeline.Context) (pipeline.StepResult, error) {
	video, _ := pctx.Results.Video()
	tts, _ := pctx.Results.TTS()
	settings := pctx.Account.DigitalHuman

	mode := interfaces.DigitalHumanFullscreen
	if settings.Mode == string(interfaces.DigitalHumanCorner) {
		mode = interfaces.DigitalHumanCorner
	}
	enableTransition := len(settings.Transitions) > 0

	path, err := s.deps.DigitalHuman.Generate(ctx, video.VideoPath, tts.AudioPath, settings, mode, enableTransition)
	if err != nil {
		s.deps.Logger.Warn().Err(err).
			Str("job_id", pctx.Job.ID).
			Msg("Digital human generation failed, continuing without overlay")
		return pipeline.DigitalHumanResult{}, nil
	}
	if path == "" {
		s.deps.Logger.Info().Str("job_id", pctx.Job.ID).Msg("Digital human not configured, skipping overlay")
		return pipeline.DigitalHumanResult{}, nil
	}

	duration := video.DurationSeconds
	if probed, err := s.deps.Media.DurationSeconds(ctx, path); err == nil {
		duration = probed
	}

	s.deps.Logger.Info().
		Str("job_id", pctx.Job.ID).
		Str("mode", string(mode)).
		Msg("Digital human composite generated")

	return pipeline.DigitalHumanResult{VideoPath: path, DurationSeconds: duration}, nil
}
