package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/vidsmith/internal/pipeline"
	"github.com/ternarybob/vidsmith/internal/subtitle"
)

// SubtitleStep validates the SRT produced by synthesis and, for traditional
// Chinese targets, rewrites the entries from simplified script in place.
type SubtitleStep struct {
	pipeline.BaseStep
	deps Deps
}

func NewSubtitleStep(deps Deps) *SubtitleStep {
	return &SubtitleStep{deps: deps}
}

func (s *SubtitleStep) Name() string { return pipeline.StepSubtitle }

func (s *SubtitleStep) Description() string {
	return "Validate subtitle timing and apply script conversion"
}

func (s *SubtitleStep) Validate(ctx context.Context, pctx *pipeline.Context) error {
	return nil
}

func (s *SubtitleStep) Execute(ctx context.Context, pctx *pipeline.Context) (pipeline.StepResult, error) {
	tts, _ := pctx.Results.TTS()
	srtPath := tts.SRTPath

	if err := subtitle.ValidateFile(srtPath); err != nil {
		return nil, &pipeline.StepError{Step: s.Name(), Permanent: true, Err: fmt.Errorf("subtitle file invalid: %w", err)}
	}
	entries, err := subtitle.ParseFile(srtPath)
	if err != nil {
		return nil, &pipeline.StepError{Step: s.Name(), Permanent: true, Err: err}
	}

	if wantsTraditional(pctx) {
		for i := range entries {
			entries[i].Text = subtitle.ToTraditional(entries[i].Text)
		}
		if err := subtitle.Write(srtPath, entries); err != nil {
			return nil, &pipeline.StepError{Step: s.Name(), Permanent: true, Err: fmt.Errorf("failed to rewrite subtitles: %w", err)}
		}
		s.deps.Logger.Info().Str("job_id", pctx.Job.ID).Int("entries", len(entries)).Msg("Subtitles converted to traditional script")
	}

	return pipeline.SubtitleResult{
		SRTPath:       srtPath,
		SubtitleCount: len(entries),
	}, nil
}

// wantsTraditional reports whether the subtitles should use traditional
// Chinese characters, by explicit job flag, by the nested language_config
// object, or by language region.
func wantsTraditional(pctx *pipeline.Context) bool {
	if pctx.Job.ExtraBool("traditional_subtitles") {
		return true
	}
	if lc := pctx.Job.ExtraMap("language_config"); lc != nil {
		if enabled, _ := lc["traditional_chinese"].(bool); enabled {
			return true
		}
	}
	if pctx.Language == nil {
		return false
	}
	code := strings.ToUpper(pctx.Language.Code)
	return strings.HasSuffix(code, "-TW") || strings.HasSuffix(code, "-HK")
}
