package steps

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ternarybob/vidsmith/internal/media"
	"github.com/ternarybob/vidsmith/internal/pipeline"
	"github.com/ternarybob/vidsmith/internal/subtitle"
)

// Burn-in styling fallbacks when the account carries no subtitle style.
const (
	defaultSubtitleFont = "Arial"
	defaultSubtitleSize = 24
	defaultLogoX        = 20
	defaultLogoY        = 20
	defaultLogoWidth    = 100
)

// PostProcessStep finishes the video: mixes the narration onto the composite,
// burns in the subtitles, overlays the account logo when one is configured,
// and extracts the standalone mp3 narration. Output is workspace/final.mp4.
type PostProcessStep struct {
	pipeline.BaseStep
	deps Deps
}

func NewPostProcessStep(deps Deps) *PostProcessStep {
	return &PostProcessStep{deps: deps}
}

func (s *PostProcessStep) Name() string { return pipeline.StepPostProcess }

func (s *PostProcessStep) Description() string {
	return "Mix audio, burn subtitles, overlay logo, and extract the mp3 track"
}

func (s *PostProcessStep) Validate(ctx context.Context, pctx *pipeline.Context) error {
	return nil
}

func (s *PostProcessStep) Execute(ctx context.Context, pctx *pipeline.Context) (pipeline.StepResult, error) {
	video, _ := pctx.Results.Video()
	tts, _ := pctx.Results.TTS()
	sub, _ := pctx.Results.Subtitle()

	// Prefer the digital human composite when the overlay produced one.
	sourceVideo := video.VideoPath
	if dh, ok := pctx.Results.DigitalHuman(); ok && dh.VideoPath != "" {
		sourceVideo = dh.VideoPath
	}

	var processed []string
	fail := func(stage string, err error) (pipeline.StepResult, error) {
		return nil, &pipeline.StepError{Step: s.Name(), Permanent: true, Err: fmt.Errorf("%s failed: %w", stage, err)}
	}

	muxed := filepath.Join(pctx.Workspace, "muxed.mp4")
	if err := s.deps.Media.MuxAudio(ctx, sourceVideo, tts.AudioPath, muxed); err != nil {
		return fail("mix_audio", err)
	}
	processed = append(processed, "mix_audio")
	current := muxed

	subtitled := filepath.Join(pctx.Workspace, "subtitled.mp4")
	if err := s.deps.Media.BurnSubtitles(ctx, current, sub.SRTPath, subtitled, s.subtitleOptions(pctx)); err != nil {
		return fail("burn_subtitles", err)
	}
	processed = append(processed, "burn_subtitles")
	current = subtitled

	if pctx.Account != nil && pctx.Account.LogoPath != "" {
		branded := filepath.Join(pctx.Workspace, "branded.mp4")
		x := int(pctx.TopicExtraFloat("logo_x", defaultLogoX))
		y := int(pctx.TopicExtraFloat("logo_y", defaultLogoY))
		logoWidth := int(pctx.TopicExtraFloat("logo_width", defaultLogoWidth))
		if err := s.deps.Media.OverlayImage(ctx, current, pctx.Account.LogoPath, branded, x, y, logoWidth); err != nil {
			return fail("overlay_logo", err)
		}
		processed = append(processed, "overlay_logo")
		current = branded
	}

	final := filepath.Join(pctx.Workspace, "final.mp4")
	if err := renameFile(current, final); err != nil {
		return fail("finalize", err)
	}

	audioPath := filepath.Join(pctx.Workspace, "audio.mp3")
	if err := s.deps.Media.ExtractAudio(ctx, final, audioPath); err != nil {
		return fail("extract_audio", err)
	}
	processed = append(processed, "extract_audio")

	s.deps.Logger.Info().
		Str("job_id", pctx.Job.ID).
		Str("final_video", final).
		Msg("Post-processing complete")

	return pipeline.PostProcessResult{
		FinalVideoPath:  final,
		AudioPath:       audioPath,
		ProcessingSteps: processed,
	}, nil
}

func (s *PostProcessStep) subtitleOptions(pctx *pipeline.Context) media.SubtitleOptions {
	opts := media.SubtitleOptions{
		FontName: defaultSubtitleFont,
		FontSize: defaultSubtitleSize,
		ColorBGR: subtitle.ColorBGR(""),
	}
	if pctx.Account == nil || pctx.Account.SubtitleStyle == nil {
		return opts
	}
	style := pctx.Account.SubtitleStyle
	if style.Font != "" {
		opts.FontName = style.Font
	}
	if style.FontSize > 0 {
		opts.FontSize = style.FontSize
	}
	opts.ColorBGR = subtitle.ColorBGR(style.Color)
	return opts
}
