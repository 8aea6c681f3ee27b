package steps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ternarybob/vidsmith/internal/media"
	"github.com/ternarybob/vidsmith/internal/pipeline"
	"github.com/ternarybob/vidsmith/internal/services/imagegen"
)

// clipParallelism bounds how many scene clips render at once; the media
// engine's encode pool additionally caps process-wide ffmpeg invocations.
const clipParallelism = 3

// transitionFadeSeconds is the crossfade overlap between scene clips when
// the topic opts in to transitions.
const transitionFadeSeconds = 0.5

// VideoStep renders each scene image into a clip lasting exactly the scene's
// audio span, then concatenates the clips into a silent composite. Audio is
// mixed in later by post-processing.
type VideoStep struct {
	pipeline.BaseStep
	deps Deps
}

func NewVideoStep(deps Deps) *VideoStep {
	return &VideoStep{deps: deps}
}

func (s *VideoStep) Name() string { return pipeline.StepVideo }

func (s *VideoStep) Description() string {
	return "Render scene clips and concatenate the silent composite"
}

func (s *VideoStep) Validate(ctx context.Context, pctx *pipeline.Context) error {
	return nil
}

func (s *VideoStep) Execute(ctx context.Context, pctx *pipeline.Context) (pipeline.StepResult, error) {
	split, _ := pctx.Results.Split()
	images, _ := pctx.Results.Image()

	if len(images.ImagePaths) != len(split.Splits) {
		return nil, &pipeline.StepError{
			Step:      s.Name(),
			Permanent: true,
			Err:       fmt.Errorf("have %d images for %d scenes", len(images.ImagePaths), len(split.Splits)),
		}
	}

	videosDir := filepath.Join(pctx.Workspace, "videos")
	if err := os.MkdirAll(videosDir, 0755); err != nil {
		return nil, &pipeline.StepError{Step: s.Name(), Permanent: true, Err: fmt.Errorf("failed to create videos directory: %w", err)}
	}

	width, height := imagegen.Dimensions(pctx.Horizontal())
	fallbackSeconds := pctx.TopicExtraFloat("segment_duration", 5)

	clips := make([]string, len(split.Splits))
	durations := make([]float64, len(split.Splits))
	errs := make([]error, len(split.Splits))
	sem := make(chan struct{}, clipParallelism)
	var wg sync.WaitGroup
	var totalSeconds float64

	for i, sp := range split.Splits {
		seconds := float64(sp.DurationMS()) / 1000
		if seconds <= 0 {
			seconds = fallbackSeconds
		}
		durations[i] = seconds
		totalSeconds += seconds
		clips[i] = filepath.Join(videosDir, fmt.Sprintf("scene_%03d.mp4", i))

		wg.Add(1)
		go func(i int, imagePath, clipPath string, seconds float64) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			errs[i] = s.deps.Media.ImageToVideo(ctx, imagePath, clipPath, seconds, width, height)
		}(i, images.ImagePaths[i], clips[i], seconds)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, &pipeline.StepError{
				Step:      s.Name(),
				Permanent: true,
				Err:       fmt.Errorf("scene %d clip render failed: %w", i, err),
			}
		}
	}

	combined := filepath.Join(videosDir, "combined.mp4")
	if transitions := transitionTypes(pctx); len(transitions) > 0 && len(clips) > 1 {
		fade := media.ClampFade(durations, transitionFadeSeconds)
		if err := s.deps.Media.ConcatClipsWithTransitions(ctx, clips, durations, transitions, fade, combined); err != nil {
			return nil, &pipeline.StepError{Step: s.Name(), Permanent: true, Err: err}
		}
		// Each crossfade overlaps its neighbors, shortening the composite.
		totalSeconds -= fade * float64(len(clips)-1)
	} else if err := s.deps.Media.ConcatClips(ctx, clips, combined); err != nil {
		return nil, &pipeline.StepError{Step: s.Name(), Permanent: true, Err: err}
	}

	s.deps.Logger.Info().
		Str("job_id", pctx.Job.ID).
		Int("segments", len(clips)).
		Float64("duration_seconds", totalSeconds).
		Msg("Silent composite rendered")

	return pipeline.VideoResult{
		VideoPath:       combined,
		DurationSeconds: totalSeconds,
		SegmentCount:    len(clips),
	}, nil
}

// transitionTypes returns the crossfade set to cycle through when the topic
// enables scene transitions, or nil for a plain lossless concat.
func transitionTypes(pctx *pipeline.Context) []string {
	if !pctx.TopicExtraBool("enable_srt_concat_transition") {
		return nil
	}
	if types := pctx.TopicExtraStrings("transition_types"); len(types) > 0 {
		return types
	}
	return []string{"fade"}
}
