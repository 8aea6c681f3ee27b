package steps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/vidsmith/internal/interfaces"
	"github.com/ternarybob/vidsmith/internal/pipeline"
	"github.com/ternarybob/vidsmith/internal/services"
	"github.com/ternarybob/vidsmith/internal/services/imagegen"
)

// Small jobs run sequentially; anything with at least this many scenes fans
// out through the task queue, one sub-task per scene.
const batchThreshold = 3

// ImageStep generates one image per scene into workspace/images/, positionally
// aligned with the splits. Any permanently failed scene fails the step.
type ImageStep struct {
	pipeline.BaseStep
	deps Deps
}

func NewImageStep(deps Deps) *ImageStep {
	return &ImageStep{deps: deps}
}

func (s *ImageStep) Name() string { return pipeline.StepImage }

func (s *ImageStep) Description() string {
	return "Generate one image per scene"
}

func (s *ImageStep) Validate(ctx context.Context, pctx *pipeline.Context) error {
	return nil
}

func (s *ImageStep) Execute(ctx context.Context, pctx *pipeline.Context) (pipeline.StepResult, error) {
	split, _ := pctx.Results.Split()

	imagesDir := filepath.Join(pctx.Workspace, "images")
	if err := os.MkdirAll(imagesDir, 0755); err != nil {
		return nil, &pipeline.StepError{Step: s.Name(), Permanent: true, Err: fmt.Errorf("failed to create images directory: %w", err)}
	}

	width, height := imagegen.Dimensions(pctx.Horizontal())
	reqs := make([]interfaces.ImageRequest, 0, len(split.Splits))
	for i, sp := range split.Splits {
		req := interfaces.ImageRequest{
			Prompt:     sp.Prompt,
			Width:      width,
			Height:     height,
			Steps:      int(pctx.TopicExtraFloat("image_steps", 0)),
			OutputPath: filepath.Join(imagesDir, fmt.Sprintf("scene_%03d.png", i)),
		}
		if pctx.Topic != nil {
			req.StyleName = pctx.Topic.StyleName
			req.StyleWeight = pctx.Topic.StyleWeight
		}
		reqs = append(reqs, req)
	}

	results, parallel, err := s.generate(ctx, pctx.Job.ID, reqs)
	if err != nil {
		return nil, &pipeline.StepError{Step: s.Name(), Permanent: !services.IsTransient(err), Err: err}
	}

	paths := make([]string, len(results))
	var totalSeconds float64
	for i, result := range results {
		if result == nil || result.Status != "success" {
			detail := "no result"
			if result != nil {
				detail = result.Error
			}
			return nil, &pipeline.StepError{
				Step:      s.Name(),
				Permanent: true,
				Err:       fmt.Errorf("scene %d image generation failed: %s", i, detail),
			}
		}
		paths[i] = result.OutputPath
		totalSeconds += result.GenerationTimeSeconds
	}

	s.deps.Logger.Info().
		Str("job_id", pctx.Job.ID).
		Int("images", len(paths)).
		Float64("generation_seconds", totalSeconds).
		Msg("Scene images generated")

	return pipeline.ImageStepResult{
		ImagePaths:            paths,
		SelectedImages:        paths,
		GenerationTimeSeconds: totalSeconds,
		ParallelCount:         parallel,
	}, nil
}

func (s *ImageStep) generate(ctx context.Context, jobID string, reqs []interfaces.ImageRequest) ([]*interfaces.ImageResult, int, error) {
	if len(reqs) < batchThreshold {
		results := make([]*interfaces.ImageResult, len(reqs))
		for i, req := range reqs {
			result, err := s.deps.Images.GenerateSingle(ctx, req)
			if err != nil {
				return nil, 1, err
			}
			results[i] = result
		}
		return results, 1, nil
	}

	results, err := s.deps.Images.GenerateBatch(ctx, reqs, jobID)
	if err != nil {
		return nil, 0, err
	}
	return results, len(reqs), nil
}
