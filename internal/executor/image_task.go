package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/vidsmith/internal/interfaces"
	"github.com/ternarybob/vidsmith/internal/pipeline"
	"github.com/ternarybob/vidsmith/internal/services/imagegen"
	"github.com/ternarybob/vidsmith/internal/storage/sqlite"
)

// RegenerateImage handles "generate_single_image_task". The task serves two
// producers: a user-requested single-scene regeneration (job_id, split_index,
// optional prompt) and the batch fan-out, which additionally carries the
// prompt, output_path and render parameters so the scene does not depend on
// the stored splits.
func (e *JobExecutor) RegenerateImage(ctx context.Context, delivery *interfaces.Delivery) error {
	kwargs := delivery.Payload.Kwargs
	jobID, _ := kwargs["job_id"].(string)
	target, hasIndex := kwargInt(kwargs["split_index"])
	if jobID == "" || !hasIndex {
		return &pipeline.StepError{Step: "dispatch", Permanent: true, Err: fmt.Errorf("delivery needs job_id and split_index")}
	}

	job, err := e.storage.Jobs().GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return &pipeline.StepError{Step: "dispatch", Permanent: true, Err: fmt.Errorf("job %s no longer exists", jobID)}
		}
		return fmt.Errorf("failed to load job %s: %w", jobID, err)
	}

	splits, err := e.storage.Splits().ListSplits(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load splits for job %s: %w", jobID, err)
	}

	prompt, _ := kwargs["prompt"].(string)
	inBounds := target >= 0 && target < len(splits)
	if prompt == "" {
		// Without an inline prompt the stored split is the only source.
		if !inBounds {
			return &pipeline.StepError{Step: "dispatch", Permanent: true, Err: fmt.Errorf("job %s has no split %d", jobID, target)}
		}
		prompt = splits[target].Prompt
	}

	outputPath, _ := kwargs["output_path"].(string)
	if outputPath == "" {
		imagesDir := filepath.Join(e.WorkspacePath(job.UserID, job.ID), "images")
		if err := os.MkdirAll(imagesDir, 0755); err != nil {
			return fmt.Errorf("failed to create images directory: %w", err)
		}
		outputPath = filepath.Join(imagesDir, fmt.Sprintf("scene_%03d.png", target))
	}

	width, height := imagegen.Dimensions(job.Horizontal)
	if w, ok := kwargInt(kwargs["width"]); ok && w > 0 {
		width = w
	}
	if h, ok := kwargInt(kwargs["height"]); ok && h > 0 {
		height = h
	}
	request := interfaces.ImageRequest{
		Prompt:     prompt,
		Width:      width,
		Height:     height,
		OutputPath: outputPath,
	}
	if steps, ok := kwargInt(kwargs["steps"]); ok && steps > 0 {
		request.Steps = steps
	}
	if styleName, _ := kwargs["style_name"].(string); styleName != "" {
		request.StyleName = styleName
		request.StyleWeight, _ = kwargs["style_weight"].(float64)
	}

	result, err := e.deps.Images.GenerateSingle(ctx, request)
	if err != nil {
		return fmt.Errorf("image generation for job %s scene %d failed: %w", jobID, target, err)
	}
	if result.Status != "success" {
		return &pipeline.StepError{Step: "dispatch", Permanent: true, Err: fmt.Errorf("image generation rejected: %s", result.Error)}
	}

	if inBounds {
		splits[target].ImageCandidates = append(splits[target].ImageCandidates, result.OutputPath)
		splits[target].SelectedImageID = result.OutputPath
		if err := e.storage.Splits().ReplaceSplits(ctx, jobID, splits); err != nil {
			e.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to record generated image on split")
		}
	}

	e.logger.Info().
		Str("job_id", jobID).
		Int("split_index", target).
		Str("image", result.OutputPath).
		Msg("Scene image generated")
	return nil
}

// kwargInt reads an integer kwarg, tolerating the float64 typing the JSON
// round-trip through the queue produces.
func kwargInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	}
	return 0, false
}
