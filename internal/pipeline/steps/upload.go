package steps

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ternarybob/vidsmith/internal/common"
	"github.com/ternarybob/vidsmith/internal/models"
	"github.com/ternarybob/vidsmith/internal/pipeline"
	"github.com/ternarybob/vidsmith/internal/services"
)

// Canonical artifact file names under the upload prefix.
const (
	artifactVideo = "video"
	artifactCover = "cover"
	artifactAudio = "audio"
	artifactSRT   = "srt"
)

// UploadStep pushes the finished artifacts to the object store under
// videos/{user}/{job} with canonical file names. A missing or failed video
// upload fails the step; other artifacts degrade the status to partial.
type UploadStep struct {
	pipeline.BaseStep
	deps Deps
}

func NewUploadStep(deps Deps) *UploadStep {
	return &UploadStep{deps: deps}
}

func (s *UploadStep) Name() string { return pipeline.StepUpload }

func (s *UploadStep) Description() string {
	return "Upload the finished artifacts to the object store"
}

func (s *UploadStep) Validate(ctx context.Context, pctx *pipeline.Context) error {
	if s.deps.Storage == nil {
		return fmt.Errorf("object storage is not configured")
	}
	return nil
}

func (s *UploadStep) Execute(ctx context.Context, pctx *pipeline.Context) (pipeline.StepResult, error) {
	post, _ := pctx.Results.PostProcess()
	images, _ := pctx.Results.Image()
	sub, _ := pctx.Results.Subtitle()

	files := map[string]string{
		artifactVideo: post.FinalVideoPath,
		artifactAudio: post.AudioPath,
		artifactSRT:   sub.SRTPath,
	}

	// The cover is the first scene image, uploaded under its canonical name.
	if len(images.ImagePaths) > 0 {
		coverPath := filepath.Join(pctx.Workspace, "cover.png")
		if err := copyFile(images.ImagePaths[0], coverPath); err != nil {
			s.deps.Logger.Warn().Err(err).Str("job_id", pctx.Job.ID).Msg("Failed to stage cover image")
		} else {
			files[artifactCover] = coverPath
		}
	}

	prefix := fmt.Sprintf("videos/%s/%s", common.CompactID(pctx.Job.UserID), pctx.Job.ID)
	metadata := map[string]string{
		"job_id":       pctx.Job.ID,
		"execution_id": pctx.Execution.ID,
	}

	batch, err := s.deps.Storage.UploadBatch(ctx, files, prefix, metadata)
	if err != nil {
		return nil, &pipeline.StepError{Step: s.Name(), Permanent: !services.IsTransient(err), Err: err}
	}

	keys := models.ResultKeys{}
	urls := make(map[string]string)
	setKey := func(artifact string, dest **string) bool {
		result, ok := batch.Results[artifact]
		if !ok || result == nil || !result.Success {
			return false
		}
		key := result.FileKey
		*dest = &key
		if result.URL != "" {
			urls[artifact] = result.URL
		}
		return true
	}

	videoOK := setKey(artifactVideo, &keys.VideoKey)
	coverOK := setKey(artifactCover, &keys.CoverKey)
	audioOK := setKey(artifactAudio, &keys.AudioKey)
	srtOK := setKey(artifactSRT, &keys.SRTKey)

	if !videoOK {
		detail := "video upload failed"
		if result := batch.Results[artifactVideo]; result != nil && result.Error != "" {
			detail = result.Error
		}
		return nil, &pipeline.StepError{Step: s.Name(), Permanent: false, Err: fmt.Errorf("video artifact not uploaded: %s", detail)}
	}

	status := pipeline.UploadSuccess
	if !coverOK || !audioOK || !srtOK {
		status = pipeline.UploadPartial
	}

	s.deps.Logger.Info().
		Str("job_id", pctx.Job.ID).
		Str("prefix", prefix).
		Str("status", string(status)).
		Int64("total_bytes", batch.TotalSize).
		Msg("Artifacts uploaded")

	return pipeline.UploadStepResult{
		Keys:   keys,
		URLs:   urls,
		Sizes:  map[string]int64{"total": batch.TotalSize},
		Status: status,
	}, nil
}
