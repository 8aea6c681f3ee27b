package steps

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/vidsmith/internal/common"
	"github.com/ternarybob/vidsmith/internal/interfaces"
	"github.com/ternarybob/vidsmith/internal/models"
	"github.com/ternarybob/vidsmith/internal/pipeline"
	"github.com/ternarybob/vidsmith/internal/subtitle"
)

func entry(index int, startMS, endMS int64, text string) subtitle.Entry {
	return subtitle.Entry{Index: index, StartMS: startMS, EndMS: endMS, Text: text}
}

func TestGroupEntries_DurationCap(t *testing.T) {
	entries := []subtitle.Entry{
		entry(1, 0, 4000, "one"),
		entry(2, 4000, 8000, "two"),
		entry(3, 8000, 12000, "three"),
		entry(4, 12000, 16000, "four"),
	}

	groups := groupEntries(entries, 15_000, 100)

	require.Len(t, groups, 2)
	assert.Len(t, groups[0], 3)
	assert.Len(t, groups[1], 1)
}

func TestGroupEntries_WeightCap(t *testing.T) {
	long := strings.Repeat("a", 40)
	entries := []subtitle.Entry{
		entry(1, 0, 1000, long),
		entry(2, 1000, 2000, long),
		entry(3, 2000, 3000, long),
	}

	groups := groupEntries(entries, 15_000, 100)

	require.Len(t, groups, 2)
	assert.Len(t, groups[0], 2)
	assert.Len(t, groups[1], 1)
}

func TestGroupEntries_WideRunesCountDouble(t *testing.T) {
	// 30 wide runes weigh 60, so two entries exceed the cap of 100.
	wide := strings.Repeat("你", 30)
	entries := []subtitle.Entry{
		entry(1, 0, 1000, wide),
		entry(2, 1000, 2000, wide),
	}

	groups := groupEntries(entries, 15_000, 100)
	require.Len(t, groups, 2)
}

func TestGroupEntries_OversizeEntryFormsOwnScene(t *testing.T) {
	entries := []subtitle.Entry{
		entry(1, 0, 20_000, "a very long sentence"),
		entry(2, 20_000, 22_000, "short"),
	}

	groups := groupEntries(entries, 15_000, 100)

	require.Len(t, groups, 2)
	assert.Len(t, groups[0], 1)
}

func TestBuildSplits_PromptsAndBoundaries(t *testing.T) {
	job := &models.Job{ID: "job-1", UserID: "user-1"}
	topic := &models.Topic{
		ImagePrefix: "oil painting of",
		CoverPrompt: "dramatic title card",
	}
	entries := []subtitle.Entry{
		entry(1, 0, 4000, "a stormy sea"),
		entry(2, 4000, 20_000, "a quiet harbor"),
	}

	splits := buildSplits(job, topic, entries)

	require.Len(t, splits, 2)
	for i, split := range splits {
		assert.Equal(t, i, split.Index)
		assert.Equal(t, "job-1", split.JobID)
		assert.Less(t, split.StartMS, split.EndMS)
		if i > 0 {
			assert.GreaterOrEqual(t, split.StartMS, splits[i-1].EndMS)
		}
	}

	assert.Equal(t, "dramatic title card", splits[0].Prompt)
	assert.Equal(t, "oil painting of a quiet harbor", splits[1].Prompt)
}

func TestBuildSplits_NoTopic(t *testing.T) {
	job := &models.Job{ID: "job-1"}
	entries := []subtitle.Entry{entry(1, 0, 3000, "plain scene")}

	splits := buildSplits(job, nil, entries)

	require.Len(t, splits, 1)
	assert.Equal(t, "plain scene", splits[0].Prompt)
}

type fakeImageService struct {
	singles int
	batches int
	failAt  int // 1-based scene index to fail, 0 disables
}

func (f *fakeImageService) GenerateSingle(ctx context.Context, req interfaces.ImageRequest) (*interfaces.ImageResult, error) {
	f.singles++
	return &interfaces.ImageResult{Status: "success", OutputPath: req.OutputPath}, nil
}

func (f *fakeImageService) GenerateBatch(ctx context.Context, reqs []interfaces.ImageRequest, jobID string) ([]*interfaces.ImageResult, error) {
	f.batches++
	results := make([]*interfaces.ImageResult, len(reqs))
	for i, req := range reqs {
		if f.failAt == i+1 {
			results[i] = &interfaces.ImageResult{Status: "failed", Error: "generator offline"}
			continue
		}
		results[i] = &interfaces.ImageResult{Status: "success", OutputPath: req.OutputPath}
	}
	return results, nil
}

func imageContext(t *testing.T, scenes int) *pipeline.Context {
	t.Helper()

	splits := make([]models.JobSplit, scenes)
	for i := range splits {
		splits[i] = models.JobSplit{Index: i, StartMS: int64(i) * 1000, EndMS: int64(i+1) * 1000, Prompt: fmt.Sprintf("scene %d", i)}
	}

	results := pipeline.NewResultManager()
	results.Put(pipeline.SplitResult{Splits: splits})

	return &pipeline.Context{
		Job:       &models.Job{ID: "job-1", UserID: "user-1", Horizontal: true},
		Execution: models.NewJobExecution("exec-1", "job-1", "host-1", 0),
		Workspace: t.TempDir(),
		Results:   results,
	}
}

func TestImageStep_SmallJobRunsSequentially(t *testing.T) {
	service := &fakeImageService{}
	step := NewImageStep(Deps{Images: service, Logger: common.GetLogger()})

	result, err := step.Execute(context.Background(), imageContext(t, 2))
	require.NoError(t, err)

	images := result.(pipeline.ImageStepResult)
	assert.Equal(t, 2, service.singles)
	assert.Equal(t, 0, service.batches)
	assert.Equal(t, 1, images.ParallelCount)
	require.Len(t, images.ImagePaths, 2)
	assert.Contains(t, images.ImagePaths[0], "scene_000.png")
	assert.Contains(t, images.ImagePaths[1], "scene_001.png")
}

func TestImageStep_LargeJobUsesBatch(t *testing.T) {
	service := &fakeImageService{}
	step := NewImageStep(Deps{Images: service, Logger: common.GetLogger()})

	result, err := step.Execute(context.Background(), imageContext(t, 5))
	require.NoError(t, err)

	images := result.(pipeline.ImageStepResult)
	assert.Equal(t, 0, service.singles)
	assert.Equal(t, 1, service.batches)
	require.Len(t, images.ImagePaths, 5)
	for i, path := range images.ImagePaths {
		assert.Contains(t, path, fmt.Sprintf("scene_%03d.png", i))
	}
}

func TestImageStep_FailedSceneFailsStep(t *testing.T) {
	service := &fakeImageService{failAt: 2}
	step := NewImageStep(Deps{Images: service, Logger: common.GetLogger()})

	_, err := step.Execute(context.Background(), imageContext(t, 4))
	require.Error(t, err)

	var stepErr *pipeline.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.True(t, stepErr.Permanent)
	assert.Contains(t, stepErr.Err.Error(), "scene 1")
}

func TestSubtitleStep_TraditionalConversion(t *testing.T) {
	workspace := t.TempDir()
	srtPath := filepath.Join(workspace, "subtitle.srt")
	content := "1\n00:00:00,000 --> 00:00:02,000\n我们的国家\n"
	require.NoError(t, os.WriteFile(srtPath, []byte(content), 0644))

	results := pipeline.NewResultManager()
	results.Put(pipeline.TTSResult{AudioPath: filepath.Join(workspace, "speech.wav"), SRTPath: srtPath})

	pctx := &pipeline.Context{
		Job:       &models.Job{ID: "job-1"},
		Execution: models.NewJobExecution("exec-1", "job-1", "host-1", 0),
		Language:  &models.Language{Code: "zh-TW"},
		Workspace: workspace,
		Results:   results,
	}

	step := NewSubtitleStep(Deps{Logger: common.GetLogger()})
	result, err := step.Execute(context.Background(), pctx)
	require.NoError(t, err)

	sub := result.(pipeline.SubtitleResult)
	assert.Equal(t, 1, sub.SubtitleCount)

	rewritten, err := os.ReadFile(srtPath)
	require.NoError(t, err)
	assert.Contains(t, string(rewritten), "國家")
}

func TestTransitionTypes(t *testing.T) {
	plain := &pipeline.Context{Job: &models.Job{}}
	assert.Nil(t, transitionTypes(plain))

	enabled := &pipeline.Context{
		Job:   &models.Job{},
		Topic: &models.Topic{Extras: map[string]any{"enable_srt_concat_transition": true}},
	}
	assert.Equal(t, []string{"fade"}, transitionTypes(enabled))

	custom := &pipeline.Context{
		Job: &models.Job{},
		Topic: &models.Topic{Extras: map[string]any{
			"enable_srt_concat_transition": true,
			"transition_types":             []any{"fade", "wipeleft"},
		}},
	}
	assert.Equal(t, []string{"fade", "wipeleft"}, transitionTypes(custom))
}

type fakeStorageService struct {
	fail   map[string]bool
	prefix string
}

func (f *fakeStorageService) Upload(ctx context.Context, localPath, key string, metadata map[string]string) (*interfaces.UploadResult, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStorageService) UploadBatch(ctx context.Context, files map[string]string, prefix string, metadata map[string]string) (*interfaces.BatchUploadResult, error) {
	f.prefix = prefix
	batch := &interfaces.BatchUploadResult{Results: make(map[string]*interfaces.UploadResult)}
	for artifact, localPath := range files {
		if f.fail[artifact] {
			batch.Results[artifact] = &interfaces.UploadResult{Success: false, Error: "denied"}
			batch.FailedCount++
			continue
		}
		batch.Results[artifact] = &interfaces.UploadResult{
			Success: true,
			FileKey: prefix + "/" + filepath.Base(localPath),
		}
		batch.SuccessCount++
	}
	return batch, nil
}

func (f *fakeStorageService) DownloadURL(ctx context.Context, key string, expiresInSeconds int) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeStorageService) Delete(ctx context.Context, key string) (bool, error) {
	return false, nil
}

func uploadContext(t *testing.T) *pipeline.Context {
	t.Helper()
	workspace := t.TempDir()

	coverSource := filepath.Join(workspace, "scene_000.png")
	require.NoError(t, os.WriteFile(coverSource, []byte("png"), 0644))

	results := pipeline.NewResultManager()
	results.Put(pipeline.PostProcessResult{
		FinalVideoPath: filepath.Join(workspace, "final.mp4"),
		AudioPath:      filepath.Join(workspace, "audio.mp3"),
	})
	results.Put(pipeline.ImageStepResult{ImagePaths: []string{coverSource}})
	results.Put(pipeline.SubtitleResult{SRTPath: filepath.Join(workspace, "subtitle.srt")})
	results.Put(pipeline.TTSResult{AudioPath: filepath.Join(workspace, "speech.wav")})

	return &pipeline.Context{
		Job:       &models.Job{ID: "job-9", UserID: "11112222-3333-4444-5555-666677778888"},
		Execution: models.NewJobExecution("exec-9", "job-9", "host-1", 0),
		Workspace: workspace,
		Results:   results,
	}
}

func TestUploadStep_AllArtifactsSucceed(t *testing.T) {
	storage := &fakeStorageService{}
	step := NewUploadStep(Deps{Storage: storage, Logger: common.GetLogger()})

	result, err := step.Execute(context.Background(), uploadContext(t))
	require.NoError(t, err)

	upload := result.(pipeline.UploadStepResult)
	assert.Equal(t, pipeline.UploadSuccess, upload.Status)
	assert.Equal(t, "videos/11112222333344445555666677778888/job-9", storage.prefix)

	require.NotNil(t, upload.Keys.VideoKey)
	assert.Equal(t, storage.prefix+"/final.mp4", *upload.Keys.VideoKey)
	require.NotNil(t, upload.Keys.CoverKey)
	assert.Equal(t, storage.prefix+"/cover.png", *upload.Keys.CoverKey)
	require.NotNil(t, upload.Keys.AudioKey)
	assert.Equal(t, storage.prefix+"/audio.mp3", *upload.Keys.AudioKey)
	require.NotNil(t, upload.Keys.SRTKey)
	assert.Equal(t, storage.prefix+"/subtitle.srt", *upload.Keys.SRTKey)
}

func TestUploadStep_MissingSecondaryArtifactIsPartial(t *testing.T) {
	storage := &fakeStorageService{fail: map[string]bool{artifactSRT: true}}
	step := NewUploadStep(Deps{Storage: storage, Logger: common.GetLogger()})

	result, err := step.Execute(context.Background(), uploadContext(t))
	require.NoError(t, err)

	upload := result.(pipeline.UploadStepResult)
	assert.Equal(t, pipeline.UploadPartial, upload.Status)
	assert.Nil(t, upload.Keys.SRTKey)
	assert.NotNil(t, upload.Keys.VideoKey)
}

func TestUploadStep_FailedVideoFailsStep(t *testing.T) {
	storage := &fakeStorageService{fail: map[string]bool{artifactVideo: true}}
	step := NewUploadStep(Deps{Storage: storage, Logger: common.GetLogger()})

	_, err := step.Execute(context.Background(), uploadContext(t))
	require.Error(t, err)

	var stepErr *pipeline.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Contains(t, stepErr.Err.Error(), "video artifact")
}

func TestWantsTraditional(t *testing.T) {
	base := &pipeline.Context{Job: &models.Job{}, Language: &models.Language{Code: "zh-CN"}}
	assert.False(t, wantsTraditional(base))

	tw := &pipeline.Context{Job: &models.Job{}, Language: &models.Language{Code: "zh-TW"}}
	assert.True(t, wantsTraditional(tw))

	flagged := &pipeline.Context{
		Job:      &models.Job{Extras: map[string]any{"traditional_subtitles": true}},
		Language: &models.Language{Code: "en-US"},
	}
	assert.True(t, wantsTraditional(flagged))

	// The nested language_config form arrives as map[string]any after the
	// extras round-trip through JSON.
	nested := &pipeline.Context{
		Job: &models.Job{Extras: map[string]any{
			"language_config": map[string]any{"traditional_chinese": true},
		}},
		Language: &models.Language{Code: "zh-CN"},
	}
	assert.True(t, wantsTraditional(nested))

	disabled := &pipeline.Context{
		Job: &models.Job{Extras: map[string]any{
			"language_config": map[string]any{"traditional_chinese": false},
		}},
		Language: &models.Language{Code: "zh-CN"},
	}
	assert.False(t, wantsTraditional(disabled))
}
