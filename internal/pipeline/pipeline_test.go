package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/vidsmith/internal/common"
	"github.com/ternarybob/vidsmith/internal/interfaces"
	"github.com/ternarybob/vidsmith/internal/models"
)

type fakeExecutionStore struct {
	updates int
}

func (f *fakeExecutionStore) CreateExecution(ctx context.Context, execution *models.JobExecution) error {
	return nil
}

func (f *fakeExecutionStore) GetExecution(ctx context.Context, id string) (*models.JobExecution, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeExecutionStore) UpdateExecution(ctx context.Context, execution *models.JobExecution) error {
	f.updates++
	return nil
}

func (f *fakeExecutionStore) TransitionExecution(ctx context.Context, id string, to models.ExecutionStatus, detail string) error {
	return nil
}

func (f *fakeExecutionStore) LatestExecution(ctx context.Context, jobID string) (*models.JobExecution, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeExecutionStore) ListExecutions(ctx context.Context, query interfaces.Query) ([]*models.JobExecution, error) {
	return nil, nil
}

func (f *fakeExecutionStore) CountByStatus(ctx context.Context) (map[models.ExecutionStatus]int, error) {
	return nil, nil
}

func (f *fakeExecutionStore) ResetStuck(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}

func (f *fakeExecutionStore) SweepOld(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}

type fakeResult struct {
	step string
}

func (r fakeResult) ResultStep() string { return r.step }

type fakeStep struct {
	BaseStep
	name    string
	fail    error
	visited *[]string
}

func (s *fakeStep) Name() string        { return s.name }
func (s *fakeStep) Description() string { return s.name }

func (s *fakeStep) Validate(ctx context.Context, pctx *Context) error { return nil }

func (s *fakeStep) Execute(ctx context.Context, pctx *Context) (StepResult, error) {
	if s.visited != nil {
		*s.visited = append(*s.visited, s.name)
	}
	if s.fail != nil {
		return nil, s.fail
	}
	return fakeResult{step: s.name}, nil
}

type fakeConditionalStep struct {
	fakeStep
	should bool
}

func (s *fakeConditionalStep) ShouldExecute(pctx *Context) bool { return s.should }

func testContext() *Context {
	return &Context{
		Job:       &models.Job{ID: "job-1", UserID: "user-1"},
		Execution: models.NewJobExecution("exec-1", "job-1", "host-1", 0),
		Results:   NewResultManager(),
	}
}

func TestExecutor_RunsStepsInOrder(t *testing.T) {
	store := &fakeExecutionStore{}
	executor := NewExecutor(common.GetLogger(), store)

	var visited []string
	p := New().AddSteps(
		&fakeStep{name: "First", visited: &visited},
		&fakeStep{name: "Second", visited: &visited},
	)

	pctx := testContext()
	results, err := executor.Run(context.Background(), p, pctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"First", "Second"}, visited)
	assert.Len(t, results, 2)
	assert.Equal(t, models.StatusRunning, pctx.Execution.Status)
	assert.Equal(t, "Running: Second (2/2)", pctx.Execution.StatusDetail)

	history, ok := pctx.Execution.Metadata["steps"].([]models.StepExecutionRecord)
	require.True(t, ok)
	require.Len(t, history, 2)
	assert.Equal(t, "success", history[0].Status)
	assert.Equal(t, "success", history[1].Status)
}

func TestExecutor_SkipsConditionalStep(t *testing.T) {
	store := &fakeExecutionStore{}
	executor := NewExecutor(common.GetLogger(), store)

	var visited []string
	p := New().AddSteps(
		&fakeStep{name: "Always", visited: &visited},
		&fakeConditionalStep{fakeStep: fakeStep{name: "Sometimes", visited: &visited}, should: false},
	)

	pctx := testContext()
	_, err := executor.Run(context.Background(), p, pctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"Always"}, visited)

	history := pctx.Execution.Metadata["steps"].([]models.StepExecutionRecord)
	require.Len(t, history, 2)
	assert.Equal(t, "Sometimes(skipped)", history[1].Name)
	assert.Equal(t, "skipped", history[1].Status)
}

func TestExecutor_FailureMarksExecution(t *testing.T) {
	store := &fakeExecutionStore{}
	executor := NewExecutor(common.GetLogger(), store)

	p := New().AddSteps(
		&fakeStep{name: "Ok"},
		&fakeStep{name: "Boom", fail: fmt.Errorf("disk on fire")},
		&fakeStep{name: "Never"},
	)

	pctx := testContext()
	_, err := executor.Run(context.Background(), p, pctx)
	require.Error(t, err)

	var pipelineErr *PipelineError
	require.ErrorAs(t, err, &pipelineErr)
	assert.Equal(t, "Boom", pipelineErr.FailedStep)

	assert.Equal(t, models.StatusFailed, pctx.Execution.Status)
	assert.Contains(t, pctx.Execution.ErrorMessage, "Failed step 'Boom'")

	history := pctx.Execution.Metadata["steps"].([]models.StepExecutionRecord)
	require.Len(t, history, 2)
	assert.Equal(t, "failed", history[1].Status)
}

func TestExecutor_MissingInputIsPermanent(t *testing.T) {
	store := &fakeExecutionStore{}
	executor := NewExecutor(common.GetLogger(), store)

	// Subtitle declares a dependency on the synthesis result, which is absent.
	p := New().AddStep(&fakeStep{name: StepSubtitle})

	pctx := testContext()
	_, err := executor.Run(context.Background(), p, pctx)
	require.Error(t, err)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.True(t, stepErr.Permanent)
	assert.Contains(t, stepErr.Err.Error(), "requires")
}

func TestExecutor_EmptyPipeline(t *testing.T) {
	executor := NewExecutor(common.GetLogger(), &fakeExecutionStore{})
	_, err := executor.Run(context.Background(), New(), testContext())
	require.Error(t, err)
}

func TestPipeline_Builder(t *testing.T) {
	p := New().AddSteps(
		&fakeStep{name: "A"},
		&fakeStep{name: "C"},
	)
	p.InsertStep(1, &fakeStep{name: "B"})

	names := make([]string, 0, p.StepCount())
	for _, step := range p.Steps() {
		names = append(names, step.Name())
	}
	assert.Equal(t, []string{"A", "B", "C"}, names)

	require.NoError(t, p.RemoveStep("B"))
	require.Error(t, p.RemoveStep("B"))
	assert.Equal(t, 2, p.StepCount())

	p.ClearSteps()
	assert.Equal(t, 0, p.StepCount())
}

func TestResultManager_TypedAccessors(t *testing.T) {
	m := NewResultManager()
	m.Put(TTSResult{AudioPath: "/tmp/speech.wav"})

	tts, ok := m.TTS()
	require.True(t, ok)
	assert.Equal(t, "/tmp/speech.wav", tts.AudioPath)

	_, ok = m.Video()
	assert.False(t, ok)
}
