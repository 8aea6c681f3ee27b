package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/vidsmith/internal/common"
	"github.com/ternarybob/vidsmith/internal/interfaces"
	"github.com/ternarybob/vidsmith/internal/models"
)

func setupTestManager(t *testing.T) *Manager {
	t.Helper()

	config := &common.DatabaseConfig{
		Path:          filepath.Join(t.TempDir(), "test.db"),
		WALMode:       true,
		BusyTimeoutMS: 5000,
		CacheSizeMB:   16,
	}

	manager, err := NewManager(common.GetLogger(), config)
	require.NoError(t, err)

	t.Cleanup(func() {
		manager.Close()
	})

	return manager
}

func testJob(userID string) *models.Job {
	return &models.Job{
		ID:          common.NewID(),
		UserID:      userID,
		Title:       "Morning news recap",
		Content:     "Today we look at three stories.",
		LanguageID:  "lang-1",
		SpeechSpeed: 1.0,
	}
}

func TestJobStorage_SaveAndGet(t *testing.T) {
	manager := setupTestManager(t)
	ctx := context.Background()

	job := testJob("user-1")
	job.Extras = map[string]any{"transition_enabled": true}
	require.NoError(t, manager.Jobs().SaveJob(ctx, job))

	got, err := manager.Jobs().GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.Title, got.Title)
	assert.Equal(t, job.Content, got.Content)
	assert.Equal(t, true, got.ExtraBool("transition_enabled"))
	assert.False(t, got.Horizontal)

	// Upsert updates in place
	job.Title = "Evening news recap"
	require.NoError(t, manager.Jobs().SaveJob(ctx, job))
	got, err = manager.Jobs().GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "Evening news recap", got.Title)
}

func TestJobStorage_GetMissing(t *testing.T) {
	manager := setupTestManager(t)

	_, err := manager.Jobs().GetJob(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestJobStorage_ListFiltersAndPagination(t *testing.T) {
	manager := setupTestManager(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		job := testJob("user-1")
		job.RunOrder = i
		require.NoError(t, manager.Jobs().SaveJob(ctx, job))
	}
	other := testJob("user-2")
	require.NoError(t, manager.Jobs().SaveJob(ctx, other))

	jobs, err := manager.Jobs().ListJobs(ctx, interfaces.Query{
		Filters: []interfaces.Filter{{Field: "user_id", Op: interfaces.OpEq, Value: "user-1"}},
		Order:   []interfaces.Order{{Field: "run_order", Descending: true}},
		Page:    &interfaces.Page{Number: 1, Size: 3},
	})
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, 4, jobs[0].RunOrder)
	assert.Equal(t, 2, jobs[2].RunOrder)

	count, err := manager.Jobs().CountJobs(ctx, interfaces.Query{
		Filters: []interfaces.Filter{{Field: "user_id", Op: interfaces.OpEq, Value: "user-1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestJobStorage_DeleteCascades(t *testing.T) {
	manager := setupTestManager(t)
	ctx := context.Background()

	job := testJob("user-1")
	require.NoError(t, manager.Jobs().SaveJob(ctx, job))

	execution := models.NewJobExecution(common.NewID(), job.ID, "worker-1", 0)
	require.NoError(t, manager.Executions().CreateExecution(ctx, execution))
	require.NoError(t, manager.Splits().ReplaceSplits(ctx, job.ID, []models.JobSplit{
		{Index: 0, StartMS: 0, EndMS: 5000, Text: "scene one"},
	}))

	require.NoError(t, manager.Jobs().DeleteJob(ctx, job.ID))

	_, err := manager.Jobs().GetJob(ctx, job.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	got, err := manager.Executions().GetExecution(ctx, execution.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.DeletedAt)

	splits, err := manager.Splits().ListSplits(ctx, job.ID)
	require.NoError(t, err)
	assert.Empty(t, splits)
}

func TestExecutionStorage_TransitionLifecycle(t *testing.T) {
	manager := setupTestManager(t)
	ctx := context.Background()

	execution := models.NewJobExecution(common.NewID(), "job-1", "worker-1", 0)
	require.NoError(t, manager.Executions().CreateExecution(ctx, execution))

	require.NoError(t, manager.Executions().TransitionExecution(ctx, execution.ID, models.StatusRunning, "Running: tts (1/8)"))

	got, err := manager.Executions().GetExecution(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, got.Status)
	assert.NotNil(t, got.StartedAt)
	assert.Nil(t, got.FinishedAt)

	require.NoError(t, manager.Executions().TransitionExecution(ctx, execution.ID, models.StatusSuccess, "Completed"))
	got, err = manager.Executions().GetExecution(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, got.Status)
	assert.NotNil(t, got.FinishedAt)

	// Terminal rows reject further edges
	err = manager.Executions().TransitionExecution(ctx, execution.ID, models.StatusRunning, "again")
	require.Error(t, err)
}

func TestExecutionStorage_StaleWriteCannotLeaveTerminalStatus(t *testing.T) {
	manager := setupTestManager(t)
	ctx := context.Background()

	execution := models.NewJobExecution(common.NewID(), "job-1", "worker-1", 0)
	require.NoError(t, manager.Executions().CreateExecution(ctx, execution))

	// A worker loads the row while it is still PENDING...
	snapshot, err := manager.Executions().GetExecution(ctx, execution.ID)
	require.NoError(t, err)

	// ...then the user cancels it.
	require.NoError(t, manager.Executions().TransitionExecution(ctx, execution.ID, models.StatusCancelled, "Cancelled by user"))

	// The worker's snapshot still thinks PENDING, so the model-level edge is
	// legal; the storage guard has to reject the write.
	require.NoError(t, snapshot.Transition(models.StatusRunning, "Running: tts (1/8)"))
	err = manager.Executions().UpdateExecution(ctx, snapshot)
	require.ErrorIs(t, err, ErrStaleExecution)

	got, err := manager.Executions().GetExecution(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
	assert.NotNil(t, got.FinishedAt)
}

func TestExecutionStorage_LatestExecution(t *testing.T) {
	manager := setupTestManager(t)
	ctx := context.Background()

	first := models.NewJobExecution(common.NewID(), "job-1", "worker-1", 0)
	first.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, manager.Executions().CreateExecution(ctx, first))

	second := models.NewJobExecution(common.NewID(), "job-1", "worker-1", 1)
	require.NoError(t, manager.Executions().CreateExecution(ctx, second))

	latest, err := manager.Executions().LatestExecution(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
}

func TestExecutionStorage_ResetStuck(t *testing.T) {
	manager := setupTestManager(t)
	ctx := context.Background()

	stuck := models.NewJobExecution(common.NewID(), "job-1", "worker-1", 0)
	require.NoError(t, manager.Executions().CreateExecution(ctx, stuck))
	require.NoError(t, manager.Executions().TransitionExecution(ctx, stuck.ID, models.StatusRunning, "working"))

	fresh := models.NewJobExecution(common.NewID(), "job-2", "worker-1", 0)
	require.NoError(t, manager.Executions().CreateExecution(ctx, fresh))
	require.NoError(t, manager.Executions().TransitionExecution(ctx, fresh.ID, models.StatusRunning, "working"))

	// Cutoff in the future sweeps both running rows; a past cutoff sweeps none.
	swept, err := manager.Executions().ResetStuck(ctx, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, swept)

	swept, err = manager.Executions().ResetStuck(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, swept)

	got, err := manager.Executions().GetExecution(ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusTimeout, got.Status)
	assert.NotEmpty(t, got.ErrorMessage)
}

func TestExecutionStorage_SweepOld(t *testing.T) {
	manager := setupTestManager(t)
	ctx := context.Background()

	old := models.NewJobExecution(common.NewID(), "job-1", "worker-1", 0)
	old.CreatedAt = time.Now().Add(-48 * time.Hour)
	require.NoError(t, manager.Executions().CreateExecution(ctx, old))
	require.NoError(t, manager.Executions().TransitionExecution(ctx, old.ID, models.StatusRunning, ""))
	require.NoError(t, manager.Executions().TransitionExecution(ctx, old.ID, models.StatusSuccess, ""))

	running := models.NewJobExecution(common.NewID(), "job-2", "worker-1", 0)
	running.CreatedAt = time.Now().Add(-48 * time.Hour)
	require.NoError(t, manager.Executions().CreateExecution(ctx, running))
	require.NoError(t, manager.Executions().TransitionExecution(ctx, running.ID, models.StatusRunning, ""))

	swept, err := manager.Executions().SweepOld(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	// Non-terminal rows survive the sweep
	got, err := manager.Executions().GetExecution(ctx, running.ID)
	require.NoError(t, err)
	assert.Nil(t, got.DeletedAt)
}

func TestExecutionStorage_CountByStatus(t *testing.T) {
	manager := setupTestManager(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		execution := models.NewJobExecution(common.NewID(), "job-1", "worker-1", 0)
		require.NoError(t, manager.Executions().CreateExecution(ctx, execution))
	}
	running := models.NewJobExecution(common.NewID(), "job-2", "worker-1", 0)
	require.NoError(t, manager.Executions().CreateExecution(ctx, running))
	require.NoError(t, manager.Executions().TransitionExecution(ctx, running.ID, models.StatusRunning, ""))

	counts, err := manager.Executions().CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, counts[models.StatusPending])
	assert.Equal(t, 1, counts[models.StatusRunning])
}

func TestSplitStorage_ReplaceAndList(t *testing.T) {
	manager := setupTestManager(t)
	ctx := context.Background()

	splits := []models.JobSplit{
		{Index: 0, StartMS: 0, EndMS: 4000, Text: "scene one", Prompt: "a quiet street"},
		{Index: 1, StartMS: 4000, EndMS: 9500, Text: "scene two", Prompt: "a busy market"},
	}
	require.NoError(t, manager.Splits().ReplaceSplits(ctx, "job-1", splits))

	got, err := manager.Splits().ListSplits(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(4000), got[0].EndMS)
	assert.Equal(t, "a busy market", got[1].Prompt)

	// Replace swaps the whole set
	require.NoError(t, manager.Splits().ReplaceSplits(ctx, "job-1", splits[:1]))
	got, err = manager.Splits().ListSplits(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestUserStorage_CreateAndLookup(t *testing.T) {
	manager := setupTestManager(t)
	ctx := context.Background()

	user := &models.User{
		ID:           common.NewID(),
		Username:     "alice",
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
	}
	require.NoError(t, manager.Users().CreateUser(ctx, user))

	got, err := manager.Users().GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Nil(t, got.LastLogin)

	// Duplicate usernames are rejected by the unique constraint
	dup := &models.User{ID: common.NewID(), Username: "alice", PasswordHash: "x"}
	require.Error(t, manager.Users().CreateUser(ctx, dup))

	at := time.Now()
	require.NoError(t, manager.Users().TouchLastLogin(ctx, user.ID, at))
	got, err = manager.Users().GetUser(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastLogin)
}

func TestCatalogStorage_AccountSettingsRoundTrip(t *testing.T) {
	manager := setupTestManager(t)
	ctx := context.Background()

	account := &models.Account{
		ID:     common.NewID(),
		UserID: "user-1",
		Name:   "Main channel",
		DigitalHuman: &models.DigitalHumanSettings{
			Mode:          "corner",
			VideoPath:     "/assets/human.mp4",
			IntroDuration: 3,
		},
		SubtitleStyle: &models.SubtitleStyle{Font: "SourceHanSans", FontSize: 42, Color: "white"},
	}
	require.NoError(t, manager.Catalog().SaveAccount(ctx, account))

	got, err := manager.Catalog().GetAccount(ctx, account.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DigitalHuman)
	assert.Equal(t, "corner", got.DigitalHuman.Mode)
	require.NotNil(t, got.SubtitleStyle)
	assert.Equal(t, 42, got.SubtitleStyle.FontSize)

	x, y, threshold := got.DigitalHuman.CornerDefaults()
	assert.Equal(t, 1000, x)
	assert.Equal(t, 300, y)
	assert.InDelta(t, 0.1, threshold, 0.0001)
}

func TestCatalogStorage_SoftDelete(t *testing.T) {
	manager := setupTestManager(t)
	ctx := context.Background()

	voice := &models.Voice{ID: common.NewID(), UserID: "user-1", Name: "narrator", Path: "/voices/a.wav"}
	require.NoError(t, manager.Catalog().SaveVoice(ctx, voice))
	require.NoError(t, manager.Catalog().DeleteVoice(ctx, voice.ID))

	_, err := manager.Catalog().GetVoice(ctx, voice.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	voices, err := manager.Catalog().ListVoices(ctx, interfaces.Query{})
	require.NoError(t, err)
	assert.Empty(t, voices)

	voices, err = manager.Catalog().ListVoices(ctx, interfaces.Query{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Len(t, voices, 1)
}

func TestBuildQuery_RejectsUnknownField(t *testing.T) {
	_, _, err := buildQuery(interfaces.Query{
		Filters: []interfaces.Filter{{Field: "password_hash; DROP TABLE users", Op: interfaces.OpEq, Value: "x"}},
	}, jobColumns)
	require.Error(t, err)
}

func TestBuildQuery_InOperator(t *testing.T) {
	tail, args, err := buildQuery(interfaces.Query{
		Filters: []interfaces.Filter{{Field: "status", Op: interfaces.OpIn, Value: []string{"PENDING", "RUNNING"}}},
	}, executionColumns)
	require.NoError(t, err)
	assert.Contains(t, tail, "status IN (?, ?)")
	assert.Len(t, args, 2)

	// Empty IN matches nothing instead of erroring
	tail, _, err = buildQuery(interfaces.Query{
		Filters: []interfaces.Filter{{Field: "status", Op: interfaces.OpIn, Value: []string{}}},
	}, executionColumns)
	require.NoError(t, err)
	assert.Contains(t, tail, "1 = 0")
}
