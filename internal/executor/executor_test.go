package executor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/vidsmith/internal/common"
	"github.com/ternarybob/vidsmith/internal/interfaces"
	"github.com/ternarybob/vidsmith/internal/models"
	"github.com/ternarybob/vidsmith/internal/pipeline/steps"
	"github.com/ternarybob/vidsmith/internal/storage/sqlite"
)

func setupExecutor(t *testing.T) (*JobExecutor, interfaces.StorageManager) {
	t.Helper()

	cfg := common.NewDefaultConfig()
	cfg.Worker.WorkspaceBase = t.TempDir()

	dbConfig := &common.DatabaseConfig{
		Path:          filepath.Join(t.TempDir(), "test.db"),
		WALMode:       true,
		BusyTimeoutMS: 5000,
		CacheSizeMB:   16,
	}
	manager, err := sqlite.NewManager(common.GetLogger(), dbConfig)
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	jobExecutor := NewJobExecutor(common.GetLogger(), cfg, manager, steps.Deps{Logger: common.GetLogger()})
	return jobExecutor, manager
}

func saveTestJob(t *testing.T, storage interfaces.StorageManager) *models.Job {
	t.Helper()
	job := &models.Job{
		ID:          common.NewID(),
		UserID:      "user-1",
		Title:       "Morning news recap",
		Content:     "Today we look at three stories.",
		LanguageID:  "lang-1",
		SpeechSpeed: 1.0,
	}
	require.NoError(t, storage.Jobs().SaveJob(context.Background(), job))
	return job
}

func TestExecute_DropsDeliveryForCancelledExecution(t *testing.T) {
	jobExecutor, storage := setupExecutor(t)
	ctx := context.Background()

	job := saveTestJob(t, storage)
	execution := models.NewJobExecution(common.NewID(), job.ID, "host-1", 0)
	require.NoError(t, storage.Executions().CreateExecution(ctx, execution))
	require.NoError(t, storage.Executions().TransitionExecution(ctx, execution.ID, models.StatusCancelled, "Cancelled by user"))

	delivery := &interfaces.Delivery{
		Queue:         interfaces.QueueVideoProcessing,
		Payload:       interfaces.TaskPayload{TaskName: interfaces.TaskProcessVideoJob, Kwargs: map[string]any{"job_id": job.ID}},
		DeliveryCount: 1,
		EnqueuedAt:    time.Now().Add(-time.Minute),
	}

	// The queued message is dropped without starting a run.
	require.NoError(t, jobExecutor.Execute(ctx, delivery))

	executions, err := storage.Executions().ListExecutions(ctx, interfaces.Query{
		Filters: []interfaces.Filter{{Field: "job_id", Op: interfaces.OpEq, Value: job.ID}},
	})
	require.NoError(t, err)
	require.Len(t, executions, 1)
	assert.Equal(t, models.StatusCancelled, executions[0].Status)
}

func TestExecute_ResubmitAfterCancelStillRuns(t *testing.T) {
	jobExecutor, storage := setupExecutor(t)
	ctx := context.Background()

	job := saveTestJob(t, storage)
	execution := models.NewJobExecution(common.NewID(), job.ID, "host-1", 0)
	require.NoError(t, storage.Executions().CreateExecution(ctx, execution))
	require.NoError(t, storage.Executions().TransitionExecution(ctx, execution.ID, models.StatusCancelled, "Cancelled by user"))

	// A fresh submit enqueued after the cancel must not be dropped. The run
	// fails on the missing language, proving it got past the drop check and
	// created its own execution row.
	delivery := &interfaces.Delivery{
		Queue:         interfaces.QueueVideoProcessing,
		Payload:       interfaces.TaskPayload{TaskName: interfaces.TaskProcessVideoJob, Kwargs: map[string]any{"job_id": job.ID}},
		DeliveryCount: 1,
		EnqueuedAt:    time.Now().Add(time.Minute),
	}

	err := jobExecutor.Execute(ctx, delivery)
	require.Error(t, err)
	assert.True(t, IsPermanent(err))

	executions, err := storage.Executions().ListExecutions(ctx, interfaces.Query{
		Filters: []interfaces.Filter{{Field: "job_id", Op: interfaces.OpEq, Value: job.ID}},
	})
	require.NoError(t, err)
	assert.Len(t, executions, 2)
}
