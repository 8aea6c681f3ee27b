package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vidsmith/internal/common"
	"github.com/ternarybob/vidsmith/internal/interfaces"
	"github.com/ternarybob/vidsmith/internal/models"
	"github.com/ternarybob/vidsmith/internal/pipeline"
	"github.com/ternarybob/vidsmith/internal/pipeline/steps"
	"github.com/ternarybob/vidsmith/internal/storage/sqlite"
)

// JobExecutor processes one "process_video_job" delivery end to end: it
// creates an execution row, loads the job and its catalog snapshot, runs the
// pipeline in a per-execution workspace, and persists the outcome. The broker
// ack/nack decision is made by the caller from the returned error.
type JobExecutor struct {
	storage  interfaces.StorageManager
	deps     steps.Deps
	config   *common.Config
	logger   arbor.ILogger
	hostname string
}

func NewJobExecutor(logger arbor.ILogger, config *common.Config, storage interfaces.StorageManager, deps steps.Deps) *JobExecutor {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return &JobExecutor{
		storage:  storage,
		deps:     deps,
		config:   config,
		logger:   logger,
		hostname: hostname,
	}
}

// Execute runs the pipeline for the job named in the delivery. A permanent
// error means retrying cannot help; the caller should ack the delivery either
// way and only nack on transient errors.
func (e *JobExecutor) Execute(ctx context.Context, delivery *interfaces.Delivery) error {
	jobID, _ := delivery.Payload.Kwargs["job_id"].(string)
	if jobID == "" {
		return &pipeline.StepError{Step: "dispatch", Permanent: true, Err: fmt.Errorf("delivery carries no job_id")}
	}

	job, err := e.storage.Jobs().GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return &pipeline.StepError{Step: "dispatch", Permanent: true, Err: fmt.Errorf("job %s no longer exists", jobID)}
		}
		return fmt.Errorf("failed to load job %s: %w", jobID, err)
	}

	// A cancel that lands while the message is still queued marks the PENDING
	// execution CANCELLED without dequeuing; the delivery is dropped here. The
	// timestamp guard keeps a resubmit after an earlier cancel alive.
	if latest, err := e.storage.Executions().LatestExecution(ctx, jobID); err == nil {
		if latest.Status == models.StatusCancelled && latest.FinishedAt != nil && latest.FinishedAt.After(delivery.EnqueuedAt) {
			e.logger.Info().
				Str("job_id", jobID).
				Str("execution_id", latest.ID).
				Msg("Dropping delivery for cancelled execution")
			return nil
		}
	} else if !errors.Is(err, sqlite.ErrNotFound) {
		return fmt.Errorf("failed to load latest execution for job %s: %w", jobID, err)
	}

	// Each delivery gets its own execution row; retry_count is the number of
	// deliveries before this one.
	execution := models.NewJobExecution(common.NewID(), job.ID, e.hostname, delivery.DeliveryCount-1)
	if err := e.storage.Executions().CreateExecution(ctx, execution); err != nil {
		return fmt.Errorf("failed to create execution for job %s: %w", jobID, err)
	}

	pctx, err := e.buildContext(ctx, job, execution)
	if err != nil {
		e.failBeforeRun(ctx, execution, err)
		return err
	}

	e.logger.Info().
		Str("job_id", job.ID).
		Str("execution_id", execution.ID).
		Int("retry_count", execution.RetryCount).
		Msg("Starting job execution")

	runCtx, cancel := context.WithTimeout(ctx, e.config.WorkerSoftTimeout())
	defer cancel()

	results, err := pipeline.NewExecutor(e.logger, e.storage.Executions()).
		Run(runCtx, steps.DefaultPipeline(e.deps), pctx)
	if err != nil {
		// The pipeline executor already marked the execution FAILED. The
		// workspace stays on disk for inspection until the TTL sweep.
		return err
	}

	return e.finish(ctx, pctx, results)
}

// buildContext loads the catalog snapshot and prepares the workspace.
func (e *JobExecutor) buildContext(ctx context.Context, job *models.Job, execution *models.JobExecution) (*pipeline.Context, error) {
	catalog := e.storage.Catalog()

	language, err := catalog.GetLanguage(ctx, job.LanguageID)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return nil, &pipeline.StepError{Step: "dispatch", Permanent: true, Err: fmt.Errorf("job %s references missing language %s", job.ID, job.LanguageID)}
		}
		return nil, fmt.Errorf("failed to load language %s: %w", job.LanguageID, err)
	}

	pctx := &pipeline.Context{
		Job:       job,
		Execution: execution,
		Language:  language,
		Results:   pipeline.NewResultManager(),
	}

	// Voice, topic and account are optional; a dangling reference downgrades
	// to absent rather than failing the job.
	if job.VoiceID != "" {
		if voice, err := catalog.GetVoice(ctx, job.VoiceID); err == nil {
			pctx.Voice = voice
		} else if !errors.Is(err, sqlite.ErrNotFound) {
			return nil, fmt.Errorf("failed to load voice %s: %w", job.VoiceID, err)
		} else {
			e.logger.Warn().Str("job_id", job.ID).Str("voice_id", job.VoiceID).Msg("Voice not found, using default")
		}
	}
	if job.TopicID != "" {
		if topic, err := catalog.GetTopic(ctx, job.TopicID); err == nil {
			pctx.Topic = topic
		} else if !errors.Is(err, sqlite.ErrNotFound) {
			return nil, fmt.Errorf("failed to load topic %s: %w", job.TopicID, err)
		} else {
			e.logger.Warn().Str("job_id", job.ID).Str("topic_id", job.TopicID).Msg("Topic not found, prompts use scene text only")
		}
	}
	if job.AccountID != "" {
		if account, err := catalog.GetAccount(ctx, job.AccountID); err == nil {
			pctx.Account = account
		} else if !errors.Is(err, sqlite.ErrNotFound) {
			return nil, fmt.Errorf("failed to load account %s: %w", job.AccountID, err)
		} else {
			e.logger.Warn().Str("job_id", job.ID).Str("account_id", job.AccountID).Msg("Account not found, skipping branding")
		}
	}

	pctx.Workspace = e.WorkspacePath(job.UserID, job.ID)
	if err := os.MkdirAll(pctx.Workspace, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace %s: %w", pctx.Workspace, err)
	}

	return pctx, nil
}

// WorkspacePath returns the per-job scratch directory.
func (e *JobExecutor) WorkspacePath(userID, jobID string) string {
	return filepath.Join(e.config.Worker.WorkspaceBase, common.CompactID(userID), jobID)
}

// finish persists the upload keys, marks the execution SUCCESS and removes
// the workspace. The workspace is only removed once the upload succeeded.
func (e *JobExecutor) finish(ctx context.Context, pctx *pipeline.Context, results map[string]pipeline.StepResult) error {
	execution := pctx.Execution

	detail := "Pipeline completed"
	if upload, ok := results[pipeline.StepUpload].(pipeline.UploadStepResult); ok {
		keys, err := upload.Keys.ToJSON()
		if err != nil {
			return fmt.Errorf("failed to serialize result keys: %w", err)
		}
		execution.ResultKey = keys
		detail = fmt.Sprintf("Pipeline completed, upload %s", upload.Status)
	}

	if err := execution.Transition(models.StatusSuccess, detail); err != nil {
		return err
	}
	if err := e.storage.Executions().UpdateExecution(ctx, execution); err != nil {
		return fmt.Errorf("failed to persist execution result: %w", err)
	}

	if err := os.RemoveAll(pctx.Workspace); err != nil {
		e.logger.Warn().Err(err).Str("workspace", pctx.Workspace).Msg("Failed to remove workspace")
	}

	e.logger.Info().
		Str("job_id", pctx.Job.ID).
		Str("execution_id", execution.ID).
		Msg("Job execution succeeded")
	return nil
}

// failBeforeRun marks an execution FAILED when setup broke before the
// pipeline ever started.
func (e *JobExecutor) failBeforeRun(ctx context.Context, execution *models.JobExecution, cause error) {
	execution.ErrorMessage = cause.Error()
	if err := execution.Transition(models.StatusRunning, "Preparing execution"); err == nil {
		if err := execution.Transition(models.StatusFailed, cause.Error()); err == nil {
			if err := e.storage.Executions().UpdateExecution(ctx, execution); err != nil {
				e.logger.Error().Err(err).Str("execution_id", execution.ID).Msg("Failed to persist setup failure")
			}
		}
	}
}

// IsPermanent reports whether retrying the delivery cannot change the
// outcome. Unknown errors default to transient so redelivery gets a chance.
// A stale-execution write means the row already reached a terminal status,
// which no retry can undo.
func IsPermanent(err error) bool {
	var stepErr *pipeline.StepError
	if errors.As(err, &stepErr) {
		return stepErr.Permanent
	}
	return errors.Is(err, sqlite.ErrStaleExecution)
}
