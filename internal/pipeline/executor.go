package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vidsmith/internal/interfaces"
	"github.com/ternarybob/vidsmith/internal/models"
)

// Executor runs a pipeline for one execution, recording progress on the
// execution row as it goes. Step history accumulates in the execution
// metadata under "steps"; skipped conditional steps are recorded as
// "{name}(skipped)".
type Executor struct {
	executions interfaces.ExecutionStorage
	logger     arbor.ILogger
}

func NewExecutor(logger arbor.ILogger, executions interfaces.ExecutionStorage) *Executor {
	return &Executor{executions: executions, logger: logger}
}

// Run executes the steps in order and returns the full result map. On step
// failure the execution row is marked FAILED with the failing step named, and
// the returned error wraps the step error so the caller can classify it.
func (e *Executor) Run(ctx context.Context, p *Pipeline, pctx *Context) (map[string]StepResult, error) {
	steps := p.Steps()
	total := len(steps)
	if total == 0 {
		return nil, fmt.Errorf("pipeline has no steps")
	}
	if pctx.Results == nil {
		pctx.Results = NewResultManager()
	}

	if err := e.transition(ctx, pctx, models.StatusRunning,
		fmt.Sprintf("Pipeline started, %d steps", total)); err != nil {
		return nil, err
	}

	var history []models.StepExecutionRecord

	for i, step := range steps {
		name := step.Name()

		if conditional, ok := step.(ConditionalStep); ok && !conditional.ShouldExecute(pctx) {
			e.logger.Info().Str("step", name).Msg("Step skipped")
			history = append(history, models.StepExecutionRecord{
				Name:      name + "(skipped)",
				StartedAt: time.Now(),
				Status:    "skipped",
			})
			continue
		}

		detail := fmt.Sprintf("Running: %s (%d/%d)", name, i+1, total)
		if err := e.updateDetail(ctx, pctx, detail); err != nil {
			return nil, err
		}

		record := models.StepExecutionRecord{Name: name, StartedAt: time.Now()}
		result, err := e.runStep(ctx, step, pctx)
		now := time.Now()
		record.CompletedAt = &now

		if err != nil {
			record.Status = "failed"
			record.Error = err.Error()
			history = append(history, record)
			e.persistHistory(ctx, pctx, history)

			stepErr := &StepError{Step: name, Err: err}
			if se, ok := err.(*StepError); ok {
				stepErr = se
			}
			e.failExecution(ctx, pctx, stepErr)
			return nil, &PipelineError{FailedStep: name, Err: stepErr}
		}

		record.Status = "success"
		history = append(history, record)
		pctx.Results.Put(result)

		step.PostProcess(ctx, pctx, result)

		e.logger.Info().
			Str("step", name).
			Str("execution_id", pctx.Execution.ID).
			Dur("elapsed", now.Sub(record.StartedAt)).
			Msg("Step completed")
	}

	e.persistHistory(ctx, pctx, history)
	return pctx.Results.All(), nil
}

func (e *Executor) runStep(ctx context.Context, step Step, pctx *Context) (StepResult, error) {
	if err := resolveInputs(step.Name(), pctx.Results); err != nil {
		return nil, &StepError{Step: step.Name(), Permanent: true, Err: err}
	}
	if err := step.Validate(ctx, pctx); err != nil {
		return nil, &StepError{Step: step.Name(), Permanent: true, Err: fmt.Errorf("validation failed: %w", err)}
	}
	result, err := step.Execute(ctx, pctx)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, &StepError{Step: step.Name(), Permanent: true, Err: fmt.Errorf("step returned no result")}
	}
	return result, nil
}

func (e *Executor) transition(ctx context.Context, pctx *Context, to models.ExecutionStatus, detail string) error {
	if err := pctx.Execution.Transition(to, detail); err != nil {
		return err
	}
	return e.executions.UpdateExecution(ctx, pctx.Execution)
}

func (e *Executor) updateDetail(ctx context.Context, pctx *Context, detail string) error {
	pctx.Execution.StatusDetail = detail
	return e.executions.UpdateExecution(ctx, pctx.Execution)
}

func (e *Executor) persistHistory(ctx context.Context, pctx *Context, history []models.StepExecutionRecord) {
	pctx.Execution.SetMetadata("steps", history)
	if err := e.executions.UpdateExecution(ctx, pctx.Execution); err != nil {
		e.logger.Warn().Err(err).Str("execution_id", pctx.Execution.ID).Msg("Failed to persist step history")
	}
}

func (e *Executor) failExecution(ctx context.Context, pctx *Context, stepErr *StepError) {
	message := fmt.Sprintf("Failed step '%s': %v", stepErr.Step, stepErr.Err)
	pctx.Execution.ErrorMessage = message
	if err := e.transition(ctx, pctx, models.StatusFailed, message); err != nil {
		e.logger.Error().Err(err).Str("execution_id", pctx.Execution.ID).Msg("Failed to mark execution FAILED")
	}
}
