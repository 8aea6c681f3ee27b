package pipeline

import "fmt"

// StepError marks a failure inside one step. Permanent steers the broker
// ack/nack decision at the executor boundary.
type StepError struct {
	Step      string
	Permanent bool
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// NewStepError wraps err as a step failure.
func NewStepError(step string, err error) *StepError {
	return &StepError{Step: step, Err: err}
}

// PipelineError wraps the StepError that aborted a pipeline run.
type PipelineError struct {
	FailedStep string
	Err        error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline failed at step %q: %v", e.FailedStep, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
