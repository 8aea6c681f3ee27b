package pipeline

import "context"

// Canonical step names in pipeline order.
const (
	StepTTS          = "TextToSpeech"
	StepSubtitle     = "Subtitle"
	StepSplit        = "TextSplit"
	StepImage        = "ImageGeneration"
	StepVideo        = "VideoComposition"
	StepDigitalHuman = "DigitalHuman"
	StepPostProcess  = "PostProcessing"
	StepUpload       = "Upload"
)

// Step is one unit of pipeline work. Steps are functional: Execute returns a
// typed StepResult and never mutates the context. Validate runs before
// Execute and also resets any stateful intermediate fields. PostProcess is
// best-effort cleanup and never fails the step.
type Step interface {
	Name() string
	Description() string
	Validate(ctx context.Context, pctx *Context) error
	Execute(ctx context.Context, pctx *Context) (StepResult, error)
	PostProcess(ctx context.Context, pctx *Context, result StepResult)
}

// BaseStep provides the no-op PostProcess most steps share.
type BaseStep struct{}

func (BaseStep) PostProcess(ctx context.Context, pctx *Context, result StepResult) {}

// ConditionalStep is a step the executor may skip. When ShouldExecute
// returns false the executor records "{name}(skipped)" in the step history
// and proceeds without invoking Execute.
type ConditionalStep interface {
	Step
	ShouldExecute(pctx *Context) bool
}
