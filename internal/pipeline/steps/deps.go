package steps

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vidsmith/internal/interfaces"
	"github.com/ternarybob/vidsmith/internal/media"
	"github.com/ternarybob/vidsmith/internal/pipeline"
)

// Deps carries the services the steps call. The worker runtime builds one
// Deps per process and shares it across executions; steps themselves are
// instantiated per execution.
type Deps struct {
	TTS          interfaces.TTSService
	Images       interfaces.ImageGenerationService
	Storage      interfaces.FileStorageService
	DigitalHuman interfaces.DigitalHumanService
	LLM          interfaces.LLMService
	Splits       interfaces.SplitStorage
	Media        *media.Engine
	Logger       arbor.ILogger
}

// DefaultPipeline assembles the standard eight-step composition.
func DefaultPipeline(deps Deps) *pipeline.Pipeline {
	return pipeline.New().AddSteps(
		NewTTSStep(deps),
		NewSubtitleStep(deps),
		NewSplitStep(deps),
		NewImageStep(deps),
		NewVideoStep(deps),
		NewDigitalHumanStep(deps),
		NewPostProcessStep(deps),
		NewUploadStep(deps),
	)
}
