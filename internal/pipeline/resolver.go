package pipeline

import "fmt"

// stepInputs is the static table of which upstream results each step reads.
// The executor checks the table before invoking a step so a mis-assembled
// pipeline fails fast instead of inside a step.
var stepInputs = map[string][]string{
	StepTTS:          {},
	StepSubtitle:     {StepTTS},
	StepSplit:        {StepTTS, StepSubtitle},
	StepImage:        {StepSplit},
	StepVideo:        {StepImage, StepTTS},
	StepDigitalHuman: {StepVideo, StepTTS},
	StepPostProcess:  {StepVideo, StepTTS, StepSubtitle},
	StepUpload:       {StepPostProcess, StepImage, StepTTS, StepSubtitle},
}

// resolveInputs verifies the declared upstream results exist for a step.
// Unknown step names have no declared inputs and pass.
func resolveInputs(step string, results *ResultManager) error {
	for _, upstream := range stepInputs[step] {
		if results.Get(upstream) == nil {
			return fmt.Errorf("step %q requires the %q result, which is missing", step, upstream)
		}
	}
	return nil
}
