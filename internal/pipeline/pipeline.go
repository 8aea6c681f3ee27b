package pipeline

import "fmt"

// Pipeline is an ordered list of steps assembled with the builder methods.
// Steps are instantiated once per job execution.
type Pipeline struct {
	steps []Step
}

func New() *Pipeline {
	return &Pipeline{}
}

// AddStep appends a step.
func (p *Pipeline) AddStep(step Step) *Pipeline {
	p.steps = append(p.steps, step)
	return p
}

// AddSteps appends steps in order.
func (p *Pipeline) AddSteps(steps ...Step) *Pipeline {
	p.steps = append(p.steps, steps...)
	return p
}

// InsertStep inserts a step at the given position; out-of-range positions
// clamp to the ends.
func (p *Pipeline) InsertStep(index int, step Step) *Pipeline {
	if index < 0 {
		index = 0
	}
	if index > len(p.steps) {
		index = len(p.steps)
	}
	p.steps = append(p.steps[:index], append([]Step{step}, p.steps[index:]...)...)
	return p
}

// RemoveStep removes the first step with the given name.
func (p *Pipeline) RemoveStep(name string) error {
	for i, step := range p.steps {
		if step.Name() == name {
			p.steps = append(p.steps[:i], p.steps[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("pipeline has no step named %q", name)
}

// ClearSteps removes every step.
func (p *Pipeline) ClearSteps() {
	p.steps = nil
}

// StepCount returns the number of steps.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// Steps returns the ordered step list.
func (p *Pipeline) Steps() []Step {
	return p.steps
}
