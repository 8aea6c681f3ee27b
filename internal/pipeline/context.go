package pipeline

import (
	"github.com/ternarybob/vidsmith/internal/models"
)

// Context is the per-execution input snapshot handed to every step. Steps
// read from it and return results; they do not write into it.
type Context struct {
	Job       *models.Job
	Execution *models.JobExecution

	// Catalog snapshot loaded by the job executor. Voice, Topic and Account
	// may be nil when the job does not reference them.
	Language *models.Language
	Voice    *models.Voice
	Topic    *models.Topic
	Account  *models.Account

	// Workspace is the per-execution scratch directory.
	Workspace string

	// Results of upstream steps, consulted by the step input resolver.
	Results *ResultManager
}

// Horizontal reports the output orientation.
func (c *Context) Horizontal() bool {
	return c.Job.Horizontal
}

// TopicExtraFloat reads a numeric knob from the topic extras, tolerating the
// float64 typing JSON decoding produces.
func (c *Context) TopicExtraFloat(key string, fallback float64) float64 {
	if c.Topic == nil || c.Topic.Extras == nil {
		return fallback
	}
	if f, ok := c.Topic.Extras[key].(float64); ok && f > 0 {
		return f
	}
	return fallback
}

// TopicExtraString reads a string knob from the topic extras.
func (c *Context) TopicExtraString(key string) string {
	if c.Topic == nil || c.Topic.Extras == nil {
		return ""
	}
	s, _ := c.Topic.Extras[key].(string)
	return s
}

// TopicExtraBool reads a boolean knob from the topic extras.
func (c *Context) TopicExtraBool(key string) bool {
	if c.Topic == nil || c.Topic.Extras == nil {
		return false
	}
	b, _ := c.Topic.Extras[key].(bool)
	return b
}

// TopicExtraStrings reads a string list knob from the topic extras,
// tolerating the []any typing JSON decoding produces.
func (c *Context) TopicExtraStrings(key string) []string {
	if c.Topic == nil || c.Topic.Extras == nil {
		return nil
	}
	raw, ok := c.Topic.Extras[key].([]any)
	if !ok {
		return nil
	}
	var values []string
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			values = append(values, s)
		}
	}
	return values
}

// DigitalHumanEnabled reports whether the overlay should run: the job opts in
// and the account carries a configuration.
func (c *Context) DigitalHumanEnabled() bool {
	if !c.Job.ExtraBool("enable_digital_human") {
		return false
	}
	return c.Account != nil && c.Account.DigitalHuman != nil && c.Account.DigitalHuman.VideoPath != ""
}
