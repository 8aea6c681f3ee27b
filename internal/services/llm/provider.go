package llm

import "context"

// provider is one prompt-completion backend behind the caching service.
type provider interface {
	complete(ctx context.Context, prompt, model string) (string, error)
	name() string
}
