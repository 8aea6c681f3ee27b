package llm

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vidsmith/internal/common"
	"github.com/ternarybob/vidsmith/internal/httpclient"
	"github.com/ternarybob/vidsmith/internal/services"
)

// Service answers prompts through the configured provider with a persistent
// response cache in front. Caching makes image-description generation
// idempotent across broker retries: a retried execution replays the same
// prompts and gets the same descriptions without re-billing.
type Service struct {
	provider provider
	cache    *responseCache
	logger   arbor.ILogger
}

// NewService creates the provider named by llm.provider and opens the
// response cache.
func NewService(logger arbor.ILogger, config *common.Config) (*Service, error) {
	var (
		p   provider
		err error
	)

	switch config.LLM.Provider {
	case common.LLMProviderClaude:
		p, err = newClaudeProvider(&config.LLM, logger)
	case common.LLMProviderHTTP:
		p, err = newHTTPProvider(&config.LLM, httpclient.NewDefaultHTTPClient(config.LLMTimeout()), logger)
	default:
		err = fmt.Errorf("unsupported llm provider %q", config.LLM.Provider)
	}
	if err != nil {
		return nil, err
	}

	ttl, err := config.LLMCacheTTL()
	if err != nil {
		return nil, fmt.Errorf("invalid llm cache ttl: %w", err)
	}

	cache, err := newResponseCache(config.LLM.CachePath, ttl)
	if err != nil {
		return nil, err
	}

	logger.Info().Str("provider", p.name()).Msg("LLM service initialized")

	return &Service{
		provider: p,
		cache:    cache,
		logger:   logger,
	}, nil
}

// Chat returns a completion for the prompt, serving repeated (prompt, model)
// pairs from the cache.
func (s *Service) Chat(ctx context.Context, prompt, model string) (string, error) {
	if prompt == "" {
		return "", services.Permanent("llm", fmt.Errorf("prompt is required"))
	}

	if cached, ok := s.cache.get(model, prompt); ok {
		s.logger.Debug().Str("model", model).Msg("LLM cache hit")
		return cached, nil
	}

	response, err := s.provider.complete(ctx, prompt, model)
	if err != nil {
		return "", services.Transient("llm", err)
	}

	if err := s.cache.put(model, prompt, response); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to cache LLM response")
	}
	return response, nil
}

// Close releases the response cache.
func (s *Service) Close() error {
	return s.cache.close()
}
