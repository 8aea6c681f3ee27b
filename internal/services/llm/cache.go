package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
)

// cachedResponse is one stored completion. Entries expire by wall clock so
// retried executions reuse identical prompts for at least the TTL.
type cachedResponse struct {
	Key       string    `badgerhold:"key"`
	Response  string    `json:"response"`
	ExpiresAt time.Time `json:"expires_at"`
}

// responseCache is a badgerhold-backed completion cache keyed by
// (model, prompt).
type responseCache struct {
	store *badgerhold.Store
	ttl   time.Duration
}

func newResponseCache(path string, ttl time.Duration) (*responseCache, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Options = badger.DefaultOptions(path).WithLogger(nil)

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open response cache: %w", err)
	}
	return &responseCache{store: store, ttl: ttl}, nil
}

func cacheKey(model, prompt string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + prompt))
	return hex.EncodeToString(sum[:])
}

func (c *responseCache) get(model, prompt string) (string, bool) {
	key := cacheKey(model, prompt)
	var entry cachedResponse
	if err := c.store.Get(key, &entry); err != nil {
		return "", false
	}
	if time.Now().After(entry.ExpiresAt) {
		_ = c.store.Delete(key, &cachedResponse{})
		return "", false
	}
	return entry.Response, true
}

func (c *responseCache) put(model, prompt, response string) error {
	key := cacheKey(model, prompt)
	return c.store.Upsert(key, &cachedResponse{
		Key:       key,
		Response:  response,
		ExpiresAt: time.Now().Add(c.ttl),
	})
}

func (c *responseCache) close() error {
	return c.store.Close()
}
