// Package cache stores successful replies keyed by request content.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/zen-systems/switchboard/pkg/adapter"
)

// DefaultTTL applies when a caller passes a non-positive TTL.
const DefaultTTL = time.Hour

// Entry is a cached reply.
type Entry struct {
	Backend   string        `json:"backend"`
	Adapter   string        `json:"adapter"`
	Model     string        `json:"model"`
	Content   string        `json:"content"`
	Usage     adapter.Usage `json:"usage"`
	CreatedAt time.Time     `json:"created_at"`
}

// Stats summarizes a store.
type Stats struct {
	Backend string `json:"backend"`
	Keys    int64  `json:"keys"`
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
}

// Store is a reply cache. Get reports a miss with ok=false and a nil error.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Flush(ctx context.Context) error
	Stats(ctx context.Context) (Stats, error)
}

type keyMaterial struct {
	Backend     string            `json:"backend,omitempty"`
	Messages    []adapter.Message `json:"messages"`
	Temperature *float64          `json:"temperature,omitempty"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
}

// Key derives the cache key from everything that can change a reply.
func Key(backend string, messages []adapter.Message, temperature *float64, maxTokens int) string {
	if messages == nil {
		messages = []adapter.Message{}
	}
	// Struct fields marshal in declaration order, so the encoding is stable.
	data, _ := json.Marshal(keyMaterial{
		Backend:     backend,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func effectiveTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}
