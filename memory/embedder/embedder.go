// Package embedder provides decorators shared by all Embedder
// implementations: a read-through cache and a call-rate throttle.
//
// The decorators wrap any memory.Embedder, so the same text embedded twice
// in a session (a common pattern: store then immediately retrieve) costs one
// model call, and a burst of turns cannot exhaust an API quota.
package embedder

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
	"golang.org/x/time/rate"

	"github.com/becomeliminal/mnemo/memory"
)

// Cached is a read-through embedding cache backed by ristretto.
// Keys are the raw input text; values are embedding vectors.
type Cached struct {
	inner memory.Embedder
	cache *ristretto.Cache
}

// NewCached wraps inner with a cache holding up to maxEntries vectors.
func NewCached(inner memory.Embedder, maxEntries int64) (*Cached, error) {
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embed cache: %w", err)
	}
	return &Cached{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector when present, otherwise delegates and
// caches the result. Failures are never cached.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return v.([]float32), nil
	}
	embedding, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(text, embedding, 1)
	return embedding, nil
}

// Dimensions returns the inner embedder's vector size.
func (c *Cached) Dimensions() int { return c.inner.Dimensions() }

// Throttled limits the rate of embedding calls.
type Throttled struct {
	inner   memory.Embedder
	limiter *rate.Limiter
}

// NewThrottled wraps inner with a token bucket of callsPerSecond and the
// given burst.
func NewThrottled(inner memory.Embedder, callsPerSecond float64, burst int) *Throttled {
	if burst <= 0 {
		burst = 1
	}
	return &Throttled{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(callsPerSecond), burst),
	}
}

// Embed blocks until the limiter admits the call, then delegates.
func (t *Throttled) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.inner.Embed(ctx, text)
}

// Dimensions returns the inner embedder's vector size.
func (t *Throttled) Dimensions() int { return t.inner.Dimensions() }
