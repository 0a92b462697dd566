package metadata

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/cinevault/backend/internal/logging"
)

const sharedKeyPrefix = "metadata:v1:"

// SharedStore is a cross-instance byte cache such as Redis. Any Get error is
// treated as a miss.
type SharedStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type localEntry struct {
	meta    Metadata
	expires time.Time
}

// CachingProvider memoizes successful lookups per URL, first in process and
// then in an optional SharedStore. Failed lookups are never cached.
type CachingProvider struct {
	base   Provider
	shared SharedStore
	ttl    time.Duration
	now    func() time.Time

	mu    sync.RWMutex
	local map[string]localEntry
}

// NewCachingProvider wraps base. shared may be nil.
func NewCachingProvider(base Provider, shared SharedStore, ttl time.Duration) *CachingProvider {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachingProvider{
		base:   base,
		shared: shared,
		ttl:    ttl,
		now:    time.Now,
		local:  make(map[string]localEntry),
	}
}

// Lookup implements Provider.
func (c *CachingProvider) Lookup(ctx context.Context, url string) (Metadata, error) {
	if c == nil || c.base == nil {
		return Metadata{}, ErrProviderUnavailable
	}
	url = strings.TrimSpace(url)
	now := c.now()

	if meta, ok := c.fromLocal(url, now); ok {
		return meta, nil
	}
	if meta, ok := c.fromShared(ctx, url); ok {
		c.remember(url, meta, now)
		return meta, nil
	}

	meta, err := c.base.Lookup(ctx, url)
	if err != nil {
		return Metadata{}, err
	}
	c.remember(url, meta, now)
	c.share(ctx, url, meta)
	return meta, nil
}

// Len returns the number of in-process entries, expired ones included.
func (c *CachingProvider) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.local)
}

func (c *CachingProvider) fromLocal(url string, now time.Time) (Metadata, bool) {
	c.mu.RLock()
	entry, ok := c.local[url]
	c.mu.RUnlock()
	if !ok || !now.Before(entry.expires) {
		return Metadata{}, false
	}
	return entry.meta, true
}

func (c *CachingProvider) remember(url string, meta Metadata, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.local {
		if !now.Before(e.expires) {
			delete(c.local, k)
		}
	}
	c.local[url] = localEntry{meta: meta, expires: now.Add(c.ttl)}
}

func (c *CachingProvider) fromShared(ctx context.Context, url string) (Metadata, bool) {
	if c.shared == nil {
		return Metadata{}, false
	}
	raw, err := c.shared.Get(ctx, sharedKeyPrefix+url)
	if err != nil {
		return Metadata{}, false
	}
	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		logging.FromContext(ctx).Warn("discarding corrupt metadata cache entry", "url", url, "error", err)
		return Metadata{}, false
	}
	return meta, true
}

func (c *CachingProvider) share(ctx context.Context, url string, meta Metadata) {
	if c.shared == nil {
		return
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return
	}
	if err := c.shared.Set(ctx, sharedKeyPrefix+url, raw, c.ttl); err != nil {
		logging.FromContext(ctx).Warn("store metadata in shared cache", "url", url, "error", err)
	}
}
