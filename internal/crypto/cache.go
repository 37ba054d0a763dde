package crypto

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type cacheEntry struct {
	quote   Quote
	expires time.Time
}

// ttlCache holds at most one quote per supported symbol, so it never needs
// eviction beyond expiry.
type ttlCache struct {
	ttl   time.Duration
	clock clockwork.Clock

	mu      sync.Mutex
	entries map[string]cacheEntry
}

func newTTLCache(ttl time.Duration, clock clockwork.Clock) *ttlCache {
	return &ttlCache{ttl: ttl, clock: clock, entries: make(map[string]cacheEntry)}
}

func (c *ttlCache) get(symbol string) (*Quote, bool) {
	if c.ttl <= 0 {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[symbol]
	if !ok || !c.clock.Now().Before(e.expires) {
		return nil, false
	}
	q := e.quote
	return &q, true
}

func (c *ttlCache) set(symbol string, q *Quote) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[symbol] = cacheEntry{quote: *q, expires: c.clock.Now().Add(c.ttl)}
}
