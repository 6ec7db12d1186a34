// Package cache memoizes ranked retrieval results for a bounded time window,
// so repeated queries skip the embedding and index round-trips.
package cache

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/getstacklabs/stackhub/internal/ranker"
	"github.com/getstacklabs/stackhub/internal/vectorstore"
)

// DefaultMaxEntries bounds the cache when no capacity is configured.
const DefaultMaxEntries = 1024

// Key identifies a cached result set. It is derived deterministically from
// the normalized query text, the normalized filter set and the requested
// result count, so equivalent requests share an entry regardless of tag
// order or query casing.
type Key [sha256.Size]byte

// NewKey builds a cache key. Query text is lower-cased with whitespace
// collapsed; filters are normalized so set-valued filters are
// order-independent. k participates in the key so a short cached list never
// serves a larger request.
func NewKey(query string, filters vectorstore.Filters, k int) Key {
	f := filters.Normalized()

	var sb strings.Builder
	sb.WriteString(normalizeQuery(query))
	sb.WriteByte('\x00')
	sb.WriteString(strings.Join(f.Tags, ","))
	sb.WriteByte('\x00')
	sb.WriteString(f.Language)
	sb.WriteByte('\x00')
	sb.WriteString(f.Category)
	sb.WriteByte('\x00')
	sb.WriteString(strconv.Itoa(k))

	return sha256.Sum256([]byte(sb.String()))
}

func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// entry holds a cached result list with its expiry. Entries are replaced
// wholesale, never partially updated.
type entry struct {
	results   []ranker.RankedResult
	expiresAt time.Time
}

// ResultCache is a TTL+LRU cache of ranked results. It is safe for
// concurrent use; the underlying LRU serializes its own mutations.
type ResultCache struct {
	entries *lru.Cache[Key, *entry]
	clock   func() time.Time
}

// Option configures a ResultCache.
type Option func(*ResultCache)

// WithClock injects the time source used for expiry, making TTL behavior
// testable without sleeping.
func WithClock(clock func() time.Time) Option {
	return func(c *ResultCache) {
		c.clock = clock
	}
}

// New creates a ResultCache holding at most maxEntries entries; the least
// recently used entry is evicted first when the bound is exceeded.
func New(maxEntries int, opts ...Option) (*ResultCache, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	entries, err := lru.New[Key, *entry](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}

	c := &ResultCache{
		entries: entries,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get returns the cached results for key, or false if absent or expired.
// Expired entries are evicted lazily on read.
func (c *ResultCache) Get(key Key) ([]ranker.RankedResult, bool) {
	e, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}

	if !c.clock().Before(e.expiresAt) {
		c.entries.Remove(key)
		return nil, false
	}

	return cloneResults(e.results), true
}

// Put stores results under key for ttl, fully replacing any prior entry.
func (c *ResultCache) Put(key Key, results []ranker.RankedResult, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	c.entries.Add(key, &entry{
		results:   cloneResults(results),
		expiresAt: c.clock().Add(ttl),
	})
}

// cloneResults copies the list and each result's Tags slice, so neither the
// caller nor the cache can reach the other's backing arrays.
func cloneResults(results []ranker.RankedResult) []ranker.RankedResult {
	out := make([]ranker.RankedResult, len(results))
	copy(out, results)
	for i := range out {
		if len(out[i].Tags) > 0 {
			out[i].Tags = append([]string(nil), out[i].Tags...)
		}
	}
	return out
}

// Len returns the current entry count, including not-yet-evicted expired
// entries.
func (c *ResultCache) Len() int {
	return c.entries.Len()
}

// Purge empties the cache.
func (c *ResultCache) Purge() {
	c.entries.Purge()
}
