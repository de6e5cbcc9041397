// Package aggregate memoizes grouped totals keyed by scope, mutation
// version and filter digest. Entries are never explicitly invalidated:
// any mutation in a scope advances its version, so later requests build
// a different key and stale entries age out of the underlying LRU.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"registro/internal/cache"
	"registro/internal/core"
	"registro/internal/query"
)

// ComputeFunc performs the expensive grouped aggregation against the
// ledger restricted to the same filter the key was built from.
type ComputeFunc func(ctx context.Context) (core.Totals, error)

// Cache memoizes Totals per (scopeID, mutationVersion, filterDigest).
type Cache struct {
	entries *cache.LRU[core.Totals]
	group   singleflight.Group
}

// New creates a totals cache bounded by maxSize entries and ttl.
func New(maxSize int, ttl time.Duration) *Cache {
	c := &Cache{
		entries: cache.NewLRU[core.Totals](maxSize, ttl),
	}
	c.entries.StartJanitor(10 * time.Minute)
	return c
}

// Key builds the composite cache key. The filter digest is stable over
// the canonical spec, so semantically identical filters share an entry.
func Key(scopeID string, version int64, spec query.FilterSpec) string {
	return scopeID + ":" + strconv.FormatInt(version, 10) + ":" + spec.Digest()
}

// Totals returns the cached totals for the key, or invokes compute,
// stores the result and returns it. Concurrent misses on an identical
// key collapse into a single compute call; recomputation would be
// idempotent anyway since compute is a pure function of the key.
// A compute failure is returned to the caller and never cached.
func (c *Cache) Totals(ctx context.Context, scopeID string, version int64, spec query.FilterSpec, compute ComputeFunc) (core.Totals, error) {
	key := Key(scopeID, version, spec)

	if totals, ok := c.entries.Get(key); ok {
		slog.DebugContext(ctx, "Totals cache hit", "scope_id", scopeID, "version", version)
		return totals, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// Re-check: a concurrent caller may have landed the result
		// between our miss and joining the flight.
		if totals, ok := c.entries.Get(key); ok {
			return totals, nil
		}
		totals, err := compute(ctx)
		if err != nil {
			return core.Totals{}, fmt.Errorf("compute totals: %w", err)
		}
		c.entries.Set(key, totals)
		slog.DebugContext(ctx, "Totals cached",
			"scope_id", scopeID,
			"version", version,
			"income_cents", totals.Income.Cents,
			"expense_cents", totals.Expense.Cents)
		return totals, nil
	})
	if err != nil {
		return core.Totals{}, err
	}
	return v.(core.Totals), nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Close stops the background sweep.
func (c *Cache) Close() {
	c.entries.StopJanitor()
}
