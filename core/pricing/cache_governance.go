// Package pricing - Rate table cache with single-flight construction
// A table is built at most once per source signature; readers never lock it.
package pricing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"pharma-margin/core/ingestion"
	"pharma-margin/internal/errors"
	"pharma-margin/internal/logging"
)

// RefreshPolicy decides when a cached table is rebuilt
type RefreshPolicy string

const (
	// RefreshOnChange rebuilds when the file's path, mtime or size changes
	RefreshOnChange RefreshPolicy = "on_change"

	// RefreshOnRestart keeps the first table for the process lifetime
	RefreshOnRestart RefreshPolicy = "on_restart"
)

// Valid reports whether the policy is known
func (p RefreshPolicy) Valid() bool {
	return p == RefreshOnChange || p == RefreshOnRestart
}

// CachePolicy defines cache behavior
type CachePolicy struct {
	Refresh RefreshPolicy
}

// DefaultCachePolicy returns the default policy
func DefaultCachePolicy() CachePolicy {
	return CachePolicy{Refresh: RefreshOnChange}
}

// CacheEntry is a cached table with governance metadata
type CacheEntry struct {
	Table        *RateTable
	Signature    string
	LoadedAt     time.Time
	AccessCount  int64
	LastAccessed time.Time
}

// CacheStats contains cache statistics
type CacheStats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Builds  int64 `json:"builds"`
}

// TableCache maps a source path to its rate table
type TableCache struct {
	lifecycle *ingestion.Lifecycle
	policy    CachePolicy
	log       *zap.Logger

	group   singleflight.Group
	mu      sync.RWMutex
	entries map[string]*CacheEntry

	hits   atomic.Int64
	misses atomic.Int64
	builds atomic.Int64
}

// NewTableCache creates a cache building tables with lifecycle
func NewTableCache(lifecycle *ingestion.Lifecycle, policy CachePolicy) *TableCache {
	if !policy.Refresh.Valid() {
		policy = DefaultCachePolicy()
	}
	return &TableCache{
		lifecycle: lifecycle,
		policy:    policy,
		log:       logging.Named("cache"),
		entries:   make(map[string]*CacheEntry),
	}
}

// Policy returns the active policy
func (c *TableCache) Policy() CachePolicy {
	return c.policy
}

// Get returns the table of path, building it on first use or when the
// policy says the cached one is stale. Concurrent callers for the same
// source share one build.
func (c *TableCache) Get(ctx context.Context, path string) (*RateTable, error) {
	key := filepath.Clean(path)

	if c.policy.Refresh == RefreshOnRestart {
		if entry, ok := c.lookup(key); ok {
			if table, ok := c.hit(key, entry); ok {
				return table, nil
			}
		}
	}

	info, err := os.Stat(key)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.SourceNotFound([]string{key})
		}
		return nil, errors.Internal("stat rate file", err)
	}
	signature := ingestion.Signature(key, info.ModTime(), info.Size())

	if entry, ok := c.lookup(key); ok && (entry.Signature == signature || c.policy.Refresh == RefreshOnRestart) {
		if table, ok := c.hit(key, entry); ok {
			return table, nil
		}
	}
	c.misses.Add(1)

	ch := c.group.DoChan(key+"|"+signature, func() (interface{}, error) {
		// a flight for this signature may have landed since the lookup
		if entry, ok := c.lookup(key); ok && entry.Signature == signature && entry.Table.Verify() {
			return entry.Table, nil
		}
		return c.build(key)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*RateTable), nil
	}
}

func (c *TableCache) lookup(key string) (*CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	return entry, ok
}

// hit serves a cached table after checking its content hash. A table that no
// longer matches its hash is evicted and reported as a miss.
func (c *TableCache) hit(key string, entry *CacheEntry) (*RateTable, bool) {
	if !entry.Table.Verify() {
		c.mu.Lock()
		if c.entries[key] == entry {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		c.log.Warn("cached table failed verification, rebuilding",
			zap.String("path", key), zap.String("table", string(entry.Table.ID)))
		return nil, false
	}

	c.hits.Add(1)
	c.mu.Lock()
	entry.AccessCount++
	entry.LastAccessed = time.Now()
	c.mu.Unlock()
	c.log.Debug("cache hit", zap.String("path", key), zap.String("table", string(entry.Table.ID)))
	return entry.Table, true
}

func (c *TableCache) build(key string) (*RateTable, error) {
	res, err := c.lifecycle.Load(key)
	if err != nil {
		return nil, err
	}
	table, err := FromIngestion(res)
	if err != nil {
		return nil, err
	}
	c.builds.Add(1)

	now := time.Now()
	c.mu.Lock()
	prev, rebuilt := c.entries[key]
	c.entries[key] = &CacheEntry{
		Table:        table,
		Signature:    res.Signature,
		LoadedAt:     now,
		LastAccessed: now,
	}
	c.mu.Unlock()

	fields := []zap.Field{
		zap.String("path", key),
		zap.String("table", string(table.ID)),
		zap.Int("rows", table.Len()),
		zap.Duration("duration", res.Duration),
	}
	if rebuilt {
		c.log.Debug("cache rebuild", append(fields, zap.String("previous", string(prev.Table.ID)))...)
	} else {
		c.log.Debug("cache miss", fields...)
	}
	return table, nil
}

// Invalidate drops the table of path
func (c *TableCache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, filepath.Clean(path))
}

// Clear drops every table
func (c *TableCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*CacheEntry)
}

// Stats returns cache statistics
func (c *TableCache) Stats() CacheStats {
	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()
	return CacheStats{
		Entries: n,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Builds:  c.builds.Load(),
	}
}

// String implements Stringer
func (s CacheStats) String() string {
	return fmt.Sprintf("entries=%d hits=%d misses=%d builds=%d", s.Entries, s.Hits, s.Misses, s.Builds)
}
