package model

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/metrics"
)

// Model kinds used as cache key prefixes
const (
	KindLapTime     = "laptime"
	KindRetirement  = "retirement"
	KindPitBaseline = "pit_baseline"
	KindPitDelta    = "pit_delta"
)

// Key identifies one fitted model
type Key struct {
	Kind    string
	Subject string
	Season  int
	RaceID  int64
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%d/%d", k.Kind, k.Subject, k.Season, k.RaceID)
}

type entry struct {
	value any
	err   error
}

// Cache is a read-through store of fitted models shared by concurrent
// simulations. Entries are never evicted. Concurrent fills of the same key
// run the fit once and the first stored result wins.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]entry
	group   singleflight.Group
	metrics *metrics.Manager
}

// NewCache creates an empty cache. m may be nil.
func NewCache(m *metrics.Manager) *Cache {
	return &Cache{
		entries: make(map[Key]entry),
		metrics: m,
	}
}

// Len returns the number of cached fits
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) get(key Key) (entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

// store keeps the first value written for key and returns the winner
func (c *Cache) store(key Key, e entry) entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[key]; ok {
		return existing
	}
	c.entries[key] = e
	return e
}

// Load returns the cached fit for key, running fit on a miss. Fit errors
// are cached too since fits are deterministic for a key.
func Load[T any](c *Cache, key Key, fit func() (T, error)) (T, error) {
	if e, ok := c.get(key); ok {
		c.metrics.RecordCacheLookup(key.Kind, true)
		return unwrap[T](e)
	}
	c.metrics.RecordCacheLookup(key.Kind, false)

	v, _, _ := c.group.Do(key.String(), func() (any, error) {
		if e, ok := c.get(key); ok {
			return e, nil
		}
		value, err := fit()
		return c.store(key, entry{value: value, err: err}), nil
	})
	return unwrap[T](v.(entry))
}

func unwrap[T any](e entry) (T, error) {
	v, _ := e.value.(T)
	return v, e.err
}
