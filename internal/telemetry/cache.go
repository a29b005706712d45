// Package telemetry holds the latest vehicle snapshot, refreshed by the
// orchestrator's poll step and readable by everything else without touching
// the network.
package telemetry

import (
	"context"
	"sync"
	"time"
)

// Vehicle is one immutable telemetry snapshot. A new snapshot replaces the
// previous one whole; consumers never see a partial update.
type Vehicle struct {
	Lat       float64
	Lon       float64
	AltM      float64
	Battery   float64 // fraction, 0..1
	Armed     bool
	Mode      string
	Timestamp time.Time
}

// Source is one telemetry poll against the remote endpoint.
type Source interface {
	TelemetryGet(ctx context.Context) (Vehicle, error)
}

// Cache is single-writer (the orchestrator's refresh step) and
// multiple-reader. A failed refresh keeps the stale snapshot and bumps the
// staleness counter; only a successful refresh resets it.
type Cache struct {
	src Source

	mu        sync.RWMutex
	have      bool
	latest    Vehicle
	staleness int
}

func NewCache(src Source) *Cache {
	return &Cache{src: src}
}

// Refresh performs one poll cycle. The cached snapshot is replaced only on
// success.
func (c *Cache) Refresh(ctx context.Context) error {
	v, err := c.src.TelemetryGet(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.staleness++
		return err
	}
	c.latest = v
	c.have = true
	c.staleness = 0
	return nil
}

// Latest returns the most recent snapshot; ok is false until the first
// successful poll.
func (c *Cache) Latest() (Vehicle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest, c.have
}

// Staleness is the number of consecutive failed polls since the last
// successful one.
func (c *Cache) Staleness() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.staleness
}
