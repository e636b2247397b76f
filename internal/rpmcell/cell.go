// Package rpmcell holds the single current-RPM value shared between the
// adapter channel (writer), the idle poller (writer) and the renderer and
// HTTP/SSE shim (readers).
package rpmcell

import (
	"sync"
	"time"
)

// Cell is a mutex-guarded {value, timestamp} pair. A plain mutex is chosen
// over a seqlock for auditability; both are permitted by the data model.
type Cell struct {
	mu        sync.Mutex
	value     uint16
	timestamp time.Time
	lastTS    time.Time
}

// Sample is an immutable snapshot of the cell.
type Sample struct {
	RPM       uint16
	Timestamp time.Time
}

// New returns a Cell with a zero RPM timestamped at now.
func New(now time.Time) *Cell {
	return &Cell{timestamp: now}
}

// Set records a new RPM observation. Timestamps are monotonic: a write whose
// timestamp is earlier than the previous write's is dropped (an equal
// timestamp is accepted), satisfying the invariant that the cell's timestamp
// never decreases.
func (c *Cell) Set(rpm uint16, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.lastTS.IsZero() && now.Before(c.lastTS) {
		return
	}
	c.value = rpm
	c.timestamp = now
	c.lastTS = now
}

// Get returns the current sample.
func (c *Cell) Get() Sample {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Sample{RPM: c.value, Timestamp: c.timestamp}
}

// Stale reports whether the sample is older than 2x the given poll interval,
// per the freshness policy in the data model.
func (s Sample) Stale(now time.Time, pollInterval time.Duration) bool {
	if pollInterval <= 0 {
		return false
	}
	return now.Sub(s.Timestamp) > 2*pollInterval
}
