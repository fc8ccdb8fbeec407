package api

import (
	"sync/atomic"
	"time"
)

// Status is a point-in-time view of the relay.
type Status struct {
	Node           string    `json:"node"`
	State          string    `json:"state"`
	Connected      bool      `json:"connected"`
	QueueLen       int       `json:"queue_len"`
	QueueCap       int       `json:"queue_cap"`
	NextHeartbeat  time.Time `json:"next_heartbeat,omitzero"`
	InboundDropped uint64    `json:"inbound_dropped"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// StatusBoard holds the latest Status. The relay goroutine writes, handlers
// read; neither blocks the other.
type StatusBoard struct {
	current atomic.Pointer[Status]
}

// Update replaces the snapshot.
func (b *StatusBoard) Update(s Status) {
	b.current.Store(&s)
}

// Load returns the latest snapshot, or false before the first Update.
func (b *StatusBoard) Load() (Status, bool) {
	s := b.current.Load()
	if s == nil {
		return Status{}, false
	}
	return *s, true
}
