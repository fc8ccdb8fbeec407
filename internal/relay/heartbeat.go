package relay

import "time"

// DefaultHeartbeatInterval is the default time between heartbeats.
const DefaultHeartbeatInterval = 5 * time.Minute

// HeartbeatScheduler decides when the next heartbeat is due.
//
// After a successful send the deadline moves forward by exactly one interval
// from its previous value, not from the send time, so drift does not
// accumulate. After a failed send the deadline stays put and the next check
// retries. A zero interval disables heartbeats.
type HeartbeatScheduler struct {
	interval time.Duration
	deadline time.Time
}

// NewHeartbeatScheduler schedules the first heartbeat one interval after now.
func NewHeartbeatScheduler(interval time.Duration, now time.Time) *HeartbeatScheduler {
	h := &HeartbeatScheduler{}
	h.SetInterval(interval, now)
	return h
}

// SetInterval changes the interval and restarts the schedule from now.
// Negative intervals are treated as zero.
func (h *HeartbeatScheduler) SetInterval(interval time.Duration, now time.Time) {
	if interval < 0 {
		interval = 0
	}
	h.interval = interval
	h.deadline = now.Add(interval)
}

// Enabled reports whether heartbeats are sent at all.
func (h *HeartbeatScheduler) Enabled() bool {
	return h.interval > 0
}

// DueNow reports whether now has reached the deadline.
func (h *HeartbeatScheduler) DueNow(now time.Time) bool {
	return h.Enabled() && !now.Before(h.deadline)
}

// Sent advances the deadline by one interval after a successful send.
func (h *HeartbeatScheduler) Sent() {
	h.deadline = h.deadline.Add(h.interval)
}

// Deadline returns when the next heartbeat is due.
func (h *HeartbeatScheduler) Deadline() time.Time {
	return h.deadline
}

// Interval returns the configured interval.
func (h *HeartbeatScheduler) Interval() time.Duration {
	return h.interval
}
