package relay

import (
	"fmt"
	"time"
)

// MaxPayloadSize is the largest bus frame the relay accepts, in bytes.
const MaxPayloadSize = 48

// Micros is a microsecond timestamp or interval on the engine's monotonic clock.
//
// It is 32 bits wide to stay interoperable with nodes that stamp frames with
// a free-running microsecond counter, so it wraps roughly every 71 minutes.
// Intervals must be taken with Sub, which is modular and therefore correct
// across a single wraparound.
type Micros uint32

// Sub returns the interval from earlier to m, tolerating counter wraparound.
func (m Micros) Sub(earlier Micros) Micros {
	return m - earlier
}

// Duration converts an interval to a time.Duration.
func (m Micros) Duration() time.Duration {
	return time.Duration(m) * time.Microsecond
}

// Flags is the relay message flag bit set.
type Flags uint8

// FlagEcho marks a message this node originally published and has now seen
// come back from the broker.
const FlagEcho Flags = 1 << 0

// Has reports whether every bit in flag is set.
func (f Flags) Has(flag Flags) bool {
	return f&flag == flag
}

// RelayMessage is one bus command flowing through the relay.
type RelayMessage struct {
	// From is the sender's node name. Empty for locally produced messages;
	// the engine stamps its own name on the wire.
	From string

	// Payload is the raw bus frame, at most MaxPayloadSize bytes.
	Payload []byte

	// RequestID correlates a request with its response. Zero means unset.
	RequestID uint16

	// ReceivedAt is when the message entered the relay on the originating node.
	ReceivedAt Micros

	// RespondedAt is the interval between receipt and a downstream response.
	RespondedAt Micros

	// EchoRoundTrip is the interval between ReceivedAt and echo detection.
	EchoRoundTrip Micros

	// Flags carries FlagEcho for self-echoes.
	Flags Flags
}

// IsEcho reports whether the message is this node's own echo.
func (m RelayMessage) IsEcho() bool {
	return m.Flags.Has(FlagEcho)
}

// clone returns a copy that does not share the payload backing array.
func (m RelayMessage) clone() RelayMessage {
	if m.Payload != nil {
		p := make([]byte, len(m.Payload))
		copy(p, m.Payload)
		m.Payload = p
	}
	return m
}

// Command is a fresh bus command submitted for relay by the bus driver.
type Command struct {
	RequestID uint16
	Payload   []byte
}

// HeartbeatMessage is the liveness announcement published on the ping topic.
type HeartbeatMessage struct {
	From        string
	IP          string
	SigStrength int
	Mem         uint64
	Uptime      uint32 // seconds
}

// validatePayload rejects frames larger than the bus allows.
func validatePayload(p []byte) error {
	if len(p) > MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, len(p), MaxPayloadSize)
	}
	return nil
}
