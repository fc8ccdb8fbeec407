package relay

import (
	"fmt"
	"strings"
)

// Default topic names shared by all nodes of one bus network.
const (
	DefaultBroadcastTopic = "lnIn"
	DefaultEchoTopic      = "lnEcho"
	DefaultPingTopic      = "lnPing"

	// MaxTopicLength is the longest topic name accepted.
	MaxTopicLength = 99
)

// Topics holds the three channel names a node publishes and subscribes to.
type Topics struct {
	// Broadcast carries bus commands in both directions.
	Broadcast string

	// Echo carries confirmations of commands a node put on its bus.
	Echo string

	// Ping carries heartbeats.
	Ping string
}

// DefaultTopics returns lnIn / lnEcho / lnPing.
func DefaultTopics() Topics {
	return Topics{
		Broadcast: DefaultBroadcastTopic,
		Echo:      DefaultEchoTopic,
		Ping:      DefaultPingTopic,
	}
}

// Validate checks every topic name.
func (t Topics) Validate() error {
	for _, tc := range []struct{ role, name string }{
		{"broadcast", t.Broadcast},
		{"echo", t.Echo},
		{"ping", t.Ping},
	} {
		if err := validateTopic(tc.name); err != nil {
			return fmt.Errorf("%s topic: %w", tc.role, err)
		}
	}
	return nil
}

// withDefaults fills empty names from DefaultTopics.
func (t Topics) withDefaults() Topics {
	d := DefaultTopics()
	if t.Broadcast == "" {
		t.Broadcast = d.Broadcast
	}
	if t.Echo == "" {
		t.Echo = d.Echo
	}
	if t.Ping == "" {
		t.Ping = d.Ping
	}
	return t
}

// role maps a topic to its channel role for metrics labels.
func (t Topics) role(topic string) string {
	switch topic {
	case t.Broadcast:
		return "broadcast"
	case t.Echo:
		return "echo"
	case t.Ping:
		return "ping"
	default:
		return "other"
	}
}

// validateTopic rejects names that are empty, too long or contain MQTT wildcards.
// Oversize names are rejected rather than truncated.
func validateTopic(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTopic)
	}
	if len(name) > MaxTopicLength {
		return fmt.Errorf("%w: %d characters, limit %d", ErrInvalidTopic, len(name), MaxTopicLength)
	}
	if strings.ContainsAny(name, "+#") {
		return fmt.Errorf("%w: %q contains a wildcard", ErrInvalidTopic, name)
	}
	return nil
}
