package relay

import (
	"fmt"
	"strings"
)

// Node name limits.
const (
	// DefaultNodeName is used when no base name is configured.
	DefaultNodeName = "IoTT-MQTT"

	// MaxBaseNameLength is the longest configurable base name.
	MaxBaseNameLength = 49

	// MaxNodeNameLength is the longest resolved name (base plus hardware suffix).
	MaxNodeNameLength = 59
)

// HardwareIDFunc returns a stable hardware-derived identifier for this host.
type HardwareIDFunc func() (string, error)

// Identity describes how a node's name is built.
type Identity struct {
	BaseName          string
	UseHardwareSuffix bool
}

// ResolveIdentity builds the node name used as MQTT client ID, as the "From"
// field of every outbound message and as the self-echo comparison key.
//
// With UseHardwareSuffix set the hardware ID is appended directly to the base
// name, so two bridges sharing a configuration still get distinct names.
// Names that do not fit are rejected, never truncated.
func ResolveIdentity(id Identity, hardwareID HardwareIDFunc) (string, error) {
	base := strings.TrimSpace(id.BaseName)
	if base == "" {
		base = DefaultNodeName
	}
	if len(base) > MaxBaseNameLength {
		return "", fmt.Errorf("%w: base name has %d characters, limit %d",
			ErrInvalidNodeName, len(base), MaxBaseNameLength)
	}
	if strings.ContainsAny(base, "+#/") {
		return "", fmt.Errorf("%w: %q contains a reserved character", ErrInvalidNodeName, base)
	}

	if !id.UseHardwareSuffix {
		return base, nil
	}
	if hardwareID == nil {
		return "", fmt.Errorf("%w: hardware suffix requested but no hardware ID source", ErrInvalidNodeName)
	}

	suffix, err := hardwareID()
	if err != nil {
		return "", fmt.Errorf("%w: reading hardware ID: %w", ErrInvalidNodeName, err)
	}

	name := base + suffix
	if len(name) > MaxNodeNameLength {
		return "", fmt.Errorf("%w: resolved name has %d characters, limit %d",
			ErrInvalidNodeName, len(name), MaxNodeNameLength)
	}
	return name, nil
}
