package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// legacyConfig is the flat mqtt.cfg document written by older bridge
// firmware. Pointer fields distinguish absent keys from zero values.
type legacyConfig struct {
	MQTTServer   *string `json:"MQTTServer"`
	MQTTPort     *int    `json:"MQTTPort"`
	MQTTUser     *string `json:"MQTTUser"`
	MQTTPassword *string `json:"MQTTPassword"`
	NodeName     *string `json:"NodeName"`
	InclMAC      *bool   `json:"inclMAC"`
	PingDelay    *int    `json:"pingDelay"` // seconds
	BCTopic      *string `json:"BCTopic"`
	EchoTopic    *string `json:"EchoTopic"`
	PingTopic    *string `json:"PingTopic"`
}

// LoadLegacy reads a legacy mqtt.cfg JSON file over the built-in defaults,
// then applies environment overrides and validates.
func LoadLegacy(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading legacy config file: %w", err)
	}

	cfg := defaultConfig()
	if err := cfg.ApplyLegacy(data); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// ApplyLegacy overlays a legacy mqtt.cfg JSON document onto c. Each key that
// is present replaces the current value; absent keys leave it unchanged.
func (c *Config) ApplyLegacy(data []byte) error {
	var lc legacyConfig
	if err := json.Unmarshal(data, &lc); err != nil {
		return fmt.Errorf("parsing legacy config: %w", err)
	}

	if lc.MQTTServer != nil {
		c.MQTT.Broker.Host = *lc.MQTTServer
	}
	if lc.MQTTPort != nil {
		c.MQTT.Broker.Port = *lc.MQTTPort
	}
	if lc.MQTTUser != nil {
		c.MQTT.Auth.Username = *lc.MQTTUser
	}
	if lc.MQTTPassword != nil {
		c.MQTT.Auth.Password = *lc.MQTTPassword
	}
	if lc.NodeName != nil {
		c.Node.Name = *lc.NodeName
	}
	if lc.InclMAC != nil {
		c.Node.IncludeHardwareID = *lc.InclMAC
	}
	if lc.PingDelay != nil {
		c.Relay.HeartbeatInterval = *lc.PingDelay
	}
	if lc.BCTopic != nil {
		c.Relay.Topics.Broadcast = *lc.BCTopic
	}
	if lc.EchoTopic != nil {
		c.Relay.Topics.Echo = *lc.EchoTopic
	}
	if lc.PingTopic != nil {
		c.Relay.Topics.Ping = *lc.PingTopic
	}
	return nil
}
