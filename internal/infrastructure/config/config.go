package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for lnbridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Node     NodeConfig     `yaml:"node"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Relay    RelayConfig    `yaml:"relay"`
	Logging  LoggingConfig  `yaml:"logging"`
	Database DatabaseConfig `yaml:"database"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// NodeConfig controls how this bridge names itself on the broker.
type NodeConfig struct {
	// Name is the base node name. Used as MQTT client ID and as the sender
	// name on every published message.
	Name string `yaml:"name"`

	// IncludeHardwareID appends a hardware-derived suffix to Name so bridges
	// sharing a config file still get distinct names.
	IncludeHardwareID bool `yaml:"include_hardware_id"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker MQTTBrokerConfig `yaml:"broker"`
	Auth   MQTTAuthConfig   `yaml:"auth"`
	QoS    int              `yaml:"qos"`

	// ConnectTimeout bounds a single connection attempt, in milliseconds.
	ConnectTimeout int `yaml:"connect_timeout"`

	// PublishTimeout bounds a single publish or subscribe, in milliseconds.
	PublishTimeout int `yaml:"publish_timeout"`

	// InboundBuffer is the number of inbound messages held between ticks.
	InboundBuffer int `yaml:"inbound_buffer"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	TLS  bool   `yaml:"tls"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// RelayConfig contains relay engine settings.
type RelayConfig struct {
	// QueueSize is the number of outbound ring slots; one fewer can be pending.
	QueueSize int `yaml:"queue_size"`

	// ReconnectIntervalMS is the minimum time between connection attempts.
	ReconnectIntervalMS int `yaml:"reconnect_interval_ms"`

	// HeartbeatInterval is the time between heartbeats in seconds. 0 disables them.
	HeartbeatInterval int `yaml:"heartbeat_interval"`

	// TickIntervalMS is the relay loop period.
	TickIntervalMS int `yaml:"tick_interval_ms"`

	Topics TopicsConfig `yaml:"topics"`
}

// TopicsConfig contains the three relay channel names.
type TopicsConfig struct {
	Broadcast string `yaml:"broadcast"`
	Echo      string `yaml:"echo"`
	Ping      string `yaml:"ping"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DatabaseConfig contains SQLite settings for the peer registry.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// PeerRetentionHours removes peers unseen for this long. 0 keeps them forever.
	PeerRetentionHours int `yaml:"peer_retention_hours"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// MetricsConfig contains Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: LNBRIDGE_SECTION_KEY
// For example: LNBRIDGE_MQTT_HOST, LNBRIDGE_NODE_NAME
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration with environment overrides applied.
// Used when no config file is given.
func Default() (*Config, error) {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Node: NodeConfig{
			Name:              "IoTT-MQTT",
			IncludeHardwareID: true,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			QoS:            0,
			ConnectTimeout: 2000,
			PublishTimeout: 1000,
			InboundBuffer:  256,
		},
		Relay: RelayConfig{
			QueueSize:           50,
			ReconnectIntervalMS: 5000,
			HeartbeatInterval:   300,
			TickIntervalMS:      10,
			Topics: TopicsConfig{
				Broadcast: "lnIn",
				Echo:      "lnEcho",
				Ping:      "lnPing",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Database: DatabaseConfig{
			Path:        "./data/lnbridge.db",
			WALMode:            true,
			BusyTimeout:        5,
			PeerRetentionHours: 168,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Metrics: MetricsConfig{
			Listen: ":9108",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: LNBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Node
	if v := os.Getenv("LNBRIDGE_NODE_NAME"); v != "" {
		cfg.Node.Name = v
	}
	if v, ok := envBool("LNBRIDGE_NODE_INCLUDE_HARDWARE_ID"); ok {
		cfg.Node.IncludeHardwareID = v
	}

	// MQTT
	if v := os.Getenv("LNBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v, ok := envInt("LNBRIDGE_MQTT_PORT"); ok {
		cfg.MQTT.Broker.Port = v
	}
	if v := os.Getenv("LNBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("LNBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Relay
	if v, ok := envInt("LNBRIDGE_RELAY_QUEUE_SIZE"); ok {
		cfg.Relay.QueueSize = v
	}
	if v, ok := envInt("LNBRIDGE_RELAY_HEARTBEAT_INTERVAL"); ok {
		cfg.Relay.HeartbeatInterval = v
	}

	// Logging
	if v := os.Getenv("LNBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Database
	if v := os.Getenv("LNBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("LNBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Node validation
	if strings.ContainsAny(c.Node.Name, "+#/") {
		errs = append(errs, "node.name must not contain '+', '#' or '/'")
	}

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.ConnectTimeout <= 0 {
		errs = append(errs, "mqtt.connect_timeout must be positive")
	}
	if c.MQTT.PublishTimeout <= 0 {
		errs = append(errs, "mqtt.publish_timeout must be positive")
	}

	// Relay validation
	if c.Relay.QueueSize < 2 {
		errs = append(errs, "relay.queue_size must be at least 2")
	}
	if c.Relay.ReconnectIntervalMS <= 0 {
		errs = append(errs, "relay.reconnect_interval_ms must be positive")
	}
	if c.Relay.HeartbeatInterval < 0 {
		errs = append(errs, "relay.heartbeat_interval must not be negative")
	}
	if c.Relay.TickIntervalMS <= 0 {
		errs = append(errs, "relay.tick_interval_ms must be positive")
	}
	for _, t := range []struct{ key, name string }{
		{"relay.topics.broadcast", c.Relay.Topics.Broadcast},
		{"relay.topics.echo", c.Relay.Topics.Echo},
		{"relay.topics.ping", c.Relay.Topics.Ping},
	} {
		if t.name == "" {
			errs = append(errs, t.key+" is required")
		} else if strings.ContainsAny(t.name, "+#") {
			errs = append(errs, t.key+" must not contain wildcards")
		}
	}

	// Optional sinks
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when database is enabled")
	}
	if c.Database.PeerRetentionHours < 0 {
		errs = append(errs, "database.peer_retention_hours must not be negative")
	}
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		errs = append(errs, "metrics.listen is required when metrics are enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReconnectInterval returns the relay reconnect interval as a Duration.
func (c *Config) GetReconnectInterval() time.Duration {
	return time.Duration(c.Relay.ReconnectIntervalMS) * time.Millisecond
}

// GetPeerRetention returns how long unseen peers are kept; 0 keeps them forever.
func (c *Config) GetPeerRetention() time.Duration {
	return time.Duration(c.Database.PeerRetentionHours) * time.Hour
}

// GetHeartbeatInterval returns the heartbeat interval as a Duration.
func (c *Config) GetHeartbeatInterval() time.Duration {
	return time.Duration(c.Relay.HeartbeatInterval) * time.Second
}

// GetTickInterval returns the relay loop period as a Duration.
func (c *Config) GetTickInterval() time.Duration {
	return time.Duration(c.Relay.TickIntervalMS) * time.Millisecond
}

// GetConnectTimeout returns the MQTT connect timeout as a Duration.
func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.MQTT.ConnectTimeout) * time.Millisecond
}

// GetPublishTimeout returns the MQTT publish timeout as a Duration.
func (c *Config) GetPublishTimeout() time.Duration {
	return time.Duration(c.MQTT.PublishTimeout) * time.Millisecond
}
