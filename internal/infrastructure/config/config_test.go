package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
node:
  name: "yard-west"
  include_hardware_id: false
mqtt:
  broker:
    host: "broker.local"
    port: 1884
  qos: 1
relay:
  queue_size: 20
  heartbeat_interval: 60
  topics:
    broadcast: "club/lnIn"
database:
  enabled: true
  path: "/tmp/peers.db"
`
	cfg, err := Load(writeConfig(t, "config.yaml", content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Node.Name != "yard-west" || cfg.Node.IncludeHardwareID {
		t.Errorf("Node = %+v, want yard-west without hardware ID", cfg.Node)
	}
	if cfg.MQTT.Broker.Host != "broker.local" || cfg.MQTT.Broker.Port != 1884 {
		t.Errorf("MQTT.Broker = %+v", cfg.MQTT.Broker)
	}
	if cfg.Relay.QueueSize != 20 {
		t.Errorf("Relay.QueueSize = %d, want 20", cfg.Relay.QueueSize)
	}
	if cfg.Relay.Topics.Broadcast != "club/lnIn" {
		t.Errorf("Relay.Topics.Broadcast = %q, want club/lnIn", cfg.Relay.Topics.Broadcast)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Relay.Topics.Echo != "lnEcho" || cfg.Relay.Topics.Ping != "lnPing" {
		t.Errorf("Relay.Topics = %+v, want default echo and ping", cfg.Relay.Topics)
	}
	if cfg.Relay.ReconnectIntervalMS != 5000 {
		t.Errorf("Relay.ReconnectIntervalMS = %d, want 5000", cfg.Relay.ReconnectIntervalMS)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "config.yaml", "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
relay:
  queue_size: 1
`
	_, err := Load(writeConfig(t, "config.yaml", content))
	if err == nil {
		t.Error("Load() expected validation error for queue_size 1, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "heartbeat disabled", mutate: func(c *Config) { c.Relay.HeartbeatInterval = 0 }},
		{name: "reserved character in node name", mutate: func(c *Config) { c.Node.Name = "a/b" }, wantErr: true},
		{name: "missing broker host", mutate: func(c *Config) { c.MQTT.Broker.Host = "" }, wantErr: true},
		{name: "invalid port low", mutate: func(c *Config) { c.MQTT.Broker.Port = 0 }, wantErr: true},
		{name: "invalid port high", mutate: func(c *Config) { c.MQTT.Broker.Port = 70000 }, wantErr: true},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
		{name: "zero connect timeout", mutate: func(c *Config) { c.MQTT.ConnectTimeout = 0 }, wantErr: true},
		{name: "queue too small", mutate: func(c *Config) { c.Relay.QueueSize = 1 }, wantErr: true},
		{name: "zero reconnect interval", mutate: func(c *Config) { c.Relay.ReconnectIntervalMS = 0 }, wantErr: true},
		{name: "negative heartbeat", mutate: func(c *Config) { c.Relay.HeartbeatInterval = -1 }, wantErr: true},
		{name: "zero tick", mutate: func(c *Config) { c.Relay.TickIntervalMS = 0 }, wantErr: true},
		{name: "empty topic", mutate: func(c *Config) { c.Relay.Topics.Ping = "" }, wantErr: true},
		{name: "wildcard topic", mutate: func(c *Config) { c.Relay.Topics.Echo = "ln/#" }, wantErr: true},
		{name: "database without path", mutate: func(c *Config) { c.Database.Enabled = true; c.Database.Path = "" }, wantErr: true},
		{name: "negative peer retention", mutate: func(c *Config) { c.Database.PeerRetentionHours = -1 }, wantErr: true},
		{name: "influx without url", mutate: func(c *Config) { c.InfluxDB.Enabled = true }, wantErr: true},
		{name: "metrics without listen", mutate: func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Listen = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetDurations(t *testing.T) {
	cfg := defaultConfig()

	if got := cfg.GetReconnectInterval(); got != 5*time.Second {
		t.Errorf("GetReconnectInterval() = %v, want 5s", got)
	}
	if got := cfg.GetHeartbeatInterval(); got != 5*time.Minute {
		t.Errorf("GetHeartbeatInterval() = %v, want 5m", got)
	}
	if got := cfg.GetTickInterval(); got != 10*time.Millisecond {
		t.Errorf("GetTickInterval() = %v, want 10ms", got)
	}
	if got := cfg.GetConnectTimeout(); got != 2*time.Second {
		t.Errorf("GetConnectTimeout() = %v, want 2s", got)
	}
	if got := cfg.GetPublishTimeout(); got != time.Second {
		t.Errorf("GetPublishTimeout() = %v, want 1s", got)
	}
	if got := cfg.GetPeerRetention(); got != 7*24*time.Hour {
		t.Errorf("GetPeerRetention() = %v, want 168h", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("LNBRIDGE_NODE_NAME", "depot")
	t.Setenv("LNBRIDGE_NODE_INCLUDE_HARDWARE_ID", "false")
	t.Setenv("LNBRIDGE_MQTT_HOST", "mqtt.example.com")
	t.Setenv("LNBRIDGE_MQTT_PORT", "8883")
	t.Setenv("LNBRIDGE_MQTT_USERNAME", "testuser")
	t.Setenv("LNBRIDGE_MQTT_PASSWORD", "testpass")
	t.Setenv("LNBRIDGE_RELAY_QUEUE_SIZE", "10")
	t.Setenv("LNBRIDGE_RELAY_HEARTBEAT_INTERVAL", "0")
	t.Setenv("LNBRIDGE_LOG_LEVEL", "debug")
	t.Setenv("LNBRIDGE_DATABASE_PATH", "/custom/path.db")
	t.Setenv("LNBRIDGE_INFLUXDB_TOKEN", "secret-token")

	applyEnvOverrides(cfg)

	if cfg.Node.Name != "depot" || cfg.Node.IncludeHardwareID {
		t.Errorf("Node = %+v, want depot without hardware ID", cfg.Node)
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" || cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker = %+v", cfg.MQTT.Broker)
	}
	if cfg.MQTT.Auth.Username != "testuser" || cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth = %+v", cfg.MQTT.Auth)
	}
	if cfg.Relay.QueueSize != 10 {
		t.Errorf("Relay.QueueSize = %d, want 10", cfg.Relay.QueueSize)
	}
	if cfg.Relay.HeartbeatInterval != 0 {
		t.Errorf("Relay.HeartbeatInterval = %d, want 0", cfg.Relay.HeartbeatInterval)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
}

func TestApplyEnvOverrides_IgnoresUnparseable(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("LNBRIDGE_MQTT_PORT", "not-a-port")
	t.Setenv("LNBRIDGE_NODE_INCLUDE_HARDWARE_ID", "maybe")

	applyEnvOverrides(cfg)

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if !cfg.Node.IncludeHardwareID {
		t.Error("Node.IncludeHardwareID = false, want default true")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Node.Name != "IoTT-MQTT" || !cfg.Node.IncludeHardwareID {
		t.Errorf("Node = %+v, want IoTT-MQTT with hardware ID", cfg.Node)
	}
	if cfg.MQTT.Broker.Host != "localhost" || cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker = %+v, want localhost:1883", cfg.MQTT.Broker)
	}
	if cfg.MQTT.QoS != 0 {
		t.Errorf("MQTT.QoS = %d, want 0", cfg.MQTT.QoS)
	}
	if cfg.Relay.QueueSize != 50 {
		t.Errorf("Relay.QueueSize = %d, want 50", cfg.Relay.QueueSize)
	}
	want := TopicsConfig{Broadcast: "lnIn", Echo: "lnEcho", Ping: "lnPing"}
	if cfg.Relay.Topics != want {
		t.Errorf("Relay.Topics = %+v, want %+v", cfg.Relay.Topics, want)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig().Validate() error = %v", err)
	}
}

func TestApplyLegacy(t *testing.T) {
	cfg := defaultConfig()
	data := []byte(`{
		"MQTTServer": "192.168.0.5",
		"MQTTPort": 1885,
		"MQTTUser": "loco",
		"MQTTPassword": "net",
		"NodeName": "Layout",
		"inclMAC": false,
		"pingDelay": 120,
		"BCTopic": "lnIn2"
	}`)

	if err := cfg.ApplyLegacy(data); err != nil {
		t.Fatalf("ApplyLegacy() error = %v", err)
	}

	if cfg.MQTT.Broker.Host != "192.168.0.5" || cfg.MQTT.Broker.Port != 1885 {
		t.Errorf("MQTT.Broker = %+v", cfg.MQTT.Broker)
	}
	if cfg.MQTT.Auth.Username != "loco" || cfg.MQTT.Auth.Password != "net" {
		t.Errorf("MQTT.Auth = %+v", cfg.MQTT.Auth)
	}
	if cfg.Node.Name != "Layout" || cfg.Node.IncludeHardwareID {
		t.Errorf("Node = %+v", cfg.Node)
	}
	if cfg.Relay.HeartbeatInterval != 120 {
		t.Errorf("Relay.HeartbeatInterval = %d, want 120", cfg.Relay.HeartbeatInterval)
	}
	if cfg.Relay.Topics.Broadcast != "lnIn2" {
		t.Errorf("Relay.Topics.Broadcast = %q, want lnIn2", cfg.Relay.Topics.Broadcast)
	}
	if cfg.Relay.Topics.Echo != "lnEcho" || cfg.Relay.Topics.Ping != "lnPing" {
		t.Errorf("absent topic keys changed: %+v", cfg.Relay.Topics)
	}
}

func TestApplyLegacy_AbsentKeysKeepValues(t *testing.T) {
	cfg := defaultConfig()
	cfg.Node.Name = "kept"

	if err := cfg.ApplyLegacy([]byte(`{"pingDelay": 0}`)); err != nil {
		t.Fatalf("ApplyLegacy() error = %v", err)
	}
	if cfg.Node.Name != "kept" {
		t.Errorf("Node.Name = %q, want kept", cfg.Node.Name)
	}
	if cfg.Relay.HeartbeatInterval != 0 {
		t.Errorf("Relay.HeartbeatInterval = %d, want 0", cfg.Relay.HeartbeatInterval)
	}
}

func TestApplyLegacy_JSONEscapes(t *testing.T) {
	cfg := defaultConfig()
	data := []byte(`{"MQTTServer":"broker.local","MQTTPassword":"päss\"w","BCTopic":"layout\/lnIn"}`)

	if err := cfg.ApplyLegacy(data); err != nil {
		t.Fatalf("ApplyLegacy() error = %v", err)
	}
	if cfg.Relay.Topics.Broadcast != "layout/lnIn" {
		t.Errorf("Relay.Topics.Broadcast = %q, want layout/lnIn", cfg.Relay.Topics.Broadcast)
	}
	if cfg.MQTT.Auth.Password != "päss\"w" {
		t.Errorf("MQTT.Auth.Password = %q, want päss\"w", cfg.MQTT.Auth.Password)
	}
}

func TestLoadLegacy(t *testing.T) {
	path := writeConfig(t, "mqtt.cfg", `{"MQTTServer": "10.1.1.1", "EchoTopic": "lnEcho2", "PingTopic": "lnPing2"}`)

	cfg, err := LoadLegacy(path)
	if err != nil {
		t.Fatalf("LoadLegacy() error = %v", err)
	}
	if cfg.MQTT.Broker.Host != "10.1.1.1" {
		t.Errorf("MQTT.Broker.Host = %q, want 10.1.1.1", cfg.MQTT.Broker.Host)
	}
	if cfg.Relay.Topics.Echo != "lnEcho2" || cfg.Relay.Topics.Ping != "lnPing2" {
		t.Errorf("Relay.Topics = %+v", cfg.Relay.Topics)
	}

	if _, err := LoadLegacy(writeConfig(t, "bad.cfg", `{"MQTTPort": "x"`)); err == nil {
		t.Error("LoadLegacy() expected error for malformed document, got nil")
	}
	if _, err := LoadLegacy(writeConfig(t, "wild.cfg", `{"BCTopic": "ln/+"}`)); err == nil {
		t.Error("LoadLegacy() expected validation error for wildcard topic, got nil")
	}
}

// TestLoad_ShippedExample keeps configs/lnbridge.yaml in step with the loader.
func TestLoad_ShippedExample(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "..", "configs", "lnbridge.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	def := defaultConfig()
	if cfg.Relay != def.Relay {
		t.Errorf("example relay section = %+v, want defaults %+v", cfg.Relay, def.Relay)
	}
	if cfg.MQTT != def.MQTT {
		t.Errorf("example mqtt section = %+v, want defaults %+v", cfg.MQTT, def.MQTT)
	}
	if cfg.Database != def.Database {
		t.Errorf("example database section = %+v, want defaults %+v", cfg.Database, def.Database)
	}
}
