package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "relay.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
mqtt:
  broker:
    host: "broker.local"
    port: 8883
    client_id: "relay-test"
  qos: 0
  subscriptions:
    - "sensors/#"
    - "alarms/+"
  status_topic: "relay/status"
  reconnect:
    delay: 2.5
    msg_interval: 10
database:
  enabled: true
  path: "/tmp/relay.db"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
	if len(cfg.MQTT.Subscriptions) != 2 {
		t.Errorf("len(MQTT.Subscriptions) = %d, want 2", len(cfg.MQTT.Subscriptions))
	}
	if cfg.MQTT.StatusTopic != "relay/status" {
		t.Errorf("MQTT.StatusTopic = %q, want %q", cfg.MQTT.StatusTopic, "relay/status")
	}
	if got := cfg.MQTT.ReconnectDelay(); got != 2500*time.Millisecond {
		t.Errorf("ReconnectDelay() = %v, want 2.5s", got)
	}
	if cfg.MQTT.Reconnect.MsgInterval != 10 {
		t.Errorf("Reconnect.MsgInterval = %d, want 10", cfg.MQTT.Reconnect.MsgInterval)
	}
	// Not set in the file, so the default survives.
	if got := cfg.MQTT.ReconnectPollInterval(); got != time.Second {
		t.Errorf("ReconnectPollInterval() = %v, want 1s", got)
	}
	if !cfg.Database.Enabled || cfg.Database.Path != "/tmp/relay.db" {
		t.Errorf("Database = %+v, want enabled at /tmp/relay.db", cfg.Database)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/relay.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
mqtt:
  broker:
    port: 0
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error for port 0, got nil")
	}
	if !strings.Contains(err.Error(), "mqtt.broker.port") {
		t.Errorf("Load() error = %v, want mention of mqtt.broker.port", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	validJWTSecret := "test-secret-key-at-least-32-chars!"

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing broker host",
			mutate:  func(c *Config) { c.MQTT.Broker.Host = "" },
			wantErr: true,
		},
		{
			name:    "invalid broker port",
			mutate:  func(c *Config) { c.MQTT.Broker.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "negative reconnect delay",
			mutate:  func(c *Config) { c.MQTT.Reconnect.Delay = -1 },
			wantErr: true,
		},
		{
			name:    "negative poll interval",
			mutate:  func(c *Config) { c.MQTT.Reconnect.PollInterval = -0.5 },
			wantErr: true,
		},
		{
			name:    "empty subscription filter",
			mutate:  func(c *Config) { c.MQTT.Subscriptions = []string{"a/b", " "} },
			wantErr: true,
		},
		{
			name: "archive enabled without path",
			mutate: func(c *Config) {
				c.Database.Enabled = true
				c.Database.Path = ""
			},
			wantErr: true,
		},
		{
			name:    "archive disabled without path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: false,
		},
		{
			name: "influxdb enabled without url",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.URL = ""
			},
			wantErr: true,
		},
		{
			name:    "influxdb enabled with defaults",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: false,
		},
		{
			name:    "negative retention",
			mutate:  func(c *Config) { c.Database.RetentionDays = -1 },
			wantErr: true,
		},
		{
			name:    "api port out of range",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: true,
		},
		{
			name: "api disabled ignores port",
			mutate: func(c *Config) {
				c.API.Enabled = false
				c.API.Port = 0
			},
			wantErr: false,
		},
		{
			name:    "JWT secret too short",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "short" },
			wantErr: true,
		},
		{
			name:    "JWT secret long enough",
			mutate:  func(c *Config) { c.Security.JWT.Secret = validJWTSecret },
			wantErr: false,
		},
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

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}

	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}

	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("GRAYLOGIC_RELAY_MQTT_HOST", "mqtt.example.com")
	t.Setenv("GRAYLOGIC_RELAY_MQTT_PORT", "1884")
	t.Setenv("GRAYLOGIC_RELAY_MQTT_CLIENT_ID", "relay-01")
	t.Setenv("GRAYLOGIC_RELAY_MQTT_USERNAME", "testuser")
	t.Setenv("GRAYLOGIC_RELAY_MQTT_PASSWORD", "testpass")
	t.Setenv("GRAYLOGIC_RELAY_DATABASE_PATH", "/custom/path.db")
	t.Setenv("GRAYLOGIC_RELAY_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("GRAYLOGIC_RELAY_API_HOST", "192.168.1.1")
	t.Setenv("GRAYLOGIC_RELAY_JWT_SECRET", "jwt-secret")

	applyEnvOverrides(cfg)

	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Broker.Port != 1884 {
		t.Errorf("MQTT.Broker.Port = %d, want 1884", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Broker.ClientID != "relay-01" {
		t.Errorf("MQTT.Broker.ClientID = %q, want %q", cfg.MQTT.Broker.ClientID, "relay-01")
	}
	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}
	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}
	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}
	if cfg.Security.JWT.Secret != "jwt-secret" {
		t.Errorf("Security.JWT.Secret = %q, want %q", cfg.Security.JWT.Secret, "jwt-secret")
	}
}

func TestApplyEnvOverrides_InvalidPortIgnored(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("GRAYLOGIC_RELAY_MQTT_PORT", "not-a-port")

	applyEnvOverrides(cfg)

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("defaultConfig MQTT.Broker.Host = %q, want localhost", cfg.MQTT.Broker.Host)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Broker.ClientID != "" {
		t.Errorf("defaultConfig MQTT.Broker.ClientID = %q, want empty (generated)", cfg.MQTT.Broker.ClientID)
	}
	if cfg.MQTT.ReconnectDelay() != time.Second {
		t.Errorf("defaultConfig ReconnectDelay() = %v, want 1s", cfg.MQTT.ReconnectDelay())
	}
	if cfg.MQTT.ReconnectPollInterval() != cfg.MQTT.ReconnectDelay() {
		t.Error("defaultConfig poll interval should equal the reconnect delay")
	}
	if cfg.MQTT.Reconnect.MsgInterval != 5 {
		t.Errorf("defaultConfig Reconnect.MsgInterval = %d, want 5", cfg.MQTT.Reconnect.MsgInterval)
	}
	if got := cfg.Database.Retention(); got != 7*24*time.Hour {
		t.Errorf("defaultConfig Database.Retention() = %v, want 168h", got)
	}
}
