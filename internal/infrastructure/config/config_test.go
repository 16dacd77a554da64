package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "app.nelotec.co.za"
    port: 8883
    client_id: "test-client"
  topic: "+/data"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8080
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.MQTT.Broker.Host != "app.nelotec.co.za" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "app.nelotec.co.za")
	}
	if cfg.MQTT.Topic != "+/data" {
		t.Errorf("MQTT.Topic = %q, want %q", cfg.MQTT.Topic, "+/data")
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "database:\n  path: /tmp/t.db\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Telemetry.MaxRecords != 50 {
		t.Errorf("Telemetry.MaxRecords = %d, want 50", cfg.Telemetry.MaxRecords)
	}
	if cfg.MQTT.Reconnect.InitialDelay != 5 {
		t.Errorf("MQTT.Reconnect.InitialDelay = %d, want 5", cfg.MQTT.Reconnect.InitialDelay)
	}
	if cfg.MQTT.TLS.InsecureSkipVerify {
		t.Error("MQTT.TLS.InsecureSkipVerify should default to false")
	}
	if cfg.WebSocket.SendBufferSize != 256 {
		t.Errorf("WebSocket.SendBufferSize = %d, want 256", cfg.WebSocket.SendBufferSize)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
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
database:
  path: "/tmp/test.db"
mqtt:
  qos: 7
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	if !strings.Contains(err.Error(), "mqtt.qos") {
		t.Errorf("error = %v, want mention of mqtt.qos", err)
	}
}

func TestLoad_InfluxTokenRequiredWhenEnabled(t *testing.T) {
	content := `
database:
  path: "/tmp/test.db"
influxdb:
  enabled: true
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error for missing influx token, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("NELOFMS_MQTT_HOST", "broker.example.com")
	t.Setenv("NELOFMS_MQTT_PORT", "1883")
	t.Setenv("NELOFMS_INFLUXDB_TOKEN", "secret-token")

	cfg, err := Load(writeConfig(t, "database:\n  path: /tmp/t.db\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Broker.Host != "broker.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want env override", cfg.MQTT.Broker.Host)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want env override", cfg.InfluxDB.Token)
	}
}

func TestGetTimeouts(t *testing.T) {
	cfg, err := Load(writeConfig(t, "database:\n  path: /tmp/t.db\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %vs, want 30s", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %vs, want 60s", got)
	}
}
