package config

import (
	"os"
	"testing"
	"time"
)

// writeTempConfig creates a minimal configuration file required for
// LoadConfig and returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp("", "cfg-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	return f.Name()
}

const minimalYAML = `connector:
  name: "TestConnector"
  version: "1.0"
rest:
  timeout: 5s
  recv_window_ms: 4000
ws:
  heartbeat_interval: 10s
  reconnect_min: 500ms
  reconnect_max: 20s
  topics:
    - "tickers.BTCUSDT"
`

func TestLoadConfig(t *testing.T) {
	path := writeTempConfig(t, minimalYAML)
	defer os.Remove(path)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Connector.Name != "TestConnector" {
		t.Errorf("unexpected name: %s", cfg.Connector.Name)
	}
	if cfg.Rest.Timeout.Std() != 5*time.Second {
		t.Errorf("unexpected rest timeout: %v", cfg.Rest.Timeout.Std())
	}
	if cfg.Rest.RecvWindow != 4000 {
		t.Errorf("unexpected recv window: %d", cfg.Rest.RecvWindow)
	}
	if cfg.Ws.ReconnectMin.Std() != 500*time.Millisecond {
		t.Errorf("unexpected reconnect min: %v", cfg.Ws.ReconnectMin.Std())
	}
	if len(cfg.Ws.Topics) != 1 || cfg.Ws.Topics[0] != "tickers.BTCUSDT" {
		t.Errorf("unexpected topics: %v", cfg.Ws.Topics)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeTempConfig(t, "connector:\n  name: \"c\"\n  version: \"v\"\n")
	defer os.Remove(path)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Rest.BaseURL != defaultBaseURL {
		t.Errorf("base URL default not applied: %s", cfg.Rest.BaseURL)
	}
	if cfg.Ws.HeartbeatInterval.Std() != defaultHeartbeat {
		t.Errorf("heartbeat default not applied: %v", cfg.Ws.HeartbeatInterval.Std())
	}
	if cfg.Ws.StaleMultiplier != defaultStaleMultiplier {
		t.Errorf("stale multiplier default not applied: %d", cfg.Ws.StaleMultiplier)
	}
	if cfg.Credentials.Configured() {
		t.Error("credentials should be absent by default")
	}
}

func TestLoadConfigCredentialEnvOverride(t *testing.T) {
	t.Setenv("BYBIT_API_KEY", "env-key")
	t.Setenv("BYBIT_API_SECRET", "env-secret")

	path := writeTempConfig(t, "connector:\n  name: \"c\"\n  version: \"v\"\n")
	defer os.Remove(path)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Credentials.APIKey != "env-key" || cfg.Credentials.APISecret != "env-secret" {
		t.Errorf("environment override not applied: %+v", cfg.Credentials)
	}
	if !cfg.Credentials.Configured() {
		t.Error("credentials should be configured")
	}
}

func TestLoadConfigRejectsPartialCredentials(t *testing.T) {
	content := "connector:\n  name: \"c\"\n  version: \"v\"\ncredentials:\n  api_key: \"only-key\"\n"
	path := writeTempConfig(t, content)
	defer os.Remove(path)

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected validation error for partial credentials")
	}
}

func TestLoadConfigRejectsBadBackoffWindow(t *testing.T) {
	content := `connector:
  name: "c"
  version: "v"
ws:
  reconnect_min: 2m
  reconnect_max: 1s
`
	path := writeTempConfig(t, content)
	defer os.Remove(path)

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected validation error for inverted backoff window")
	}
}

func TestIsProductionLike(t *testing.T) {
	if !IsProductionLike(EnvironmentProduction) || !IsProductionLike(EnvironmentStaging) {
		t.Error("production and staging should be production-like")
	}
	if IsProductionLike(EnvironmentDevelopment) {
		t.Error("development should not be production-like")
	}
}
