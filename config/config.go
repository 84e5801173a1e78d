package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so yaml values like "15s" decode directly.
type Duration time.Duration

// UnmarshalYAML parses either a Go duration string or a bare integer
// (interpreted as nanoseconds, matching time.Duration's underlying unit).
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		var n int64
		if err2 := value.Decode(&n); err2 != nil {
			return fmt.Errorf("invalid duration %q", value.Value)
		}
		*d = Duration(n)
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the plain time.Duration value.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	Connector   ConnectorConfig   `yaml:"connector"`
	Rest        RestConfig        `yaml:"rest"`
	Ws          WsConfig          `yaml:"ws"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

type ConnectorConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type RestConfig struct {
	BaseURL    string          `yaml:"base_url"`
	Timeout    Duration        `yaml:"timeout"`
	RecvWindow int64           `yaml:"recv_window_ms"`
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type WsConfig struct {
	PublicURL         string   `yaml:"public_url"`
	PrivateURL        string   `yaml:"private_url"`
	ConnectTimeout    Duration `yaml:"connect_timeout"`
	AuthTimeout       Duration `yaml:"auth_timeout"`
	WriteTimeout      Duration `yaml:"write_timeout"`
	HeartbeatInterval Duration `yaml:"heartbeat_interval"`
	StaleMultiplier   int      `yaml:"stale_multiplier"`
	ReconnectMin      Duration `yaml:"reconnect_min"`
	ReconnectMax      Duration `yaml:"reconnect_max"`
	MaxTopicsPerFrame int      `yaml:"max_topics_per_frame"`
	ConsumerBuffer    int      `yaml:"consumer_buffer"`
	Topics            []string `yaml:"topics"`
}

type CredentialsConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
}

// Configured reports whether both credential halves are present. Without
// them the connector runs in public-only mode.
func (c CredentialsConfig) Configured() bool {
	return c.APIKey != "" && c.APISecret != ""
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type MetricsConfig struct {
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
	Dashboard string `yaml:"dashboard"`
}

// Conservative defaults; every timeout is finite so a hung network call
// cannot block the process indefinitely.
const (
	defaultBaseURL           = "https://api.bybit.com"
	defaultPublicWsURL       = "wss://stream.bybit.com/v5/public/linear"
	defaultPrivateWsURL      = "wss://stream.bybit.com/v5/private"
	defaultRestTimeout       = 15 * time.Second
	defaultRecvWindow        = 5000
	defaultConnectTimeout    = 10 * time.Second
	defaultAuthTimeout       = 10 * time.Second
	defaultWriteTimeout      = 5 * time.Second
	defaultHeartbeat         = 20 * time.Second
	defaultStaleMultiplier   = 2
	defaultReconnectMin      = time.Second
	defaultReconnectMax      = time.Minute
	defaultMaxTopicsPerFrame = 10
	defaultConsumerBuffer    = 256
)

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&config)

	// Credentials come from the environment when present so keys never
	// have to live inside a checked-in file.
	if v := os.Getenv("BYBIT_API_KEY"); v != "" {
		config.Credentials.APIKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("BYBIT_API_SECRET"); v != "" {
		config.Credentials.APISecret = strings.TrimSpace(v)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Rest.BaseURL == "" {
		cfg.Rest.BaseURL = defaultBaseURL
	}
	if cfg.Rest.Timeout <= 0 {
		cfg.Rest.Timeout = Duration(defaultRestTimeout)
	}
	if cfg.Rest.RecvWindow <= 0 {
		cfg.Rest.RecvWindow = defaultRecvWindow
	}
	if cfg.Ws.PublicURL == "" {
		cfg.Ws.PublicURL = defaultPublicWsURL
	}
	if cfg.Ws.PrivateURL == "" {
		cfg.Ws.PrivateURL = defaultPrivateWsURL
	}
	if cfg.Ws.ConnectTimeout <= 0 {
		cfg.Ws.ConnectTimeout = Duration(defaultConnectTimeout)
	}
	if cfg.Ws.AuthTimeout <= 0 {
		cfg.Ws.AuthTimeout = Duration(defaultAuthTimeout)
	}
	if cfg.Ws.WriteTimeout <= 0 {
		cfg.Ws.WriteTimeout = Duration(defaultWriteTimeout)
	}
	if cfg.Ws.HeartbeatInterval <= 0 {
		cfg.Ws.HeartbeatInterval = Duration(defaultHeartbeat)
	}
	if cfg.Ws.StaleMultiplier <= 0 {
		cfg.Ws.StaleMultiplier = defaultStaleMultiplier
	}
	if cfg.Ws.ReconnectMin <= 0 {
		cfg.Ws.ReconnectMin = Duration(defaultReconnectMin)
	}
	if cfg.Ws.ReconnectMax <= 0 {
		cfg.Ws.ReconnectMax = Duration(defaultReconnectMax)
	}
	if cfg.Ws.MaxTopicsPerFrame <= 0 {
		cfg.Ws.MaxTopicsPerFrame = defaultMaxTopicsPerFrame
	}
	if cfg.Ws.ConsumerBuffer <= 0 {
		cfg.Ws.ConsumerBuffer = defaultConsumerBuffer
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		// Production-like deployments get machine readable logs.
		if IsProductionLike(AppEnvironment()) {
			cfg.Logging.Format = "json"
		} else {
			cfg.Logging.Format = "text"
		}
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Connector.Name == "" {
		return fmt.Errorf("connector.name is required")
	}
	if cfg.Connector.Version == "" {
		return fmt.Errorf("connector.version is required")
	}
	if !strings.HasPrefix(cfg.Rest.BaseURL, "http://") && !strings.HasPrefix(cfg.Rest.BaseURL, "https://") {
		return fmt.Errorf("rest.base_url '%s' must be an http(s) URL", cfg.Rest.BaseURL)
	}
	for _, u := range []string{cfg.Ws.PublicURL, cfg.Ws.PrivateURL} {
		if !strings.HasPrefix(u, "ws://") && !strings.HasPrefix(u, "wss://") {
			return fmt.Errorf("websocket URL '%s' must be a ws(s) URL", u)
		}
	}
	if cfg.Ws.ReconnectMin > cfg.Ws.ReconnectMax {
		return fmt.Errorf("ws.reconnect_min must not exceed ws.reconnect_max")
	}
	if (cfg.Credentials.APIKey == "") != (cfg.Credentials.APISecret == "") {
		return fmt.Errorf("credentials.api_key and credentials.api_secret must be set together")
	}
	if cfg.Rest.RateLimit.RequestsPerSecond < 0 || cfg.Rest.RateLimit.BurstSize < 0 {
		return fmt.Errorf("rest.rate_limit values must not be negative")
	}
	return nil
}
