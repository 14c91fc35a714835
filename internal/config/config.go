package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const (
	DefaultServerPort     = 8000
	DefaultServerPath     = "/ws"
	DefaultInitialDelayMS = 5000
	DefaultGrowthFactor   = 1.5
	DefaultMaxDelayMS     = 30000
	DefaultMaxAttempts    = 5
	DefaultSeriesCapacity = 50
)

// ServerConfig describes the monitoring platform endpoint. The endpoint
// URL is derived once at startup, never re-derived per attempt.
type ServerConfig struct {
	Scheme string `json:"scheme"`
	Host   string `json:"host"`
	Port   int    `json:"port"`
	Path   string `json:"path"`
}

func (s ServerConfig) Endpoint() string {
	u := url.URL{
		Scheme: s.Scheme,
		Host:   fmt.Sprintf("%s:%d", s.Host, s.Port),
		Path:   s.Path,
	}

	return u.String()
}

// ReconnectConfig holds the backoff policy parameters.
type ReconnectConfig struct {
	InitialDelayMS int     `json:"initial_delay_ms"`
	GrowthFactor   float64 `json:"growth_factor"`
	MaxDelayMS     int     `json:"max_delay_ms"`
	MaxAttempts    int     `json:"max_attempts"`
}

// TelemetryConfig holds rolling buffer parameters.
type TelemetryConfig struct {
	SeriesCapacity int `json:"series_capacity"`
}

// LoggingConfig defines runtime logging behavior.
type LoggingConfig struct {
	Level     string `json:"level"`
	LogToFile bool   `json:"log_to_file"`
}

// NotificationConfig stores desktop notification preferences.
type NotificationConfig struct {
	Events NotificationEventsConfig `json:"events"`
}

// NotificationEventsConfig stores per-event notification toggles.
type NotificationEventsConfig struct {
	Alarm              bool `json:"alarm"`
	MaintenanceAlert   bool `json:"maintenance_alert"`
	SystemNotification bool `json:"system_notification"`
	ConnectionStatus   bool `json:"connection_status"`
}

// AppConfig is the root persisted application configuration.
type AppConfig struct {
	Server        ServerConfig       `json:"server"`
	Reconnect     ReconnectConfig    `json:"reconnect"`
	Telemetry     TelemetryConfig    `json:"telemetry"`
	Logging       LoggingConfig      `json:"logging"`
	Notifications NotificationConfig `json:"notifications"`
}

func Default() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			Scheme: "ws",
			Host:   "",
			Port:   DefaultServerPort,
			Path:   DefaultServerPath,
		},
		Reconnect: ReconnectConfig{
			InitialDelayMS: DefaultInitialDelayMS,
			GrowthFactor:   DefaultGrowthFactor,
			MaxDelayMS:     DefaultMaxDelayMS,
			MaxAttempts:    DefaultMaxAttempts,
		},
		Telemetry: TelemetryConfig{
			SeriesCapacity: DefaultSeriesCapacity,
		},
		Logging: LoggingConfig{
			Level:     "info",
			LogToFile: false,
		},
		Notifications: NotificationConfig{
			Events: NotificationEventsConfig{
				Alarm:              true,
				MaintenanceAlert:   true,
				SystemNotification: true,
				ConnectionStatus:   true,
			},
		},
	}
}

func Load(path string) (AppConfig, error) {
	cfg := Default()
	cleanPath := filepath.Clean(path)
	// #nosec G304 -- path is resolved by app runtime and points to user config dir.
	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(raw, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("decode config json: %w", err)
	}

	cfg.FillMissingDefaults()

	return cfg, nil
}

func (c *AppConfig) FillMissingDefaults() {
	if strings.TrimSpace(c.Server.Scheme) == "" {
		c.Server.Scheme = "ws"
	}
	if c.Server.Port <= 0 {
		c.Server.Port = DefaultServerPort
	}
	if strings.TrimSpace(c.Server.Path) == "" {
		c.Server.Path = DefaultServerPath
	}
	if c.Reconnect.InitialDelayMS <= 0 {
		c.Reconnect.InitialDelayMS = DefaultInitialDelayMS
	}
	if c.Reconnect.GrowthFactor < 1 {
		c.Reconnect.GrowthFactor = DefaultGrowthFactor
	}
	if c.Reconnect.MaxDelayMS < c.Reconnect.InitialDelayMS {
		c.Reconnect.MaxDelayMS = DefaultMaxDelayMS
	}
	if c.Reconnect.MaxAttempts <= 0 {
		c.Reconnect.MaxAttempts = DefaultMaxAttempts
	}
	if c.Telemetry.SeriesCapacity <= 0 {
		c.Telemetry.SeriesCapacity = DefaultSeriesCapacity
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c AppConfig) Validate() error {
	switch c.Server.Scheme {
	case "ws", "wss":
	default:
		return fmt.Errorf("unsupported server scheme: %q", c.Server.Scheme)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return errors.New("server host is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	if c.Reconnect.GrowthFactor < 1 {
		return errors.New("reconnect growth factor must be >= 1")
	}
	if c.Reconnect.MaxDelayMS < c.Reconnect.InitialDelayMS {
		return errors.New("reconnect max delay must be >= initial delay")
	}
	if c.Telemetry.SeriesCapacity <= 0 {
		return errors.New("telemetry series capacity must be positive")
	}

	return nil
}

func Save(path string, cfg AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0o600); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp config: %w", err)
	}

	return nil
}
