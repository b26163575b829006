package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for ir-relay.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Hub      HubConfig      `yaml:"hub"`
	Emitter  EmitterConfig  `yaml:"emitter"`
	API      APIConfig      `yaml:"api"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Logging  LoggingConfig  `yaml:"logging"`
	Security SecurityConfig `yaml:"security"`
}

// HubConfig contains connection settings for the home-automation hub.
//
// The hub exposes a session-authenticated REST API: POST {prefix}/login
// returns a session token which must accompany every subsequent call.
type HubConfig struct {
	// BaseURL is the hub's root URL (e.g. "http://192.168.1.10:8083").
	BaseURL string `yaml:"base_url"`

	// PathPrefix is prepended to all hub API paths.
	// Default: "/ZAutomation/api/v1"
	PathPrefix string `yaml:"path_prefix"`

	// Login and Password are the hub credentials used to obtain sessions.
	Login    string `yaml:"login"`
	Password string `yaml:"password"`

	// Timeout bounds each outbound request to the hub (seconds).
	// Default: 10
	Timeout int `yaml:"timeout"`
}

// EmitterConfig contains connection and pacing settings for the IR emitter.
type EmitterConfig struct {
	// Host and Port locate the emitter's HTTP interface.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Timeout bounds each outbound request to the emitter (seconds).
	// Default: 10
	Timeout int `yaml:"timeout"`

	// MaxRepeat caps the number of pulses a single repeat request may
	// emit. Requests above the cap are clamped, not rejected.
	// Default: 50
	MaxRepeat int `yaml:"max_repeat"`

	// PaceInterval is the delay between consecutive pulses in a repeat
	// sequence (milliseconds). Default: 1000
	PaceInterval int `yaml:"pace_interval"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// DatabaseConfig contains SQLite database settings for the command log.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains settings for the optional MQTT event publisher.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings for the inbound API.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
//
// The JWT guards the relay's own REST surface and is unrelated to the
// hub session token managed by the hub client.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"` // minutes
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: IRRELAY_SECTION_KEY
// For example: IRRELAY_HUB_PASSWORD, IRRELAY_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
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

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Hub: HubConfig{
			PathPrefix: "/ZAutomation/api/v1",
			Timeout:    10,
		},
		Emitter: EmitterConfig{
			Host:         "localhost",
			Port:         8087,
			Timeout:      10,
			MaxRepeat:    50,
			PaceInterval: 1000,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/irrelay.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "ir-relay",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 15,
				Username:       "admin",
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: IRRELAY_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Hub
	if v := os.Getenv("IRRELAY_HUB_BASE_URL"); v != "" {
		cfg.Hub.BaseURL = v
	}
	if v := os.Getenv("IRRELAY_HUB_LOGIN"); v != "" {
		cfg.Hub.Login = v
	}
	if v := os.Getenv("IRRELAY_HUB_PASSWORD"); v != "" {
		cfg.Hub.Password = v
	}

	// Emitter
	if v := os.Getenv("IRRELAY_EMITTER_HOST"); v != "" {
		cfg.Emitter.Host = v
	}
	if v := os.Getenv("IRRELAY_EMITTER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Emitter.Port = port
		}
	}

	// API
	if v := os.Getenv("IRRELAY_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("IRRELAY_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// Database
	if v := os.Getenv("IRRELAY_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("IRRELAY_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("IRRELAY_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("IRRELAY_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Security - JWT secret (always override in production)
	if v := os.Getenv("IRRELAY_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
	if v := os.Getenv("IRRELAY_JWT_PASSWORD"); v != "" {
		cfg.Security.JWT.Password = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Hub validation
	if c.Hub.BaseURL == "" {
		errs = append(errs, "hub.base_url is required")
	}
	if c.Hub.Login == "" {
		errs = append(errs, "hub.login is required")
	}

	// Emitter validation
	if c.Emitter.Host == "" {
		errs = append(errs, "emitter.host is required")
	}
	if c.Emitter.Port < 1 || c.Emitter.Port > 65535 {
		errs = append(errs, "emitter.port must be between 1 and 65535")
	}
	if c.Emitter.MaxRepeat < 1 {
		errs = append(errs, "emitter.max_repeat must be at least 1")
	}
	if c.Emitter.PaceInterval < 0 {
		errs = append(errs, "emitter.pace_interval must not be negative")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation (only when enabled)
	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
	}

	// Security validation - JWT secret is REQUIRED. A weak secret would
	// let an attacker forge tokens and drive physical devices.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set IRRELAY_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// HubTimeout returns the hub request timeout as a Duration.
func (c *HubConfig) HubTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// EmitterTimeout returns the emitter request timeout as a Duration.
func (c *EmitterConfig) EmitterTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// Pace returns the repeat pacing interval as a Duration.
func (c *EmitterConfig) Pace() time.Duration {
	return time.Duration(c.PaceInterval) * time.Millisecond
}
