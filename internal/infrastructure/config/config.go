package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Vendor    VendorConfig    `yaml:"vendor"`
	Devices   []DeviceConfig  `yaml:"devices"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Polling   PollingConfig   `yaml:"polling"`
	Database  DatabaseConfig  `yaml:"database"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	API       APIConfig       `yaml:"api"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// VendorConfig contains the cloud API endpoint and account credentials.
type VendorConfig struct {
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`

	// Timeout is the per-request HTTP timeout in seconds.
	Timeout int `yaml:"timeout"`

	// MaxRetries bounds retries of idempotent reads on transport errors.
	MaxRetries int `yaml:"max_retries"`
}

// DeviceConfig binds a vendor robot ID to the slug used in topics.
type DeviceConfig struct {
	ExternalID string `yaml:"external_id"`
	Slug       string `yaml:"slug"`
	Name       string `yaml:"name"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
	TopicPrefix string              `yaml:"topic_prefix"`
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

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// DiscoveryConfig controls publication of home-automation discovery descriptors.
type DiscoveryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Prefix       string `yaml:"prefix"`
	NodeID       string `yaml:"node_id"`
	Model        string `yaml:"model"`
	Manufacturer string `yaml:"manufacturer"`
}

// PollingConfig contains poll cadence and cache lifetimes.
type PollingConfig struct {
	// Interval between poll cycles, in seconds.
	Interval int `yaml:"interval"`

	// StateTTL is how long a fetched device state is served from cache, in seconds.
	StateTTL int `yaml:"state_ttl"`

	// SessionTTL is how long a login is reused, in seconds.
	SessionTTL int `yaml:"session_ttl"`

	// ChannelBuffer sizes the state and command channels.
	ChannelBuffer int `yaml:"channel_buffer"`

	// HealthInterval between bridge health publications, in seconds.
	HealthInterval int `yaml:"health_interval"`
}

// DatabaseConfig contains SQLite settings for the command journal.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
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

// APIConfig contains status HTTP server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: LITTERBRIDGE_SECTION_KEY
// For example: LITTERBRIDGE_VENDOR_PASSWORD, LITTERBRIDGE_MQTT_HOST
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
		Vendor: VendorConfig{
			BaseURL:    "https://v2.api.whisker.iothings.site",
			Timeout:    10,
			MaxRetries: 2,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "litterbridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			TopicPrefix: "litterrobot",
		},
		Discovery: DiscoveryConfig{
			Enabled:      true,
			Prefix:       "homeassistant",
			NodeID:       "litterbridge",
			Model:        "Litter-Robot 3 Connect",
			Manufacturer: "Whisker",
		},
		Polling: PollingConfig{
			Interval:       30,
			StateTTL:       17,
			SessionTTL:     86400,
			ChannelBuffer:  64,
			HealthInterval: 30,
		},
		Database: DatabaseConfig{
			Path:        "./data/litterbridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8088,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: LITTERBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Vendor credentials are usually injected rather than committed.
	if v := os.Getenv("LITTERBRIDGE_VENDOR_BASE_URL"); v != "" {
		cfg.Vendor.BaseURL = v
	}
	if v := os.Getenv("LITTERBRIDGE_VENDOR_API_KEY"); v != "" {
		cfg.Vendor.APIKey = v
	}
	if v := os.Getenv("LITTERBRIDGE_VENDOR_EMAIL"); v != "" {
		cfg.Vendor.Email = v
	}
	if v := os.Getenv("LITTERBRIDGE_VENDOR_PASSWORD"); v != "" {
		cfg.Vendor.Password = v
	}

	// MQTT
	if v := os.Getenv("LITTERBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("LITTERBRIDGE_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("LITTERBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("LITTERBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Database
	if v := os.Getenv("LITTERBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("LITTERBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("LITTERBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// All problems are reported together so a broken file can be fixed in one pass.
func (c *Config) Validate() error {
	var errs []string

	// Vendor
	if c.Vendor.BaseURL == "" {
		errs = append(errs, "vendor.base_url is required")
	}
	if c.Vendor.APIKey == "" {
		errs = append(errs, "vendor.api_key is required (set LITTERBRIDGE_VENDOR_API_KEY)")
	}
	if c.Vendor.Email == "" || c.Vendor.Password == "" {
		errs = append(errs, "vendor.email and vendor.password are required")
	}
	if c.Vendor.Timeout < 1 {
		errs = append(errs, "vendor.timeout must be at least 1 second")
	}
	if c.Vendor.MaxRetries < 0 {
		errs = append(errs, "vendor.max_retries cannot be negative")
	}

	// Devices: the slug/ID mapping must be a bijection.
	if len(c.Devices) == 0 {
		errs = append(errs, "at least one device is required")
	}
	slugs := make(map[string]bool, len(c.Devices))
	ids := make(map[string]bool, len(c.Devices))
	for i, d := range c.Devices {
		switch {
		case d.ExternalID == "":
			errs = append(errs, fmt.Sprintf("devices[%d].external_id is required", i))
		case ids[d.ExternalID]:
			errs = append(errs, fmt.Sprintf("devices[%d].external_id %q is duplicated", i, d.ExternalID))
		}
		switch {
		case d.Slug == "":
			errs = append(errs, fmt.Sprintf("devices[%d].slug is required", i))
		case strings.ContainsAny(d.Slug, "/+#"):
			errs = append(errs, fmt.Sprintf("devices[%d].slug %q contains an MQTT topic separator or wildcard", i, d.Slug))
		case slugs[d.Slug]:
			errs = append(errs, fmt.Sprintf("devices[%d].slug %q is duplicated", i, d.Slug))
		}
		ids[d.ExternalID] = true
		slugs[d.Slug] = true
	}

	// MQTT
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required")
	}

	if c.Discovery.Enabled && c.Discovery.Prefix == "" {
		errs = append(errs, "discovery.prefix is required when discovery is enabled")
	}

	// Polling
	if c.Polling.Interval < 1 {
		errs = append(errs, "polling.interval must be at least 1 second")
	}
	if c.Polling.StateTTL < 1 || c.Polling.SessionTTL < 1 {
		errs = append(errs, "polling.state_ttl and polling.session_ttl must be positive")
	}
	if c.Polling.ChannelBuffer < 1 {
		errs = append(errs, "polling.channel_buffer must be at least 1")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when the journal is enabled")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetVendorTimeout returns the vendor HTTP timeout as a Duration.
func (c *Config) GetVendorTimeout() time.Duration {
	return time.Duration(c.Vendor.Timeout) * time.Second
}

// GetPollInterval returns the poll interval as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Polling.Interval) * time.Second
}

// GetStateTTL returns the device-state cache lifetime as a Duration.
func (c *Config) GetStateTTL() time.Duration {
	return time.Duration(c.Polling.StateTTL) * time.Second
}

// GetSessionTTL returns the session cache lifetime as a Duration.
func (c *Config) GetSessionTTL() time.Duration {
	return time.Duration(c.Polling.SessionTTL) * time.Second
}

// GetHealthInterval returns the health publication interval as a Duration.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Polling.HealthInterval) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (a APIConfig) GetReadTimeout() time.Duration {
	return time.Duration(a.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (a APIConfig) GetWriteTimeout() time.Duration {
	return time.Duration(a.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (a APIConfig) GetIdleTimeout() time.Duration {
	return time.Duration(a.Timeouts.Idle) * time.Second
}
