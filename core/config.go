package core

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything a pipeline service needs. Resolution order:
// defaults, then an optional YAML file, then environment variables, then
// functional options. Later layers win.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Logging   LoggingConfig   `yaml:"logging"`
	Redis     RedisConfig     `yaml:"redis"`
	Broker    BrokerConfig    `yaml:"broker"`
	RPC       RPCConfig       `yaml:"rpc"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Normalize NormalizeConfig `yaml:"normalize"`
	Scorer    ScorerConfig    `yaml:"scorer"`
	Rules     RulesConfig     `yaml:"rules"`
	Registry  RegistryConfig  `yaml:"registry"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServiceConfig identifies the service and its listen address.
type ServiceConfig struct {
	Name            string        `yaml:"name"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig controls log level and format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json", "text", or "" for auto
}

// RedisConfig configures the shared Redis connection.
type RedisConfig struct {
	URL       string `yaml:"url"`
	Namespace string `yaml:"namespace"`
}

// BrokerConfig configures the event bus.
type BrokerConfig struct {
	Partitions      int           `yaml:"partitions"`
	MaxLen          int64         `yaml:"max_len"`
	MaxDeliveries   int64         `yaml:"max_deliveries"`
	ClaimMinIdle    time.Duration `yaml:"claim_min_idle"`
	BlockTimeout    time.Duration `yaml:"block_timeout"`
	PublishAttempts int           `yaml:"publish_attempts"`
	DedupeEnabled   bool          `yaml:"dedupe_enabled"`
	DedupeTTL       time.Duration `yaml:"dedupe_ttl"`
}

// RPCConfig holds the addresses and call policy for the read services.
type RPCConfig struct {
	RegistryURL   string        `yaml:"registry_url"`
	AnomalyURL    string        `yaml:"anomaly_url"`
	Timeout       time.Duration `yaml:"timeout"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
}

// GatewayConfig configures the ingestion gateway.
type GatewayConfig struct {
	VerifyDevices    bool          `yaml:"verify_devices"`
	VerifyCacheTTL   time.Duration `yaml:"verify_cache_ttl"`
	MaxBodyBytes     int64         `yaml:"max_body_bytes"`
	MaxMeasurements  int           `yaml:"max_measurements"`
	AcceptedVersions []string      `yaml:"accepted_versions"`
}

// NormalizeConfig holds the clamp windows. Temperature bounds are Celsius;
// the Fahrenheit window is derived from them.
type NormalizeConfig struct {
	HeartRateMin float64 `yaml:"heart_rate_min"`
	HeartRateMax float64 `yaml:"heart_rate_max"`
	SpO2Min      float64 `yaml:"spo2_min"`
	SpO2Max      float64 `yaml:"spo2_max"`
	TempMinC     float64 `yaml:"temp_min_c"`
	TempMaxC     float64 `yaml:"temp_max_c"`
	RulesVersion string  `yaml:"rules_version"`
}

// ScorerConfig configures the anomaly scorer's baselines.
type ScorerConfig struct {
	WindowSize          int           `yaml:"window_size"`
	MinSamples          int           `yaml:"min_samples"`
	BaselineTTL         time.Duration `yaml:"baseline_ttl"`
	DedupeBySourceEvent bool          `yaml:"dedupe_by_source_event"`
	DedupeTTL           time.Duration `yaml:"dedupe_ttl"`
}

// RulesConfig holds the default clinical thresholds. Registry threshold
// profiles override these per patient.
type RulesConfig struct {
	HeartRateMax    float64 `yaml:"heart_rate_max"`
	SpO2Min         float64 `yaml:"spo2_min"`
	TemperatureMaxF float64 `yaml:"temperature_max_f"`
	HeartRateCombo  float64 `yaml:"heart_rate_combo"`
	SpO2Combo       float64 `yaml:"spo2_combo"`
}

// RegistryConfig configures the registry service's seed data.
type RegistryConfig struct {
	SeedFile string `yaml:"seed_file"`
}

// TelemetryConfig configures tracing.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// Option mutates a Config during construction.
type Option func(*Config)

// NewConfig builds a Config: defaults, optional YAML file pointed at by
// PULSEWARD_CONFIG_FILE, environment overrides, then options.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv("PULSEWARD_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.loadEnv()

	for _, opt := range opts {
		opt(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:            "pulseward",
			Port:            8080,
			ShutdownTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Redis: RedisConfig{
			URL:       "redis://localhost:6379",
			Namespace: "pulseward",
		},
		Broker: BrokerConfig{
			Partitions:      4,
			MaxLen:          100000,
			MaxDeliveries:   8,
			ClaimMinIdle:    time.Minute,
			BlockTimeout:    5 * time.Second,
			PublishAttempts: 8,
			DedupeTTL:       time.Hour,
		},
		RPC: RPCConfig{
			RegistryURL:   "http://localhost:8081",
			AnomalyURL:    "http://localhost:8082",
			Timeout:       5 * time.Second,
			RetryAttempts: 3,
			RetryDelay:    time.Second,
		},
		Gateway: GatewayConfig{
			VerifyDevices:    true,
			VerifyCacheTTL:   time.Minute,
			MaxBodyBytes:     1 << 20,
			MaxMeasurements:  32,
			AcceptedVersions: []string{"1.0"},
		},
		Normalize: NormalizeConfig{
			HeartRateMin: 20,
			HeartRateMax: 240,
			SpO2Min:      50,
			SpO2Max:      100,
			TempMinC:     30,
			TempMaxC:     45,
			RulesVersion: "v1",
		},
		Scorer: ScorerConfig{
			WindowSize:  100,
			MinSamples:  10,
			BaselineTTL: 7 * 24 * time.Hour,
			DedupeTTL:   time.Hour,
		},
		Rules: RulesConfig{
			HeartRateMax:    100,
			SpO2Min:         95,
			TemperatureMaxF: 100.4,
			HeartRateCombo:  120,
			SpO2Combo:       90,
		},
		Telemetry: TelemetryConfig{},
	}
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: reading config file %s: %v", ErrInvalidConfiguration, path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("%w: parsing config file %s: %v", ErrInvalidConfiguration, path, err)
	}
	return nil
}

func (c *Config) loadEnv() {
	setString(&c.Service.Name, "PULSEWARD_SERVICE_NAME")
	setInt(&c.Service.Port, "PULSEWARD_PORT")
	setDuration(&c.Service.ShutdownTimeout, "PULSEWARD_SHUTDOWN_TIMEOUT")

	setString(&c.Logging.Level, "PULSEWARD_LOG_LEVEL")
	setString(&c.Logging.Format, "PULSEWARD_LOG_FORMAT")

	setString(&c.Redis.URL, "PULSEWARD_REDIS_URL")
	setString(&c.Redis.Namespace, "PULSEWARD_REDIS_NAMESPACE")

	setInt(&c.Broker.Partitions, "PULSEWARD_BROKER_PARTITIONS")
	setInt64(&c.Broker.MaxLen, "PULSEWARD_BROKER_MAX_LEN")
	setInt64(&c.Broker.MaxDeliveries, "PULSEWARD_BROKER_MAX_DELIVERIES")
	setDuration(&c.Broker.ClaimMinIdle, "PULSEWARD_BROKER_CLAIM_MIN_IDLE")
	setDuration(&c.Broker.BlockTimeout, "PULSEWARD_BROKER_BLOCK_TIMEOUT")
	setInt(&c.Broker.PublishAttempts, "PULSEWARD_BROKER_PUBLISH_ATTEMPTS")
	setBool(&c.Broker.DedupeEnabled, "PULSEWARD_BROKER_DEDUPE_ENABLED")
	setDuration(&c.Broker.DedupeTTL, "PULSEWARD_BROKER_DEDUPE_TTL")

	setString(&c.RPC.RegistryURL, "PULSEWARD_REGISTRY_URL")
	setString(&c.RPC.AnomalyURL, "PULSEWARD_ANOMALY_URL")
	setDuration(&c.RPC.Timeout, "PULSEWARD_RPC_TIMEOUT")
	setInt(&c.RPC.RetryAttempts, "PULSEWARD_RPC_RETRY_ATTEMPTS")
	setDuration(&c.RPC.RetryDelay, "PULSEWARD_RPC_RETRY_DELAY")

	setBool(&c.Gateway.VerifyDevices, "PULSEWARD_GATEWAY_VERIFY_DEVICES")
	setDuration(&c.Gateway.VerifyCacheTTL, "PULSEWARD_GATEWAY_VERIFY_CACHE_TTL")
	setInt64(&c.Gateway.MaxBodyBytes, "PULSEWARD_GATEWAY_MAX_BODY_BYTES")
	setInt(&c.Gateway.MaxMeasurements, "PULSEWARD_GATEWAY_MAX_MEASUREMENTS")

	setFloat(&c.Normalize.HeartRateMin, "PULSEWARD_NORMALIZE_HR_MIN")
	setFloat(&c.Normalize.HeartRateMax, "PULSEWARD_NORMALIZE_HR_MAX")
	setFloat(&c.Normalize.SpO2Min, "PULSEWARD_NORMALIZE_SPO2_MIN")
	setFloat(&c.Normalize.SpO2Max, "PULSEWARD_NORMALIZE_SPO2_MAX")
	setFloat(&c.Normalize.TempMinC, "PULSEWARD_NORMALIZE_TEMP_MIN")
	setFloat(&c.Normalize.TempMaxC, "PULSEWARD_NORMALIZE_TEMP_MAX")

	setInt(&c.Scorer.WindowSize, "PULSEWARD_SCORER_WINDOW_SIZE")
	setInt(&c.Scorer.MinSamples, "PULSEWARD_SCORER_MIN_SAMPLES")
	setDuration(&c.Scorer.BaselineTTL, "PULSEWARD_SCORER_BASELINE_TTL")
	setBool(&c.Scorer.DedupeBySourceEvent, "PULSEWARD_SCORER_DEDUPE")
	setDuration(&c.Scorer.DedupeTTL, "PULSEWARD_SCORER_DEDUPE_TTL")

	setFloat(&c.Rules.HeartRateMax, "PULSEWARD_RULES_HR_MAX")
	setFloat(&c.Rules.SpO2Min, "PULSEWARD_RULES_SPO2_MIN")
	setFloat(&c.Rules.TemperatureMaxF, "PULSEWARD_RULES_TEMP_MAX_F")
	setFloat(&c.Rules.HeartRateCombo, "PULSEWARD_RULES_HR_COMBO")
	setFloat(&c.Rules.SpO2Combo, "PULSEWARD_RULES_SPO2_COMBO")

	setString(&c.Registry.SeedFile, "PULSEWARD_REGISTRY_SEED_FILE")

	setBool(&c.Telemetry.Enabled, "PULSEWARD_TELEMETRY_ENABLED")
	setString(&c.Telemetry.Endpoint, "PULSEWARD_TELEMETRY_ENDPOINT")
	if c.Telemetry.Endpoint == "" {
		setString(&c.Telemetry.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfiguration, c.Service.Port)
	}
	if c.Broker.Partitions < 1 {
		return fmt.Errorf("%w: broker partitions must be >= 1, got %d", ErrInvalidConfiguration, c.Broker.Partitions)
	}
	if c.Broker.MaxDeliveries < 1 {
		return fmt.Errorf("%w: broker max deliveries must be >= 1, got %d", ErrInvalidConfiguration, c.Broker.MaxDeliveries)
	}
	if c.Scorer.WindowSize < 1 {
		return fmt.Errorf("%w: scorer window size must be >= 1, got %d", ErrInvalidConfiguration, c.Scorer.WindowSize)
	}
	if c.Scorer.MinSamples < 2 {
		return fmt.Errorf("%w: scorer min samples must be >= 2, got %d", ErrInvalidConfiguration, c.Scorer.MinSamples)
	}
	if c.Scorer.MinSamples > c.Scorer.WindowSize {
		return fmt.Errorf("%w: scorer min samples %d exceeds window %d", ErrInvalidConfiguration, c.Scorer.MinSamples, c.Scorer.WindowSize)
	}
	if c.RPC.Timeout <= 0 {
		return fmt.Errorf("%w: rpc timeout must be positive", ErrInvalidConfiguration)
	}
	if c.Rules.SpO2Min <= c.Rules.SpO2Combo {
		return fmt.Errorf("%w: spo2_min (%.1f) must exceed spo2_combo (%.1f)", ErrInvalidConfiguration, c.Rules.SpO2Min, c.Rules.SpO2Combo)
	}
	return nil
}

// Options

// WithName sets the service name.
func WithName(name string) Option {
	return func(c *Config) { c.Service.Name = name }
}

// WithPort sets the listen port.
func WithPort(port int) Option {
	return func(c *Config) { c.Service.Port = port }
}

// WithRedisURL sets the Redis connection URL.
func WithRedisURL(url string) Option {
	return func(c *Config) { c.Redis.URL = url }
}

// WithRegistryURL sets the registry service address.
func WithRegistryURL(url string) Option {
	return func(c *Config) { c.RPC.RegistryURL = url }
}

// WithAnomalyURL sets the anomaly scorer address.
func WithAnomalyURL(url string) Option {
	return func(c *Config) { c.RPC.AnomalyURL = url }
}

// WithPartitions sets the broker partition count.
func WithPartitions(n int) Option {
	return func(c *Config) { c.Broker.Partitions = n }
}

// env helpers

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "true", "1", "yes", "on":
			*dst = true
		case "false", "0", "no", "off":
			*dst = false
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
