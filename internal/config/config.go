package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/coin-dispenser/internal/storage"
)

const (
	defaultPort           = "8080"
	defaultRateLimitRPS   = 25.0
	defaultRateLimitBurst = 50
	defaultMaxUpload      = 10 << 20
)

// Detection sources.
const (
	SourceSimulated = "simulated"
	SourceRemote    = "remote"
	SourceGemini    = "gemini"
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	Port                 string
	InitialDenominations []int
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	LogLevel             string
	CurrencySymbol       string
	RateLimitRPS         float64
	RateLimitBurst       int
	TrustForwardedFor    bool
	Detection            DetectionConfig
}

// DetectionConfig selects and tunes the bill detection source.
type DetectionConfig struct {
	Source         string
	RemoteURL      string
	RemoteTimeout  time.Duration
	GeminiAPIKey   string
	GeminiModel    string
	MaxUploadBytes int64
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	Port                 string        `yaml:"port"`
	Denominations        []int         `yaml:"denominations"`
	ShutdownGracePeriod  string        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	EnableRequestLogging *bool         `yaml:"enable_request_logging"`
	LogLevel             string        `yaml:"log_level"`
	CurrencySymbol       string        `yaml:"currency_symbol"`
	RateLimit            yamlRateLimit `yaml:"rate_limit"`
	Detection            yamlDetection `yaml:"detection"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS               *float64 `yaml:"rps"`
	Burst             *int     `yaml:"burst"`
	TrustForwardedFor *bool    `yaml:"trust_forwarded_for"`
}

type yamlDetection struct {
	Source         string `yaml:"source"`
	RemoteURL      string `yaml:"remote_url"`
	RemoteTimeout  string `yaml:"remote_timeout"`
	GeminiModel    string `yaml:"gemini_model"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// envConfig lists the environment variables understood by the service.
type envConfig struct {
	Port             string         `envconfig:"PORT"`
	Denominations    string         `envconfig:"DENOMINATIONS"`
	LogLevel         string         `envconfig:"LOG_LEVEL"`
	CurrencySymbol   string         `envconfig:"CURRENCY_SYMBOL"`
	RateLimitRPS     *float64       `envconfig:"RATE_LIMIT_RPS"`
	RateLimitBurst   *int           `envconfig:"RATE_LIMIT_BURST"`
	TrustForwarded   *bool          `envconfig:"RATE_LIMIT_TRUST_FORWARDED"`
	DetectionSource  string         `envconfig:"DETECTION_SOURCE"`
	DetectionURL     string         `envconfig:"DETECTION_URL"`
	DetectionTimeout *time.Duration `envconfig:"DETECTION_TIMEOUT"`
	GeminiAPIKey     string         `envconfig:"GEMINI_API_KEY"`
	GeminiModel      string         `envconfig:"GEMINI_MODEL"`
	MaxUploadBytes   *int64         `envconfig:"MAX_UPLOAD_BYTES"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile       string
	Port             *string
	DenominationsStr *string
	LogLevel         *string
	RateLimitRPS     *float64
	RateLimitBurst   *int
	DetectionSource  *string
	DetectionURL     *string
	GeminiAPIKey     *string
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	if err := applyEnvConfig(&cfg); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		applyYAMLConfig(&cfg, yamlCfg)
	}

	if overrides != nil {
		if err := applyCLIOverrides(&cfg, overrides); err != nil {
			return Config{}, err
		}
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		Port:                 defaultPort,
		InitialDenominations: storage.DefaultDenominations(),
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         60 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		LogLevel:             "info",
		CurrencySymbol:       "₱",
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
		Detection: DetectionConfig{
			Source:         SourceSimulated,
			RemoteTimeout:  30 * time.Second,
			MaxUploadBytes: defaultMaxUpload,
		},
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
// Unset keys keep the value resolved so far.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) {
	if yamlCfg.Port != "" {
		cfg.Port = yamlCfg.Port
	}

	if len(yamlCfg.Denominations) > 0 {
		cfg.InitialDenominations = yamlCfg.Denominations
	}

	applyDuration(&cfg.ShutdownGracePeriod, yamlCfg.ShutdownGracePeriod)
	applyDuration(&cfg.ReadHeaderTimeout, yamlCfg.ReadHeaderTimeout)
	applyDuration(&cfg.WriteTimeout, yamlCfg.WriteTimeout)
	applyDuration(&cfg.IdleTimeout, yamlCfg.IdleTimeout)

	if yamlCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *yamlCfg.EnableRequestLogging
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.CurrencySymbol != "" {
		cfg.CurrencySymbol = yamlCfg.CurrencySymbol
	}

	if yamlCfg.RateLimit.RPS != nil && *yamlCfg.RateLimit.RPS >= 0 {
		cfg.RateLimitRPS = *yamlCfg.RateLimit.RPS
	}
	if yamlCfg.RateLimit.Burst != nil && *yamlCfg.RateLimit.Burst >= 0 {
		cfg.RateLimitBurst = *yamlCfg.RateLimit.Burst
	}
	if yamlCfg.RateLimit.TrustForwardedFor != nil {
		cfg.TrustForwardedFor = *yamlCfg.RateLimit.TrustForwardedFor
	}

	if yamlCfg.Detection.Source != "" {
		cfg.Detection.Source = yamlCfg.Detection.Source
	}
	if yamlCfg.Detection.RemoteURL != "" {
		cfg.Detection.RemoteURL = yamlCfg.Detection.RemoteURL
	}
	applyDuration(&cfg.Detection.RemoteTimeout, yamlCfg.Detection.RemoteTimeout)
	if yamlCfg.Detection.GeminiModel != "" {
		cfg.Detection.GeminiModel = yamlCfg.Detection.GeminiModel
	}
	if yamlCfg.Detection.MaxUploadBytes > 0 {
		cfg.Detection.MaxUploadBytes = yamlCfg.Detection.MaxUploadBytes
	}
}

func applyDuration(dst *time.Duration, raw string) {
	if raw == "" {
		return
	}
	if d, err := time.ParseDuration(raw); err == nil {
		*dst = d
	}
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) error {
	var env envConfig
	if err := envconfig.Process("", &env); err != nil {
		return err
	}

	if port := strings.TrimSpace(env.Port); port != "" {
		cfg.Port = port
	}

	if raw := strings.TrimSpace(env.Denominations); raw != "" {
		denominations, err := parseDenominations(raw)
		if err != nil {
			return fmt.Errorf("DENOMINATIONS: %w", err)
		}
		cfg.InitialDenominations = denominations
	}

	if level := strings.TrimSpace(env.LogLevel); level != "" {
		cfg.LogLevel = level
	}
	if symbol := strings.TrimSpace(env.CurrencySymbol); symbol != "" {
		cfg.CurrencySymbol = symbol
	}

	if env.RateLimitRPS != nil && *env.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *env.RateLimitRPS
	}
	if env.RateLimitBurst != nil && *env.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *env.RateLimitBurst
	}
	if env.TrustForwarded != nil {
		cfg.TrustForwardedFor = *env.TrustForwarded
	}

	if source := strings.TrimSpace(env.DetectionSource); source != "" {
		cfg.Detection.Source = source
	}
	if url := strings.TrimSpace(env.DetectionURL); url != "" {
		cfg.Detection.RemoteURL = url
	}
	if env.DetectionTimeout != nil && *env.DetectionTimeout > 0 {
		cfg.Detection.RemoteTimeout = *env.DetectionTimeout
	}
	if key := strings.TrimSpace(env.GeminiAPIKey); key != "" {
		cfg.Detection.GeminiAPIKey = key
	}
	if model := strings.TrimSpace(env.GeminiModel); model != "" {
		cfg.Detection.GeminiModel = model
	}
	if env.MaxUploadBytes != nil && *env.MaxUploadBytes > 0 {
		cfg.Detection.MaxUploadBytes = *env.MaxUploadBytes
	}

	return nil
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) error {
	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Port = *overrides.Port
	}

	if overrides.DenominationsStr != nil && *overrides.DenominationsStr != "" {
		denominations, err := parseDenominations(*overrides.DenominationsStr)
		if err != nil {
			return fmt.Errorf("parse denominations: %w", err)
		}
		cfg.InitialDenominations = denominations
	}

	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = *overrides.LogLevel
	}

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}

	if overrides.DetectionSource != nil && *overrides.DetectionSource != "" {
		cfg.Detection.Source = *overrides.DetectionSource
	}

	if overrides.DetectionURL != nil && *overrides.DetectionURL != "" {
		cfg.Detection.RemoteURL = *overrides.DetectionURL
	}

	if overrides.GeminiAPIKey != nil && *overrides.GeminiAPIKey != "" {
		cfg.Detection.GeminiAPIKey = *overrides.GeminiAPIKey
	}

	return nil
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}
	if len(cfg.InitialDenominations) == 0 {
		return fmt.Errorf("denominations cannot be empty")
	}
	if cfg.Detection.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload size must be positive")
	}

	switch cfg.Detection.Source {
	case SourceSimulated:
	case SourceRemote:
		if strings.TrimSpace(cfg.Detection.RemoteURL) == "" {
			return fmt.Errorf("detection source %q requires a remote URL", SourceRemote)
		}
	case SourceGemini:
		if strings.TrimSpace(cfg.Detection.GeminiAPIKey) == "" {
			return fmt.Errorf("detection source %q requires GEMINI_API_KEY", SourceGemini)
		}
	default:
		return fmt.Errorf("unknown detection source %q", cfg.Detection.Source)
	}
	return nil
}

// parseDenominations parses a comma-separated string of denominations into a slice of integers.
// It validates that all values are positive integers.
func parseDenominations(raw string) ([]int, error) {
	parts := strings.Split(raw, ",")
	denominations := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		value, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", part)
		}
		if value <= 0 {
			return nil, fmt.Errorf("denomination must be positive, got %d", value)
		}
		denominations = append(denominations, value)
	}
	if len(denominations) == 0 {
		return nil, fmt.Errorf("no denominations provided")
	}
	return denominations, nil
}

