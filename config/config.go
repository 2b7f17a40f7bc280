//file: config/config.go

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete token-manager configuration
type Config struct {
	Logging LogConfig        `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
	NATS    NATSConfig       `mapstructure:"nats" yaml:"nats"`
	Storage StorageConfig    `mapstructure:"storage" yaml:"storage"`
	Refresh RefreshConfig    `mapstructure:"refresh" yaml:"refresh"`
	OAuth2  OAuth2Properties `mapstructure:"oauth2" yaml:"oauth2"`
}

type LogConfig struct {
	Level      string `mapstructure:"level" json:"level" yaml:"level"`                // debug, info, warn, error
	OutputPath string `mapstructure:"outputPath" json:"outputPath" yaml:"outputPath"` // file path or "stdout"
	Encoding   string `mapstructure:"encoding" json:"encoding" yaml:"encoding"`       // json or console
}

type MetricsConfig struct {
	Enabled        bool          `mapstructure:"enabled" yaml:"enabled"`
	Address        string        `mapstructure:"address" yaml:"address"`
	Path           string        `mapstructure:"path" yaml:"path"`
	UpdateInterval time.Duration `mapstructure:"updateInterval" yaml:"updateInterval"` // process metrics sampling
}

// NATSConfig holds the connection used to publish tokens to a KV bucket
type NATSConfig struct {
	URLs      []string `mapstructure:"urls" yaml:"urls"`
	Username  string   `mapstructure:"username" yaml:"username"`
	Password  string   `mapstructure:"password" yaml:"password"`
	Token     string   `mapstructure:"token" yaml:"token"`
	NKeySeed  string   `mapstructure:"nkeySeed" yaml:"nkeySeed"` // user seed (SU...) for nkey challenge signing
	CredsFile string   `mapstructure:"credsFile" yaml:"credsFile"`

	TLS struct {
		Enable   bool   `mapstructure:"enable" yaml:"enable"`
		CertFile string `mapstructure:"certFile" yaml:"certFile"`
		KeyFile  string `mapstructure:"keyFile" yaml:"keyFile"`
		CAFile   string `mapstructure:"caFile" yaml:"caFile"`
		Insecure bool   `mapstructure:"insecure" yaml:"insecure"`
	} `mapstructure:"tls" yaml:"tls"`
}

// StorageConfig defines where refreshed tokens are published
type StorageConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`       // KV bucket name
	KeyPrefix string `mapstructure:"keyPrefix" yaml:"keyPrefix"` // Optional prefix for keys
}

// RefreshConfig tunes the per-provider refresh loop
type RefreshConfig struct {
	// ExpirationErrorMargin is subtracted from a token's expiry before scheduling its refresh
	ExpirationErrorMargin time.Duration `mapstructure:"expirationErrorMargin" yaml:"expirationErrorMargin"`
	// MinRefreshInterval is the floor on the computed refresh delay
	MinRefreshInterval time.Duration `mapstructure:"minRefreshInterval" yaml:"minRefreshInterval"`
	// MaxTaskCloseAttempts bounds how often close retries cancelling a pending refresh
	MaxTaskCloseAttempts int `mapstructure:"maxTaskCloseAttempts" yaml:"maxTaskCloseAttempts"`
	// CloseTaskRetryInterval is the pause between cancellation attempts
	CloseTaskRetryInterval time.Duration `mapstructure:"closeTaskRetryInterval" yaml:"closeTaskRetryInterval"`
	// FetchTimeout bounds a single call to the token endpoint
	FetchTimeout time.Duration `mapstructure:"fetchTimeout" yaml:"fetchTimeout"`
	// DefaultExpiration is used when the issuer does not declare a lifetime. Zero disables it.
	DefaultExpiration time.Duration `mapstructure:"defaultExpiration" yaml:"defaultExpiration"`
	// SharedScheduler runs every provider's refreshes on one application-owned scheduler
	SharedScheduler bool `mapstructure:"sharedScheduler" yaml:"sharedScheduler"`
}

// OAuth2Properties exposes named client registrations and named provider endpoints
type OAuth2Properties struct {
	// Default names the registration used when a caller asks without a name
	Default      string                                  `mapstructure:"default" yaml:"default,omitempty"`
	Registration map[string]ClientRegistrationProperties `mapstructure:"registration" yaml:"registration"`
	Provider     map[string]ProviderProperties           `mapstructure:"provider" yaml:"provider"`
}

// ClientRegistrationProperties is one raw, unvalidated client registration
type ClientRegistrationProperties struct {
	Provider                   string   `mapstructure:"provider" yaml:"provider"`
	ClientID                   string   `mapstructure:"clientId" yaml:"clientId"`
	ClientSecret               string   `mapstructure:"clientSecret" yaml:"clientSecret"`
	ClientAuthenticationMethod string   `mapstructure:"clientAuthenticationMethod" yaml:"clientAuthenticationMethod,omitempty"`
	AuthorizationGrantType     string   `mapstructure:"authorizationGrantType" yaml:"authorizationGrantType,omitempty"`
	Scope                      []string `mapstructure:"scope" yaml:"scope,omitempty"`
}

// ProviderProperties is one raw provider endpoint description
type ProviderProperties struct {
	Type     string `mapstructure:"type" yaml:"type,omitempty"` // "oauth2" (default) or "custom-http"
	TokenURI string `mapstructure:"tokenUri" yaml:"tokenUri"`
	Audience string `mapstructure:"audience" yaml:"audience,omitempty"`

	// Custom HTTP fields
	Method        string            `mapstructure:"method" yaml:"method,omitempty"`
	Headers       map[string]string `mapstructure:"headers" yaml:"headers,omitempty"`
	Body          string            `mapstructure:"body" yaml:"body,omitempty"`
	TokenPath     string            `mapstructure:"tokenPath" yaml:"tokenPath,omitempty"`
	ExpiresInPath string            `mapstructure:"expiresInPath" yaml:"expiresInPath,omitempty"`
}

// Load reads configuration from file using Viper
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)

	// Environment variable support
	v.SetEnvPrefix("TOKEN_MGR")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	SetDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults fills every unset field with its default
func SetDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Encoding == "" {
		cfg.Logging.Encoding = "json"
	}
	if cfg.Logging.OutputPath == "" {
		cfg.Logging.OutputPath = "stdout"
	}

	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = ":2113"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Metrics.UpdateInterval == 0 {
		cfg.Metrics.UpdateInterval = 15 * time.Second
	}

	if len(cfg.NATS.URLs) == 0 {
		cfg.NATS.URLs = []string{"nats://localhost:4222"}
	}
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = "tokens"
	}

	cfg.Refresh.ApplyDefaults()
}

// ApplyDefaults fills unset refresh tuning values
func (r *RefreshConfig) ApplyDefaults() {
	if r.ExpirationErrorMargin == 0 {
		r.ExpirationErrorMargin = 30 * time.Second
	}
	if r.MinRefreshInterval == 0 {
		r.MinRefreshInterval = time.Second
	}
	if r.MaxTaskCloseAttempts == 0 {
		r.MaxTaskCloseAttempts = 3
	}
	if r.CloseTaskRetryInterval == 0 {
		r.CloseTaskRetryInterval = 100 * time.Millisecond
	}
	if r.FetchTimeout == 0 {
		r.FetchTimeout = 30 * time.Second
	}
}

// Validate ensures configuration is valid
func Validate(cfg *Config) error {
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", cfg.Logging.Level)
	}

	switch cfg.Logging.Encoding {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log encoding: %s", cfg.Logging.Encoding)
	}

	if cfg.Metrics.Enabled && cfg.Metrics.UpdateInterval <= 0 {
		return fmt.Errorf("metrics update interval must be positive")
	}

	if err := cfg.Refresh.Validate(); err != nil {
		return err
	}

	if !cfg.Storage.Enabled {
		return nil
	}

	// Token publishing needs a usable NATS connection
	if len(cfg.NATS.URLs) == 0 {
		return fmt.Errorf("at least one NATS URL required")
	}
	if cfg.Storage.Bucket == "" {
		return fmt.Errorf("storage bucket name cannot be empty")
	}

	authCount := 0
	for _, set := range []bool{
		cfg.NATS.Username != "",
		cfg.NATS.Token != "",
		cfg.NATS.NKeySeed != "",
		cfg.NATS.CredsFile != "",
	} {
		if set {
			authCount++
		}
	}
	if authCount > 1 {
		return fmt.Errorf("only one NATS auth method allowed")
	}

	if cfg.NATS.TLS.Enable {
		if cfg.NATS.TLS.CertFile != "" && cfg.NATS.TLS.KeyFile == "" {
			return fmt.Errorf("NATS TLS key file required when cert file provided")
		}
		if cfg.NATS.TLS.KeyFile != "" && cfg.NATS.TLS.CertFile == "" {
			return fmt.Errorf("NATS TLS cert file required when key file provided")
		}
	}

	if cfg.NATS.CredsFile != "" {
		if _, err := os.Stat(cfg.NATS.CredsFile); os.IsNotExist(err) {
			return fmt.Errorf("NATS creds file does not exist: %s", cfg.NATS.CredsFile)
		}
	}

	return nil
}

// Validate rejects negative or nonsensical tuning values
func (r *RefreshConfig) Validate() error {
	if r.ExpirationErrorMargin < 0 {
		return fmt.Errorf("refresh.expirationErrorMargin cannot be negative")
	}
	if r.MinRefreshInterval <= 0 {
		return fmt.Errorf("refresh.minRefreshInterval must be positive")
	}
	if r.MaxTaskCloseAttempts < 1 {
		return fmt.Errorf("refresh.maxTaskCloseAttempts must be at least 1")
	}
	if r.CloseTaskRetryInterval < 0 {
		return fmt.Errorf("refresh.closeTaskRetryInterval cannot be negative")
	}
	if r.FetchTimeout <= 0 {
		return fmt.Errorf("refresh.fetchTimeout must be positive")
	}
	if r.DefaultExpiration < 0 {
		return fmt.Errorf("refresh.defaultExpiration cannot be negative")
	}
	return nil
}

// ApplyOverrides applies command line flag overrides to the configuration
func (c *Config) ApplyOverrides(logLevel, metricsAddr string) {
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if metricsAddr != "" {
		c.Metrics.Enabled = true
		c.Metrics.Address = metricsAddr
	}
}
