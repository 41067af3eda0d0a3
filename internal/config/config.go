package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	customerrors "github.com/axellelanca/acortador/internal/errors"
)

// Anonymous-client policies for the rate limiter.
const (
	AnonymousShared = "shared"
	AnonymousReject = "reject"
	AnonymousExempt = "exempt"
)

// Config represents the main structure mapping the entire application configuration.
// This struct uses mapstructure tags to map YAML keys to Go struct fields.
type Config struct {
	Server struct {
		Port           int           `mapstructure:"port"`
		BaseURL        string        `mapstructure:"base_url"` // Base URL for generating short links
		ReadTimeout    time.Duration `mapstructure:"read_timeout"`
		WriteTimeout   time.Duration `mapstructure:"write_timeout"`
		IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
		TrustedProxies []string      `mapstructure:"trusted_proxies"`
	} `mapstructure:"server"`

	Database struct {
		Name string `mapstructure:"name"` // SQLite database file name
	} `mapstructure:"database"`

	Shortener struct {
		CodeLength    int  `mapstructure:"code_length"`
		MaxCodeLength int  `mapstructure:"max_code_length"`
		MaxAttempts   int  `mapstructure:"max_attempts"` // attempts per code length
		Dedup         bool `mapstructure:"dedup"`        // reuse the mapping of an already shortened URL
	} `mapstructure:"shortener"`

	RateLimit struct {
		Limit           int           `mapstructure:"limit"`
		Window          time.Duration `mapstructure:"window"` // 0 counts every record ever made
		CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
		AnonymousPolicy string        `mapstructure:"anonymous_policy"`
	} `mapstructure:"ratelimit"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

// Addr returns the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// LoadConfig loads the application configuration using Viper.
// An empty configFile makes Viper look for configs/config.yaml; a missing file there is not an error.
// Environment variables override file values, e.g. SERVER_PORT or RATELIMIT_LIMIT.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath("./configs")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, customerrors.ErrConfigLoad{Path: v.ConfigFileUsed(), Reason: err.Error()}
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.idle_timeout", time.Minute)
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("database.name", "url_shortener.db")
	v.SetDefault("shortener.code_length", 6)
	v.SetDefault("shortener.max_code_length", 10)
	v.SetDefault("shortener.max_attempts", 5)
	v.SetDefault("shortener.dedup", true)
	v.SetDefault("ratelimit.limit", 5)
	v.SetDefault("ratelimit.window", 24*time.Hour)
	v.SetDefault("ratelimit.cleanup_interval", time.Hour)
	v.SetDefault("ratelimit.anonymous_policy", AnonymousShared)
	v.SetDefault("log.level", "info")
}

// Validate rejects values the services cannot work with.
func (c *Config) Validate() error {
	switch {
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	case c.Server.BaseURL == "":
		return errors.New("server.base_url is required")
	case c.Shortener.CodeLength <= 0:
		return errors.New("shortener.code_length must be positive")
	case c.Shortener.MaxCodeLength < c.Shortener.CodeLength:
		return errors.New("shortener.max_code_length must be >= shortener.code_length")
	case c.Shortener.MaxAttempts <= 0:
		return errors.New("shortener.max_attempts must be positive")
	case c.RateLimit.Limit <= 0:
		return errors.New("ratelimit.limit must be positive")
	case c.RateLimit.Window < 0:
		return errors.New("ratelimit.window must not be negative")
	case c.RateLimit.Window > 0 && c.RateLimit.CleanupInterval <= 0:
		return errors.New("ratelimit.cleanup_interval must be positive")
	}

	switch c.RateLimit.AnonymousPolicy {
	case AnonymousShared, AnonymousReject, AnonymousExempt:
	default:
		return fmt.Errorf("ratelimit.anonymous_policy %q is not one of shared, reject, exempt", c.RateLimit.AnonymousPolicy)
	}

	c.Server.BaseURL = strings.TrimRight(c.Server.BaseURL, "/")
	return nil
}
