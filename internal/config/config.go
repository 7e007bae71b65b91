// Package config loads the gateway configuration from the environment, an
// optional .env file and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/skylane-tw/tdx-air-gateway/pkg/auth"
	"github.com/skylane-tw/tdx-air-gateway/pkg/cache"
	"github.com/skylane-tw/tdx-air-gateway/pkg/client"
	"github.com/skylane-tw/tdx-air-gateway/pkg/ratelimit"
)

// Keys are the viper keys. Each maps to the upper-cased environment variable.
const (
	KeyClientID        = "tdx_client_id"
	KeyClientSecret    = "tdx_client_secret"
	KeyAuthURL         = "tdx_auth_url"
	KeyAPIURL          = "tdx_api_url"
	KeyPort            = "port"
	KeyLogLevel        = "log_level"
	KeyLogPretty       = "log_pretty"
	KeyRedisURL        = "redis_url"
	KeyCacheTTL        = "cache_ttl"
	KeyCacheCapacity   = "cache_capacity"
	KeyRateWindow      = "rate_window"
	KeyUpstreamTimeout = "upstream_timeout"
	KeyStaticDir       = "static_dir"
)

// Config is the complete gateway configuration.
type Config struct {
	ClientID     string `mapstructure:"tdx_client_id" validate:"required"`
	ClientSecret string `mapstructure:"tdx_client_secret" validate:"required"`
	AuthURL      string `mapstructure:"tdx_auth_url" validate:"required,url"`
	APIURL       string `mapstructure:"tdx_api_url" validate:"required,url"`

	Port      int    `mapstructure:"port" validate:"gt=0,lte=65535"`
	LogLevel  string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogPretty bool   `mapstructure:"log_pretty"`

	// RedisURL enables the shared rate limiter when set (redis://host:port/db).
	RedisURL string `mapstructure:"redis_url" validate:"omitempty,url"`

	CacheTTL        time.Duration `mapstructure:"cache_ttl" validate:"gt=0"`
	CacheCapacity   int           `mapstructure:"cache_capacity" validate:"gt=0"`
	RateWindow      time.Duration `mapstructure:"rate_window" validate:"gte=0"`
	UpstreamTimeout time.Duration `mapstructure:"upstream_timeout" validate:"gt=0"`

	// StaticDir, when set, is served at / for the browser page.
	StaticDir string `mapstructure:"static_dir"`
}

// SetDefaults registers every key with its default so that environment
// variables are picked up on Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyClientID, "")
	v.SetDefault(KeyClientSecret, "")
	v.SetDefault(KeyAuthURL, auth.DefaultTokenURL)
	v.SetDefault(KeyAPIURL, client.DefaultBaseURL)
	v.SetDefault(KeyPort, 3000)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogPretty, false)
	v.SetDefault(KeyRedisURL, "")
	v.SetDefault(KeyCacheTTL, cache.DefaultTTL)
	v.SetDefault(KeyCacheCapacity, cache.DefaultCapacity)
	v.SetDefault(KeyRateWindow, ratelimit.DefaultWindow)
	v.SetDefault(KeyUpstreamTimeout, 30*time.Second)
	v.SetDefault(KeyStaticDir, "")
}

// LoadDotEnv loads path into the process environment if the file exists.
// Variables already set in the environment win.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Load reads the configuration from v (flags already bound by the caller)
// and the environment, then validates it. A nil v uses a fresh viper.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	SetDefaults(v)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their environment variable name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.ToUpper(f.Tag.Get("mapstructure"))
	})
	return v
}

// Validate checks cfg and names the environment variable of the first
// offending field.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validating config: %w", err)
	}

	fe := fieldErrs[0]
	if fe.Tag() == "required" {
		return fmt.Errorf("%s is required", fe.Field())
	}
	return fmt.Errorf("%s is invalid (%s %s): %v", fe.Field(), fe.Tag(), fe.Param(), fe.Value())
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
