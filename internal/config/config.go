package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds the application configuration
type Config struct {
	App     ApplicationConfig `koanf:"app"`
	Strapi  StrapiConfig      `koanf:"strapi"`
	Service ServiceConfig     `koanf:"service"`
}

// ApplicationConfig holds the HTTP listener settings
type ApplicationConfig struct {
	Port int `koanf:"port"`
}

// StrapiConfig holds the CMS connection settings.
// AuthToken is only ever read from STRAPI_AUTH_TOKEN.
type StrapiConfig struct {
	BaseURL        string        `koanf:"base_url"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	AuthToken      string        `koanf:"-"`
}

// ServiceConfig holds the service configuration
type ServiceConfig struct {
	LogLevel    string        `koanf:"log_level"`
	MaxUploadMB int           `koanf:"max_upload_mb"`
	SessionTTL  time.Duration `koanf:"session_ttl"`
}

// MaxUploadBytes is the upload limit in bytes
func (s ServiceConfig) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) << 20
}

const authTokenEnv = "STRAPI_AUTH_TOKEN"

// envKeys maps the supported environment variables to config keys
var envKeys = map[string]string{
	"PORT":            "app.port",
	"STRAPI_BASE_URL": "strapi.base_url",
	"LOG_LEVEL":       "service.log_level",
}

func defaults() map[string]any {
	return map[string]any{
		"app.port":               8080,
		"strapi.request_timeout": "30s",
		"service.log_level":      "info",
		"service.max_upload_mb":  10,
		"service.session_ttl":    "1h",
	}
}

// Load reads the configuration file and environment variables.
// An empty path skips the file and uses defaults plus environment.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		TransformFunc: func(key, value string) (string, any) {
			mapped, ok := envKeys[key]
			if !ok || value == "" {
				return "", nil
			}
			return mapped, value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if raw := k.String("app.port"); raw != "" {
		if _, err := strconv.Atoi(raw); err != nil {
			return nil, fmt.Errorf("PORT must be a valid number: %q", raw)
		}
	}

	var cfg Config
	err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
			Result:           &cfg,
			WeaklyTypedInput: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.Strapi.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Strapi.BaseURL), "/")
	cfg.Strapi.AuthToken = os.Getenv(authTokenEnv)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate checks the configuration and reports every problem at once
func validate(cfg *Config) error {
	var result *multierror.Error

	if cfg.App.Port < 1 || cfg.App.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("port must be between 1 and 65535, got %d", cfg.App.Port))
	}

	if cfg.Strapi.BaseURL == "" {
		result = multierror.Append(result, fmt.Errorf("strapi base_url is required (or STRAPI_BASE_URL)"))
	} else if u, err := url.Parse(cfg.Strapi.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		result = multierror.Append(result, fmt.Errorf("strapi base_url must be an absolute http(s) URL, got %q", cfg.Strapi.BaseURL))
	}

	if cfg.Strapi.AuthToken == "" {
		result = multierror.Append(result, fmt.Errorf("%s environment variable is required", authTokenEnv))
	}

	if cfg.Strapi.RequestTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("strapi request_timeout must be positive"))
	}

	if cfg.Service.MaxUploadMB < 1 {
		result = multierror.Append(result, fmt.Errorf("service max_upload_mb must be at least 1"))
	}

	if cfg.Service.SessionTTL < time.Minute {
		result = multierror.Append(result, fmt.Errorf("service session_ttl must be at least 1m"))
	}

	return result.ErrorOrNil()
}
