// Package config loads the expense service configuration from the
// environment and optional .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/actionablemessages/go-amtoken-middleware/internal/fetch"
	"github.com/actionablemessages/go-amtoken-middleware/jwks"
	"github.com/actionablemessages/go-amtoken-middleware/policy"
	amvalidator "github.com/actionablemessages/go-amtoken-middleware/validator"
)

// Config represents the complete service configuration.
type Config struct {
	Environment   string `validate:"oneof=development test production"`
	Server        ServerConfig
	Token         TokenConfig
	Redis         RedisConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            int           `validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `validate:"gt=0s"`
	WriteTimeout    time.Duration `validate:"gt=0s"`
	ShutdownTimeout time.Duration `validate:"gt=0s"`
}

// TokenConfig holds the token validation settings.
type TokenConfig struct {
	// Target is the expected audience. Required unless TargetFromRequest is set.
	Target            string `validate:"required_unless=TargetFromRequest true,omitempty,https_origin"`
	TargetFromRequest bool
	// TrustProxyHeaders lets Forwarded and X-Forwarded-* decide the target.
	TrustProxyHeaders bool

	DiscoveryURL string        `validate:"required,https_url"`
	JWKSURI      string        `validate:"omitempty,https_url"`
	Issuer       string        `validate:"required"`
	AppID        string        `validate:"required"`
	ClockSkew    time.Duration `validate:"gte=0s,lte=5m"`
	CacheTTL     time.Duration `validate:"gte=0s"`
	FetchRetries int           `validate:"min=1,max=10"`

	// AllowedSenderDomains lists the domains whose senders may act.
	AllowedSenderDomains []string `validate:"required,min=1,dive,fqdn"`
}

// RedisConfig enables the shared key cache when Addr is set.
type RedisConfig struct {
	Addr      string `validate:"omitempty,hostname_port"`
	Password  string
	DB        int `validate:"gte=0"`
	KeyPrefix string
}

// ObservabilityConfig holds logging and metrics configuration.
type ObservabilityConfig struct {
	LogLevel       string `validate:"oneof=debug info warn error"`
	LogFormat      string `validate:"oneof=json console"`
	MetricsEnabled bool
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("https_url", func(fl validator.FieldLevel) bool {
		_, err := fetch.RequireHTTPS(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("https_origin", func(fl validator.FieldLevel) bool {
		u, err := fetch.RequireHTTPS(fl.Field().String())
		return err == nil && (u.Path == "" || u.Path == "/") && u.RawQuery == ""
	})
	return v
}

// Load reads the configuration from the process environment. The given .env
// files fill in variables the environment leaves unset or empty; earlier
// files win and missing files are ignored.
func Load(envFiles ...string) (*Config, error) {
	fileEnv := map[string]string{}
	for _, name := range envFiles {
		values, err := godotenv.Read(name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		for k, v := range values {
			if _, ok := fileEnv[k]; !ok {
				fileEnv[k] = v
			}
		}
	}

	e := &env{lookup: func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v, true
		}
		v, ok := fileEnv[key]
		return v, ok
	}}

	cfg := &Config{
		Environment: e.str("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            e.str("SERVER_HOST", "0.0.0.0"),
			Port:            e.integer("PORT", 8080),
			ReadTimeout:     e.duration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    e.duration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: e.duration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Token: TokenConfig{
			Target:               e.str("AMTOKEN_TARGET", ""),
			TargetFromRequest:    e.boolean("AMTOKEN_TARGET_FROM_REQUEST", false),
			TrustProxyHeaders:    e.boolean("AMTOKEN_TRUST_PROXY_HEADERS", false),
			DiscoveryURL:         e.str("AMTOKEN_DISCOVERY_URL", policy.DefaultDiscoveryURL),
			JWKSURI:              e.str("AMTOKEN_JWKS_URI", ""),
			Issuer:               e.str("AMTOKEN_ISSUER", policy.DefaultIssuer),
			AppID:                e.str("AMTOKEN_APP_ID", policy.DefaultAppID),
			ClockSkew:            e.duration("AMTOKEN_CLOCK_SKEW", amvalidator.DefaultAllowedClockSkew),
			CacheTTL:             e.duration("AMTOKEN_CACHE_TTL", jwks.DefaultCacheTTL),
			FetchRetries:         e.integer("AMTOKEN_FETCH_ATTEMPTS", 1),
			AllowedSenderDomains: e.list("ALLOWED_SENDER_DOMAINS"),
		},
		Redis: RedisConfig{
			Addr:      e.str("REDIS_ADDR", ""),
			Password:  e.str("REDIS_PASSWORD", ""),
			DB:        e.integer("REDIS_DB", 0),
			KeyPrefix: e.str("REDIS_KEY_PREFIX", "amtoken:"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       e.str("LOG_LEVEL", "info"),
			LogFormat:      e.str("LOG_FORMAT", "json"),
			MetricsEnabled: e.boolean("METRICS_ENABLED", true),
		},
	}

	if err := errors.Join(e.errs...); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the struct tags of the configuration.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("config validation failed: %w", err)
	}

	msgs := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(msgs, "; "))
}

// Address returns the HTTP listen address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required", "required_unless":
		return fmt.Sprintf("%s is required", field)
	case "https_url":
		return fmt.Sprintf("%s must be an absolute https URL", field)
	case "https_origin":
		return fmt.Sprintf("%s must be an https origin without path", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "fqdn":
		return fmt.Sprintf("%s must be a domain name", field)
	default:
		return fmt.Sprintf("%s validation failed on '%s' tag", field, fe.Tag())
	}
}

// env reads typed values and records parse errors instead of silently
// falling back to defaults.
type env struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *env) str(key, def string) string {
	if v, ok := e.lookup(key); ok && v != "" {
		return v
	}
	return def
}

func (e *env) integer(key string, def int) int {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return def
	}
	return n
}

func (e *env) boolean(key string, def bool) bool {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a boolean", key, v))
		return def
	}
	return b
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a duration", key, v))
		return def
	}
	return d
}

func (e *env) list(key string) []string {
	var out []string
	for _, item := range strings.Split(e.str(key, ""), ",") {
		if item = strings.ToLower(strings.TrimSpace(item)); item != "" {
			out = append(out, item)
		}
	}
	return out
}
