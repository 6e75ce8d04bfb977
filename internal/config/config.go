package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	Port           string        `toml:"port"`
	DatabaseURL    string        `toml:"database_url"`
	RequestTimeout time.Duration `toml:"request_timeout"`
	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// friends. Only enable it behind a proxy that overwrites those headers.
	TrustProxyHeaders bool `toml:"trust_proxy_headers"`

	// DotEnvLoaded reports whether a .env file was read.
	DotEnvLoaded bool `toml:"-"`

	Auth      AuthConfig      `toml:"auth"`
	CORS      CORSConfig      `toml:"cors"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Log       LogConfig       `toml:"log"`
}

// AuthConfig describes the identity provider whose tokens are accepted.
type AuthConfig struct {
	Domain           string `toml:"domain"`
	Audience         string `toml:"audience"`
	Issuer           string `toml:"issuer"`
	JWKSURL          string `toml:"jwks_url"`
	Algorithm        string `toml:"algorithm"`
	PermissionsClaim string `toml:"permissions_claim"`
}

type CORSConfig struct {
	AllowedOrigins []string `toml:"allowed_origins"`
}

type RateLimitConfig struct {
	RPS   float64 `toml:"rps"`
	Burst int     `toml:"burst"`
}

type MetricsConfig struct {
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

func Default() Config {
	return Config{
		Port:           "3333",
		DatabaseURL:    "sqlite:drinks.db",
		RequestTimeout: 5 * time.Second,
		Auth: AuthConfig{
			Algorithm:        "RS256",
			PermissionsClaim: "permissions",
		},
		CORS:      CORSConfig{AllowedOrigins: []string{"*"}},
		RateLimit: RateLimitConfig{RPS: 5, Burst: 30},
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the config from defaults, the optional TOML file at path, the
// .env file and finally the process environment, in that order.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	// .env is optional, but a broken one is an error.
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("failed to read .env: %w", err)
		}
	} else {
		cfg.DotEnvLoaded = true
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	cfg.derive()

	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Port, "PORT")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.Auth.Domain, "AUTH0_DOMAIN")
	setString(&c.Auth.Audience, "API_AUDIENCE")
	setString(&c.Auth.Issuer, "AUTH_ISSUER")
	setString(&c.Auth.JWKSURL, "JWKS_URL")
	setString(&c.Auth.Algorithm, "AUTH_ALGORITHM")
	setString(&c.Auth.PermissionsClaim, "PERMISSIONS_CLAIM")
	setString(&c.Metrics.User, "METRICS_USER")
	setString(&c.Metrics.Password, "METRICS_PASS")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")

	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.CORS.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("TRUST_PROXY_HEADERS"); v != "" {
		trust, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid TRUST_PROXY_HEADERS %q: %w", v, err)
		}
		c.TrustProxyHeaders = trust
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_RPS %q: %w", v, err)
		}
		c.RateLimit.RPS = rps
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		burst, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_BURST %q: %w", v, err)
		}
		c.RateLimit.Burst = burst
	}
	if v := os.Getenv("REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid REQUEST_TIMEOUT %q: %w", v, err)
		}
		c.RequestTimeout = d
	}
	return nil
}

// derive fills the issuer and key document URL from the tenant domain when
// they were not set explicitly.
func (c *Config) derive() {
	domain := strings.TrimSuffix(strings.TrimPrefix(c.Auth.Domain, "https://"), "/")
	if domain == "" {
		return
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "https://" + domain + "/"
	}
	if c.Auth.JWKSURL == "" {
		c.Auth.JWKSURL = "https://" + domain + "/.well-known/jwks.json"
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.Auth.Audience == "" {
		errs = append(errs, errors.New("API_AUDIENCE is not set"))
	}
	if c.Auth.Issuer == "" {
		errs = append(errs, errors.New("AUTH_ISSUER (or AUTH0_DOMAIN) is not set"))
	}
	if c.Auth.JWKSURL == "" {
		errs = append(errs, errors.New("JWKS_URL (or AUTH0_DOMAIN) is not set"))
	}
	if c.Auth.PermissionsClaim == "" {
		errs = append(errs, errors.New("PERMISSIONS_CLAIM is empty"))
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("rate limit must be positive"))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is not set"))
	}
	return errors.Join(errs...)
}

func (c Config) Addr() string {
	return ":" + c.Port
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func splitList(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
