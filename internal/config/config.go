package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DevSecret signs tokens when no secret is configured. Never acceptable in production.
const DevSecret = "asistencia-dev-secret-change-me"

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config is built once at process start and passed explicitly to every component.
type Config struct {
	Env      string         `yaml:"env"`
	HTTP     HTTPConfig     `yaml:"http"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Cookies  CookieConfig   `yaml:"cookies"`
}

type HTTPConfig struct {
	Addr         string          `yaml:"addr"`
	MaxBodyBytes int64           `yaml:"max_body_bytes"`
	CORSOrigins  []string        `yaml:"cors_origins"`
	RateLimit    RateLimitConfig `yaml:"rate_limit"`
	// TrustedProxies lists the peer addresses or CIDRs whose X-Forwarded-For
	// is believed. Empty means the header is ignored.
	TrustedProxies []string       `yaml:"trusted_proxies"`
	TrustedNets    []netip.Prefix `yaml:"-"`
}

type RateLimitConfig struct {
	Burst     int `yaml:"burst"`
	PerSecond int `yaml:"per_second"`
}

type GRPCConfig struct {
	Addr string `yaml:"addr"`
}

type DatabaseConfig struct {
	DSN                string        `yaml:"dsn"`
	MaxOpenConns       int           `yaml:"max_open_conns"`
	MaxIdleConns       int           `yaml:"max_idle_conns"`
	ConnMaxLifetimeRaw string        `yaml:"conn_max_lifetime"`
	ConnMaxLifetime    time.Duration `yaml:"-"`
	MigrateOnStart     bool          `yaml:"migrate_on_start"`
}

type AuthConfig struct {
	Secret              string        `yaml:"secret"`
	Issuer              string        `yaml:"issuer"`
	OwnerTTLRaw         string        `yaml:"owner_ttl"`
	OwnerRememberTTLRaw string        `yaml:"owner_remember_ttl"`
	EmployeeTTLRaw      string        `yaml:"employee_ttl"`
	BcryptCost          int           `yaml:"bcrypt_cost"`
	OwnerTTL            time.Duration `yaml:"-"`
	OwnerRememberTTL    time.Duration `yaml:"-"`
	EmployeeTTL         time.Duration `yaml:"-"`
	// DevSecret reports that Secret fell back to the development default.
	DevSecret bool `yaml:"-"`
}

type CookieConfig struct {
	// Secure is nil until normalized; defaults to true in production.
	Secure *bool `yaml:"secure"`
}

// SecureCookies reports whether cookies must carry the Secure attribute.
func (c Config) SecureCookies() bool {
	return c.Cookies.Secure != nil && *c.Cookies.Secure
}

// Default returns the configuration used when no file and no environment is present.
func Default() Config {
	return Config{
		Env: EnvDevelopment,
		HTTP: HTTPConfig{
			Addr:         ":8080",
			MaxBodyBytes: 1 << 20,
			RateLimit:    RateLimitConfig{Burst: 50, PerSecond: 20},
		},
		Database: DatabaseConfig{
			MaxOpenConns:       20,
			MaxIdleConns:       10,
			ConnMaxLifetimeRaw: "30m",
		},
		Auth: AuthConfig{
			Issuer:              "asistencia",
			OwnerTTLRaw:         "168h",
			OwnerRememberTTLRaw: "720h",
			EmployeeTTLRaw:      "168h",
			BcryptCost:          10,
		},
	}
}

// Load reads the optional YAML file at path, applies environment overrides and normalizes.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse yaml: %w", err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.validateAndNormalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("ASISTENCIA_ENV", &c.Env)
	str("ASISTENCIA_HTTP_ADDR", &c.HTTP.Addr)
	str("ASISTENCIA_GRPC_ADDR", &c.GRPC.Addr)
	str("ASISTENCIA_PG_DSN", &c.Database.DSN)
	str("ASISTENCIA_AUTH_SECRET", &c.Auth.Secret)

	if v, ok := lookup("ASISTENCIA_TRUSTED_PROXIES"); ok && strings.TrimSpace(v) != "" {
		c.HTTP.TrustedProxies = strings.Split(v, ",")
	}
	if v, ok := lookup("ASISTENCIA_COOKIE_SECURE"); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: ASISTENCIA_COOKIE_SECURE: %w", err)
		}
		c.Cookies.Secure = &b
	}
	if v, ok := lookup("ASISTENCIA_MIGRATE_ON_START"); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: ASISTENCIA_MIGRATE_ON_START: %w", err)
		}
		c.Database.MigrateOnStart = b
	}
	return nil
}

func (c *Config) validateAndNormalize() error {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	if c.Env == "" {
		c.Env = EnvDevelopment
	}
	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		return fmt.Errorf("config: env must be %q or %q", EnvDevelopment, EnvProduction)
	}
	if c.HTTP.Addr == "" {
		return errors.New("config: http.addr must be set")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = 1 << 20
	}
	if c.HTTP.RateLimit.Burst < 0 || c.HTTP.RateLimit.PerSecond < 0 {
		return errors.New("config: http.rate_limit values must be >= 0")
	}

	nets, err := parseTrustedProxies(c.HTTP.TrustedProxies)
	if err != nil {
		return err
	}
	c.HTTP.TrustedNets = nets

	lifetime, err := parseDurationAllowEmpty(c.Database.ConnMaxLifetimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_lifetime: %w", err)
	}
	c.Database.ConnMaxLifetime = lifetime

	if err := c.Auth.validateAndNormalize(c.Env); err != nil {
		return err
	}

	if c.Cookies.Secure == nil {
		secure := c.Env == EnvProduction
		c.Cookies.Secure = &secure
	}
	return nil
}

func (a *AuthConfig) validateAndNormalize(env string) error {
	a.Secret = strings.TrimSpace(a.Secret)
	if a.Secret == "" {
		if env == EnvProduction {
			return errors.New("config: auth.secret must be set in production")
		}
		a.Secret = DevSecret
		a.DevSecret = true
	}
	if a.Issuer == "" {
		a.Issuer = "asistencia"
	}
	if a.BcryptCost == 0 {
		a.BcryptCost = 10
	}

	var err error
	if a.OwnerTTL, err = parseRequiredDuration("auth.owner_ttl", a.OwnerTTLRaw); err != nil {
		return err
	}
	if a.OwnerRememberTTL, err = parseRequiredDuration("auth.owner_remember_ttl", a.OwnerRememberTTLRaw); err != nil {
		return err
	}
	if a.EmployeeTTL, err = parseRequiredDuration("auth.employee_ttl", a.EmployeeTTLRaw); err != nil {
		return err
	}
	return nil
}

func parseRequiredDuration(name, raw string) (time.Duration, error) {
	d, err := parseDurationAllowEmpty(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: %s must be a positive duration", name)
	}
	return d, nil
}

func parseDurationAllowEmpty(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	return time.ParseDuration(raw)
}

// parseTrustedProxies accepts bare addresses as single-host prefixes.
func parseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, raw := range entries {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			p, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("config: http.trusted_proxies: %w", err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("config: http.trusted_proxies: %w", err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}
