// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/danielhkuo/agm-proxy/db"
	"github.com/danielhkuo/agm-proxy/proxy"
)

type Config struct {
	Port               int      `envconfig:"PORT" default:"3318"`
	DatabaseURL        string   `envconfig:"DATABASE_URL"`
	DatabaseType       string   `envconfig:"DATABASE_TYPE" default:"sqlite"`
	AdminKey           string   `envconfig:"ADMIN_KEY"`
	IPHashSalt         string   `envconfig:"IP_HASH_SALT"`
	LogLevel           string   `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat          string   `envconfig:"LOG_FORMAT" default:"text"`
	PolicyFile         string   `envconfig:"POLICY_FILE"`
	RateLimitRPS       float64  `envconfig:"RATE_LIMIT_RPS" default:"20"`
	RateLimitBurst     int      `envconfig:"RATE_LIMIT_BURST" default:"40"`
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	// Policy is read from PolicyFile over the built-in defaults.
	Policy proxy.Policy `ignored:"true"`
}

// Dialect returns the parsed DatabaseType.
func (c Config) Dialect() db.Dialect {
	d, _ := db.ParseDialect(c.DatabaseType)
	return d
}

// NewFlagSet defines every command-line flag. Flags left unset do not
// override the environment.
func NewFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("agm-proxy", pflag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntP("port", "p", 0, "Server port")
	fs.StringP("database-url", "d", "", "Database URL")
	fs.StringP("database-type", "t", "", "Database type (sqlite or postgres)")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.String("admin-key", "", "Admin key for settings routes (prefer env)")
	fs.String("ip-hash-salt", "", "Salt for hashing voter IPs (defaults to the admin key)")

	fs.String("log-level", "", "Log level (debug, info, warn, error)")
	fs.String("log-format", "", "Log format (text or json)")
	fs.String("policy-file", "", "YAML vote-splitting policy file")
	fs.Float64("rate-limit-rps", 0, "Requests per second allowed per client")
	fs.Int("rate-limit-burst", 0, "Request burst allowed per client")
	fs.StringSlice("cors-origins", nil, "Allowed CORS origins")

	return fs
}

// ParseFlags parses args and loads the configuration.
func ParseFlags(args []string) (Config, error) {
	fs := NewFlagSet()
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return Load(fs)
}

// Load builds the configuration from, in increasing precedence, built-in
// defaults, the policy file, the environment (after .env) and the flags
// set on fs.
func Load(fs *pflag.FlagSet) (Config, error) {
	// .env is optional; existing environment variables win
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid environment: %w", err)
	}

	if err := applyFlags(fs, &cfg); err != nil {
		return Config{}, err
	}

	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}
	if _, err := db.ParseDialect(cfg.DatabaseType); err != nil {
		return Config{}, err
	}

	// Secrets - MUST be provided
	if cfg.AdminKey == "" {
		return Config{}, errors.New("ADMIN_KEY required")
	}
	if cfg.IPHashSalt == "" {
		cfg.IPHashSalt = cfg.AdminKey
	}

	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return Config{}, fmt.Errorf("invalid log level %q", cfg.LogLevel)
	}
	switch strings.ToLower(cfg.LogFormat) {
	case "text", "json":
	default:
		return Config{}, fmt.Errorf("invalid log format %q", cfg.LogFormat)
	}

	policy, err := LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return Config{}, err
	}
	cfg.Policy = policy

	return cfg, nil
}

func applyFlags(fs *pflag.FlagSet, cfg *Config) error {
	if fs == nil {
		return nil
	}

	var err error
	set := func(name string, apply func() error) {
		if err == nil && fs.Changed(name) {
			err = apply()
		}
	}

	set("port", func() (e error) { cfg.Port, e = fs.GetInt("port"); return })
	set("database-url", func() (e error) { cfg.DatabaseURL, e = fs.GetString("database-url"); return })
	set("database-type", func() (e error) { cfg.DatabaseType, e = fs.GetString("database-type"); return })
	set("admin-key", func() (e error) { cfg.AdminKey, e = fs.GetString("admin-key"); return })
	set("ip-hash-salt", func() (e error) { cfg.IPHashSalt, e = fs.GetString("ip-hash-salt"); return })
	set("log-level", func() (e error) { cfg.LogLevel, e = fs.GetString("log-level"); return })
	set("log-format", func() (e error) { cfg.LogFormat, e = fs.GetString("log-format"); return })
	set("policy-file", func() (e error) { cfg.PolicyFile, e = fs.GetString("policy-file"); return })
	set("rate-limit-rps", func() (e error) { cfg.RateLimitRPS, e = fs.GetFloat64("rate-limit-rps"); return })
	set("rate-limit-burst", func() (e error) { cfg.RateLimitBurst, e = fs.GetInt("rate-limit-burst"); return })
	set("cors-origins", func() (e error) { cfg.CORSAllowedOrigins, e = fs.GetStringSlice("cors-origins"); return })

	if err != nil {
		return fmt.Errorf("invalid flag: %w", err)
	}
	return nil
}

// LoadPolicy reads a YAML vote-splitting policy over the defaults. An
// empty path returns the defaults.
func LoadPolicy(path string) (proxy.Policy, error) {
	policy := proxy.DefaultPolicy()
	if path == "" {
		return policy, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return proxy.Policy{}, fmt.Errorf("failed to read policy file: %w", err)
	}
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return proxy.Policy{}, fmt.Errorf("failed to parse policy file %s: %w", path, err)
	}
	if err := policy.Validate(); err != nil {
		return proxy.Policy{}, fmt.Errorf("policy file %s: %w", path, err)
	}
	return policy, nil
}
