package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port            string   `mapstructure:"PORT"`
	Env             string   `mapstructure:"ENV"`
	DatabaseURL     string   `mapstructure:"DATABASE_URL"`
	BranchDatabases string   `mapstructure:"BRANCH_DATABASES"`
	DefaultBranch   string   `mapstructure:"DEFAULT_BRANCH"`
	DBMaxConns      int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns      int32    `mapstructure:"DB_MIN_CONNS"`
	SecretKey       string   `mapstructure:"SECRET_KEY"`
	TokenTTLMinutes int      `mapstructure:"TOKEN_TTL_MINUTES"`
	CORSOrigins     []string `mapstructure:"CORS_ORIGINS"`

	// Midtrans payment gateway
	MidtransServerKey string `mapstructure:"MIDTRANS_SERVER_KEY"`
	MidtransClientKey string `mapstructure:"MIDTRANS_CLIENT_KEY"`
	MidtransBaseURL   string `mapstructure:"MIDTRANS_BASE_URL"`
	MidtransSnapURL   string `mapstructure:"MIDTRANS_SNAP_URL"`
	GatewayTimeoutSec int    `mapstructure:"GATEWAY_TIMEOUT_SECONDS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DEFAULT_BRANCH", "central")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("TOKEN_TTL_MINUTES", 30)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("MIDTRANS_BASE_URL", "https://api.sandbox.midtrans.com")
	v.SetDefault("MIDTRANS_SNAP_URL", "https://app.sandbox.midtrans.com")
	v.SetDefault("GATEWAY_TIMEOUT_SECONDS", 15)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("BRANCH_DATABASES")
	v.BindEnv("DEFAULT_BRANCH")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("SECRET_KEY")
	v.BindEnv("TOKEN_TTL_MINUTES")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("MIDTRANS_SERVER_KEY")
	v.BindEnv("MIDTRANS_CLIENT_KEY")
	v.BindEnv("MIDTRANS_BASE_URL")
	v.BindEnv("MIDTRANS_SNAP_URL")
	v.BindEnv("GATEWAY_TIMEOUT_SECONDS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Branches parses BRANCH_DATABASES ("name=url,name=url") and always includes
// the default branch backed by DATABASE_URL. The default branch cannot be
// redefined to point elsewhere.
func (c *Config) Branches() (map[string]string, error) {
	branches := map[string]string{c.DefaultBranch: c.DatabaseURL}
	if c.BranchDatabases == "" {
		return branches, nil
	}
	for _, pair := range strings.Split(c.BranchDatabases, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, url, ok := strings.Cut(pair, "=")
		if !ok || name == "" || url == "" {
			return nil, fmt.Errorf("invalid BRANCH_DATABASES entry %q (want name=url)", pair)
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if name == c.DefaultBranch && url != c.DatabaseURL {
			return nil, fmt.Errorf("branch %q conflicts with DATABASE_URL", name)
		}
		branches[name] = strings.TrimSpace(url)
	}
	return branches, nil
}

// Validate checks that the configuration is safe to run. SECRET_KEY is always
// required since every non-public route is behind JWT auth. The Midtrans
// server key is required outside development because payment creation and
// notification verification cannot work without it.
func (c *Config) Validate() error {
	if c.SecretKey == "" {
		return fmt.Errorf("SECRET_KEY is required")
	}
	if !c.IsDev() && c.MidtransServerKey == "" {
		return fmt.Errorf("MIDTRANS_SERVER_KEY is required when ENV=%q", c.Env)
	}
	if c.DefaultBranch == "" {
		return fmt.Errorf("DEFAULT_BRANCH must not be empty")
	}
	if c.GatewayTimeoutSec <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT_SECONDS must be positive, got %d", c.GatewayTimeoutSec)
	}
	if _, err := c.Branches(); err != nil {
		return err
	}
	return nil
}
