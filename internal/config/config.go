// Package config loads the application settings from the environment.
//
// Sources, lowest to highest priority:
//  1. defaults set below
//  2. a .env file in the working directory (optional, via godotenv)
//  3. real environment variables
//
// godotenv never overrides a variable that is already set, which is what
// gives real environment variables the final say.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/sakif/snippetshare/internal/repository/sqldb"
)

type Config struct {
	Env  string `mapstructure:"ENV"`
	Port int    `mapstructure:"PORT"`

	DBDriver    string `mapstructure:"DB_DRIVER"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	RedisURL    string `mapstructure:"REDIS_URL"`

	JWTSecret       string        `mapstructure:"JWT_SECRET"`
	JWTIssuer       string        `mapstructure:"JWT_ISSUER"`
	AccessTokenTTL  time.Duration `mapstructure:"ACCESS_TOKEN_TTL"`
	RefreshTokenTTL time.Duration `mapstructure:"REFRESH_TOKEN_TTL"`
	ResetTokenTTL   time.Duration `mapstructure:"RESET_TOKEN_TTL"`

	SiteName           string   `mapstructure:"SITE_NAME"`
	FrontendURL        string   `mapstructure:"FRONTEND_URL"`
	CORSAllowedOrigins []string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	SMTPHost         string `mapstructure:"SMTP_HOST"`
	SMTPPort         int    `mapstructure:"SMTP_PORT"`
	SMTPUsername     string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword     string `mapstructure:"SMTP_PASSWORD"`
	DefaultFromEmail string `mapstructure:"DEFAULT_FROM_EMAIL"`
	ContactEmail     string `mapstructure:"CONTACT_EMAIL"`
	MailWorkers      int    `mapstructure:"MAIL_WORKERS"`
	MailQueueSize    int    `mapstructure:"MAIL_QUEUE_SIZE"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	AuthRateLimit float64 `mapstructure:"AUTH_RATE_LIMIT"` // requests per second per IP
	AuthRateBurst int     `mapstructure:"AUTH_RATE_BURST"`

	GitHubClientID     string `mapstructure:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `mapstructure:"GITHUB_CLIENT_SECRET"`
	GitHubRedirectURL  string `mapstructure:"GITHUB_REDIRECT_URL"`

	SuperuserUsername string `mapstructure:"SUPERUSER_USERNAME"`
	SuperuserEmail    string `mapstructure:"SUPERUSER_EMAIL"`
	SuperuserPassword string `mapstructure:"SUPERUSER_PASSWORD"`
}

// defaults doubles as the list of known keys: viper.Unmarshal only sees
// environment variables for keys it already knows about.
var defaults = map[string]any{
	"ENV":          "development",
	"PORT":         8000,
	"DB_DRIVER":    "sqlite",
	"DATABASE_URL": "data/snippetshare.db",
	"REDIS_URL":    "",

	"JWT_SECRET":        "",
	"JWT_ISSUER":        "snippetshare",
	"ACCESS_TOKEN_TTL":  "15m",
	"REFRESH_TOKEN_TTL": "24h",
	"RESET_TOKEN_TTL":   "24h",

	"SITE_NAME":            "Code Snippets",
	"FRONTEND_URL":         "http://localhost:3000",
	"CORS_ALLOWED_ORIGINS": "",

	"SMTP_HOST":          "",
	"SMTP_PORT":          587,
	"SMTP_USERNAME":      "",
	"SMTP_PASSWORD":      "",
	"DEFAULT_FROM_EMAIL": "noreply@localhost",
	"CONTACT_EMAIL":      "",
	"MAIL_WORKERS":       2,
	"MAIL_QUEUE_SIZE":    100,

	"LOG_LEVEL":  "info",
	"LOG_FORMAT": "text",

	"AUTH_RATE_LIMIT": 5.0,
	"AUTH_RATE_BURST": 10,

	"GITHUB_CLIENT_ID":     "",
	"GITHUB_CLIENT_SECRET": "",
	"GITHUB_REDIRECT_URL":  "",

	"SUPERUSER_USERNAME": "",
	"SUPERUSER_EMAIL":    "",
	"SUPERUSER_PASSWORD": "",
}

// devSecret is only used outside production when JWT_SECRET is unset.
const devSecret = "insecure-development-secret-change-me"

// Load reads .env (when present) and the environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: reading .env: %w", err)
	}
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}

	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")
	cfg.CORSAllowedOrigins = cleanList(cfg.CORSAllowedOrigins)
	if len(cfg.CORSAllowedOrigins) == 0 && cfg.FrontendURL != "" {
		cfg.CORSAllowedOrigins = []string{cfg.FrontendURL}
	}
	if cfg.GitHubRedirectURL == "" {
		cfg.GitHubRedirectURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port)
	}
	if cfg.JWTSecret == "" && !cfg.IsProduction() {
		cfg.JWTSecret = devSecret
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsProduction reports whether ENV is "production" (or "prod").
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Env)
	return env == "production" || env == "prod"
}

// SMTPEnabled reports whether mail should go through a real SMTP server.
func (c *Config) SMTPEnabled() bool { return c.SMTPHost != "" }

// GitHubEnabled reports whether GitHub login is configured.
func (c *Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// Validate checks the settings that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	var problems []string

	if c.Port < 1 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("PORT %d out of range", c.Port))
	}
	// Aliases such as "postgresql" or "sqlite3" are stored in their
	// canonical form so every later comparison sees one spelling.
	if dialect, err := sqldb.ParseDialect(c.DBDriver); err != nil {
		problems = append(problems, fmt.Sprintf("DB_DRIVER %q must be sqlite or postgres", c.DBDriver))
	} else {
		c.DBDriver = string(dialect)
	}
	if c.DatabaseURL == "" {
		problems = append(problems, "DATABASE_URL is required")
	}
	if len(c.JWTSecret) < 32 && c.IsProduction() {
		problems = append(problems, "JWT_SECRET must be at least 32 characters in production")
	}
	if c.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is required")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 || c.ResetTokenTTL <= 0 {
		problems = append(problems, "token TTLs must be positive")
	}
	if c.AccessTokenTTL > c.RefreshTokenTTL {
		problems = append(problems, "ACCESS_TOKEN_TTL must not exceed REFRESH_TOKEN_TTL")
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("LOG_FORMAT %q must be text or json", c.LogFormat))
	}
	if c.MailWorkers < 1 || c.MailQueueSize < 1 {
		problems = append(problems, "MAIL_WORKERS and MAIL_QUEUE_SIZE must be positive")
	}
	if c.AuthRateLimit < 0 || c.AuthRateBurst < 0 {
		problems = append(problems, "AUTH_RATE_LIMIT and AUTH_RATE_BURST must not be negative")
	}
	if c.AuthRateLimit > 0 && c.AuthRateBurst < 1 {
		problems = append(problems, "AUTH_RATE_BURST must be at least 1 when AUTH_RATE_LIMIT is set")
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func cleanList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, strings.TrimRight(part, "/"))
			}
		}
	}
	return out
}
