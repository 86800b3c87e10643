// Package config handles application configuration via environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the auth gateway.
type Config struct {
	// Server settings
	Host string `env:"AUTHGATE_HOST" env-default:"0.0.0.0"`
	Port int    `env:"AUTHGATE_PORT" env-default:"8080"`

	// Issuer URL embedded in signed tokens and discovery documents
	IssuerURL string `env:"AUTHGATE_ISSUER_URL" env-default:"http://localhost:8080"`

	// Storage settings. When DatabaseURL is empty the in-memory store is
	// used; when RedisAddr is set sessions are cached through Redis.
	DatabaseURL   string `env:"AUTHGATE_DATABASE_URL"`
	RedisAddr     string `env:"AUTHGATE_REDIS_ADDR"`
	RedisPassword string `env:"AUTHGATE_REDIS_PASSWORD"`
	RedisDB       int    `env:"AUTHGATE_REDIS_DB" env-default:"0"`

	// Signing key storage
	KeyDir string `env:"AUTHGATE_KEY_DIR" env-default:"./keys"`

	// Token lifetimes
	AccessTokenTTL time.Duration `env:"AUTHGATE_ACCESS_TOKEN_TTL" env-default:"1h"`
	SessionTTL     time.Duration `env:"AUTHGATE_SESSION_TTL" env-default:"168h"` // 7 days
	AuthCodeTTL    time.Duration `env:"AUTHGATE_AUTH_CODE_TTL" env-default:"10m"`

	// Session cache TTL (only used when RedisAddr is set)
	SessionCacheTTL time.Duration `env:"AUTHGATE_SESSION_CACHE_TTL" env-default:"5m"`

	// Cookie settings for console sessions
	CookieSecure bool   `env:"AUTHGATE_COOKIE_SECURE" env-default:"false"`
	CookieDomain string `env:"AUTHGATE_COOKIE_DOMAIN" env-default:""`

	// Rate limiting (requests per minute per IP)
	TokenRateLimit int `env:"AUTHGATE_TOKEN_RATE_LIMIT" env-default:"60"`
	LoginRateLimit int `env:"AUTHGATE_LOGIN_RATE_LIMIT" env-default:"5"`

	// Logging
	LogLevel  string `env:"AUTHGATE_LOG_LEVEL" env-default:"info"`
	LogFormat string `env:"AUTHGATE_LOG_FORMAT" env-default:"json"` // json or text

	// Background sweep interval for expired codes and sessions
	SweepInterval time.Duration `env:"AUTHGATE_SWEEP_INTERVAL" env-default:"10m"`

	// Bootstrap data (created on startup if not exists)
	// Format: "email:password:role:perm1;perm2,email2:password2:role2:*"
	BootstrapAdmins string `env:"AUTHGATE_BOOTSTRAP_ADMINS"`
	// Format: "client_id|client_secret|token_format|redirect_uri"
	// (| delimiter avoids URL conflicts). Multiple redirect URIs separated
	// by space, multiple clients separated by comma. Empty secret marks a
	// public client; empty token_format means reference tokens.
	BootstrapClients string `env:"AUTHGATE_BOOTSTRAP_CLIENTS"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// Addr returns the server address in host:port format.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BootstrapAdmin represents an admin account to be created on startup.
type BootstrapAdmin struct {
	Email       string
	Password    string
	Role        string
	Permissions []string
}

// BootstrapClient represents an OAuth client to be created on startup.
type BootstrapClient struct {
	ID           string
	Secret       string
	TokenFormat  string
	RedirectURIs []string
	Public       bool
}

// ParseBootstrapAdmins parses the AUTHGATE_BOOTSTRAP_ADMINS environment
// variable. Format: "email:password:role:perm1;perm2". Role and
// permissions are optional; a bare "email:password" entry becomes a
// super admin.
func (c *Config) ParseBootstrapAdmins() []BootstrapAdmin {
	if c.BootstrapAdmins == "" {
		return nil
	}

	var admins []BootstrapAdmin
	for _, entry := range strings.Split(c.BootstrapAdmins, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 4)
		if len(parts) < 2 {
			continue
		}

		admin := BootstrapAdmin{
			Email:    strings.TrimSpace(parts[0]),
			Password: strings.TrimSpace(parts[1]),
		}
		if len(parts) >= 3 {
			admin.Role = strings.TrimSpace(parts[2])
		}
		if len(parts) >= 4 {
			for _, p := range strings.Split(parts[3], ";") {
				if p = strings.TrimSpace(p); p != "" {
					admin.Permissions = append(admin.Permissions, p)
				}
			}
		}
		admins = append(admins, admin)
	}
	return admins
}

// ParseBootstrapClients parses the AUTHGATE_BOOTSTRAP_CLIENTS environment
// variable. Format: "client_id|client_secret|token_format|redirect_uri"
// with redirect URIs separated by whitespace.
func (c *Config) ParseBootstrapClients() []BootstrapClient {
	if c.BootstrapClients == "" {
		return nil
	}

	var clients []BootstrapClient
	for _, entry := range strings.Split(c.BootstrapClients, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "|", 4)
		if len(parts) < 4 {
			continue
		}

		secret := strings.TrimSpace(parts[1])
		client := BootstrapClient{
			ID:           strings.TrimSpace(parts[0]),
			Secret:       secret,
			TokenFormat:  strings.TrimSpace(parts[2]),
			RedirectURIs: strings.Fields(parts[3]),
			Public:       secret == "",
		}
		clients = append(clients, client)
	}
	return clients
}
