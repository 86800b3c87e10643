package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	clearAuthgateEnvVars()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Host != "0.0.0.0" {
		t.Errorf("Expected default host '0.0.0.0', got '%s'", cfg.Host)
	}
	if cfg.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Port)
	}
	if cfg.IssuerURL != "http://localhost:8080" {
		t.Errorf("Expected default issuer URL, got '%s'", cfg.IssuerURL)
	}
	if cfg.DatabaseURL != "" {
		t.Errorf("Expected empty database URL, got '%s'", cfg.DatabaseURL)
	}
	if cfg.KeyDir != "./keys" {
		t.Errorf("Expected default key dir './keys', got '%s'", cfg.KeyDir)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log level 'info', got '%s'", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("Expected default log format 'json', got '%s'", cfg.LogFormat)
	}
	if cfg.LoginRateLimit != 5 {
		t.Errorf("Expected default login rate limit 5, got %d", cfg.LoginRateLimit)
	}
	if cfg.TokenRateLimit != 60 {
		t.Errorf("Expected default token rate limit 60, got %d", cfg.TokenRateLimit)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearAuthgateEnvVars()

	os.Setenv("AUTHGATE_HOST", "127.0.0.1")
	os.Setenv("AUTHGATE_PORT", "9090")
	os.Setenv("AUTHGATE_ISSUER_URL", "https://auth.example.com")
	os.Setenv("AUTHGATE_DATABASE_URL", "postgres://auth:secret@db/authgate")
	os.Setenv("AUTHGATE_REDIS_ADDR", "localhost:6379")
	os.Setenv("AUTHGATE_COOKIE_SECURE", "true")
	os.Setenv("AUTHGATE_LOG_LEVEL", "debug")
	os.Setenv("AUTHGATE_LOGIN_RATE_LIMIT", "10")
	defer clearAuthgateEnvVars()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Host != "127.0.0.1" {
		t.Errorf("Expected host '127.0.0.1', got '%s'", cfg.Host)
	}
	if cfg.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Port)
	}
	if cfg.IssuerURL != "https://auth.example.com" {
		t.Errorf("Expected issuer URL 'https://auth.example.com', got '%s'", cfg.IssuerURL)
	}
	if cfg.DatabaseURL != "postgres://auth:secret@db/authgate" {
		t.Errorf("Expected database URL, got '%s'", cfg.DatabaseURL)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("Expected redis addr 'localhost:6379', got '%s'", cfg.RedisAddr)
	}
	if !cfg.CookieSecure {
		t.Error("Expected cookie secure to be true")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log level 'debug', got '%s'", cfg.LogLevel)
	}
	if cfg.LoginRateLimit != 10 {
		t.Errorf("Expected login rate limit 10, got %d", cfg.LoginRateLimit)
	}
}

func TestAddr(t *testing.T) {
	cfg := &Config{
		Host: "0.0.0.0",
		Port: 8080,
	}

	if cfg.Addr() != "0.0.0.0:8080" {
		t.Errorf("Expected '0.0.0.0:8080', got '%s'", cfg.Addr())
	}

	cfg.Host = "localhost"
	cfg.Port = 3000
	if cfg.Addr() != "localhost:3000" {
		t.Errorf("Expected 'localhost:3000', got '%s'", cfg.Addr())
	}
}

func TestTokenTTLDefaults(t *testing.T) {
	clearAuthgateEnvVars()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Access token: 1 hour (expires_in 3600)
	if cfg.AccessTokenTTL.Seconds() != 3600 {
		t.Errorf("Expected access token TTL 1h, got %v", cfg.AccessTokenTTL)
	}

	// Session: 7 days (168 hours)
	if cfg.SessionTTL.Hours() != 168 {
		t.Errorf("Expected session TTL 168h, got %v", cfg.SessionTTL)
	}

	// Auth code: 10 minutes
	if cfg.AuthCodeTTL.Minutes() != 10 {
		t.Errorf("Expected auth code TTL 10m, got %v", cfg.AuthCodeTTL)
	}
}

func TestParseBootstrapAdmins(t *testing.T) {
	tests := []struct {
		name            string
		bootstrapAdmins string
		wantCount       int
		wantFirst       *BootstrapAdmin
	}{
		{
			name:            "empty",
			bootstrapAdmins: "",
			wantCount:       0,
		},
		{
			name:            "email and password only",
			bootstrapAdmins: "root@example.com:password123",
			wantCount:       1,
			wantFirst:       &BootstrapAdmin{Email: "root@example.com", Password: "password123"},
		},
		{
			name:            "with role",
			bootstrapAdmins: "ops@example.com:password123:operator",
			wantCount:       1,
			wantFirst:       &BootstrapAdmin{Email: "ops@example.com", Password: "password123", Role: "operator"},
		},
		{
			name:            "with permissions",
			bootstrapAdmins: "ops@example.com:pw:operator:auth:read;auth:delete",
			wantCount:       1,
			wantFirst: &BootstrapAdmin{
				Email:       "ops@example.com",
				Password:    "pw",
				Role:        "operator",
				Permissions: []string{"auth:read", "auth:delete"},
			},
		},
		{
			name:            "wildcard permission",
			bootstrapAdmins: "root@example.com:pw:admin:*",
			wantCount:       1,
			wantFirst: &BootstrapAdmin{
				Email:       "root@example.com",
				Password:    "pw",
				Role:        "admin",
				Permissions: []string{"*"},
			},
		},
		{
			name:            "multiple admins",
			bootstrapAdmins: "a@example.com:pw1:admin:*,b@example.com:pw2:viewer:auth:read",
			wantCount:       2,
			wantFirst: &BootstrapAdmin{
				Email:       "a@example.com",
				Password:    "pw1",
				Role:        "admin",
				Permissions: []string{"*"},
			},
		},
		{
			name:            "invalid entries skipped",
			bootstrapAdmins: "invalid,valid@example.com:password",
			wantCount:       1,
			wantFirst:       &BootstrapAdmin{Email: "valid@example.com", Password: "password"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{BootstrapAdmins: tt.bootstrapAdmins}
			admins := cfg.ParseBootstrapAdmins()

			if len(admins) != tt.wantCount {
				t.Fatalf("Expected %d admins, got %d", tt.wantCount, len(admins))
			}
			if tt.wantFirst == nil || len(admins) == 0 {
				return
			}

			got := admins[0]
			if got.Email != tt.wantFirst.Email {
				t.Errorf("Expected email '%s', got '%s'", tt.wantFirst.Email, got.Email)
			}
			if got.Password != tt.wantFirst.Password {
				t.Errorf("Expected password '%s', got '%s'", tt.wantFirst.Password, got.Password)
			}
			if got.Role != tt.wantFirst.Role {
				t.Errorf("Expected role '%s', got '%s'", tt.wantFirst.Role, got.Role)
			}
			if len(got.Permissions) != len(tt.wantFirst.Permissions) {
				t.Fatalf("Expected %d permissions, got %d", len(tt.wantFirst.Permissions), len(got.Permissions))
			}
			for i, p := range tt.wantFirst.Permissions {
				if got.Permissions[i] != p {
					t.Errorf("Expected permission '%s', got '%s'", p, got.Permissions[i])
				}
			}
		})
	}
}

func TestParseBootstrapClients(t *testing.T) {
	tests := []struct {
		name             string
		bootstrapClients string
		wantCount        int
		wantClients      []BootstrapClient
	}{
		{
			name:             "empty",
			bootstrapClients: "",
			wantCount:        0,
		},
		{
			name:             "confidential reference client",
			bootstrapClients: "console|secret123||https://console.example.com/callback",
			wantCount:        1,
			wantClients: []BootstrapClient{
				{ID: "console", Secret: "secret123", RedirectURIs: []string{"https://console.example.com/callback"}, Public: false},
			},
		},
		{
			name:             "public jwt client",
			bootstrapClients: "mobile||jwt|app://callback",
			wantCount:        1,
			wantClients: []BootstrapClient{
				{ID: "mobile", Secret: "", TokenFormat: "jwt", RedirectURIs: []string{"app://callback"}, Public: true},
			},
		},
		{
			name:             "multiple clients",
			bootstrapClients: "app1|s1||https://app1.com/cb,app2|s2|jwt|https://app2.com/cb",
			wantCount:        2,
			wantClients: []BootstrapClient{
				{ID: "app1", Secret: "s1", RedirectURIs: []string{"https://app1.com/cb"}, Public: false},
				{ID: "app2", Secret: "s2", TokenFormat: "jwt", RedirectURIs: []string{"https://app2.com/cb"}, Public: false},
			},
		},
		{
			name:             "multiple redirect URIs",
			bootstrapClients: "multi|secret||http://localhost:3000/cb http://localhost:8080/cb",
			wantCount:        1,
			wantClients: []BootstrapClient{
				{ID: "multi", Secret: "secret", RedirectURIs: []string{"http://localhost:3000/cb", "http://localhost:8080/cb"}, Public: false},
			},
		},
		{
			name:             "invalid entries skipped",
			bootstrapClients: "invalid|only-two,valid|secret||https://valid.com/cb",
			wantCount:        1,
			wantClients: []BootstrapClient{
				{ID: "valid", Secret: "secret", RedirectURIs: []string{"https://valid.com/cb"}, Public: false},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{BootstrapClients: tt.bootstrapClients}
			clients := cfg.ParseBootstrapClients()

			if len(clients) != tt.wantCount {
				t.Fatalf("Expected %d clients, got %d", tt.wantCount, len(clients))
			}

			for i, want := range tt.wantClients {
				got := clients[i]
				if got.ID != want.ID {
					t.Errorf("Client %d: expected ID '%s', got '%s'", i, want.ID, got.ID)
				}
				if got.Secret != want.Secret {
					t.Errorf("Client %d: expected secret '%s', got '%s'", i, want.Secret, got.Secret)
				}
				if got.TokenFormat != want.TokenFormat {
					t.Errorf("Client %d: expected token format '%s', got '%s'", i, want.TokenFormat, got.TokenFormat)
				}
				if got.Public != want.Public {
					t.Errorf("Client %d: expected public %v, got %v", i, want.Public, got.Public)
				}
				if len(got.RedirectURIs) != len(want.RedirectURIs) {
					t.Fatalf("Client %d: expected %d redirect URIs, got %d", i, len(want.RedirectURIs), len(got.RedirectURIs))
				}
				for j, uri := range want.RedirectURIs {
					if got.RedirectURIs[j] != uri {
						t.Errorf("Client %d: expected redirect URI '%s', got '%s'", i, uri, got.RedirectURIs[j])
					}
				}
			}
		})
	}
}

// Helper to clear all AUTHGATE_ environment variables.
func clearAuthgateEnvVars() {
	vars := []string{
		"AUTHGATE_HOST", "AUTHGATE_PORT", "AUTHGATE_ISSUER_URL",
		"AUTHGATE_DATABASE_URL", "AUTHGATE_REDIS_ADDR", "AUTHGATE_REDIS_PASSWORD", "AUTHGATE_REDIS_DB",
		"AUTHGATE_KEY_DIR", "AUTHGATE_ACCESS_TOKEN_TTL", "AUTHGATE_SESSION_TTL", "AUTHGATE_AUTH_CODE_TTL",
		"AUTHGATE_SESSION_CACHE_TTL", "AUTHGATE_COOKIE_SECURE", "AUTHGATE_COOKIE_DOMAIN",
		"AUTHGATE_TOKEN_RATE_LIMIT", "AUTHGATE_LOGIN_RATE_LIMIT",
		"AUTHGATE_LOG_LEVEL", "AUTHGATE_LOG_FORMAT", "AUTHGATE_SWEEP_INTERVAL",
		"AUTHGATE_BOOTSTRAP_ADMINS", "AUTHGATE_BOOTSTRAP_CLIENTS",
	}
	for _, v := range vars {
		os.Unsetenv(v)
	}
}
