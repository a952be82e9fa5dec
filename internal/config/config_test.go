package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "8081", cfg.HTTPPort)
	assert.Equal(t, 30*time.Second, cfg.TOTPStep)
	assert.Equal(t, 6, cfg.TOTPDigits)
	assert.Equal(t, 1, cfg.TOTPDrift)
	assert.Equal(t, time.Duration(0), cfg.RosterCacheTTL)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("ROSTER_CACHE_TTL", "2m")
	t.Setenv("TOTP_DRIFT", "2")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("VALIDATE_TIMEOUT", "not-a-duration")
	t.Setenv("RATE_LIMIT_PER_MIN", "abc")

	cfg := Load()
	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, 2*time.Minute, cfg.RosterCacheTTL)
	assert.Equal(t, 2, cfg.TOTPDrift)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 5*time.Second, cfg.ValidateTimeout, "invalid duration falls back")
	assert.Equal(t, 30, cfg.RateLimitPerMin, "invalid int falls back")
	require.NoError(t, cfg.Validate())
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]func(*App){
		"unknown store":  func(a *App) { a.StoreBackend = "mongo" },
		"sqlite no path": func(a *App) { a.StoreBackend = "sqlite"; a.SQLitePath = "" },
		"mysql no dsn":   func(a *App) { a.StoreBackend = "mysql"; a.MySQLDSN = "" },
		"short key":      func(a *App) { a.JWTSigningKey = "short" },
		"digits":         func(a *App) { a.TOTPDigits = 4 },
		"step":           func(a *App) { a.TOTPStep = 0 },
		"timeout":        func(a *App) { a.ValidateTimeout = 0 },
		"port":           func(a *App) { a.HTTPPort = "http" },
		"log level":      func(a *App) { a.LogLevel = "verbose" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Load()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestProduction(t *testing.T) {
	assert.True(t, App{Env: "prod"}.Production())
	assert.True(t, App{Env: "production"}.Production())
	assert.False(t, App{Env: "dev"}.Production())
}
