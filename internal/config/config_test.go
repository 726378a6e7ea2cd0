// AngelaMos | 2026
// config_test.go

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithMemoryStorage(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", StorageDriverMemory)
	t.Setenv("ENVIRONMENT", "development")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, StorageDriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 720*time.Hour, cfg.Session.MaxAge)
	assert.Equal(t, "user", cfg.Identity.DefaultRole)
	assert.GreaterOrEqual(t, len(cfg.Auth.Secret), 32, "development falls back to a dev secret")
	assert.False(t, cfg.IsProduction())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", StorageDriverMemory)
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("SESSION_MAX_AGE", "2h")
	t.Setenv("SESSION_UPDATE_AGE", "30m")
	t.Setenv("SLACK_NEWCOMER_WEBHOOK_URL", "https://hooks.slack.com/services/T/B/X")
	t.Setenv("PORT", "9090")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 2*time.Hour, cfg.Session.MaxAge)
	assert.Equal(t, 30*time.Minute, cfg.Session.UpdateAge)
	assert.Equal(t, "https://hooks.slack.com/services/T/B/X", cfg.Notify.SlackWebhookURL)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadYAMLFile(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", StorageDriverMemory)
	t.Setenv("ENVIRONMENT", "development")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
session:
  cookie_name: wp.session
identity:
  default_role: admin
  guest_reassign:
    - game_scores.user_id
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "wp.session", cfg.Session.CookieName)
	assert.Equal(t, "admin", cfg.Identity.DefaultRole)
	assert.Equal(t, []string{"game_scores.user_id"}, cfg.Identity.GuestReassign)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "postgres without url",
			env:  map[string]string{"STORAGE_DRIVER": StorageDriverPostgres, "DATABASE_URL": ""},
		},
		{
			name: "memory in production",
			env: map[string]string{
				"STORAGE_DRIVER":        StorageDriverMemory,
				"ENVIRONMENT":           "production",
				"AUTH_SECRET":           "production-secret-that-is-long-enough",
				"SESSION_SECURE_COOKIE": "true",
			},
		},
		{
			name: "production without secret",
			env: map[string]string{
				"STORAGE_DRIVER": StorageDriverPostgres,
				"DATABASE_URL":   "postgres://localhost/workplay",
				"ENVIRONMENT":    "production",
			},
		},
		{
			name: "guest default role",
			env:  map[string]string{"STORAGE_DRIVER": StorageDriverMemory, "DEFAULT_ROLE": "guest"},
		},
		{
			name: "update age beyond max age",
			env: map[string]string{
				"STORAGE_DRIVER":     StorageDriverMemory,
				"SESSION_MAX_AGE":    "1h",
				"SESSION_UPDATE_AGE": "2h",
			},
		},
		{
			name: "unknown driver",
			env:  map[string]string{"STORAGE_DRIVER": "sqlite"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENVIRONMENT", "development")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load("")
			assert.Error(t, err)
		})
	}
}
