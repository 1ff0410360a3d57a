package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/vaultmark/vaultmark/internal/errors"
)

// noEnvFile keeps a stray .env in the package directory out of the tests.
func noEnvFile(t *testing.T) string {
	t.Helper()
	return "--env-file=" + filepath.Join(t.TempDir(), "missing.env")
}

func validConfig() *Config {
	return &Config{
		App:    AppConfig{Environment: "development"},
		Logger: LoggerConfig{Level: "info"},
		Data:   DataConfig{BasePath: "/var/lib/vaultmark"},
		Server: ServerConfig{
			Host:        "127.0.0.1",
			Port:        "8787",
			ReadTimeout: 15 * time.Second,
			IdleTimeout: time.Minute,
		},
		Provider: ProviderConfig{
			AuthorizeURL: "https://x.com/i/oauth2/authorize",
			TokenURL:     "https://api.x.com/2/oauth2/token",
			RevokeURL:    "https://api.x.com/2/oauth2/revoke",
			APIBaseURL:   "https://api.x.com/2",
			RedirectURI:  "vaultmark://oauth/callback",
			Scopes:       []string{"bookmark.read"},
		},
		Sync: SyncConfig{
			RateWindow:     15 * time.Minute,
			EmptyCooldown:  time.Minute,
			ErrorCooldown:  5 * time.Minute,
			PollInterval:   time.Hour,
			BypassInterval: time.Minute,
			RequestTimeout: 10 * time.Second,
		},
		Vault: VaultConfig{
			StorageMethod:    StorageSeparate,
			FilenameTemplate: "{{date}}-{{username}}-{{id}}",
		},
		Secrets: SecretsConfig{Backend: SecretsSettings},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"unknown environment", func(c *Config) { c.App.Environment = "test" }, "App.Environment"},
		{"environment is case sensitive", func(c *Config) { c.App.Environment = "DEVELOPMENT" }, "App.Environment"},
		{"bad log level", func(c *Config) { c.Logger.Level = "verbose" }, "Logger.Level"},
		{"empty data path", func(c *Config) { c.Data.BasePath = "" }, "Data.BasePath"},
		{"non numeric port", func(c *Config) { c.Server.Port = "http" }, "Server.Port"},
		{"zero rate window", func(c *Config) { c.Sync.RateWindow = 0 }, "Sync.RateWindow"},
		{"redirect with fragment", func(c *Config) { c.Provider.RedirectURI = "http://127.0.0.1/cb#x" }, "Provider.RedirectURI"},
		{"token url not a url", func(c *Config) { c.Provider.TokenURL = "token" }, "Provider.TokenURL"},
		{"no scopes", func(c *Config) { c.Provider.Scopes = nil }, "Provider.Scopes"},
		{"unknown storage method", func(c *Config) { c.Vault.StorageMethod = "daily" }, "Vault.StorageMethod"},
		{"unknown secrets backend", func(c *Config) { c.Secrets.Backend = "vault" }, "Secrets.Backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var domainErr *domainerrors.Error
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, domainerrors.CodeValidation, domainErr.Code)
			assert.Contains(t, domainErr.Details, tt.wantField)
		})
	}
}

func TestValidate_EmptyClientIDAllowed(t *testing.T) {
	cfg := validConfig()
	cfg.Provider.ClientID = ""
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Defaults(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("DATA_PATH", dataDir)

	cfg, err := Load([]string{noEnvFile(t)})
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, dataDir, cfg.Data.BasePath)
	assert.Equal(t, "127.0.0.1:8787", cfg.Server.Addr())
	assert.Equal(t, 15*time.Minute, cfg.Sync.RateWindow)
	assert.Equal(t, time.Minute, cfg.Sync.EmptyCooldown)
	assert.Equal(t, 5*time.Minute, cfg.Sync.ErrorCooldown)
	assert.Equal(t, time.Hour, cfg.Sync.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.Sync.RequestTimeout)
	assert.True(t, cfg.Sync.AutoSync)
	assert.False(t, cfg.Sync.Bypass)
	assert.Equal(t, StorageSeparate, cfg.Vault.StorageMethod)
	assert.Equal(t, SecretsSettings, cfg.Secrets.Backend)
	assert.Contains(t, cfg.Provider.Scopes, "bookmark.read")
	assert.Contains(t, cfg.Provider.Scopes, "offline.access")
}

func TestLoad_FlagOverridesEnv(t *testing.T) {
	t.Setenv("DATA_PATH", t.TempDir())
	t.Setenv("SYNC_RATE_WINDOW", "20m")
	t.Setenv("X_CLIENT_ID", "from-env")

	cfg, err := Load([]string{noEnvFile(t), "--rate-window=30m"})
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, cfg.Sync.RateWindow)
	assert.Equal(t, "from-env", cfg.Provider.ClientID)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("DATA_PATH", t.TempDir())
	t.Setenv("SYNC_POLL_INTERVAL", "hourly")

	_, err := Load([]string{noEnvFile(t)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SYNC_POLL_INTERVAL")
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "test.env")
	content := "# comment\nVAULT_FOLDER=\"Inbox/X\"\nSYNC_AUTO=no\n"
	require.NoError(t, os.WriteFile(envPath, []byte(content), 0o600))

	t.Setenv("DATA_PATH", dir)
	// Registers cleanup for the values loadEnvFile sets.
	t.Setenv("VAULT_FOLDER", "")
	t.Setenv("SYNC_AUTO", "")

	cfg, err := Load([]string{"--env-file=" + envPath})
	require.NoError(t, err)

	assert.Equal(t, "Inbox/X", cfg.Vault.Folder)
	assert.False(t, cfg.Sync.AutoSync)
}

func TestLoad_ExpandsVaultPath(t *testing.T) {
	t.Setenv("DATA_PATH", t.TempDir())

	cfg, err := Load([]string{noEnvFile(t), "--vault-path=notes/../vault"})
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(cfg.Vault.Path))
	assert.Equal(t, "vault", filepath.Base(cfg.Vault.Path))
}

func TestGetBoolConfigValue(t *testing.T) {
	assert.True(t, getBoolConfigValue("YES", "UNUSED_KEY_FOR_TEST", false))
	assert.False(t, getBoolConfigValue("off", "UNUSED_KEY_FOR_TEST", true))
	assert.True(t, getBoolConfigValue("", "UNUSED_KEY_FOR_TEST", true))
}
