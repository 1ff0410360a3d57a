// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vaultmark/vaultmark/internal/validation"
)

// Storage methods for the note writer.
const (
	StorageSeparate = "separate"
	StorageSingle   = "single"
)

// Secret backends for OAuth tokens.
const (
	SecretsSettings = "settings"
	SecretsKeyring  = "keyring"
)

// Config holds the application configuration.
type Config struct {
	App      AppConfig
	Logger   LoggerConfig
	Data     DataConfig
	Server   ServerConfig
	Provider ProviderConfig
	Sync     SyncConfig
	Vault    VaultConfig
	Secrets  SecretsConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string `validate:"required,oneof=development staging production"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string `validate:"oneof=debug info warn error"`
}

// DataConfig holds the location of the settings and ledger databases.
type DataConfig struct {
	BasePath string `validate:"required"`
}

// ServerConfig holds control API configuration. The API binds to loopback only.
type ServerConfig struct {
	Host         string        `validate:"required"`
	Port         string        `validate:"required,numeric"`
	ReadTimeout  time.Duration `validate:"gt=0"`
	WriteTimeout time.Duration `validate:"gte=0"` // 0 disables; SSE streams are long-lived
	IdleTimeout  time.Duration `validate:"gt=0"`
}

// ProviderConfig holds the OAuth client registration and provider endpoints.
type ProviderConfig struct {
	// ClientID may be empty at startup; authorization fails with a config
	// error until it is set.
	ClientID     string
	ClientSecret string
	AuthorizeURL string   `validate:"required,url"`
	TokenURL     string   `validate:"required,url"`
	RevokeURL    string   `validate:"required,url"`
	APIBaseURL   string   `validate:"required,url"`
	RedirectURI  string   `validate:"required,redirect_uri"`
	Scopes       []string `validate:"min=1"`
}

// SyncConfig holds scheduler and rate gate timings.
type SyncConfig struct {
	RateWindow     time.Duration `validate:"gt=0"`
	EmptyCooldown  time.Duration `validate:"gt=0"`
	ErrorCooldown  time.Duration `validate:"gt=0"`
	PollInterval   time.Duration `validate:"gt=0"`
	BypassInterval time.Duration `validate:"gt=0"`
	RequestTimeout time.Duration `validate:"gt=0"`
	AutoSync       bool
	Bypass         bool
}

// VaultConfig holds the note vault location and note formatting defaults.
// These seed the persisted preferences on first run.
type VaultConfig struct {
	// Path may be empty; sync then fails its storage precondition.
	Path             string
	Folder           string
	StorageMethod    string `validate:"oneof=separate single"`
	FilenameTemplate string `validate:"required,template"`
	NoteTemplate     string `validate:"template"`
}

// SecretsConfig selects where OAuth tokens are kept.
type SecretsConfig struct {
	Backend string `validate:"oneof=settings keyring"`
}

// LoadConfig loads configuration from the process arguments.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("vaultmark", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Base path for settings and ledger storage")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	// Server flags
	serverHost := fs.String("host", "", "Control API bind address (default: 127.0.0.1)")
	serverPort := fs.String("port", "", "Control API port (default: 8787)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 0, disabled)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")

	// Provider flags
	clientID := fs.String("client-id", "", "OAuth client ID")
	clientSecret := fs.String("client-secret", "", "OAuth client secret (confidential clients only)")
	redirectURI := fs.String("redirect-uri", "", "Registered OAuth redirect URI")

	// Sync flags
	rateWindow := fs.String("rate-window", "", "Provider rate window (default: 15m)")
	pollInterval := fs.String("poll-interval", "", "Poll interval once the initial sync is complete (default: 1h)")
	autoSync := fs.String("auto-sync", "", "Schedule syncs automatically (default: true)")
	bypass := fs.String("bypass-rate-limit", "", "Skip rate window checks, for diagnostics (default: false)")

	// Vault flags
	vaultPath := fs.String("vault-path", "", "Path to the note vault")
	vaultFolder := fs.String("vault-folder", "", "Folder inside the vault for bookmark notes (default: Bookmarks)")
	storageMethod := fs.String("storage-method", "", "separate or single (default: separate)")

	secretsBackend := fs.String("secrets-backend", "", "Token storage: settings or keyring (default: settings)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: strings.ToLower(getConfigValue(*logLevel, "LOG_LEVEL", "info")),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Server: ServerConfig{
			Host: getConfigValue(*serverHost, "SERVER_HOST", "127.0.0.1"),
			Port: getConfigValue(*serverPort, "SERVER_PORT", "8787"),
		},
		Provider: ProviderConfig{
			ClientID:     getConfigValue(*clientID, "X_CLIENT_ID", ""),
			ClientSecret: getConfigValue(*clientSecret, "X_CLIENT_SECRET", ""),
			AuthorizeURL: getConfigValue("", "X_AUTHORIZE_URL", "https://x.com/i/oauth2/authorize"),
			TokenURL:     getConfigValue("", "X_TOKEN_URL", "https://api.x.com/2/oauth2/token"),
			RevokeURL:    getConfigValue("", "X_REVOKE_URL", "https://api.x.com/2/oauth2/revoke"),
			APIBaseURL:   getConfigValue("", "X_API_BASE_URL", "https://api.x.com/2"),
			RedirectURI:  getConfigValue(*redirectURI, "X_REDIRECT_URI", "vaultmark://oauth/callback"),
			Scopes:       strings.Fields(getConfigValue("", "X_SCOPES", "tweet.read users.read bookmark.read offline.access")),
		},
		Sync: SyncConfig{
			AutoSync: getBoolConfigValue(*autoSync, "SYNC_AUTO", true),
			Bypass:   getBoolConfigValue(*bypass, "SYNC_BYPASS_RATE_LIMIT", false),
		},
		Vault: VaultConfig{
			Path:             getConfigValue(*vaultPath, "VAULT_PATH", ""),
			Folder:           getConfigValue(*vaultFolder, "VAULT_FOLDER", "Bookmarks"),
			StorageMethod:    getConfigValue(*storageMethod, "VAULT_STORAGE_METHOD", StorageSeparate),
			FilenameTemplate: getConfigValue("", "VAULT_FILENAME_TEMPLATE", "{{date}}-{{username}}-{{id}}"),
			NoteTemplate:     getConfigValue("", "VAULT_NOTE_TEMPLATE", ""),
		},
		Secrets: SecretsConfig{
			Backend: getConfigValue(*secretsBackend, "SECRETS_BACKEND", SecretsSettings),
		},
	}

	durations := []struct {
		dst      *time.Duration
		flag     string
		envKey   string
		fallback string
	}{
		{&cfg.Server.ReadTimeout, *readTimeout, "SERVER_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, *writeTimeout, "SERVER_WRITE_TIMEOUT", "0s"},
		{&cfg.Server.IdleTimeout, *idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"},
		{&cfg.Sync.RateWindow, *rateWindow, "SYNC_RATE_WINDOW", "15m"},
		{&cfg.Sync.EmptyCooldown, "", "SYNC_EMPTY_COOLDOWN", "1m"},
		{&cfg.Sync.ErrorCooldown, "", "SYNC_ERROR_COOLDOWN", "5m"},
		{&cfg.Sync.PollInterval, *pollInterval, "SYNC_POLL_INTERVAL", "1h"},
		{&cfg.Sync.BypassInterval, "", "SYNC_BYPASS_INTERVAL", "1m"},
		{&cfg.Sync.RequestTimeout, "", "SYNC_REQUEST_TIMEOUT", "10s"},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flag, d.envKey, d.fallback)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.envKey, raw, err)
		}
		*d.dst = parsed
	}

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.expandVaultPath(); err != nil {
		return nil, fmt.Errorf("invalid vault path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	return validation.New().Validate(c)
}

// Addr returns the control API listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// BaseURL returns the control API base URL as seen from this machine.
func (s ServerConfig) BaseURL() string {
	return "http://" + s.Addr()
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDataPath defaults to ~/.vaultmark when unset.
func (c *Config) expandDataPath() error {
	if c.Data.BasePath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		c.Data.BasePath = filepath.Join(homeDir, ".vaultmark")
		return nil
	}

	expanded, err := expandPath(c.Data.BasePath, "")
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
}

// expandVaultPath leaves an empty path empty so the daemon can start
// before a vault is chosen.
func (c *Config) expandVaultPath() error {
	if c.Vault.Path == "" {
		return nil
	}

	expanded, err := expandPath(c.Vault.Path, "")
	if err != nil {
		return err
	}
	c.Vault.Path = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
