package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds runtime settings for the vault CLI.
type Config struct {
	DataDir             string
	KDFIterations       int
	MaxAttempts         int
	LockoutCooldown     time.Duration
	SessionTimeout      time.Duration
	ClipboardClearAfter time.Duration
	LogLevel            string
}

// LoadDefaults populates c with the built-in defaults.
func (c *Config) LoadDefaults() {
	c.DataDir = defaultDataDir()
	c.KDFIterations = 300_000
	c.MaxAttempts = 5
	c.LockoutCooldown = 300 * time.Second
	c.SessionTimeout = 600 * time.Second
	c.ClipboardClearAfter = 15 * time.Second
	c.LogLevel = "info"
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".gophvault"
	}
	return filepath.Join(home, ".gophvault")
}

// LoadConfig applies defaults, then the config file named by -c/-config (if
// any), then command-line flags. args excludes the program name.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseFile(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MasterDBPath is the SQLite database holding the master credential.
func (c *Config) MasterDBPath() string { return filepath.Join(c.DataDir, "master.db") }

// VaultPath is the encrypted vault file.
func (c *Config) VaultPath() string { return filepath.Join(c.DataDir, "vault.enc") }

// LegacyKeyPath is where a vault from the retired scheme keeps its key.
func (c *Config) LegacyKeyPath() string { return filepath.Join(c.DataDir, "security.key") }

// AuditLogPath is the append-only audit log.
func (c *Config) AuditLogPath() string {
	return filepath.Join(c.DataDir, "logs", "security_audit.log")
}
