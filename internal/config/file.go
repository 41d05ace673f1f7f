package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dmitrijs2005/gophvault/internal/flagx"
	"github.com/dmitrijs2005/gophvault/internal/timex"
)

// fileConfig is the on-disk DTO. Pointer fields tell "absent" apart from a
// zero value so a partial file only overrides what it names.
type fileConfig struct {
	DataDir             *string         `json:"data_dir" yaml:"data_dir"`
	KDFIterations       *int            `json:"kdf_iterations" yaml:"kdf_iterations"`
	MaxAttempts         *int            `json:"max_attempts" yaml:"max_attempts"`
	LockoutCooldown     *timex.Duration `json:"lockout_cooldown" yaml:"lockout_cooldown"`
	SessionTimeout      *timex.Duration `json:"session_timeout" yaml:"session_timeout"`
	ClipboardClearAfter *timex.Duration `json:"clipboard_clear_after" yaml:"clipboard_clear_after"`
	LogLevel            *string         `json:"log_level" yaml:"log_level"`
}

// parseFile overlays cfg with the file selected by -c/-config in args.
// Without the flag it does nothing.
func parseFile(cfg *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}

func (fc *fileConfig) apply(cfg *Config) {
	if fc.DataDir != nil {
		cfg.DataDir = *fc.DataDir
	}
	if fc.KDFIterations != nil {
		cfg.KDFIterations = *fc.KDFIterations
	}
	if fc.MaxAttempts != nil {
		cfg.MaxAttempts = *fc.MaxAttempts
	}
	if fc.LockoutCooldown != nil {
		cfg.LockoutCooldown = fc.LockoutCooldown.Duration
	}
	if fc.SessionTimeout != nil {
		cfg.SessionTimeout = fc.SessionTimeout.Duration
	}
	if fc.ClipboardClearAfter != nil {
		cfg.ClipboardClearAfter = fc.ClipboardClearAfter.Duration
	}
	if fc.LogLevel != nil {
		cfg.LogLevel = *fc.LogLevel
	}
}
