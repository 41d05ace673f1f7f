package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults() Config {
	var c Config
	c.LoadDefaults()
	return c
}

func TestLoadDefaults(t *testing.T) {
	c := defaults()

	assert.Equal(t, 300_000, c.KDFIterations)
	assert.Equal(t, 5, c.MaxAttempts)
	assert.Equal(t, 300*time.Second, c.LockoutCooldown)
	assert.Equal(t, 600*time.Second, c.SessionTimeout)
	assert.Equal(t, 15*time.Second, c.ClipboardClearAfter)
	assert.Equal(t, "info", c.LogLevel)
	assert.NotEmpty(t, c.DataDir)
}

func TestLoadConfig_NoArgsGivesDefaults(t *testing.T) {
	cfg, err := LoadConfig(nil)
	require.NoError(t, err)
	want := defaults()
	assert.Empty(t, cmp.Diff(&want, cfg))
}

func TestPaths(t *testing.T) {
	c := Config{DataDir: "/data"}
	assert.Equal(t, filepath.Join("/data", "master.db"), c.MasterDBPath())
	assert.Equal(t, filepath.Join("/data", "vault.enc"), c.VaultPath())
	assert.Equal(t, filepath.Join("/data", "security.key"), c.LegacyKeyPath())
	assert.Equal(t, filepath.Join("/data", "logs", "security_audit.log"), c.AuditLogPath())
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    func(c *Config)
		wantErr bool
	}{
		{
			name: "all flags",
			args: []string{"-d", "/tmp/v", "-k", "1000", "-m", "3", "-l", "60", "-s", "120", "-x", "5", "-v", "debug"},
			want: func(c *Config) {
				c.DataDir = "/tmp/v"
				c.KDFIterations = 1000
				c.MaxAttempts = 3
				c.LockoutCooldown = time.Minute
				c.SessionTimeout = 2 * time.Minute
				c.ClipboardClearAfter = 5 * time.Second
				c.LogLevel = "debug"
			},
		},
		{
			name: "unknown flags are ignored",
			args: []string{"-a", "x", "-s", "30", "-c", "cfg.json"},
			want: func(c *Config) { c.SessionTimeout = 30 * time.Second },
		},
		{
			name:    "non-numeric seconds",
			args:    []string{"-l", "abc"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			err := parseFlags(&cfg, tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			want := defaults()
			tt.want(&want)
			assert.Empty(t, cmp.Diff(want, cfg))
		})
	}
}

func TestParseFlags_KeepsSubSecondDurationsWhenNotGiven(t *testing.T) {
	cfg := defaults()
	cfg.ClipboardClearAfter = 1500 * time.Millisecond

	require.NoError(t, parseFlags(&cfg, []string{"-m", "2"}))
	assert.Equal(t, 1500*time.Millisecond, cfg.ClipboardClearAfter)
}

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func TestParseFile_JSON(t *testing.T) {
	dir := t.TempDir()
	path := writeTempJSON(t, dir, "cfg.json", map[string]any{
		"data_dir":         "/srv/vault",
		"session_timeout":  "10m",
		"lockout_cooldown": 60_000_000_000,
	})

	cfg := defaults()
	require.NoError(t, parseFile(&cfg, []string{"-config", path}))

	want := defaults()
	want.DataDir = "/srv/vault"
	want.SessionTimeout = 10 * time.Minute
	want.LockoutCooldown = time.Minute
	assert.Empty(t, cmp.Diff(want, cfg), "absent keys keep their defaults")
}

func TestParseFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_attempts: 7\nclipboard_clear_after: 30s\nlog_level: warn\n"), 0o600))

	cfg := defaults()
	require.NoError(t, parseFile(&cfg, []string{"-c", path}))

	assert.Equal(t, 7, cfg.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.ClipboardClearAfter)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestParseFile_NoFlagNoChange(t *testing.T) {
	cfg := Config{DataDir: "keep", MaxAttempts: 42}
	require.NoError(t, parseFile(&cfg, []string{"-d", "x"}))
	assert.Equal(t, Config{DataDir: "keep", MaxAttempts: 42}, cfg)
}

func TestParseFile_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

	cfg := defaults()
	require.Error(t, parseFile(&cfg, []string{"-config", bad}))
	require.Error(t, parseFile(&cfg, []string{"-config", filepath.Join(dir, "missing.json")}))

	badDur := writeTempJSON(t, dir, "dur.json", map[string]any{"session_timeout": "soon"})
	require.Error(t, parseFile(&cfg, []string{"-config", badDur}))
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := writeTempJSON(t, t.TempDir(), "cfg.json", map[string]any{
		"data_dir":     "/from/file",
		"max_attempts": 9,
	})

	cfg, err := LoadConfig([]string{"-c", path, "-d", "/from/flag"})
	require.NoError(t, err)
	assert.Equal(t, "/from/flag", cfg.DataDir)
	assert.Equal(t, 9, cfg.MaxAttempts)
}
