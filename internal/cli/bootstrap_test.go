package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dmitrijs2005/gophvault/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_EnrollThenStatus(t *testing.T) {
	capturePrintln(t)
	stubPasswords(t, "correct horse", "correct horse")

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	cfg.KDFIterations = 1000

	var out bytes.Buffer
	app, closeFn, err := Open(context.Background(), cfg, strings.NewReader("init\nstatus\nexit\n"), &out, io.Discard)
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })

	require.NoError(t, app.Run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "Vault is set up and unlocked.")
	assert.Contains(t, text, "Set up: yes")
	assert.Contains(t, text, "Session: unlocked until")

	_, err = os.Stat(cfg.MasterDBPath())
	require.NoError(t, err)

	auditLog, err := os.ReadFile(cfg.AuditLogPath())
	require.NoError(t, err)
	assert.Contains(t, string(auditLog), "master_created")
	assert.NotContains(t, string(auditLog), "correct horse")
}

func TestOpen_BadDataDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plain-file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.DataDir = file

	_, _, err := Open(context.Background(), cfg, strings.NewReader(""), io.Discard, io.Discard)
	assert.Error(t, err)
}
