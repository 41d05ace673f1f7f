// Package audit defines the sink the vault reports security events to, plus
// reference implementations: an append-only file, a logger adapter, a fan-out
// and a no-op.
//
// Callers must never put passwords, keys or decrypted payloads into event
// details. Record ids, masked display values and outcomes are fine.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/clock"
	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/logging"
)

// Details carries non-secret event attributes.
type Details map[string]string

// Sink receives security events. Implementations must not fail the caller:
// write errors are theirs to handle.
type Sink interface {
	Record(ctx context.Context, event string, details Details)
}

// Event names used across the vault.
const (
	EventMasterCreated      = "master_created"
	EventMasterVerified     = "master_verified"
	EventMasterFailed       = "master_failed"
	EventMasterChanged      = "master_changed"
	EventLockoutEngaged     = "lockout_engaged"
	EventLockoutRejected    = "lockout_rejected"
	EventLockoutReleased    = "lockout_released"
	EventPromptCancelled    = "prompt_cancelled"
	EventSessionIssued      = "session_key_issued"
	EventSessionReused      = "session_key_reused"
	EventSessionExpired     = "session_key_expired"
	EventSessionInvalidated = "session_key_invalidated"
	EventSessionDenied      = "session_key_denied"
	EventVaultLoaded        = "vault_loaded"
	EventVaultLoadFailed    = "vault_load_failed"
	EventVaultSaved         = "vault_saved"
	EventVaultSaveFailed    = "vault_save_failed"
	EventTokenize           = "tokenize"
	EventReveal             = "reveal"
	EventRevealFailed       = "reveal_failed"
	EventDelete             = "delete"
	EventMigrationStarted   = "migration_started"
	EventMigrationBackup    = "migration_backup_written"
	EventMigrationDone      = "migrated_vault_file"
	EventMigrationFailed    = "migration_failed"
	EventLegacyKeyRemoved   = "legacy_key_removed"
	EventClipboardCopy      = "copy_to_clipboard"
	EventClipboardCleared   = "clipboard_cleared"
)

// FileSink appends one line per event:
//
//	2025-03-01 12:00:00 | event | user | {"key":"value"}
type FileSink struct {
	mu    sync.Mutex
	path  string
	user  string
	clock clock.Clock
	log   logging.Logger
}

// NewFileSink creates the parent directory if needed. Lines are attributed
// to the current OS user.
func NewFileSink(path string, c clock.Clock, log logging.Logger) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), common.PrivateDirMode); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	return &FileSink{path: path, user: currentUser(), clock: c, log: log}, nil
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}

func (s *FileSink) Record(ctx context.Context, event string, details Details) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if details == nil {
		details = Details{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		s.log.Warn(ctx, "audit marshal failed", "event", event, "error", err)
		return
	}
	line := fmt.Sprintf("%s | %s | %s | %s\n", s.clock.Now().Format(time.DateTime), event, s.user, payload)

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, common.PrivateFileMode)
	if err != nil {
		s.log.Warn(ctx, "audit open failed", "event", event, "error", err)
		return
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		s.log.Warn(ctx, "audit write failed", "event", event, "error", err)
	}
}

// LogSink forwards events to a structured logger at info level.
type LogSink struct {
	log logging.Logger
}

func NewLogSink(log logging.Logger) *LogSink {
	return &LogSink{log: log.With("component", "audit")}
}

func (s *LogSink) Record(ctx context.Context, event string, details Details) {
	args := make([]any, 0, len(details)*2)
	for k, v := range details {
		args = append(args, k, v)
	}
	s.log.Info(ctx, event, args...)
}

// Multi fans an event out to every sink in order.
type Multi []Sink

func (m Multi) Record(ctx context.Context, event string, details Details) {
	for _, s := range m {
		s.Record(ctx, event, details)
	}
}

type nop struct{}

// Nop returns a sink that drops every event.
func Nop() Sink { return nop{} }

func (nop) Record(context.Context, string, Details) {}
