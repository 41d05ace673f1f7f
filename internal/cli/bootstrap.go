package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/gophvault/internal/audit"
	"github.com/dmitrijs2005/gophvault/internal/clipboard"
	"github.com/dmitrijs2005/gophvault/internal/clock"
	"github.com/dmitrijs2005/gophvault/internal/config"
	"github.com/dmitrijs2005/gophvault/internal/credentials"
	"github.com/dmitrijs2005/gophvault/internal/dbx"
	"github.com/dmitrijs2005/gophvault/internal/filex"
	"github.com/dmitrijs2005/gophvault/internal/lockout"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/services"
	"github.com/dmitrijs2005/gophvault/internal/session"
	"github.com/dmitrijs2005/gophvault/internal/vault"
)

// Open wires the application for cfg: it prepares the data directory, opens
// the master credential database and builds every service on top of it.
// The returned close function releases the database.
func Open(ctx context.Context, cfg *config.Config, in io.Reader, out, logOut io.Writer) (*App, func() error, error) {
	log := logging.NewLogger(cfg.LogLevel, logOut)

	dir, err := filex.EnsureDir(cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("data dir: %w", err)
	}
	cfg.DataDir = dir

	db, err := dbx.OpenSQLite(ctx, cfg.MasterDBPath())
	if err != nil {
		return nil, nil, fmt.Errorf("db init error: %w", err)
	}

	sink, err := newAuditSink(cfg, log)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	c := clock.Real()
	creds := credentials.NewStore(db, cfg.KDFIterations, sink, log.With("component", "credentials"))
	policy := lockout.New(cfg.MaxAttempts, cfg.LockoutCooldown, c, sink)
	cache := session.New(creds, policy, cfg.SessionTimeout, c, sink, log.With("component", "session"))
	store := vault.NewStore(cfg.VaultPath(), c, sink, log.With("component", "vault"))
	migrator := vault.NewMigrator(store, cfg.LegacyKeyPath(), log.With("component", "migration"))

	svc := services.NewVaultService(services.Deps{
		Credentials: creds,
		Policy:      policy,
		Cache:       cache,
		Store:       store,
		Migrator:    migrator,
		Logger:      log,
	})
	clip := clipboard.NewRevealer(c, sink, log.With("component", "clipboard"))

	log.Debug(ctx, "application ready", "data_dir", dir)
	return NewApp(cfg, svc, clip, in, out, log), closer(db), nil
}

// newAuditSink writes the audit log file and, at debug level, mirrors it to
// the logger.
func newAuditSink(cfg *config.Config, log logging.Logger) (audit.Sink, error) {
	file, err := audit.NewFileSink(cfg.AuditLogPath(), clock.Real(), log)
	if err != nil {
		return nil, fmt.Errorf("audit log: %w", err)
	}
	if strings.EqualFold(cfg.LogLevel, "debug") {
		return audit.Multi{file, audit.NewLogSink(log)}, nil
	}
	return file, nil
}

func closer(db *sql.DB) func() error {
	return func() error { return db.Close() }
}
