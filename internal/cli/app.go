// Package cli implements the interactive terminal front end of GophVault.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/config"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/services"
	"github.com/dmitrijs2005/gophvault/internal/session"
)

// secretCopier hands a revealed secret to the clipboard for a limited time.
type secretCopier interface {
	RevealThenClear(ctx context.Context, value []byte, d time.Duration) error
	Close(ctx context.Context)
}

type App struct {
	config *config.Config
	vault  services.VaultService
	clip   secretCopier
	prompt session.PasswordPrompt
	reader *bufio.Reader
	out    io.Writer
	log    logging.Logger

	shutdown sync.Once
}

func NewApp(c *config.Config, vault services.VaultService, clip secretCopier, in io.Reader, out io.Writer, log logging.Logger) *App {
	return &App{
		config: c,
		vault:  vault,
		clip:   clip,
		prompt: TerminalPrompt(out),
		reader: bufio.NewReader(in),
		out:    out,
		log:    log,
	}
}

// Run serves the REPL until the user exits or ctx is done, then shuts down.
func (a *App) Run(ctx context.Context) error {
	runREPL(ctx, a, func() string { return a.statusLine(ctx) }, a.reader)
	return a.Shutdown(context.WithoutCancel(ctx))
}

// Shutdown clears any pending clipboard contents and closes the vault
// session. Only the first call has an effect.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	a.shutdown.Do(func() {
		a.clip.Close(ctx)
		err = a.vault.Close(ctx)
	})
	return err
}

func (a *App) isEnrolled(ctx context.Context) bool {
	ok, err := a.vault.Enrolled(ctx)
	if err != nil {
		a.log.Warn(ctx, "cannot read enrollment state", "error", err)
		return false
	}
	return ok
}

func (a *App) statusLine(ctx context.Context) string {
	st, err := a.vault.Status(ctx)
	switch {
	case err != nil:
		return "unknown"
	case !st.Enrolled:
		return "not set up"
	case st.Lockout.Locked():
		return "locked out"
	case st.Unlocked:
		return fmt.Sprintf("unlocked until %s", st.ExpiresAt.Local().Format(time.TimeOnly))
	default:
		return "locked"
	}
}
