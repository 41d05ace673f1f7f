package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/flagx"
)

// parseFlags populates Config fields from command-line flags. args are
// filtered through flagx.FilterArgs first so flags owned by other components
// (such as -c) do not trip the parser.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-d", "-k", "-m", "-l", "-s", "-x", "-v"})

	fs := flag.NewFlagSet("gophvault", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory")
	fs.IntVar(&cfg.KDFIterations, "k", cfg.KDFIterations, "PBKDF2 iterations for new master passwords")
	fs.IntVar(&cfg.MaxAttempts, "m", cfg.MaxAttempts, "failed attempts before lockout")
	lockout := fs.Int("l", int(cfg.LockoutCooldown.Seconds()), "lockout cooldown (in seconds)")
	session := fs.Int("s", int(cfg.SessionTimeout.Seconds()), "session key lifetime (in seconds)")
	clip := fs.Int("x", int(cfg.ClipboardClearAfter.Seconds()), "clipboard clear delay (in seconds)")
	fs.StringVar(&cfg.LogLevel, "v", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	// only flags that were given replace durations, so sub-second values
	// from a config file survive
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "l":
			cfg.LockoutCooldown = time.Duration(*lockout) * time.Second
		case "s":
			cfg.SessionTimeout = time.Duration(*session) * time.Second
		case "x":
			cfg.ClipboardClearAfter = time.Duration(*clip) * time.Second
		}
	})
	return nil
}
