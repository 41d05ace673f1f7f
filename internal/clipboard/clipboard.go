// Package clipboard copies a revealed secret to the system clipboard and
// clears it after a fixed delay, whatever the user does in between.
package clipboard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/atotto/clipboard"

	"github.com/dmitrijs2005/gophvault/internal/audit"
	"github.com/dmitrijs2005/gophvault/internal/clock"
	"github.com/dmitrijs2005/gophvault/internal/logging"
)

const DefaultClearAfter = 15 * time.Second

// ErrUnsupported is returned when no clipboard utility is available.
var ErrUnsupported = errors.New("clipboard not available")

// writeAll and unsupported are seams over the system clipboard.
var (
	writeAll    = clipboard.WriteAll
	unsupported = func() bool { return clipboard.Unsupported }
)

type Revealer struct {
	clock clock.Clock
	audit audit.Sink
	log   logging.Logger

	mu     sync.Mutex
	seq    uint64
	timers map[uint64]clock.Timer
}

func NewRevealer(c clock.Clock, sink audit.Sink, log logging.Logger) *Revealer {
	return &Revealer{clock: c, audit: sink, log: log, timers: make(map[uint64]clock.Timer)}
}

// RevealThenClear puts value on the clipboard and schedules an
// unconditional clear after d. Only the value length is audited.
func (r *Revealer) RevealThenClear(ctx context.Context, value []byte, d time.Duration) error {
	if unsupported() {
		return ErrUnsupported
	}
	if d <= 0 {
		d = DefaultClearAfter
	}

	if err := writeAll(string(value)); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	r.audit.Record(ctx, audit.EventClipboardCopy, audit.Details{
		"length":      strconv.Itoa(len(value)),
		"clear_after": d.String(),
	})

	bg := context.WithoutCancel(ctx)

	// d > 0, so the callback cannot run before the timer is registered
	r.mu.Lock()
	r.seq++
	id := r.seq
	r.timers[id] = r.clock.AfterFunc(d, func() { r.fire(bg, id) })
	r.mu.Unlock()
	return nil
}

// fire drops the timer from the pending set before clearing.
func (r *Revealer) fire(ctx context.Context, id uint64) {
	r.mu.Lock()
	delete(r.timers, id)
	r.mu.Unlock()
	r.clear(ctx)
}

func (r *Revealer) clear(ctx context.Context) {
	if err := writeAll(""); err != nil {
		r.log.Warn(ctx, "clipboard clear failed", "error", err)
		return
	}
	r.audit.Record(ctx, audit.EventClipboardCleared, nil)
}

// Close clears the clipboard immediately if a clear is still pending.
func (r *Revealer) Close(ctx context.Context) {
	r.mu.Lock()
	timers := r.timers
	r.timers = make(map[uint64]clock.Timer)
	r.mu.Unlock()

	pending := false
	for _, t := range timers {
		if t.Stop() {
			pending = true
		}
	}
	if pending {
		r.clear(ctx)
	}
}
