// Package lockout rate-limits master password attempts: after Threshold
// consecutive failures further attempts are refused for Cooldown.
//
// State is held in memory for the life of the process and evaluated lazily;
// there is no background timer.
package lockout

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/audit"
	"github.com/dmitrijs2005/gophvault/internal/clock"
)

const (
	DefaultThreshold = 5
	DefaultCooldown  = 300 * time.Second
)

// State is a snapshot of the policy counters.
type State struct {
	FailedAttempts int
	// LockedUntil is zero while the policy is open.
	LockedUntil time.Time
}

// Locked reports whether the snapshot was taken during a cooldown.
func (s State) Locked() bool { return !s.LockedUntil.IsZero() }

type Policy struct {
	threshold int
	cooldown  time.Duration
	clock     clock.Clock
	audit     audit.Sink

	mu          sync.Mutex
	failed      int
	lockedUntil time.Time
}

// New returns an open policy. Non-positive values fall back to the defaults.
func New(threshold int, cooldown time.Duration, c clock.Clock, sink audit.Sink) *Policy {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Policy{threshold: threshold, cooldown: cooldown, clock: c, audit: sink}
}

// Check is the gate in front of every verification attempt. While locked it
// returns the remaining cooldown; a lapsed lock is released here.
func (p *Policy) Check(ctx context.Context) (remaining time.Duration, locked bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.lockedUntil.IsZero() {
		return 0, false
	}

	now := p.clock.Now()
	if now.Before(p.lockedUntil) {
		return p.lockedUntil.Sub(now), true
	}

	p.lockedUntil = time.Time{}
	p.audit.Record(ctx, audit.EventLockoutReleased, nil)
	return 0, false
}

// RecordFailure counts a failed verification. When the count reaches the
// threshold the policy locks and the counter resets in the same step.
// It returns how many attempts remain before a lock (0 when it just locked).
func (p *Policy) RecordFailure(ctx context.Context) (attemptsLeft int, lockedNow bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failed++
	if p.failed < p.threshold {
		return p.threshold - p.failed, false
	}

	p.failed = 0
	p.lockedUntil = p.clock.Now().Add(p.cooldown)
	p.audit.Record(ctx, audit.EventLockoutEngaged, audit.Details{
		"cooldown_seconds": strconv.Itoa(int(p.cooldown / time.Second)),
	})
	return 0, true
}

// RecordSuccess resets the failure counter.
func (p *Policy) RecordSuccess() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed = 0
}

func (p *Policy) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return State{FailedAttempts: p.failed, LockedUntil: p.lockedUntil}
}

func (p *Policy) Threshold() int { return p.threshold }

func (p *Policy) Cooldown() time.Duration { return p.cooldown }
