// Package session caches the vault encryption key for a bounded time so
// the master password is not requested on every operation.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/audit"
	"github.com/dmitrijs2005/gophvault/internal/clock"
	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/credentials"
	"github.com/dmitrijs2005/gophvault/internal/lockout"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/secret"
)

const DefaultTimeout = 600 * time.Second

// PasswordPrompt asks the user for the master password. purpose says why the
// key is needed. Returning an empty password or common.ErrPromptCancelled
// means the user declined.
type PasswordPrompt func(ctx context.Context, purpose string) ([]byte, error)

// CredentialVerifier is the part of credentials.Store the cache needs.
type CredentialVerifier interface {
	Verify(ctx context.Context, password []byte) (bool, error)
	Load(ctx context.Context) (*credentials.MasterCredential, error)
}

// Cache holds at most one derived key. Expiry is checked on access.
type Cache struct {
	creds   CredentialVerifier
	policy  *lockout.Policy
	timeout time.Duration
	clock   clock.Clock
	audit   audit.Sink
	log     logging.Logger

	mu        sync.Mutex
	key       *secret.Buffer
	expiresAt time.Time
}

func New(creds CredentialVerifier, policy *lockout.Policy, timeout time.Duration, c clock.Clock, sink audit.Sink, log logging.Logger) *Cache {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Cache{
		creds:   creds,
		policy:  policy,
		timeout: timeout,
		clock:   c,
		audit:   sink,
		log:     log,
	}
}

// GetOrPrompt returns a copy of the session key, prompting for the master
// password when no unexpired key is cached. The caller must wipe the
// returned slice.
//
// Errors: *common.LockedOutError (matches common.ErrLockedOut) while the
// lockout policy is engaged; common.ErrPromptCancelled when the user
// declines; common.ErrVerificationFailed for a wrong password.
func (c *Cache) GetOrPrompt(ctx context.Context, prompt PasswordPrompt, purpose string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.key != nil {
		if c.clock.Now().Before(c.expiresAt) {
			key, err := c.key.Copy()
			if err == nil {
				c.audit.Record(ctx, audit.EventSessionReused, audit.Details{"purpose": purpose})
				return key, nil
			}
		}
		c.dropLocked()
		c.audit.Record(ctx, audit.EventSessionExpired, audit.Details{"purpose": purpose})
	}

	if remaining, locked := c.policy.Check(ctx); locked {
		c.audit.Record(ctx, audit.EventLockoutRejected, audit.Details{
			"purpose":           purpose,
			"remaining_seconds": strconv.Itoa(int(remaining.Round(time.Second) / time.Second)),
		})
		return nil, &common.LockedOutError{Remaining: remaining}
	}

	password, err := prompt(ctx, purpose)
	defer common.WipeByteArray(password)
	if err != nil {
		if errors.Is(err, common.ErrPromptCancelled) {
			c.audit.Record(ctx, audit.EventPromptCancelled, audit.Details{"purpose": purpose})
			return nil, err
		}
		c.audit.Record(ctx, audit.EventSessionDenied, audit.Details{"purpose": purpose, "reason": "prompt_error"})
		return nil, fmt.Errorf("prompt: %w", err)
	}
	if len(password) == 0 {
		c.audit.Record(ctx, audit.EventPromptCancelled, audit.Details{"purpose": purpose})
		return nil, common.ErrPromptCancelled
	}

	ok, err := c.creds.Verify(ctx, password)
	if err != nil {
		c.audit.Record(ctx, audit.EventSessionDenied, audit.Details{"purpose": purpose, "reason": "verify_error"})
		return nil, err
	}
	if !ok {
		left, lockedNow := c.policy.RecordFailure(ctx)
		c.audit.Record(ctx, audit.EventSessionDenied, audit.Details{
			"purpose":       purpose,
			"reason":        "verification_failed",
			"attempts_left": strconv.Itoa(left),
		})
		if lockedNow {
			return nil, fmt.Errorf("%w: too many failed attempts, locked for %s", common.ErrVerificationFailed, c.policy.Cooldown())
		}
		return nil, fmt.Errorf("%w: %d attempts left", common.ErrVerificationFailed, left)
	}

	cred, err := c.creds.Load(ctx)
	if err != nil {
		c.audit.Record(ctx, audit.EventSessionDenied, audit.Details{"purpose": purpose, "reason": "load_error"})
		return nil, err
	}

	c.policy.RecordSuccess()
	c.key = secret.NewFromBytes(credentials.DeriveEncryptionKey(password, cred))
	c.expiresAt = c.clock.Now().Add(c.timeout)
	if !c.key.Locked() {
		c.log.Debug(ctx, "session key is not memory-locked")
	}

	c.audit.Record(ctx, audit.EventSessionIssued, audit.Details{
		"purpose":    purpose,
		"expires_at": c.expiresAt.Format(time.RFC3339),
	})

	return c.key.Copy()
}

// Invalidate wipes the cached key. It is safe to call with nothing cached.
func (c *Cache) Invalidate(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.key == nil {
		return
	}
	c.dropLocked()
	c.audit.Record(ctx, audit.EventSessionInvalidated, nil)
}

// Close releases the key when the owner shuts down.
func (c *Cache) Close(ctx context.Context) {
	c.Invalidate(ctx)
}

// Expiry returns when the cached key lapses; ok is false when no usable key
// is cached.
func (c *Cache) Expiry() (expiresAt time.Time, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.key == nil || !c.clock.Now().Before(c.expiresAt) {
		return time.Time{}, false
	}
	return c.expiresAt, true
}

func (c *Cache) dropLocked() {
	c.key.Close()
	c.key = nil
	c.expiresAt = time.Time{}
}
