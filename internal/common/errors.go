// Package common defines shared sentinel errors and small helpers used across
// GophVault components. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Master credential lifecycle.
	ErrNoCredentialEnrolled = errors.New("no master credential enrolled")
	ErrAlreadyEnrolled      = errors.New("master credential already enrolled")
	ErrEmptyPassword        = errors.New("empty password")

	// Verification flow. Only ErrVerificationFailed consumes an attempt.
	ErrVerificationFailed = errors.New("master password verification failed")
	ErrLockedOut          = errors.New("locked out")
	ErrPromptCancelled    = errors.New("password prompt cancelled")

	// Vault access.
	ErrDecryptionFailed   = errors.New("decryption failed")
	ErrUnrecoverableVault = errors.New("unrecoverable vault")
	ErrPersistenceFailed  = errors.New("persistence failed")

	// Input validation.
	ErrInvalidCard     = errors.New("invalid card")
	ErrInvalidCategory = errors.New("invalid category")
)

// LockedOutError reports an attempt rejected during a lockout cooldown.
// It matches ErrLockedOut via errors.Is.
type LockedOutError struct {
	Remaining time.Duration
}

func (e *LockedOutError) Error() string {
	return fmt.Sprintf("too many failed attempts, try again in %d seconds", int(e.Remaining.Round(time.Second).Seconds()))
}

func (e *LockedOutError) Is(target error) bool {
	return target == ErrLockedOut
}
