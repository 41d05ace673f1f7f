// Package services contains the application services behind the CLI.
// This file defines the vault session: enrollment, unlocking, record
// operations, password change and locking, all funnelled through one
// session key cache.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/cards"
	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/credentials"
	"github.com/dmitrijs2005/gophvault/internal/lockout"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/session"
	"github.com/dmitrijs2005/gophvault/internal/vault"
)

// Purposes passed to the password prompt and recorded in the audit log.
const (
	PurposeUnlock         = "unlock vault"
	PurposeList           = "list records"
	PurposeTokenize       = "store a new record"
	PurposeReveal         = "reveal a record"
	PurposeDelete         = "delete a record"
	PurposeChangePassword = "change master password"
	PurposeEnroll         = "first-time setup"
)

// VaultService is the vault session handed to the UI.
//
// Every operation that needs the vault key takes a prompt; it is only called
// when the cached key is missing or expired. Errors follow the common
// sentinels: ErrNoCredentialEnrolled before setup, ErrVerificationFailed,
// ErrLockedOut, ErrPromptCancelled, ErrDecryptionFailed,
// ErrUnrecoverableVault and ErrPersistenceFailed.
type VaultService interface {
	Enrolled(ctx context.Context) (bool, error)
	Enroll(ctx context.Context, password []byte) error
	Unlock(ctx context.Context, prompt session.PasswordPrompt) error
	List(ctx context.Context, prompt session.PasswordPrompt) ([]vault.Summary, error)
	TokenizeCard(ctx context.Context, prompt session.PasswordPrompt, card cards.CardPayload) (vault.Summary, error)
	StoreCredential(ctx context.Context, prompt session.PasswordPrompt, cred cards.CredentialPayload) (vault.Summary, error)
	Reveal(ctx context.Context, prompt session.PasswordPrompt, id string) (Revealed, error)
	Delete(ctx context.Context, prompt session.PasswordPrompt, id string) error
	ChangePassword(ctx context.Context, prompt session.PasswordPrompt, newPassword []byte) error
	Status(ctx context.Context) (Status, error)
	Lock(ctx context.Context)
	Close(ctx context.Context) error
}

// Revealed is a decrypted record. Secret is the value worth copying (card
// number or password); Payload is the full decrypted JSON. Both must be
// wiped by the caller with Wipe.
type Revealed struct {
	Summary vault.Summary
	Secret  []byte
	Payload []byte
}

func (r *Revealed) Wipe() {
	common.WipeByteArray(r.Secret)
	common.WipeByteArray(r.Payload)
}

// Status is a non-secret snapshot for display.
type Status struct {
	Enrolled         bool
	Unlocked         bool
	ExpiresAt        time.Time
	Lockout          lockout.State
	LegacyKeyPresent bool
	VaultExists      bool
}

// Deps wires a VaultService.
type Deps struct {
	Credentials *credentials.Store
	Policy      *lockout.Policy
	Cache       *session.Cache
	Store       *vault.Store
	Migrator    *vault.Migrator
	Logger      logging.Logger
}

type vaultService struct {
	creds    *credentials.Store
	policy   *lockout.Policy
	cache    *session.Cache
	store    *vault.Store
	migrator *vault.Migrator
	log      logging.Logger
}

func NewVaultService(d Deps) VaultService {
	return &vaultService{
		creds:    d.Credentials,
		policy:   d.Policy,
		cache:    d.Cache,
		store:    d.Store,
		migrator: d.Migrator,
		log:      d.Logger,
	}
}

func (s *vaultService) Enrolled(ctx context.Context) (bool, error) {
	return s.creds.Exists(ctx)
}

// Enroll creates the master credential and opens a session with it, so the
// user is not asked for the password they just chose.
func (s *vaultService) Enroll(ctx context.Context, password []byte) error {
	if _, err := s.creds.Enroll(ctx, password); err != nil {
		return err
	}

	key, err := s.cache.GetOrPrompt(ctx, repeat(password), PurposeEnroll)
	if err != nil {
		return err
	}
	common.WipeByteArray(key)
	return nil
}

// repeat answers a prompt with a copy of password.
func repeat(password []byte) session.PasswordPrompt {
	return func(context.Context, string) ([]byte, error) {
		return append([]byte(nil), password...), nil
	}
}

// withKey obtains the session key, makes sure the vault opens under it
// (migrating a legacy vault if needed) and runs fn. The key is wiped after.
func (s *vaultService) withKey(ctx context.Context, prompt session.PasswordPrompt, purpose string, fn func(key []byte) error) error {
	enrolled, err := s.creds.Exists(ctx)
	if err != nil {
		return err
	}
	if !enrolled {
		return common.ErrNoCredentialEnrolled
	}

	key, err := s.cache.GetOrPrompt(ctx, prompt, purpose)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(key)

	if _, err := s.load(ctx, key); err != nil {
		return err
	}
	return fn(key)
}

// load reads the vault, falling back to migration when the file does not
// open under key and the legacy key file is present.
func (s *vaultService) load(ctx context.Context, key []byte) ([]vault.Record, error) {
	records, err := s.store.LoadAll(ctx, key)
	if err == nil || !errors.Is(err, common.ErrDecryptionFailed) {
		return records, err
	}

	present, perr := s.migrator.LegacyKeyPresent()
	if perr != nil {
		return nil, errors.Join(err, perr)
	}
	if !present {
		return nil, err
	}

	s.log.Info(ctx, "vault does not open under the session key, trying legacy key")
	legacyKey, lerr := s.migrator.LoadLegacyKey()
	if lerr != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrUnrecoverableVault, lerr)
	}
	defer legacyKey.Wipe()

	if _, err := s.migrator.Migrate(ctx, legacyKey, key); err != nil {
		return nil, err
	}
	return s.store.LoadAll(ctx, key)
}

func (s *vaultService) Unlock(ctx context.Context, prompt session.PasswordPrompt) error {
	return s.withKey(ctx, prompt, PurposeUnlock, func([]byte) error { return nil })
}

func (s *vaultService) List(ctx context.Context, prompt session.PasswordPrompt) ([]vault.Summary, error) {
	var out []vault.Summary
	err := s.withKey(ctx, prompt, PurposeList, func(key []byte) error {
		var err error
		out, err = s.store.List(ctx, key)
		return err
	})
	return out, err
}

func (s *vaultService) tokenize(ctx context.Context, prompt session.PasswordPrompt, payload any, mask string, category vault.Category) (vault.Summary, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return vault.Summary{}, err
	}
	defer common.WipeByteArray(plaintext)

	var rec vault.Record
	err = s.withKey(ctx, prompt, PurposeTokenize, func(key []byte) error {
		var err error
		rec, err = s.store.Tokenize(ctx, key, plaintext, mask, category)
		return err
	})
	return rec.Summary(), err
}

// TokenizeCard validates card and stores it. Only the mask stays readable.
func (s *vaultService) TokenizeCard(ctx context.Context, prompt session.PasswordPrompt, card cards.CardPayload) (vault.Summary, error) {
	if err := card.Validate(); err != nil {
		return vault.Summary{}, err
	}
	return s.tokenize(ctx, prompt, card, card.Mask(), vault.CategoryCard)
}

func (s *vaultService) StoreCredential(ctx context.Context, prompt session.PasswordPrompt, cred cards.CredentialPayload) (vault.Summary, error) {
	if err := cred.Validate(); err != nil {
		return vault.Summary{}, err
	}
	return s.tokenize(ctx, prompt, cred, cred.Mask(), vault.CategoryCredential)
}

func (s *vaultService) Reveal(ctx context.Context, prompt session.PasswordPrompt, id string) (Revealed, error) {
	var out Revealed
	err := s.withKey(ctx, prompt, PurposeReveal, func(key []byte) error {
		rec, err := s.store.FindByID(ctx, key, id)
		if err != nil {
			return err
		}
		payload, err := s.store.Reveal(ctx, key, id)
		if err != nil {
			return err
		}
		out = Revealed{Summary: rec.Summary(), Payload: payload, Secret: secretOf(rec.Category, payload)}
		return nil
	})
	return out, err
}

// secretOf picks the field worth copying out of a decrypted payload.
func secretOf(category vault.Category, payload []byte) []byte {
	switch category {
	case vault.CategoryCard:
		var c cards.CardPayload
		if json.Unmarshal(payload, &c) == nil && c.Number != "" {
			return []byte(c.Number)
		}
	case vault.CategoryCredential:
		var c cards.CredentialPayload
		if json.Unmarshal(payload, &c) == nil {
			return []byte(c.Password)
		}
	}
	return append([]byte(nil), payload...)
}

func (s *vaultService) Delete(ctx context.Context, prompt session.PasswordPrompt, id string) error {
	return s.withKey(ctx, prompt, PurposeDelete, func(key []byte) error {
		return s.store.RemoveRecord(ctx, key, id)
	})
}

// ChangePassword re-verifies the current password, re-encrypts the vault
// under a key derived from newPassword and only then replaces the stored
// credential. If saving the credential fails the vault is re-encrypted back.
func (s *vaultService) ChangePassword(ctx context.Context, prompt session.PasswordPrompt, newPassword []byte) error {
	cred, err := s.creds.NewCredential(newPassword)
	if err != nil {
		return err
	}
	newKey := credentials.DeriveEncryptionKey(newPassword, cred)
	defer common.WipeByteArray(newKey)

	// a password change always asks for the current password
	s.cache.Invalidate(ctx)

	err = s.withKey(ctx, prompt, PurposeChangePassword, func(oldKey []byte) error {
		if err := s.store.Reencrypt(ctx, oldKey, newKey); err != nil {
			return err
		}
		if err := s.creds.Replace(ctx, cred); err != nil {
			if rerr := s.store.Reencrypt(ctx, newKey, oldKey); rerr != nil {
				s.log.Error(ctx, "rollback after failed password change did not complete", "error", rerr)
				return errors.Join(err, rerr)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cache.Invalidate(ctx)
	key, err := s.cache.GetOrPrompt(ctx, repeat(newPassword), PurposeChangePassword)
	if err != nil {
		return err
	}
	common.WipeByteArray(key)
	return nil
}

func (s *vaultService) Status(ctx context.Context) (Status, error) {
	var st Status
	var err error

	if st.Enrolled, err = s.creds.Exists(ctx); err != nil {
		return st, err
	}
	st.ExpiresAt, st.Unlocked = s.cache.Expiry()
	st.Lockout = s.policy.State()
	if st.LegacyKeyPresent, err = s.migrator.LegacyKeyPresent(); err != nil {
		return st, err
	}
	if st.VaultExists, err = s.store.Exists(); err != nil {
		return st, err
	}
	return st, nil
}

// Lock drops the session key; the next operation prompts again.
func (s *vaultService) Lock(ctx context.Context) {
	s.cache.Invalidate(ctx)
}

func (s *vaultService) Close(ctx context.Context) error {
	s.cache.Close(ctx)
	return nil
}
