// Package credentials persists the master credential: the password verifier
// and the parameters needed to re-derive the vault encryption key.
package credentials

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/gophvault/internal/audit"
	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/dbx"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/repositories/metadata"
)

const (
	keySalt       = "master.salt"
	keyVerifier   = "master.verifier"
	keyEncSalt    = "master.enc_salt"
	keyIterations = "master.iterations"

	keyPrefix = "master."
)

// MasterCredential is the single per-installation credential record.
// Salt is used only for verification and EncryptionSalt only for key
// derivation; the two are never equal.
type MasterCredential struct {
	Salt           []byte
	VerifierHash   []byte
	EncryptionSalt []byte
	Iterations     int
}

// Store reads and writes the master credential in the metadata table.
type Store struct {
	db         *sql.DB
	iterations int
	audit      audit.Sink
	log        logging.Logger
}

// NewStore returns a store that enrolls new credentials with the given
// iteration count. Existing credentials keep the count they were created with.
func NewStore(db *sql.DB, iterations int, sink audit.Sink, log logging.Logger) *Store {
	if iterations <= 0 {
		iterations = cryptox.DefaultIterations
	}
	return &Store{db: db, iterations: iterations, audit: sink, log: log}
}

// Exists reports whether a credential has been enrolled.
func (s *Store) Exists(ctx context.Context) (bool, error) {
	v, err := metadata.NewSQLiteRepository(s.db).Get(ctx, keyVerifier)
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

// Load returns the enrolled credential or common.ErrNoCredentialEnrolled.
func (s *Store) Load(ctx context.Context) (*MasterCredential, error) {
	var cred *MasterCredential
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		cred, err = load(ctx, metadata.NewSQLiteRepository(tx))
		return err
	})
	if err != nil {
		return nil, err
	}
	return cred, nil
}

func load(ctx context.Context, repo metadata.Repository) (*MasterCredential, error) {
	all, err := repo.List(ctx, keyPrefix)
	if err != nil {
		return nil, err
	}

	salt, verifier, encSalt, iter := all[keySalt], all[keyVerifier], all[keyEncSalt], all[keyIterations]
	if salt == nil && verifier == nil && encSalt == nil && iter == nil {
		return nil, common.ErrNoCredentialEnrolled
	}
	if salt == nil || verifier == nil || encSalt == nil || iter == nil {
		return nil, fmt.Errorf("master credential is incomplete")
	}

	n, err := strconv.Atoi(string(iter))
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("master credential has invalid iteration count %q", iter)
	}

	return &MasterCredential{
		Salt:           salt,
		VerifierHash:   verifier,
		EncryptionSalt: encSalt,
		Iterations:     n,
	}, nil
}

func save(ctx context.Context, repo metadata.Repository, cred *MasterCredential) error {
	values := []struct {
		key   string
		value []byte
	}{
		{keySalt, cred.Salt},
		{keyVerifier, cred.VerifierHash},
		{keyEncSalt, cred.EncryptionSalt},
		{keyIterations, []byte(strconv.Itoa(cred.Iterations))},
	}
	for _, v := range values {
		if err := repo.Set(ctx, v.key, v.value); err != nil {
			return err
		}
	}
	return nil
}

// NewCredential derives a fresh, unsaved credential for password with two
// independent random salts and the store's iteration count.
func (s *Store) NewCredential(password []byte) (*MasterCredential, error) {
	if len(password) == 0 {
		return nil, common.ErrEmptyPassword
	}

	salt := common.GenerateRandByteArray(cryptox.SaltSize)
	encSalt := common.GenerateRandByteArray(cryptox.SaltSize)
	for bytes.Equal(salt, encSalt) {
		encSalt = common.GenerateRandByteArray(cryptox.SaltSize)
	}

	return &MasterCredential{
		Salt:           salt,
		VerifierHash:   cryptox.Verifier(password, salt, s.iterations),
		EncryptionSalt: encSalt,
		Iterations:     s.iterations,
	}, nil
}

// Enroll creates the credential for password. Enrollment happens once;
// a second call fails with common.ErrAlreadyEnrolled.
func (s *Store) Enroll(ctx context.Context, password []byte) (*MasterCredential, error) {
	cred, err := s.NewCredential(password)
	if err != nil {
		return nil, err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		existing, err := repo.Get(ctx, keyVerifier)
		if err != nil {
			return err
		}
		if existing != nil {
			return common.ErrAlreadyEnrolled
		}
		return save(ctx, repo, cred)
	})
	if err != nil {
		return nil, fmt.Errorf("enroll: %w", err)
	}

	s.log.Info(ctx, "master credential enrolled", "iterations", cred.Iterations)
	s.audit.Record(ctx, audit.EventMasterCreated, audit.Details{"iterations": strconv.Itoa(cred.Iterations)})

	return cred, nil
}

// Verify checks password against the stored verifier in constant time.
// Both outcomes are audited; the password never is.
func (s *Store) Verify(ctx context.Context, password []byte) (bool, error) {
	cred, err := s.Load(ctx)
	if err != nil {
		return false, err
	}

	candidate := cryptox.Verifier(password, cred.Salt, cred.Iterations)
	defer common.WipeByteArray(candidate)

	ok := cryptox.Equal(candidate, cred.VerifierHash)
	if ok {
		s.audit.Record(ctx, audit.EventMasterVerified, audit.Details{"outcome": "success"})
	} else {
		s.audit.Record(ctx, audit.EventMasterFailed, audit.Details{"outcome": "failure"})
	}
	return ok, nil
}

// DeriveEncryptionKey derives the vault key for password from cred's
// encryption salt and iteration count.
func DeriveEncryptionKey(password []byte, cred *MasterCredential) []byte {
	return cryptox.DeriveKey(password, cred.EncryptionSalt, cred.Iterations)
}

// Replace swaps the enrolled credential for cred (built with NewCredential)
// in one transaction. The caller re-encrypts the vault under the new key
// before calling Replace.
func (s *Store) Replace(ctx context.Context, cred *MasterCredential) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		if _, err := load(ctx, repo); err != nil {
			return err
		}
		return save(ctx, repo, cred)
	})
	if err != nil {
		return fmt.Errorf("replace: %w", err)
	}

	s.log.Info(ctx, "master credential replaced", "iterations", cred.Iterations)
	s.audit.Record(ctx, audit.EventMasterChanged, audit.Details{"iterations": strconv.Itoa(cred.Iterations)})

	return nil
}
