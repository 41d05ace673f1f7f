// Package vault keeps the encrypted record collection on disk.
//
// The vault file is a single sealed blob holding the JSON list of records.
// Every mutation loads the whole list, changes it in memory and replaces the
// file atomically.
package vault

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/gophvault/internal/audit"
	"github.com/dmitrijs2005/gophvault/internal/clock"
	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/filex"
	"github.com/dmitrijs2005/gophvault/internal/logging"
)

type Store struct {
	path  string
	clock clock.Clock
	audit audit.Sink
	log   logging.Logger

	// mu serializes load-mutate-save sequences.
	mu sync.Mutex

	writeOpts []filex.Option
}

func NewStore(path string, c clock.Clock, sink audit.Sink, log logging.Logger) *Store {
	return &Store{path: path, clock: c, audit: sink, log: log}
}

// Path returns the vault file location.
func (s *Store) Path() string { return s.path }

// Exists reports whether the vault file has been written.
func (s *Store) Exists() (bool, error) { return filex.Exists(s.path) }

// LoadAll decrypts the vault under key. A missing file is an empty vault.
// A file that does not open under key yields common.ErrDecryptionFailed,
// never an empty list.
func (s *Store) LoadAll(ctx context.Context, key []byte) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx, key)
}

func (s *Store) loadLocked(ctx context.Context, key []byte) ([]Record, error) {
	blob, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.audit.Record(ctx, audit.EventVaultLoaded, audit.Details{"records": "0", "file": "absent"})
		return []Record{}, nil
	}
	if err != nil {
		s.audit.Record(ctx, audit.EventVaultLoadFailed, audit.Details{"reason": "read"})
		return nil, fmt.Errorf("read vault: %w", err)
	}

	records, err := decodeVault(key, blob)
	if err != nil {
		s.audit.Record(ctx, audit.EventVaultLoadFailed, audit.Details{
			"reason": "decrypt",
			"scheme": cryptox.DetectScheme(blob).String(),
		})
		return nil, err
	}

	s.audit.Record(ctx, audit.EventVaultLoaded, audit.Details{"records": strconv.Itoa(len(records))})
	return records, nil
}

func decodeVault(key, blob []byte) ([]Record, error) {
	if scheme := cryptox.DetectScheme(blob); scheme == cryptox.SchemeLegacy {
		return nil, fmt.Errorf("%w: vault is in the %s scheme", common.ErrDecryptionFailed, scheme)
	}

	var records []Record
	if err := cryptox.OpenJSON(key, blob, &records); err != nil {
		if errors.Is(err, common.ErrDecryptionFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: malformed vault content: %w", common.ErrDecryptionFailed, err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// SaveAll seals records under key and atomically replaces the vault file.
// On failure the previous file is left as it was and the error matches
// common.ErrPersistenceFailed.
func (s *Store) SaveAll(ctx context.Context, key []byte, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx, key, records)
}

func (s *Store) saveLocked(ctx context.Context, key []byte, records []Record) error {
	for _, r := range records {
		if !r.Category.Valid() {
			return fmt.Errorf("record %s: %w: %q", r.ID, common.ErrInvalidCategory, r.Category)
		}
	}
	if records == nil {
		records = []Record{}
	}

	blob, err := cryptox.SealJSON(key, records)
	if err != nil {
		return fmt.Errorf("seal vault: %w", err)
	}

	if _, err := filex.EnsureDir(filepath.Dir(s.path)); err != nil {
		s.audit.Record(ctx, audit.EventVaultSaveFailed, audit.Details{"reason": "mkdir"})
		return fmt.Errorf("%w: %w", common.ErrPersistenceFailed, err)
	}

	if err := filex.WriteFileAtomic(s.path, blob, common.PrivateFileMode, s.writeOpts...); err != nil {
		s.log.Error(ctx, "vault write failed", "path", s.path, "error", err)
		s.audit.Record(ctx, audit.EventVaultSaveFailed, audit.Details{"reason": "write"})
		return fmt.Errorf("%w: %w", common.ErrPersistenceFailed, err)
	}

	s.audit.Record(ctx, audit.EventVaultSaved, audit.Details{"records": strconv.Itoa(len(records))})
	return nil
}

// AddRecord appends rec and persists the vault.
func (s *Store) AddRecord(ctx context.Context, key []byte, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadLocked(ctx, key)
	if err != nil {
		return err
	}
	return s.saveLocked(ctx, key, append(records, rec))
}

// RemoveRecord deletes the record with id and persists the rest.
func (s *Store) RemoveRecord(ctx context.Context, key []byte, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadLocked(ctx, key)
	if err != nil {
		return err
	}

	i := slices.IndexFunc(records, func(r Record) bool { return r.ID == id })
	if i < 0 {
		return fmt.Errorf("record %s: %w", id, common.ErrNotFound)
	}
	removed := records[i]
	records = slices.Delete(records, i, i+1)

	if err := s.saveLocked(ctx, key, records); err != nil {
		return err
	}

	s.audit.Record(ctx, audit.EventDelete, audit.Details{"id": id, "mask": removed.DisplayMask})
	return nil
}

// FindByID returns the record with id or common.ErrNotFound.
func (s *Store) FindByID(ctx context.Context, key []byte, id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findLocked(ctx, key, id)
}

func (s *Store) findLocked(ctx context.Context, key []byte, id string) (Record, error) {
	records, err := s.loadLocked(ctx, key)
	if err != nil {
		return Record{}, err
	}
	for _, r := range records {
		if r.ID == id {
			return r, nil
		}
	}
	return Record{}, fmt.Errorf("record %s: %w", id, common.ErrNotFound)
}

// List returns the non-secret summaries, oldest first.
func (s *Store) List(ctx context.Context, key []byte) ([]Summary, error) {
	records, err := s.LoadAll(ctx, key)
	if err != nil {
		return nil, err
	}

	out := make([]Summary, 0, len(records))
	for _, r := range records {
		out = append(out, r.Summary())
	}
	slices.SortStableFunc(out, func(a, b Summary) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

// Tokenize stores payload as a new record under a fresh opaque id.
func (s *Store) Tokenize(ctx context.Context, key, payload []byte, mask string, category Category) (Record, error) {
	if !category.Valid() {
		return Record{}, fmt.Errorf("%w: %q", common.ErrInvalidCategory, category)
	}

	ct, err := cryptox.Seal(key, payload)
	if err != nil {
		return Record{}, fmt.Errorf("seal record: %w", err)
	}

	rec := Record{
		ID:          uuid.NewString(),
		DisplayMask: mask,
		Category:    category,
		Ciphertext:  ct,
		CreatedAt:   s.clock.Now().UTC(),
	}

	if err := s.AddRecord(ctx, key, rec); err != nil {
		return Record{}, err
	}

	s.audit.Record(ctx, audit.EventTokenize, audit.Details{
		"id":       rec.ID,
		"mask":     mask,
		"category": string(category),
	})
	return rec, nil
}

// Reveal decrypts one record's payload. The caller owns the plaintext and
// must wipe it after use.
func (s *Store) Reveal(ctx context.Context, key []byte, id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.findLocked(ctx, key, id)
	if err != nil {
		s.audit.Record(ctx, audit.EventRevealFailed, audit.Details{"id": id, "reason": "lookup"})
		return nil, err
	}

	payload, err := cryptox.Open(key, rec.Ciphertext)
	if err != nil {
		s.audit.Record(ctx, audit.EventRevealFailed, audit.Details{"id": id, "reason": "decrypt"})
		return nil, fmt.Errorf("record %s: %w", id, err)
	}

	s.audit.Record(ctx, audit.EventReveal, audit.Details{"id": id, "mask": rec.DisplayMask})
	return payload, nil
}

// Reencrypt rewrites every record payload and the vault file under newKey.
// Used when the master password changes.
func (s *Store) Reencrypt(ctx context.Context, oldKey, newKey []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadLocked(ctx, oldKey)
	if err != nil {
		return err
	}

	for i := range records {
		if err := resealRecord(&records[i], func(ct []byte) ([]byte, error) { return cryptox.Open(oldKey, ct) }, newKey); err != nil {
			return err
		}
	}

	return s.saveLocked(ctx, newKey, records)
}

// resealRecord replaces r.Ciphertext with the payload opened by open and
// sealed under key.
func resealRecord(r *Record, open func([]byte) ([]byte, error), key []byte) error {
	payload, err := open(r.Ciphertext)
	if err != nil {
		return fmt.Errorf("record %s: %w", r.ID, err)
	}
	defer common.WipeByteArray(payload)

	ct, err := cryptox.Seal(key, payload)
	if err != nil {
		return fmt.Errorf("record %s: %w", r.ID, err)
	}
	r.Ciphertext = ct
	return nil
}
