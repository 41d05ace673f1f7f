package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/gophvault/internal/audit"
	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/filex"
	"github.com/dmitrijs2005/gophvault/internal/logging"
)

// backupTimeLayout is the suffix format of migration backups:
// <vault>.bak-YYYYmmddHHMMSS.
const backupTimeLayout = "20060102150405"

// legacyRecord is the entry shape of vaults written under the legacy key.
// Enc is itself a legacy token holding the payload.
type legacyRecord struct {
	Token     string `json:"token"`
	Mask      string `json:"mask"`
	Brand     string `json:"brand"`
	Enc       string `json:"enc"`
	CreatedAt string `json:"created_at"`
}

// legacyTimeLayouts covers timestamps with and without a zone offset.
var legacyTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

func parseLegacyTime(s string) (time.Time, bool) {
	for _, layout := range legacyTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func legacyCategory(brand string) Category {
	switch strings.ToUpper(brand) {
	case "CARD":
		return CategoryCard
	case "CREDENTIAL", "LOGIN":
		return CategoryCredential
	default:
		return CategoryOther
	}
}

// MigrationResult describes a completed migration.
type MigrationResult struct {
	BackupPath   string
	BackupDigest string
	Records      int
}

// Migrator moves a vault written under the legacy shared key to the current
// password-derived scheme. It is the only code that turns a legacy-scheme
// file into a current-scheme one.
type Migrator struct {
	store         *Store
	legacyKeyPath string
	log           logging.Logger
}

func NewMigrator(store *Store, legacyKeyPath string, log logging.Logger) *Migrator {
	return &Migrator{store: store, legacyKeyPath: legacyKeyPath, log: log}
}

// LegacyKeyPresent reports whether the legacy key file still exists.
func (m *Migrator) LegacyKeyPresent() (bool, error) {
	return filex.Exists(m.legacyKeyPath)
}

// LoadLegacyKey reads and parses the legacy key file.
func (m *Migrator) LoadLegacyKey() (*cryptox.LegacyKey, error) {
	data, err := os.ReadFile(m.legacyKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read legacy key: %w", err)
	}
	defer common.WipeByteArray(data)

	return cryptox.ParseLegacyKey(data)
}

// Migrate re-encrypts the vault from legacyKey to currentKey.
//
// The sequence is: decrypt everything under the legacy key, write a verified
// backup of the original file, atomically replace the vault, read the new
// file back under currentKey, and only then delete the legacy key file.
// If the vault does not open under legacyKey nothing is written and the
// error matches common.ErrUnrecoverableVault.
func (m *Migrator) Migrate(ctx context.Context, legacyKey *cryptox.LegacyKey, currentKey []byte) (*MigrationResult, error) {
	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.audit.Record(ctx, audit.EventMigrationStarted, nil)

	blob, err := os.ReadFile(s.path)
	if err != nil {
		s.audit.Record(ctx, audit.EventMigrationFailed, audit.Details{"step": "read"})
		return nil, fmt.Errorf("read vault: %w", err)
	}

	records, err := m.convert(legacyKey, blob, currentKey)
	if err != nil {
		s.audit.Record(ctx, audit.EventMigrationFailed, audit.Details{"step": "decrypt"})
		m.log.Error(ctx, "legacy vault does not decrypt", "error", err)
		return nil, fmt.Errorf("%w: %w", common.ErrUnrecoverableVault, err)
	}

	backup := s.path + ".bak-" + s.clock.Now().Format(backupTimeLayout)
	digest, err := filex.CopyFileVerified(s.path, backup, common.PrivateFileMode)
	if err != nil {
		s.audit.Record(ctx, audit.EventMigrationFailed, audit.Details{"step": "backup"})
		return nil, fmt.Errorf("%w: backup: %w", common.ErrPersistenceFailed, err)
	}
	s.audit.Record(ctx, audit.EventMigrationBackup, audit.Details{"path": backup, "blake3": digest})

	if err := s.saveLocked(ctx, currentKey, records); err != nil {
		s.audit.Record(ctx, audit.EventMigrationFailed, audit.Details{"step": "write"})
		return nil, err
	}

	reloaded, err := s.loadLocked(ctx, currentKey)
	if err == nil && len(reloaded) != len(records) {
		err = fmt.Errorf("read back %d records, wrote %d", len(reloaded), len(records))
	}
	if err != nil {
		s.audit.Record(ctx, audit.EventMigrationFailed, audit.Details{"step": "verify"})
		return nil, fmt.Errorf("%w: migrated vault does not read back: %w", common.ErrPersistenceFailed, err)
	}

	res := &MigrationResult{BackupPath: backup, BackupDigest: digest, Records: len(records)}
	s.audit.Record(ctx, audit.EventMigrationDone, audit.Details{
		"records": strconv.Itoa(len(records)),
		"backup":  backup,
	})

	if err := os.Remove(m.legacyKeyPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.audit.Record(ctx, audit.EventMigrationFailed, audit.Details{"step": "remove_legacy_key"})
		return res, fmt.Errorf("%w: remove legacy key: %w", common.ErrPersistenceFailed, err)
	}
	s.audit.Record(ctx, audit.EventLegacyKeyRemoved, nil)

	m.log.Info(ctx, "vault migrated", "records", len(records), "backup", backup)
	return res, nil
}

// convert decrypts a legacy vault blob and reseals each record payload
// under currentKey. It touches no files.
func (m *Migrator) convert(legacyKey *cryptox.LegacyKey, blob, currentKey []byte) ([]Record, error) {
	plaintext, err := legacyKey.Decrypt(blob)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(plaintext)

	var legacy []legacyRecord
	if err := json.Unmarshal(plaintext, &legacy); err != nil {
		return nil, fmt.Errorf("malformed legacy vault: %w", err)
	}

	now := m.store.clock.Now().UTC()
	records := make([]Record, 0, len(legacy))
	for _, lr := range legacy {
		rec := Record{
			ID:          lr.Token,
			DisplayMask: lr.Mask,
			Category:    legacyCategory(lr.Brand),
			CreatedAt:   now,
		}
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if t, ok := parseLegacyTime(lr.CreatedAt); ok {
			rec.CreatedAt = t
		}
		if lr.Enc == "" {
			// nothing secret was stored; seal an empty payload
			ct, err := cryptox.Seal(currentKey, nil)
			if err != nil {
				return nil, fmt.Errorf("record %s: %w", rec.ID, err)
			}
			rec.Ciphertext = ct
			records = append(records, rec)
			continue
		}

		rec.Ciphertext = []byte(lr.Enc)
		if err := resealRecord(&rec, legacyKey.Decrypt, currentKey); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, nil
}
