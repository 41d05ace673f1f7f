package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/gophvault/internal/common"
)

// NonceSize is the AES-GCM nonce length.
const NonceSize = 12

// version 1 of the current envelope: magic | version | nonce | sealed data.
var (
	magic          = []byte("GVLT")
	currentVersion = byte(0x01)
	headerSize     = len(magic) + 1
)

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext with AES-256-GCM under key and returns the current
// envelope. A fresh random nonce is drawn for every call, so sealing the same
// plaintext twice yields different blobs.
func Seal(key, plaintext []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}

	nonce := common.GenerateRandByteArray(aesgcm.NonceSize())

	out := make([]byte, 0, headerSize+len(nonce)+len(plaintext)+aesgcm.Overhead())
	out = append(out, magic...)
	out = append(out, currentVersion)
	out = append(out, nonce...)
	return aesgcm.Seal(out, nonce, plaintext, magic), nil
}

// Open authenticates and decrypts an envelope produced by Seal.
//
// Any failure (wrong key, tampered data, truncated or foreign blob) is
// reported as common.ErrDecryptionFailed so callers can tell it apart from a
// missing file.
func Open(key, blob []byte) ([]byte, error) {
	if DetectScheme(blob) != SchemeCurrent {
		return nil, fmt.Errorf("%w: not a current-scheme envelope", common.ErrDecryptionFailed)
	}

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}

	body := blob[headerSize:]
	if len(body) < aesgcm.NonceSize()+aesgcm.Overhead() {
		return nil, fmt.Errorf("%w: envelope too short", common.ErrDecryptionFailed)
	}

	nonce, sealed := body[:aesgcm.NonceSize()], body[aesgcm.NonceSize():]
	plaintext, err := aesgcm.Open(nil, nonce, sealed, magic)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

// SealJSON serializes v to JSON and seals it under key. The intermediate
// plaintext is wiped before returning.
func SealJSON(key []byte, v any) ([]byte, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(plaintext)

	return Seal(key, plaintext)
}

// OpenJSON opens blob and unmarshals the JSON plaintext into v.
func OpenJSON(key, blob []byte, v any) error {
	plaintext, err := Open(key, blob)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(plaintext)

	return json.Unmarshal(plaintext, v)
}

// Scheme tags the on-disk encoding of a vault blob.
type Scheme int

const (
	SchemeUnknown Scheme = iota
	// SchemeCurrent is the versioned AES-256-GCM envelope keyed from the
	// master password.
	SchemeCurrent
	// SchemeLegacy is a Fernet token under the shared legacy key file.
	SchemeLegacy
)

func (s Scheme) String() string {
	switch s {
	case SchemeCurrent:
		return "current"
	case SchemeLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// DetectScheme classifies blob by its header without decrypting it.
func DetectScheme(blob []byte) Scheme {
	if len(blob) > headerSize && bytes.Equal(blob[:len(magic)], magic) && blob[len(magic)] == currentVersion {
		return SchemeCurrent
	}
	if looksLikeFernet(blob) {
		return SchemeLegacy
	}
	return SchemeUnknown
}
