package cryptox

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/fernet/fernet-go"

	"github.com/dmitrijs2005/gophvault/internal/common"
)

// fernetVersion is the first byte of every decoded Fernet token.
const fernetVersion = 0x80

// LegacyKey is the shared key of the retired storage scheme: a single Fernet
// key kept in a file next to the vault, not bound to any password.
type LegacyKey struct {
	key *fernet.Key
}

// ParseLegacyKey decodes the contents of a legacy key file (the base64
// encoding of a 32-byte Fernet key, surrounding whitespace ignored).
func ParseLegacyKey(data []byte) (*LegacyKey, error) {
	k, err := fernet.DecodeKey(string(bytes.TrimSpace(data)))
	if err != nil {
		return nil, fmt.Errorf("decode legacy key: %w", err)
	}
	return &LegacyKey{key: k}, nil
}

// GenerateLegacyKey creates a fresh legacy key. It exists so tests can build
// vaults in the retired format.
func GenerateLegacyKey() (*LegacyKey, error) {
	var k fernet.Key
	if err := k.Generate(); err != nil {
		return nil, err
	}
	return &LegacyKey{key: &k}, nil
}

// Encode returns the key file representation.
func (k *LegacyKey) Encode() []byte {
	return []byte(k.key.Encode())
}

// Encrypt produces a Fernet token for plaintext.
func (k *LegacyKey) Encrypt(plaintext []byte) ([]byte, error) {
	return fernet.EncryptAndSign(plaintext, k.key)
}

// Decrypt verifies and decrypts a Fernet token. Token age is not checked.
func (k *LegacyKey) Decrypt(token []byte) ([]byte, error) {
	msg := fernet.VerifyAndDecrypt(bytes.TrimSpace(token), -1, []*fernet.Key{k.key})
	if msg == nil {
		return nil, fmt.Errorf("%w: legacy token rejected", common.ErrDecryptionFailed)
	}
	return msg, nil
}

// Wipe zeroes the key material.
func (k *LegacyKey) Wipe() {
	if k == nil || k.key == nil {
		return
	}
	common.WipeByteArray(k.key[:])
}

func looksLikeFernet(blob []byte) bool {
	blob = bytes.TrimSpace(blob)
	if len(blob) < 4 {
		return false
	}
	head := make([]byte, 3)
	n, err := base64.URLEncoding.Decode(head, blob[:4])
	return err == nil && n > 0 && head[0] == fernetVersion
}
