package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultIterations is the PBKDF2 round count used for new enrollments.
	// Existing credentials keep the count they were created with.
	DefaultIterations = 300_000

	// KeySize is the length of derived keys and verifier digests (AES-256).
	KeySize = 32

	// SaltSize is the length of the verification and encryption salts.
	SaltSize = 16
)

// DeriveKey runs PBKDF2-HMAC-SHA256 over password and salt.
//
// The function is deterministic: identical inputs always produce the same
// 32-byte key. It does not judge password strength and accepts an empty
// password; rejecting weak input is the caller's business.
//
// The iteration count must come from the persisted master credential, never
// from a constant at the call site, so that credentials created under an
// older default keep verifying.
func DeriveKey(password, salt []byte, iterations int) []byte {
	return pbkdf2.Key(password, salt, iterations, KeySize, sha256.New)
}

// Verifier computes the digest stored to check a master password. It is the
// same slow hash as DeriveKey but is always applied with the verification
// salt, which is never used for key derivation.
func Verifier(password, salt []byte, iterations int) []byte {
	return DeriveKey(password, salt, iterations)
}

// Equal reports whether two digests match without leaking the position of
// the first differing byte.
func Equal(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
