package cryptox

import (
	"bytes"
	"encoding/hex"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophvault/internal/common"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	password := []byte("secret-password")
	salt := []byte("fixed-salt")

	key1 := DeriveKey(password, salt, 1000)
	key2 := DeriveKey(password, salt, 1000)

	if !bytes.Equal(key1, key2) {
		t.Errorf("expected same result for same inputs, got different")
	}
	require.Len(t, key1, KeySize)
}

// RFC 6070 style vector for PBKDF2-HMAC-SHA256.
func TestDeriveKey_KnownVector(t *testing.T) {
	got := DeriveKey([]byte("password"), []byte("salt"), 1)
	want := "120fb6cffcf8b32c43e7225256c4f837a86548c92ccc35480805987cb70be17b"
	if hex.EncodeToString(got) != want {
		t.Errorf("expected %s, got %s", want, hex.EncodeToString(got))
	}
}

func TestDeriveKey_DifferentInputs(t *testing.T) {
	password := []byte("secret-password")

	k1 := DeriveKey(password, []byte("salt-1"), 1000)
	k2 := DeriveKey(password, []byte("salt-2"), 1000)
	k3 := DeriveKey(password, []byte("salt-1"), 1001)

	assert.NotEqual(t, k1, k2, "different salts must give different keys")
	assert.NotEqual(t, k1, k3, "different iteration counts must give different keys")
}

func TestDeriveKey_EmptyPasswordAllowed(t *testing.T) {
	key := DeriveKey(nil, []byte("salt"), 10)
	require.Len(t, key, KeySize)
}

func TestEqual(t *testing.T) {
	a := []byte{1, 2, 3, 4}
	assert.True(t, Equal(a, []byte{1, 2, 3, 4}))
	assert.False(t, Equal(a, []byte{1, 2, 3, 5}))
	assert.False(t, Equal(a, []byte{0, 2, 3, 4}))
	assert.False(t, Equal(a, []byte{1, 2, 3}))
}

// medianCompareTime times batches of eq(ref, c) interleaved across the
// given candidates and returns the median batch duration for each.
func medianCompareTime(eq func(a, b []byte) bool, ref []byte, candidates ...[]byte) []time.Duration {
	const rounds, batch = 101, 50

	samples := make([][]time.Duration, len(candidates))
	for r := 0; r < rounds; r++ {
		for i, c := range candidates {
			start := time.Now()
			for j := 0; j < batch; j++ {
				eq(ref, c)
			}
			samples[i] = append(samples[i], time.Since(start))
		}
	}

	out := make([]time.Duration, len(candidates))
	for i, s := range samples {
		slices.Sort(s)
		out[i] = s[len(s)/2]
	}
	return out
}

func TestEqual_TimingIndependentOfMismatchPosition(t *testing.T) {
	if testing.Short() {
		t.Skip("timing sample skipped in short mode")
	}

	// a long digest makes any early exit visible above timer noise
	ref := common.GenerateRandByteArray(64 << 10)
	early := bytes.Clone(ref)
	early[0] ^= 0xFF
	late := bytes.Clone(ref)
	late[len(late)-1] ^= 0xFF

	// the sampler can see an early exit at all
	leaky := medianCompareTime(bytes.Equal, ref, early, late)
	require.Greater(t, float64(leaky[1]), 2*float64(leaky[0]), "bytes.Equal should exit early")

	got := medianCompareTime(Equal, ref, early, late)
	ratio := float64(got[1]) / float64(got[0])
	assert.GreaterOrEqual(t, ratio, 0.5, "early %s vs late %s", got[0], got[1])
	assert.LessOrEqual(t, ratio, 2.0, "early %s vs late %s", got[0], got[1])
}

func TestSealOpen_RoundTrip(t *testing.T) {
	key := common.GenerateRandByteArray(KeySize)
	msg := []byte("4111111111111111")

	blob, err := Seal(key, msg)
	require.NoError(t, err)
	assert.Equal(t, SchemeCurrent, DetectScheme(blob))
	assert.NotContains(t, string(blob), string(msg))

	got, err := Open(key, blob)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestSeal_FreshNonce(t *testing.T) {
	key := common.GenerateRandByteArray(KeySize)
	a, err := Seal(key, []byte("same"))
	require.NoError(t, err)
	b, err := Seal(key, []byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestOpen_Failures(t *testing.T) {
	key := common.GenerateRandByteArray(KeySize)
	other := common.GenerateRandByteArray(KeySize)
	blob, err := Seal(key, []byte("payload"))
	require.NoError(t, err)

	tampered := append([]byte(nil), blob...)
	tampered[len(tampered)-1] ^= 0xff

	tests := []struct {
		name string
		key  []byte
		blob []byte
	}{
		{"wrong key", other, blob},
		{"tampered tag", key, tampered},
		{"truncated", key, blob[:headerSize+4]},
		{"foreign bytes", key, []byte("not a vault at all")},
		{"empty", key, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(tt.key, tt.blob)
			require.ErrorIs(t, err, common.ErrDecryptionFailed)
		})
	}
}

func TestSealJSON_OpenJSON(t *testing.T) {
	type card struct {
		Number string `json:"number"`
		Expiry string `json:"expiry"`
	}
	key := common.GenerateRandByteArray(KeySize)

	blob, err := SealJSON(key, card{Number: "4111", Expiry: "12/30"})
	require.NoError(t, err)

	var got card
	require.NoError(t, OpenJSON(key, blob, &got))
	assert.Equal(t, card{Number: "4111", Expiry: "12/30"}, got)
}

func TestLegacyKey_RoundTripAndScheme(t *testing.T) {
	lk, err := GenerateLegacyKey()
	require.NoError(t, err)

	parsed, err := ParseLegacyKey(append(lk.Encode(), '\n'))
	require.NoError(t, err)

	token, err := lk.Encrypt([]byte(`[{"token":"abc"}]`))
	require.NoError(t, err)
	assert.Equal(t, SchemeLegacy, DetectScheme(token))

	msg, err := parsed.Decrypt(token)
	require.NoError(t, err)
	assert.Equal(t, `[{"token":"abc"}]`, string(msg))
}

func TestLegacyKey_WrongKeyRejected(t *testing.T) {
	lk, err := GenerateLegacyKey()
	require.NoError(t, err)
	other, err := GenerateLegacyKey()
	require.NoError(t, err)

	token, err := lk.Encrypt([]byte("x"))
	require.NoError(t, err)

	_, err = other.Decrypt(token)
	require.ErrorIs(t, err, common.ErrDecryptionFailed)
}

func TestParseLegacyKey_Garbage(t *testing.T) {
	_, err := ParseLegacyKey([]byte("definitely-not-a-key"))
	require.Error(t, err)
}

func TestDetectScheme_Unknown(t *testing.T) {
	assert.Equal(t, SchemeUnknown, DetectScheme([]byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05}))
	assert.Equal(t, "unknown", SchemeUnknown.String())
	assert.Equal(t, "current", SchemeCurrent.String())
	assert.Equal(t, "legacy", SchemeLegacy.String())
}
