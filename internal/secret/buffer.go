// Package secret holds key material in buffers that are pinned in RAM where
// the platform allows it and zeroed on Close.
//
// Locking is best effort: when mlock is unavailable or the RLIMIT_MEMLOCK
// budget is exhausted the buffer still works, it is just swappable.
package secret

import (
	"errors"
	"sync"

	"github.com/dmitrijs2005/gophvault/internal/common"
)

// ErrClosed is returned when a closed Buffer is read.
var ErrClosed = errors.New("secret: buffer closed")

// Buffer owns a copy of sensitive bytes. A Buffer must not be copied after
// creation.
type Buffer struct {
	mu     sync.Mutex
	data   []byte
	locked bool
	closed bool
}

// NewFromBytes copies source into a new Buffer and zeroes source, so the
// caller's slice no longer holds the secret.
func NewFromBytes(source []byte) *Buffer {
	data := make([]byte, len(source))
	copy(data, source)
	common.WipeByteArray(source)

	b := &Buffer{data: data}
	if len(data) > 0 {
		b.locked = lock(data) == nil
	}
	return b
}

// Copy returns a fresh copy of the secret. The caller owns the copy and is
// expected to wipe it after use.
func (b *Buffer) Copy() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out, nil
}

// Len returns the secret length, or 0 after Close.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0
	}
	return len(b.data)
}

// Locked reports whether the memory was pinned against swapping.
func (b *Buffer) Locked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.locked
}

// Close zeroes and releases the secret. Idempotent.
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	common.WipeByteArray(b.data)
	if b.locked {
		_ = unlock(b.data)
		b.locked = false
	}
	b.data = nil
	b.closed = true
}

// String keeps the secret out of fmt output.
func (b *Buffer) String() string { return "[SECRET]" }
