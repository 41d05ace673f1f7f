// Package clock abstracts time so that expiry, lockout and delayed clipboard
// clearing can be tested deterministically. Production code uses Real();
// tests use NewFake().
package clock

import "time"

// Clock is the subset of the time package the vault depends on.
type Clock interface {
	Now() time.Time

	// AfterFunc calls f in its own goroutine once d has elapsed. The
	// returned Timer can cancel a pending call.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending AfterFunc call.
type Timer interface {
	// Stop prevents the call from firing. It reports whether the call was
	// still pending.
	Stop() bool
}

type realClock struct{}

// Real returns the wall clock.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
