//go:build !unix

package secret

import "errors"

var errUnsupported = errors.New("secret: memory locking not supported")

func lock([]byte) error   { return errUnsupported }
func unlock([]byte) error { return nil }
