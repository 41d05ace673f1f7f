package cli

import (
	"errors"

	"github.com/dmitrijs2005/gophvault/internal/clipboard"
	"github.com/dmitrijs2005/gophvault/internal/common"
)

// describe turns an operation error into a line for the user.
func describe(err error) string {
	var locked *common.LockedOutError
	switch {
	case errors.As(err, &locked):
		return locked.Error()
	case errors.Is(err, common.ErrPromptCancelled):
		return "cancelled"
	case errors.Is(err, common.ErrNoCredentialEnrolled):
		return "vault is not set up yet, run init"
	case errors.Is(err, common.ErrAlreadyEnrolled):
		return "vault is already set up"
	case errors.Is(err, common.ErrEmptyPassword):
		return "password must not be empty"
	case errors.Is(err, common.ErrVerificationFailed):
		return err.Error()
	case errors.Is(err, common.ErrUnrecoverableVault):
		return "vault cannot be recovered, a backup may be present in the data directory"
	case errors.Is(err, common.ErrDecryptionFailed):
		return "vault could not be decrypted"
	case errors.Is(err, common.ErrPersistenceFailed):
		return "vault could not be saved, previous contents were kept"
	case errors.Is(err, common.ErrNotFound):
		return "no such record"
	case errors.Is(err, common.ErrInvalidCard):
		return err.Error()
	case errors.Is(err, clipboard.ErrUnsupported):
		return "clipboard is not available on this system"
	default:
		return err.Error()
	}
}
