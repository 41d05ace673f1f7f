package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/cards"
	"github.com/dmitrijs2005/gophvault/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

var errPasswordMismatch = errors.New("passwords do not match")

// readNewPassword asks for a new master password twice.
func (a *App) readNewPassword() ([]byte, error) {
	pw, err := getPassword(a.out, "New master password")
	if err != nil {
		return nil, err
	}
	if len(pw) == 0 {
		return nil, common.ErrEmptyPassword
	}

	confirm, err := getPassword(a.out, "Repeat new master password")
	defer common.WipeByteArray(confirm)
	if err != nil {
		common.WipeByteArray(pw)
		return nil, err
	}
	if !bytes.Equal(pw, confirm) {
		common.WipeByteArray(pw)
		return nil, errPasswordMismatch
	}
	return pw, nil
}

// Init enrolls the master password on first use.
func (a *App) Init(ctx context.Context) error {
	if a.isEnrolled(ctx) {
		return common.ErrAlreadyEnrolled
	}

	pw, err := a.readNewPassword()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	if err := a.vault.Enroll(ctx, pw); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Vault is set up and unlocked.")
	return nil
}

func (a *App) Unlock(ctx context.Context) error {
	if err := a.vault.Unlock(ctx, a.prompt); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Unlocked.")
	return nil
}

// List prints the non-secret view of every record.
func (a *App) List(ctx context.Context) error {
	items, err := a.vault.List(ctx, a.prompt)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(a.out, "No records.")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tMASK\tCREATED")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", it.ID, it.Category, it.DisplayMask, it.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func (a *App) AddCard(ctx context.Context) error {
	number, err := getSimpleText(a.reader, "Card number", a.out)
	if err != nil {
		return err
	}
	expiry, err := getSimpleText(a.reader, "Expiry (MM/YY)", a.out)
	if err != nil {
		return err
	}
	holder, err := getSimpleText(a.reader, "Card holder (optional)", a.out)
	if err != nil {
		return err
	}

	sum, err := a.vault.TokenizeCard(ctx, a.prompt, cards.CardPayload{Number: number, Expiry: expiry, Holder: holder})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Stored %s as %s\n", sum.DisplayMask, sum.ID)
	return nil
}

func (a *App) AddLogin(ctx context.Context) error {
	service, err := getSimpleText(a.reader, "Service", a.out)
	if err != nil {
		return err
	}
	username, err := getSimpleText(a.reader, "Username", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out, "Password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	sum, err := a.vault.StoreCredential(ctx, a.prompt, cards.CredentialPayload{
		Service:  service,
		Username: username,
		Password: string(password),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Stored %s as %s\n", sum.DisplayMask, sum.ID)
	return nil
}

func (a *App) askID(id string) (string, error) {
	if id != "" {
		return id, nil
	}
	return getSimpleText(a.reader, "Enter record ID", a.out)
}

// Show decrypts a record and copies its secret to the clipboard. The secret
// itself is never printed.
func (a *App) Show(ctx context.Context, id string) error {
	id, err := a.askID(id)
	if err != nil {
		return err
	}

	rev, err := a.vault.Reveal(ctx, a.prompt, id)
	if err != nil {
		return err
	}
	defer rev.Wipe()

	fmt.Fprintf(a.out, "%s  %s  %s\n", rev.Summary.Category, rev.Summary.DisplayMask, rev.Summary.CreatedAt.Local().Format("2006-01-02 15:04"))

	d := a.config.ClipboardClearAfter
	if err := a.clip.RevealThenClear(ctx, rev.Secret, d); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Copied to clipboard, clearing in %s.\n", d.Round(time.Second))
	return nil
}

func (a *App) Delete(ctx context.Context, id string) error {
	id, err := a.askID(id)
	if err != nil {
		return err
	}

	answer, err := getSimpleText(a.reader, fmt.Sprintf("Delete record %s? Type yes to confirm", id), a.out)
	if err != nil {
		return err
	}
	if !strings.EqualFold(answer, "yes") {
		fmt.Fprintln(a.out, "Not deleted.")
		return nil
	}

	if err := a.vault.Delete(ctx, a.prompt, id); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Deleted.")
	return nil
}

// ChangePassword asks for the new password first; the service then asks for
// the current one.
func (a *App) ChangePassword(ctx context.Context) error {
	pw, err := a.readNewPassword()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	if err := a.vault.ChangePassword(ctx, a.prompt, pw); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Master password changed.")
	return nil
}

func (a *App) Lock(ctx context.Context) error {
	a.vault.Lock(ctx)
	a.clip.Close(ctx)
	fmt.Fprintln(a.out, "Locked.")
	return nil
}

func (a *App) Status(ctx context.Context) error {
	st, err := a.vault.Status(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Set up:", yesNo(st.Enrolled))
	if st.Unlocked {
		fmt.Fprintln(a.out, "Session: unlocked until", st.ExpiresAt.Local().Format(time.TimeOnly))
	} else {
		fmt.Fprintln(a.out, "Session: locked")
	}
	fmt.Fprintln(a.out, "Failed attempts:", st.Lockout.FailedAttempts)
	if st.Lockout.Locked() {
		fmt.Fprintln(a.out, "Locked out until", st.Lockout.LockedUntil.Local().Format(time.TimeOnly))
	}
	fmt.Fprintln(a.out, "Vault file:", yesNo(st.VaultExists))
	if st.LegacyKeyPresent {
		fmt.Fprintln(a.out, "Legacy key: present, the vault will be migrated on next unlock")
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
