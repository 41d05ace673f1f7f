// Package cards validates and masks payment cards and defines the payload
// shapes stored in vault records.
package cards

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophvault/internal/common"
)

// Digits strips spaces and dashes from a card number as typed.
func Digits(number string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, number)
}

// Luhn reports whether number passes the mod-10 checksum. Separators are
// ignored; any other non-digit fails.
func Luhn(number string) bool {
	digits := Digits(number)
	if digits == "" {
		return false
	}

	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		c := digits[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// Mask hides all but the last four digits. Numbers of four digits or fewer
// are returned as they are.
func Mask(number string) string {
	digits := Digits(number)
	if len(digits) <= 4 {
		return digits
	}
	return "**** **** **** " + digits[len(digits)-4:]
}

// CardPayload is the secret part of a tokenized card. The CVV is never
// stored.
type CardPayload struct {
	Number string `json:"card"`
	Expiry string `json:"exp"`
	Holder string `json:"holder,omitempty"`
}

// Validate requires a Luhn-valid number and an expiry.
func (p *CardPayload) Validate() error {
	if strings.TrimSpace(p.Number) == "" || strings.TrimSpace(p.Expiry) == "" {
		return fmt.Errorf("%w: number and expiry are required", common.ErrInvalidCard)
	}
	if !Luhn(p.Number) {
		return fmt.Errorf("%w: checksum mismatch", common.ErrInvalidCard)
	}
	p.Number = Digits(p.Number)
	return nil
}

// Mask returns the display mask for the card.
func (p CardPayload) Mask() string { return Mask(p.Number) }

// CredentialPayload is a stored login.
type CredentialPayload struct {
	Service  string `json:"service"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (p CredentialPayload) Validate() error {
	if strings.TrimSpace(p.Service) == "" || p.Password == "" {
		return fmt.Errorf("service and password are required")
	}
	return nil
}

// Mask names the login without exposing the password.
func (p CredentialPayload) Mask() string {
	if p.Username == "" {
		return p.Service
	}
	return p.Service + " / " + p.Username
}
