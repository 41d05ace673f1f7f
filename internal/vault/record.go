package vault

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
)

// Category classifies what a record's payload holds.
type Category string

const (
	CategoryCard       Category = "card"
	CategoryCredential Category = "credential"
	CategoryOther      Category = "other"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryCard, CategoryCredential, CategoryOther:
		return true
	}
	return false
}

// ParseCategory maps a string to a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", common.ErrInvalidCategory, s)
	}
	return c, nil
}

func (c *Category) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseCategory(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Record is one stored secret. Only Ciphertext is sensitive; it is sealed
// under the session key that was current when the record was written.
type Record struct {
	ID          string    `json:"id"`
	DisplayMask string    `json:"display_mask"`
	Category    Category  `json:"category"`
	Ciphertext  []byte    `json:"ciphertext"`
	CreatedAt   time.Time `json:"created_at"`
}

// Summary is the non-secret view of a Record.
type Summary struct {
	ID          string
	DisplayMask string
	Category    Category
	CreatedAt   time.Time
}

func (r Record) Summary() Summary {
	return Summary{ID: r.ID, DisplayMask: r.DisplayMask, Category: r.Category, CreatedAt: r.CreatedAt}
}
