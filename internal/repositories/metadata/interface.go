// Package metadata stores small binary values under string keys in the
// SQLite metadata table. The master credential lives here.
package metadata

import (
	"context"
)

// Repository is a key/value view over the metadata table.
// Get returns (nil, nil) for an absent key. List returns the pairs whose key
// starts with prefix; an empty prefix matches everything.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	List(ctx context.Context, prefix string) (map[string][]byte, error)
}
