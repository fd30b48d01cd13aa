package persist

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been set or was
// deleted.
var ErrNotFound = errors.New("persist: key not found")

// Adapter is the durable local storage contract consumed by the engine.
// Implementations must be safe for concurrent use.
type Adapter interface {
	// Get returns the stored value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key, overwriting any prior value.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
