// Package storage provides the registry store contract, its backends and
// the common errors they return.
package storage

import (
	"context"
	"errors"

	"go-link-registry/types"
)

// Common errors returned by storage operations.
var (
	ErrCodeConflict           = errors.New("a live link already holds this code")
	ErrNotFound               = errors.New("link not found")
	ErrStorageCapacityReached = errors.New("storage capacity reached")
)

// Storage is the authoritative mapping from code to link record.
//
// Put is the single synchronization point: the check for a live record
// under the same code and the insert must be indivisible. A record whose
// expiry has passed may be overwritten. Get returns records regardless of
// their expiry.
type Storage interface {
	Put(ctx context.Context, record types.LinkRecord) error
	Get(ctx context.Context, code string) (types.LinkRecord, error)
	ContainsLive(ctx context.Context, code string) (bool, error)
	Close() error
}

// Evictor is implemented by backends that can drop expired records eagerly.
type Evictor interface {
	EvictExpired(ctx context.Context) (int, error)
}
