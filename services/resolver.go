package services

import (
	"context"

	"go.uber.org/zap"

	"go-link-registry/expiry"
	"go-link-registry/storage"
	"go-link-registry/types"
)

// Resolver maps codes back to their targets for the redirect layer.
// Expired and unknown codes both resolve to ErrNotFound.
type Resolver struct {
	store  storage.Storage
	clock  expiry.Clock
	logger *zap.Logger
}

func NewResolver(store storage.Storage, clock expiry.Clock, logger *zap.Logger) *Resolver {
	if clock == nil {
		clock = expiry.SystemClock
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{store: store, clock: clock, logger: logger}
}

// Resolve returns the target URL of the live record stored under code.
func (r *Resolver) Resolve(ctx context.Context, code string) (string, error) {
	record, err := r.Lookup(ctx, code)
	if err != nil {
		return "", err
	}
	return record.TargetURL, nil
}

// Lookup returns the live record stored under code.
func (r *Resolver) Lookup(ctx context.Context, code string) (types.LinkRecord, error) {
	record, err := r.store.Get(ctx, code)
	if err != nil {
		return types.LinkRecord{}, handleStorageError(err)
	}
	if !expiry.IsLive(record, r.clock()) {
		r.logger.Debug("Resolved code has expired", zap.String("code", code))
		return types.LinkRecord{}, ErrNotFound
	}
	return record, nil
}
