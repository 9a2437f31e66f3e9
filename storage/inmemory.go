package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"go-link-registry/expiry"
	"go-link-registry/types"
)

// InMemoryStorage implements Storage using an in-memory map.
type InMemoryStorage struct {
	links    map[string]types.LinkRecord // code -> record
	mu       sync.RWMutex                // Put and eviction take the write lock, reads share
	capacity int                         // Maximum number of records, expired ones included
	clock    expiry.Clock
	logger   *zap.Logger
}

// NewInMemoryStorage creates and returns a new InMemoryStorage instance.
func NewInMemoryStorage(capacity int, clock expiry.Clock, logger *zap.Logger) *InMemoryStorage {
	if capacity <= 0 {
		capacity = 1000 // Default capacity if an invalid value is provided
	}
	if clock == nil {
		clock = expiry.SystemClock
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryStorage{
		links:    make(map[string]types.LinkRecord),
		capacity: capacity,
		clock:    clock,
		logger:   logger,
	}
}

// Put inserts a record unless a live record already holds its code.
// An expired record under the same code is replaced.
func (s *InMemoryStorage) Put(ctx context.Context, record types.LinkRecord) error {
	select {
	case <-ctx.Done():
		s.logger.Warn("Put operation cancelled", zap.String("code", record.Code))
		return ctx.Err()
	default:
		s.mu.Lock()
		defer s.mu.Unlock()

		existing, exists := s.links[record.Code]
		if exists && expiry.IsLive(existing, s.clock()) {
			s.logger.Debug("Code is held by a live link", zap.String("code", record.Code))
			return ErrCodeConflict
		}
		if !exists && len(s.links) >= s.capacity {
			s.logger.Error("Storage capacity reached. Cannot store link", zap.String("code", record.Code))
			return ErrStorageCapacityReached
		}

		s.links[record.Code] = record
		if exists {
			s.logger.Info("Reclaimed code of expired link",
				zap.String("code", record.Code),
				zap.String("previousURL", existing.TargetURL))
		}
		s.logger.Debug("Link stored",
			zap.String("code", record.Code),
			zap.String("targetURL", record.TargetURL),
			zap.Bool("isCustom", record.IsCustom))
		return nil
	}
}

// Get retrieves the record stored under code, live or not.
func (s *InMemoryStorage) Get(ctx context.Context, code string) (types.LinkRecord, error) {
	select {
	case <-ctx.Done():
		s.logger.Warn("Get operation cancelled", zap.String("code", code))
		return types.LinkRecord{}, ctx.Err()
	default:
		s.mu.RLock()
		defer s.mu.RUnlock()

		if record, exists := s.links[code]; exists {
			return record, nil
		}
		return types.LinkRecord{}, ErrNotFound
	}
}

// ContainsLive reports whether a live record is stored under code.
func (s *InMemoryStorage) ContainsLive(ctx context.Context, code string) (bool, error) {
	record, err := s.Get(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return expiry.IsLive(record, s.clock()), nil
}

// EvictExpired removes every record whose expiry has passed.
func (s *InMemoryStorage) EvictExpired(ctx context.Context) (int, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
		s.mu.Lock()
		defer s.mu.Unlock()

		now := s.clock()
		expired := lo.Keys(lo.PickBy(s.links, func(_ string, record types.LinkRecord) bool {
			return !expiry.IsLive(record, now)
		}))
		for _, code := range expired {
			delete(s.links, code)
		}
		if len(expired) > 0 {
			s.logger.Info("Evicted expired links", zap.Int("count", len(expired)))
		}
		return len(expired), nil
	}
}

// Len returns the number of stored records, expired ones included.
func (s *InMemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.links)
}

// Close is a no-op for the in-memory backend.
func (s *InMemoryStorage) Close() error {
	return nil
}
