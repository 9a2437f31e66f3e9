package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"go-link-registry/expiry"
	"go-link-registry/types"
)

// DefaultRedisKeyPrefix namespaces link keys in a shared Redis database.
const DefaultRedisKeyPrefix = "link:"

// RedisStorage implements Storage on top of Redis. Each record is a JSON
// value whose key TTL follows the record's expiry, so Redis drops expired
// links on its own.
type RedisStorage struct {
	rdb    *redis.Client
	prefix string
	clock  expiry.Clock
	logger *zap.Logger
}

// NewRedisStorage wraps an existing client. The storage takes ownership of
// the client and closes it in Close.
func NewRedisStorage(rdb *redis.Client, prefix string, clock expiry.Clock, logger *zap.Logger) *RedisStorage {
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	if clock == nil {
		clock = expiry.SystemClock
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStorage{
		rdb:    rdb,
		prefix: prefix,
		clock:  clock,
		logger: logger,
	}
}

func (s *RedisStorage) key(code string) string {
	return s.prefix + code
}

// Put stores the record inside a WATCH/MULTI transaction on its key. If
// another writer touches the key between the liveness check and EXEC, the
// transaction aborts and Put reports ErrCodeConflict.
func (s *RedisStorage) Put(ctx context.Context, record types.LinkRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding link %q: %w", record.Code, err)
	}
	key := s.key(record.Code)

	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		existing, err := s.decode(tx.Get(ctx, key))
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			return err
		case expiry.IsLive(existing, s.clock()):
			return ErrCodeConflict
		}

		ttl := s.ttl(record)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, ttl)
			return nil
		})
		return err
	}, key)

	switch {
	case errors.Is(err, redis.TxFailedErr):
		s.logger.Debug("Concurrent write on code", zap.String("code", record.Code))
		return ErrCodeConflict
	case errors.Is(err, ErrCodeConflict):
		s.logger.Debug("Code is held by a live link", zap.String("code", record.Code))
		return ErrCodeConflict
	case err != nil:
		s.logger.Error("Failed to store link", zap.String("code", record.Code), zap.Error(err))
		return fmt.Errorf("storing link %q: %w", record.Code, err)
	}

	s.logger.Debug("Link stored",
		zap.String("code", record.Code),
		zap.String("targetURL", record.TargetURL),
		zap.Bool("isCustom", record.IsCustom))
	return nil
}

// Get retrieves the record stored under code.
func (s *RedisStorage) Get(ctx context.Context, code string) (types.LinkRecord, error) {
	record, err := s.decode(s.rdb.Get(ctx, s.key(code)))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return types.LinkRecord{}, fmt.Errorf("loading link %q: %w", code, err)
	}
	return record, err
}

// ContainsLive reports whether a live record is stored under code.
func (s *RedisStorage) ContainsLive(ctx context.Context, code string) (bool, error) {
	record, err := s.Get(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return expiry.IsLive(record, s.clock()), nil
}

// Ping checks the connection to Redis.
func (s *RedisStorage) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *RedisStorage) Close() error {
	return s.rdb.Close()
}

func (s *RedisStorage) decode(cmd *redis.StringCmd) (types.LinkRecord, error) {
	data, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return types.LinkRecord{}, ErrNotFound
	}
	if err != nil {
		return types.LinkRecord{}, err
	}

	var record types.LinkRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return types.LinkRecord{}, fmt.Errorf("decoding link: %w", err)
	}
	return record, nil
}

// ttl maps the record's expiry onto a key TTL. Zero keeps the key forever.
func (s *RedisStorage) ttl(record types.LinkRecord) time.Duration {
	remaining, expires := expiry.Remaining(record, s.clock())
	if !expires {
		return 0
	}
	if remaining < time.Millisecond {
		return time.Millisecond
	}
	return remaining
}
