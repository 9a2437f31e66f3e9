package storage

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"go-link-registry/types"
)

// fakeClock is a manually advanced clock shared by store and test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func linkExpiringIn(code string, clock *fakeClock, d time.Duration) types.LinkRecord {
	expiresAt := clock.Now().Add(d)
	return types.LinkRecord{
		Code:      code,
		TargetURL: "https://example.com/" + code,
		CreatedAt: clock.Now(),
		ExpiresAt: &expiresAt,
	}
}

func TestInMemoryStorage(t *testing.T) {
	ctx := context.Background()

	t.Run("NewInMemoryStorage", func(t *testing.T) {
		storage := NewInMemoryStorage(0, nil, zap.NewNop())
		assert.Equal(t, 1000, storage.capacity, "Capacity should be set to default 1000 when input is 0")

		storage = NewInMemoryStorage(-5, nil, nil)
		assert.Equal(t, 1000, storage.capacity, "Capacity should be set to default 1000 when input is negative")
		assert.NotNil(t, storage.logger, "Logger should be initialized when input is nil")
		assert.NotNil(t, storage.clock, "Clock should be initialized when input is nil")
	})

	t.Run("Put", func(t *testing.T) {
		clock := newFakeClock()
		storage := NewInMemoryStorage(3, clock.Now, zap.NewNop())

		record := types.LinkRecord{Code: "abc123", TargetURL: "https://example.com", CreatedAt: clock.Now()}
		require.NoError(t, storage.Put(ctx, record))

		err := storage.Put(ctx, types.LinkRecord{Code: "abc123", TargetURL: "https://other.com", CreatedAt: clock.Now()})
		assert.ErrorIs(t, err, ErrCodeConflict, "A live code must not be overwritten")

		stored, err := storage.Get(ctx, "abc123")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com", stored.TargetURL, "Original record should survive a conflicting put")

		require.NoError(t, storage.Put(ctx, types.LinkRecord{Code: "second", TargetURL: "https://two.com"}))
		require.NoError(t, storage.Put(ctx, types.LinkRecord{Code: "third", TargetURL: "https://three.com"}))
		err = storage.Put(ctx, types.LinkRecord{Code: "overflow", TargetURL: "https://overflow.com"})
		assert.ErrorIs(t, err, ErrStorageCapacityReached)
	})

	t.Run("Put reclaims expired code", func(t *testing.T) {
		clock := newFakeClock()
		storage := NewInMemoryStorage(10, clock.Now, zap.NewNop())

		require.NoError(t, storage.Put(ctx, linkExpiringIn("promo", clock, time.Minute)))
		assert.ErrorIs(t, storage.Put(ctx, linkExpiringIn("promo", clock, time.Minute)), ErrCodeConflict)

		clock.Advance(time.Minute)

		replacement := types.LinkRecord{Code: "promo", TargetURL: "https://new.example.com", CreatedAt: clock.Now()}
		require.NoError(t, storage.Put(ctx, replacement), "Expired code should be reusable")

		stored, err := storage.Get(ctx, "promo")
		require.NoError(t, err)
		assert.Equal(t, replacement, stored)
		assert.Equal(t, 1, storage.Len(), "Reclaiming must not add a second entry")
	})

	t.Run("Get", func(t *testing.T) {
		clock := newFakeClock()
		storage := NewInMemoryStorage(10, clock.Now, zap.NewNop())
		require.NoError(t, storage.Put(ctx, linkExpiringIn("short", clock, time.Millisecond)))

		_, err := storage.Get(ctx, "nonexistent")
		assert.ErrorIs(t, err, ErrNotFound)

		clock.Advance(time.Second)
		record, err := storage.Get(ctx, "short")
		assert.NoError(t, err, "Get returns records regardless of expiry")
		assert.Equal(t, "short", record.Code)
	})

	t.Run("ContainsLive", func(t *testing.T) {
		clock := newFakeClock()
		storage := NewInMemoryStorage(10, clock.Now, zap.NewNop())
		require.NoError(t, storage.Put(ctx, linkExpiringIn("brief", clock, time.Millisecond)))
		require.NoError(t, storage.Put(ctx, types.LinkRecord{Code: "forever", TargetURL: "https://example.com"}))

		live, err := storage.ContainsLive(ctx, "brief")
		require.NoError(t, err)
		assert.True(t, live)

		live, err = storage.ContainsLive(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, live)

		clock.Advance(2 * time.Millisecond)

		live, err = storage.ContainsLive(ctx, "brief")
		require.NoError(t, err)
		assert.False(t, live, "Expired record should not count as live")

		live, err = storage.ContainsLive(ctx, "forever")
		require.NoError(t, err)
		assert.True(t, live)
	})

	t.Run("EvictExpired", func(t *testing.T) {
		clock := newFakeClock()
		storage := NewInMemoryStorage(10, clock.Now, zap.NewNop())
		require.NoError(t, storage.Put(ctx, linkExpiringIn("a", clock, time.Minute)))
		require.NoError(t, storage.Put(ctx, linkExpiringIn("b", clock, time.Hour)))
		require.NoError(t, storage.Put(ctx, types.LinkRecord{Code: "c", TargetURL: "https://example.com"}))

		clock.Advance(2 * time.Minute)

		evicted, err := storage.EvictExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, evicted)
		assert.Equal(t, 2, storage.Len())

		_, err = storage.Get(ctx, "a")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Context cancellation", func(t *testing.T) {
		storage := NewInMemoryStorage(10, nil, zap.NewNop())
		cancelCtx, cancel := context.WithCancel(context.Background())
		cancel()

		err := storage.Put(cancelCtx, types.LinkRecord{Code: "cancelled", TargetURL: "https://cancelled.com"})
		assert.Equal(t, context.Canceled, err, "Expected error to be context.Canceled")
		assert.Equal(t, 0, storage.Len(), "Record should not have been stored")

		_, err = storage.Get(cancelCtx, "cancelled")
		assert.Equal(t, context.Canceled, err)

		_, err = storage.ContainsLive(cancelCtx, "cancelled")
		assert.Equal(t, context.Canceled, err)

		_, err = storage.EvictExpired(cancelCtx)
		assert.Equal(t, context.Canceled, err)
	})

	t.Run("Concurrent puts on one code", func(t *testing.T) {
		storage := NewInMemoryStorage(1000, nil, zap.NewNop())
		var wg sync.WaitGroup
		var successes, conflicts int32

		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := storage.Put(context.Background(), types.LinkRecord{
					Code:      "contended",
					TargetURL: fmt.Sprintf("https://example.com/%d", i),
				})
				switch err {
				case nil:
					atomic.AddInt32(&successes, 1)
				case ErrCodeConflict:
					atomic.AddInt32(&conflicts, 1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, int32(1), successes, "Exactly one put should win")
		assert.Equal(t, int32(49), conflicts)
	})

	t.Run("Concurrent operations", func(t *testing.T) {
		storage := NewInMemoryStorage(1000000, nil, zap.NewNop())
		var wg sync.WaitGroup

		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				code := fmt.Sprintf("short%d", i)
				target := fmt.Sprintf("https://example.com/%d", i)

				assert.NoError(t, storage.Put(context.Background(), types.LinkRecord{Code: code, TargetURL: target}))

				record, err := storage.Get(context.Background(), code)
				assert.NoError(t, err)
				assert.Equal(t, target, record.TargetURL)

				live, err := storage.ContainsLive(context.Background(), code)
				assert.NoError(t, err)
				assert.True(t, live)
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 100, storage.Len())
	})
}
