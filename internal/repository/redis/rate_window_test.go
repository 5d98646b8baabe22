package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*rateWindowStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRateWindowStore(client).(*rateWindowStore), mr
}

func TestRateWindowStore_Hit_Boundary(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	accountID := uuid.New()
	t0 := time.UnixMilli(1_700_000_000_000)

	for i := 0; i < 2; i++ {
		d, err := store.Hit(ctx, accountID, 3, time.Minute, 5*time.Minute, t0.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, i+1, d.Count)
	}

	// limit-1 entries in the window: the last slot is granted.
	d, err := store.Hit(ctx, accountID, 3, time.Minute, 5*time.Minute, t0.Add(2*time.Second))
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 3, d.Count)

	d, err = store.Hit(ctx, accountID, 3, time.Minute, 5*time.Minute, t0.Add(3*time.Second))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 3, d.Count)
	assert.Equal(t, 3, d.Limit)
	assert.Equal(t, 57*time.Second, d.RetryAfter)

	// The rejected hit did not extend the window.
	d, err = store.Hit(ctx, accountID, 3, time.Minute, 5*time.Minute, t0.Add(61*time.Second))
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Count)
}

func TestRateWindowStore_Hit_PrunesPastRetention(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	accountID := uuid.New()
	t0 := time.UnixMilli(1_700_000_000_000)

	for i := 0; i < 3; i++ {
		_, err := store.Hit(ctx, accountID, 10, time.Minute, 5*time.Minute, t0.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
	}
	_, err := store.Hit(ctx, accountID, 10, time.Minute, 5*time.Minute, t0.Add(10*time.Minute))
	require.NoError(t, err)

	members, err := mr.ZMembers(store.Key(accountID))
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestRateWindowStore_Hit_ConcurrentHitsNeverOvershoot(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	accountID := uuid.New()
	now := time.UnixMilli(1_700_000_000_000)

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := store.Hit(ctx, accountID, 5, time.Minute, 5*time.Minute, now)
			if assert.NoError(t, err) && d.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), allowed.Load())
}

func TestRateWindowStore_AccountsAreIsolated(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000)
	a, b := uuid.New(), uuid.New()

	d, err := store.Hit(ctx, a, 1, time.Minute, 5*time.Minute, now)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	d, err = store.Hit(ctx, b, 1, time.Minute, 5*time.Minute, now)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.NoError(t, store.Ping(ctx))
}
