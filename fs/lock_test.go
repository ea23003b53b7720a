package fs_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fwojciec/cratedoc"
	"github.com/fwojciec/cratedoc/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Story: Per-Key Reservation
// Work on one cache key is serialized across goroutines and processes.

func TestStore_ReserveSerializesSameKey(t *testing.T) {
	t.Parallel()

	// Given a store and many goroutines reserving the same key
	store := fs.NewStore(t.TempDir())
	store.PollInterval = time.Millisecond
	key := registryKey("serde", "1.0.0")

	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, lock, err := store.Reserve(context.Background(), key)
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(2 * time.Millisecond)
			inside.Add(-1)
			assert.NoError(t, lock.Release())
		}()
	}
	wg.Wait()

	// Then at most one goroutine held the key at a time
	assert.Equal(t, int32(1), maxSeen.Load())
}

func TestStore_ReserveDifferentKeysRunInParallel(t *testing.T) {
	t.Parallel()

	store := fs.NewStore(t.TempDir())
	store.LockTimeout = 100 * time.Millisecond

	_, a, err := store.Reserve(context.Background(), registryKey("serde", "1.0.0"))
	require.NoError(t, err)
	defer a.Release()

	_, b, err := store.Reserve(context.Background(), registryKey("serde", "1.0.1"))
	require.NoError(t, err)
	require.NoError(t, b.Release())
}

func TestStore_ReserveIsReentrantWithinOperation(t *testing.T) {
	t.Parallel()

	// Given a held reservation
	store := fs.NewStore(t.TempDir())
	store.LockTimeout = 50 * time.Millisecond
	key := registryKey("serde", "1.0.0")

	ctx, outer, err := store.Reserve(context.Background(), key)
	require.NoError(t, err)

	// When the same operation reserves again with its context
	_, inner, err := store.Reserve(ctx, key)

	// Then it succeeds immediately
	require.NoError(t, err)
	require.NoError(t, inner.Release())

	// And an unrelated operation still has to wait
	_, _, err = store.Reserve(context.Background(), key)
	assert.Equal(t, cratedoc.ELOCKTIMEOUT, cratedoc.ErrorCode(err))
	assert.True(t, cratedoc.IsRetryable(err))

	require.NoError(t, outer.Release())
}

func TestStore_ReserveExcludesOtherProcesses(t *testing.T) {
	t.Parallel()

	// Given two stores sharing one cache directory, as two processes would
	root := t.TempDir()
	first := fs.NewStore(root)
	second := fs.NewStore(root)
	second.LockTimeout = 50 * time.Millisecond
	second.PollInterval = 5 * time.Millisecond
	key := registryKey("tokio", "1.40.0")

	_, lock, err := first.Reserve(context.Background(), key)
	require.NoError(t, err)

	// When the second store tries to reserve the key
	_, _, err = second.Reserve(context.Background(), key)

	// Then it times out
	assert.Equal(t, cratedoc.ELOCKTIMEOUT, cratedoc.ErrorCode(err))

	// And succeeds once the first releases
	require.NoError(t, lock.Release())
	_, lock2, err := second.Reserve(context.Background(), key)
	require.NoError(t, err)
	require.NoError(t, lock2.Release())
}

func TestStore_ReleaseIsIdempotent(t *testing.T) {
	t.Parallel()

	store := fs.NewStore(t.TempDir())
	_, lock, err := store.Reserve(context.Background(), registryKey("serde", "1.0.0"))
	require.NoError(t, err)

	require.NoError(t, lock.Release())
	require.NoError(t, lock.Release())
}

func TestStore_ReserveHonoursCancellation(t *testing.T) {
	t.Parallel()

	store := fs.NewStore(t.TempDir())
	key := registryKey("serde", "1.0.0")
	_, lock, err := store.Reserve(context.Background(), key)
	require.NoError(t, err)
	defer lock.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err = store.Reserve(ctx, key)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_ReserveOriginScope(t *testing.T) {
	t.Parallel()

	// Given an origin reservation for a repository whose version is unknown
	store := fs.NewStore(t.TempDir())
	store.LockTimeout = 50 * time.Millisecond
	origin := cratedoc.Origin{Kind: cratedoc.OriginRepository, Locator: "https://github.com/example/foo", Ref: "main"}
	scope := cratedoc.CacheKey{Name: "foo", Origin: origin}

	ctx, lock, err := store.Reserve(context.Background(), scope)
	require.NoError(t, err)
	defer lock.Release()

	// Then the final key can be reserved inside the same operation
	_, inner, err := store.Reserve(ctx, cratedoc.CacheKey{Name: "foo", Version: "0.1.0", Origin: origin})
	require.NoError(t, err)
	require.NoError(t, inner.Release())

	// And a second origin reservation waits
	_, _, err = store.Reserve(context.Background(), scope)
	assert.Equal(t, cratedoc.ELOCKTIMEOUT, cratedoc.ErrorCode(err))
}

func TestStore_ReserveRejectsInvalidKeys(t *testing.T) {
	t.Parallel()

	store := fs.NewStore(t.TempDir())

	_, _, err := store.Reserve(context.Background(), cratedoc.CacheKey{Name: "../x", Version: "1.0.0", Origin: cratedoc.RegistryOrigin()})

	assert.Equal(t, cratedoc.EINVALID, cratedoc.ErrorCode(err))
}

func registryKey(name, version string) cratedoc.CacheKey {
	return cratedoc.CacheKey{Name: name, Version: version, Origin: cratedoc.RegistryOrigin()}
}
