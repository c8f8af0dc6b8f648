package authz

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/vet360/vet360/internal/rbac"
	"github.com/vet360/vet360/internal/shared"
)

type countingStore struct {
	*MemoryProfileStore
	fetches atomic.Int32
	delay   time.Duration
}

func (s *countingStore) Fetch(ctx context.Context, uid string) (Profile, error) {
	s.fetches.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.MemoryProfileStore.Fetch(ctx, uid)
}

func newCachedStore(t *testing.T, backing *countingStore) (*CachedProfileStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCachedProfileStore(backing, client, time.Minute, nil), mr
}

func TestCachedProfileStoreReadThrough(t *testing.T) {
	backing := &countingStore{MemoryProfileStore: NewMemoryProfileStore(staff("a", rbac.RoleAssistant))}
	store, mr := newCachedStore(t, backing)
	ctx := context.Background()

	first, err := store.Fetch(ctx, "a")
	require.NoError(t, err)
	require.True(t, mr.Exists(profileCacheKey("a")))

	second, err := store.Fetch(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, first.UID, second.UID)
	require.Equal(t, first.Role, second.Role)
	require.EqualValues(t, 1, backing.fetches.Load())

	mr.FastForward(2 * time.Minute)
	_, err = store.Fetch(ctx, "a")
	require.NoError(t, err)
	require.EqualValues(t, 2, backing.fetches.Load())
}

func TestCachedProfileStoreCoalescesConcurrentMisses(t *testing.T) {
	backing := &countingStore{MemoryProfileStore: NewMemoryProfileStore(staff("a", rbac.RoleAssistant)), delay: 50 * time.Millisecond}
	store, _ := newCachedStore(t, backing)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Fetch(context.Background(), "a")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, backing.fetches.Load())
}

func TestCachedProfileStoreUpdateInvalidates(t *testing.T) {
	backing := &countingStore{MemoryProfileStore: NewMemoryProfileStore(staff("a", rbac.RoleAssistant))}
	store, mr := newCachedStore(t, backing)
	ctx := context.Background()

	_, err := store.Fetch(ctx, "a")
	require.NoError(t, err)

	role := rbac.RoleVeterinarian
	require.NoError(t, store.Update(ctx, "a", ProfileUpdate{Role: &role}))
	require.False(t, mr.Exists(profileCacheKey("a")))

	updated, err := store.Fetch(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, rbac.RoleVeterinarian, updated.Role)
}

func TestCachedProfileStoreMissIsNotCached(t *testing.T) {
	backing := &countingStore{MemoryProfileStore: NewMemoryProfileStore()}
	store, mr := newCachedStore(t, backing)

	_, err := store.Fetch(context.Background(), "ghost")
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.False(t, mr.Exists(profileCacheKey("ghost")))

	role := rbac.RoleAdmin
	require.ErrorIs(t, store.Update(context.Background(), "ghost", ProfileUpdate{Role: &role}), shared.ErrNotFound)
}

func TestCachedProfileStoreWithoutRedis(t *testing.T) {
	backing := &countingStore{MemoryProfileStore: NewMemoryProfileStore(staff("a", rbac.RoleAssistant))}
	store := NewCachedProfileStore(backing, nil, time.Minute, nil)
	_, err := store.Fetch(context.Background(), "a")
	require.NoError(t, err)
	_, err = store.Fetch(context.Background(), "a")
	require.NoError(t, err)
	require.EqualValues(t, 2, backing.fetches.Load())
}

// cancelGatedStore blocks Fetch until release is closed or the call's ctx ends.
type cancelGatedStore struct {
	*MemoryProfileStore
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *cancelGatedStore) Fetch(ctx context.Context, uid string) (Profile, error) {
	s.once.Do(func() { close(s.started) })
	select {
	case <-s.release:
	case <-ctx.Done():
		return Profile{}, ctx.Err()
	}
	return s.MemoryProfileStore.Fetch(ctx, uid)
}

func TestCachedProfileStoreSharedLoadSurvivesFirstCallerCancel(t *testing.T) {
	backing := &cancelGatedStore{
		MemoryProfileStore: NewMemoryProfileStore(staff("a", rbac.RoleAdmin)),
		started:            make(chan struct{}),
		release:            make(chan struct{}),
	}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewCachedProfileStore(backing, client, time.Minute, nil)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := store.Fetch(firstCtx, "a")
		firstErr <- err
	}()
	<-backing.started

	type result struct {
		profile Profile
		err     error
	}
	second := make(chan result, 1)
	go func() {
		p, err := store.Fetch(context.Background(), "a")
		second <- result{p, err}
	}()
	// Let the second caller join the in-flight load before the first leaves.
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	require.ErrorIs(t, <-firstErr, context.Canceled)
	close(backing.release)

	select {
	case res := <-second:
		require.NoError(t, res.err)
		require.Equal(t, rbac.RoleAdmin, res.profile.Role)
	case <-time.After(2 * time.Second):
		t.Fatal("second caller never returned")
	}
	require.True(t, mr.Exists(profileCacheKey("a")))
}
