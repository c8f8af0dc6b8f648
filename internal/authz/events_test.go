package authz

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type refreshLog struct {
	mu   sync.Mutex
	uids []string
}

func (l *refreshLog) add(uid string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.uids = append(l.uids, uid)
}

func (l *refreshLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.uids...)
}

func newRedisClient(t *testing.T, mr *miniredis.Miniredis) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func listen(ctx context.Context, events *ProfileEvents) <-chan error {
	done := make(chan error, 1)
	go func() { done <- events.Listen(ctx) }()
	return done
}

func TestProfileEventsReachOtherInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	local, remote := &refreshLog{}, &refreshLog{}
	a := NewProfileEvents(newRedisClient(t, mr), local.add, nil)
	b := NewProfileEvents(newRedisClient(t, mr), remote.add, nil)

	ctx, cancel := context.WithCancel(context.Background())
	doneA := listen(ctx, a)
	doneB := listen(ctx, b)
	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(profileChangedChannel)[profileChangedChannel] == 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, a.ProfileChanged(ctx, "u-1"))
	require.Equal(t, []string{"u-1"}, local.list())
	require.Eventually(t, func() bool { return len(remote.list()) == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"u-1"}, remote.list())

	mr.Publish(profileChangedChannel, "not json")
	require.NoError(t, b.ProfileChanged(ctx, "u-2"))
	require.Eventually(t, func() bool { return len(local.list()) >= 2 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"u-1", "u-2"}, local.list())
	require.Equal(t, []string{"u-1", "u-2"}, remote.list())

	cancel()
	require.NoError(t, <-doneA)
	require.NoError(t, <-doneB)
}

func TestProfileEventsRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	refreshed := &refreshLog{}
	events := NewProfileEvents(newRedisClient(t, mr), refreshed.add, nil)
	mr.Close()

	err := events.ProfileChanged(context.Background(), "u-1")
	require.ErrorContains(t, err, "publish profile change")
	require.Equal(t, []string{"u-1"}, refreshed.list())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.ErrorContains(t, events.Listen(ctx), "subscribe profile changes")
}
