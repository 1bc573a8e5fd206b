package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLock(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	l := NewRedis(rdb, "test:", ttl)
	l.retry = 5 * time.Millisecond
	return l, mr
}

func TestRedis_LockAndRelease(t *testing.T) {
	l, mr := newRedisLock(t, time.Minute)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "guild:a")
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:guild:a"))
	assert.Equal(t, time.Minute, mr.TTL("test:guild:a"))

	unlock()
	unlock() // idempotente
	assert.False(t, mr.Exists("test:guild:a"))

	again, err := l.Lock(ctx, "guild:a")
	require.NoError(t, err)
	again()
}

func TestRedis_SerializesSameKey(t *testing.T) {
	l, _ := newRedisLock(t, time.Minute)
	ctx := context.Background()

	var mu sync.Mutex
	inside, maxInside := 0, 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "guild:a")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			inside++
			maxInside = max(maxInside, inside)
			mu.Unlock()
			time.Sleep(2 * time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxInside)
}

func TestRedis_RespectsContext(t *testing.T) {
	l, _ := newRedisLock(t, time.Minute)
	unlock, err := l.Lock(context.Background(), "guild:a")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "guild:a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	other, err := l.Lock(context.Background(), "guild:b")
	require.NoError(t, err)
	other()
}

func TestRedis_StaleUnlockKeepsNewOwner(t *testing.T) {
	l, mr := newRedisLock(t, 300*time.Millisecond)
	ctx := context.Background()

	first, err := l.Lock(ctx, "guild:a")
	require.NoError(t, err)

	// el primer dueño se cuelga más que el TTL y la clave expira
	mr.FastForward(time.Second)
	require.False(t, mr.Exists("test:guild:a"))

	second, err := l.Lock(ctx, "guild:a")
	require.NoError(t, err)
	owner, err := mr.Get("test:guild:a")
	require.NoError(t, err)

	first()
	got, err := mr.Get("test:guild:a")
	require.NoError(t, err, "el unlock viejo no debe borrar la clave del nuevo dueño")
	assert.Equal(t, owner, got)

	second()
	assert.False(t, mr.Exists("test:guild:a"))
}

func TestRedis_RenewsWhileHeld(t *testing.T) {
	ttl := 150 * time.Millisecond
	l, mr := newRedisLock(t, ttl)

	unlock, err := l.Lock(context.Background(), "guild:a")
	require.NoError(t, err)

	// miniredis solo descuenta TTL con FastForward: lo dejamos casi vencido
	mr.FastForward(ttl - 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		return mr.TTL("test:guild:a") > ttl/2
	}, time.Second, 5*time.Millisecond, "la renovación debe volver a estirar el TTL")
	assert.True(t, mr.Exists("test:guild:a"))

	unlock()
	assert.False(t, mr.Exists("test:guild:a"))
}
