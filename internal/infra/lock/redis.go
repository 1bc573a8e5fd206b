package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// borra la clave solo si sigue siendo nuestra
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// extiende el TTL solo si la clave sigue siendo nuestra
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Redis es un lock entre procesos (bot + lambdas) con SET NX y TTL.
// El TTL cubre el caso de un proceso que muere con el lock tomado; mientras el
// dueño vive, una goroutine lo renueva cada ttl/3 hasta el unlock.
type Redis struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

func NewRedis(rdb redis.UniversalClient, prefix string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Redis{rdb: rdb, prefix: prefix, ttl: ttl, retry: 100 * time.Millisecond}
}

func (l *Redis) Lock(ctx context.Context, key string) (func(), error) {
	k := l.prefix + key
	token := uuid.NewString()
	for {
		ok, err := l.rdb.SetNX(ctx, k, token, l.ttl).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			return nil, fmt.Errorf("redis lock %s: %w", k, err)
		}
		if ok {
			stop := make(chan struct{})
			renewed := make(chan struct{})
			go l.keepAlive(k, token, stop, renewed)
			var once sync.Once
			return func() {
				once.Do(func() {
					close(stop)
					<-renewed
					ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
					defer cancel()
					_ = releaseScript.Run(ctx, l.rdb, []string{k}, token).Err()
				})
			}, nil
		}
		select {
		case <-time.After(l.retry):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// keepAlive renueva el TTL hasta que cierren stop o hasta perder la clave.
func (l *Redis) keepAlive(k, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	every := max(l.ttl/3, time.Millisecond)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(context.Background(), every)
			n, err := renewScript.Run(ctx, l.rdb, []string{k}, token, l.ttl.Milliseconds()).Int64()
			cancel()
			if err == nil && n == 0 {
				// expiró o la tomó otro proceso
				return
			}
		}
	}
}
