package discord

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdle = 10 * time.Minute

type userBucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// userLimiter: un token bucket por usuario para los botones del panel.
type userLimiter struct {
	mu      sync.Mutex
	buckets map[string]*userBucket
	every   time.Duration
	burst   int
}

func newUserLimiter(every time.Duration, burst int) *userLimiter {
	return &userLimiter{buckets: map[string]*userBucket{}, every: every, burst: burst}
}

func (l *userLimiter) Allow(userID string) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[userID]
	if !ok {
		if len(l.buckets) > 1024 {
			l.sweep(now)
		}
		b = &userBucket{lim: rate.NewLimiter(rate.Every(l.every), l.burst)}
		l.buckets[userID] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

func (l *userLimiter) sweep(now time.Time) {
	for id, b := range l.buckets {
		if now.Sub(b.seen) > limiterIdle {
			delete(l.buckets, id)
		}
	}
}
