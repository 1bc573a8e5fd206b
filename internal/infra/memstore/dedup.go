package memstore

import (
	"context"
	"sync"
	"time"
)

type Dedup struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

func NewDedup() *Dedup { return &Dedup{seen: map[string]time.Time{}} }

func (d *Dedup) Claim(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[key]; ok {
		return false, nil
	}
	d.seen[key] = time.Now()
	return true, nil
}

func (d *Dedup) Release(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, key)
	return nil
}

func (d *Dedup) Prune(_ context.Context, maxAge time.Duration) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var n int64
	cut := time.Now().Add(-maxAge)
	for k, t := range d.seen {
		if t.Before(cut) {
			delete(d.seen, k)
			n++
		}
	}
	return n, nil
}
