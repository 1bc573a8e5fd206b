package allocation

import (
	"context"
	"time"

	"github.com/jose-valero/squad-allocator-bot/internal/domain"
)

// Lo implementa internal/adapters/discord.DMNotifier
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// Lo implementan internal/infra/lock.Local y lock.Redis.
// Lock bloquea hasta obtener la clave o hasta que ctx venza.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Lo implementa internal/infra/metrics.Prometheus
type Metrics interface {
	ObserveAssign(outcome string)
	ObservePromotions(n int)
	ObserveRebalance(d time.Duration, err error)
	SetReserveSize(guildID string, n int)
}

type nopMetrics struct{}

func (nopMetrics) ObserveAssign(string)                  {}
func (nopMetrics) ObservePromotions(int)                 {}
func (nopMetrics) ObserveRebalance(time.Duration, error) {}
func (nopMetrics) SetReserveSize(string, int)            {}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, domain.Notification) error { return nil }
