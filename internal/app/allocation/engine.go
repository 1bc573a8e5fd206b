// Package allocation reparte a los miembros de un guild en parties de tamaño
// fijo segun rol y CP, mantiene la reserva cuando no hay lugar y rebalancea
// periodicamente para concentrar la fuerza en las parties de numero bajo.
package allocation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jose-valero/squad-allocator-bot/internal/app/partystore"
	"github.com/jose-valero/squad-allocator-bot/internal/domain"
)

const (
	DefaultRebalanceInterval = 72 * time.Hour
	DefaultRebalanceDebounce = 5 * time.Minute
	MaxPartiesLimit          = 50

	notifyTimeout = 10 * time.Second
)

type Engine struct {
	store    partystore.Store
	notifier Notifier
	locker   Locker
	log      *zap.Logger
	metrics  Metrics

	now      func() time.Time
	dispatch func(func())

	rebalanceInterval time.Duration
	rebalanceDebounce time.Duration
}

type Option func(*Engine)

func WithMetrics(m Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithRebalanceInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.rebalanceInterval = d
		}
	}
}

func WithRebalanceDebounce(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.rebalanceDebounce = d
		}
	}
}

// WithSyncNotify manda las notificaciones en la misma goroutine, después del
// commit y antes de volver. Para procesos que terminan al responder (lambdas),
// donde una goroutine suelta se congela con el runtime. Errores y panics del
// notifier se loguean igual y no cambian el resultado de la operación.
func WithSyncNotify() Option {
	return func(e *Engine) { e.dispatch = func(f func()) { f() } }
}

func New(store partystore.Store, notifier Notifier, locker Locker, log *zap.Logger, opts ...Option) *Engine {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		store:             store,
		notifier:          notifier,
		locker:            locker,
		log:               log.Named("allocation"),
		metrics:           nopMetrics{},
		now:               time.Now,
		dispatch:          func(f func()) { go f() },
		rebalanceInterval: DefaultRebalanceInterval,
		rebalanceDebounce: DefaultRebalanceDebounce,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// withGuild serializa las operaciones de un mismo guild.
func (e *Engine) withGuild(ctx context.Context, guildID string, fn func() error) error {
	if e.locker == nil {
		return fn()
	}
	unlock, err := e.locker.Lock(ctx, "guild:"+guildID)
	if err != nil {
		return fmt.Errorf("lock guild %s: %w", guildID, err)
	}
	defer unlock()
	return fn()
}

// mutate carga el estado del guild dentro de una transaccion, aplica fn y
// persiste lo que quedo sucio. Las notificaciones salen solo si hubo commit.
func (e *Engine) mutate(ctx context.Context, guildID string, fn func(g *guildState) error) (*guildState, error) {
	var out *guildState
	err := e.store.WithTx(ctx, guildID, func(tx partystore.Store) error {
		g, err := loadGuild(ctx, tx, guildID, e.now())
		if err != nil {
			return err
		}
		if err := fn(g); err != nil {
			return err
		}
		if err := g.flush(ctx, tx); err != nil {
			return err
		}
		out = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.metrics.SetReserveSize(guildID, out.reserveSize())
	e.notify(out.notes)
	return out, nil
}

// notify nunca falla la operacion: un DM que falla o entra en panic se loguea.
// Con el dispatch por defecto tampoco la demora.
func (e *Engine) notify(notes []domain.Notification) {
	for _, n := range notes {
		e.dispatch(func() {
			defer func() {
				if rec := recover(); rec != nil {
					e.log.Error("notifier panic", zap.Any("recover", rec), zap.String("user", n.UserID))
				}
			}()
			ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
			defer cancel()
			if err := e.notifier.Notify(ctx, n); err != nil {
				e.log.Warn("notification failed",
					zap.String("guild", n.GuildID),
					zap.String("user", n.UserID),
					zap.String("kind", string(n.Kind)),
					zap.Error(err))
			}
		})
	}
}
