package allocation

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RunPeriodic chequea cada `every` que guilds necesitan su rebalanceo
// periodico. Bloquea hasta que ctx se cancele. Un fallo (o panic) se loguea y
// se reintenta en el proximo tick; nunca tira el proceso.
func (e *Engine) RunPeriodic(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			e.periodicTick(ctx)
		}
	}
}

func (e *Engine) periodicTick(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			e.log.Error("periodic rebalance panic", zap.Any("recover", rec))
		}
	}()
	rep, err := e.RebalanceAll(ctx, false)
	if err != nil {
		e.log.Warn("periodic rebalance finished with errors",
			zap.Strings("ran", rep.Ran),
			zap.Int("failed", len(rep.Failed)),
			zap.Error(err))
		return
	}
	if len(rep.Ran) > 0 {
		e.log.Info("periodic rebalance", zap.Strings("ran", rep.Ran), zap.Int("skipped", len(rep.Skipped)))
	}
}
