package allocation

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type CapacityResult struct {
	OldMax    int
	NewMax    int
	Created   []int
	Disbanded []int
	Drain     DrainResult
	Rebalance *RebalanceReport
}

// SetMaxParties cambia el techo de parties activas.
// Subir: crea las parties vacias que falten y drena la reserva.
// Bajar: disuelve (de mayor a menor) las parties por encima del techo, drena
// para rellenar las que quedan y corre un rebalanceo completo.
func (e *Engine) SetMaxParties(ctx context.Context, guildID string, newMax int) (CapacityResult, error) {
	if newMax < 1 || newMax > MaxPartiesLimit {
		return CapacityResult{}, fmt.Errorf("%w: %d (1..%d)", ErrInvalidMaxParties, newMax, MaxPartiesLimit)
	}
	var res CapacityResult
	err := e.withGuild(ctx, guildID, func() error {
		_, err := e.mutate(ctx, guildID, func(g *guildState) error {
			res.OldMax = g.settings.MaxParties
			res.NewMax = newMax
			g.settings.MaxParties = newMax
			g.settingsDirty = true

			switch {
			case newMax > res.OldMax:
				for n := 1; n <= newMax; n++ {
					if g.party(n) == nil {
						g.createParty(n)
						res.Created = append(res.Created, n)
					}
				}
			case newMax < res.OldMax:
				for i := len(g.parties) - 1; i >= 0; i-- {
					p := g.parties[i]
					if p.PartyNumber <= newMax {
						continue
					}
					for _, m := range append(p.Members[:0:0], p.Members...) {
						g.evict(p, m.UserID, reasonDisbanded(p.PartyNumber))
					}
					res.Disbanded = append(res.Disbanded, p.PartyNumber)
					g.deleteParty(p.PartyNumber)
				}
			}
			if newMax != res.OldMax {
				res.Drain = g.drain()
			}
			return nil
		})
		if err != nil {
			return err
		}
		e.metrics.ObservePromotions(res.Drain.Promoted)

		if newMax < res.OldMax {
			rep, err := e.rebalanceLocked(ctx, guildID, true)
			if err != nil {
				return fmt.Errorf("rebalance after shrink: %w", err)
			}
			res.Rebalance = &rep
		}
		return nil
	})
	if err != nil {
		e.log.Error("set max parties failed", zap.String("guild", guildID), zap.Int("max", newMax), zap.Error(err))
		return res, err
	}
	e.log.Info("max parties changed",
		zap.String("guild", guildID),
		zap.Int("old", res.OldMax),
		zap.Int("new", res.NewMax),
		zap.Ints("created", res.Created),
		zap.Ints("disbanded", res.Disbanded),
		zap.Int("promoted", res.Drain.Promoted))
	return res, nil
}
