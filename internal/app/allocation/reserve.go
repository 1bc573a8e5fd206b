package allocation

import (
	"context"

	"go.uber.org/zap"

	"github.com/jose-valero/squad-allocator-bot/internal/domain"
)

type DrainResult struct {
	Processed int
	Promoted  int
}

// AttemptPromotion intenta sacar de la reserva a un jugador puntual, con la
// misma logica de hueco-y-sustitucion que Assign. Si no entra sigue en reserva
// sin perder su antiguedad.
func (e *Engine) AttemptPromotion(ctx context.Context, guildID, userID string) (Outcome, error) {
	var out Outcome
	err := e.withGuild(ctx, guildID, func() error {
		_, err := e.mutate(ctx, guildID, func(g *guildState) error {
			pl, ok := g.players[userID]
			if !ok {
				return ErrNotFound
			}
			if !pl.InReserve || pl.Placed() {
				return ErrNotInReserve
			}
			out = g.promote(pl)
			return nil
		})
		return err
	})
	if err != nil {
		return Outcome{}, err
	}
	if out.Placed {
		e.metrics.ObservePromotions(1)
	}
	return out, nil
}

// Drain recorre la reserva una vez, en orden de prioridad, intentando promover
// a cada uno.
func (e *Engine) Drain(ctx context.Context, guildID string) (DrainResult, error) {
	var res DrainResult
	err := e.withGuild(ctx, guildID, func() error {
		_, err := e.mutate(ctx, guildID, func(g *guildState) error {
			res = g.drain()
			return nil
		})
		return err
	})
	if err != nil {
		e.log.Error("drain failed", zap.String("guild", guildID), zap.Error(err))
		return DrainResult{}, err
	}
	e.metrics.ObservePromotions(res.Promoted)
	e.log.Info("reserve drained",
		zap.String("guild", guildID),
		zap.Int("processed", res.Processed),
		zap.Int("promoted", res.Promoted))
	return res, nil
}

// drain toma la foto de la reserva al empezar: quien sea desplazado durante la
// pasada vuelve a la reserva pero no se reintenta hasta el proximo drain.
func (g *guildState) drain() DrainResult {
	var res DrainResult
	if !g.settings.AutoAssignmentEnabled {
		return res
	}
	for _, pl := range g.reserve() {
		if !pl.InReserve || pl.Placed() || !pl.ProfileComplete() {
			continue
		}
		res.Processed++
		if out := g.promote(pl); out.Placed {
			res.Promoted++
		}
	}
	return res
}

func (g *guildState) promote(pl *domain.Player) Outcome {
	pl.Role = domain.ClassifyRole(pl.Weapon1, pl.Weapon2)
	out := g.place(pl)
	if out.Placed {
		g.notify(domain.Notification{
			Kind:        domain.MemberPromoted,
			UserID:      pl.UserID,
			PartyNumber: out.PartyNumber,
			Role:        pl.Role,
		})
	}
	return out
}
