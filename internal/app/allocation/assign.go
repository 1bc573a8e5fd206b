package allocation

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/jose-valero/squad-allocator-bot/internal/domain"
)

// Assign coloca a un jugador con perfil completo que todavia no tiene lugar.
// Si no hay party ni sustitucion posible queda en la reserva (Outcome.Placed=false).
func (e *Engine) Assign(ctx context.Context, guildID, userID string) (Outcome, error) {
	var out Outcome
	err := e.withGuild(ctx, guildID, func() error {
		_, err := e.mutate(ctx, guildID, func(g *guildState) error {
			pl, ok := g.players[userID]
			if !ok {
				return ErrNotFound
			}
			o, err := g.assign(pl)
			out = o
			return err
		})
		return err
	})
	if err != nil {
		if !isPrecondition(err) {
			e.log.Error("assign failed", zap.String("guild", guildID), zap.String("user", userID), zap.Error(err))
		}
		return Outcome{}, err
	}
	e.metrics.ObserveAssign(out.label())
	e.log.Info("assign",
		zap.String("guild", guildID),
		zap.String("user", userID),
		zap.String("outcome", out.label()),
		zap.Int("party", out.PartyNumber))
	return out, nil
}

// assign corre dentro del lock y la transaccion del guild.
func (g *guildState) assign(pl *domain.Player) (Outcome, error) {
	if !pl.ProfileComplete() {
		return Outcome{}, ErrIncompleteProfile
	}
	if !g.settings.AutoAssignmentEnabled {
		return Outcome{}, ErrAutoAssignDisabled
	}
	if p := g.partyOf(pl.UserID); p != nil {
		// la party manda: re-sincronizamos la referencia y no hacemos nada mas
		if !pl.Placed() || *pl.PartyNumber != p.PartyNumber {
			pl.PlaceIn(p.PartyNumber)
			g.touchPlayer(pl)
		}
		return Outcome{}, ErrAlreadyPlaced
	}
	pl.Role = domain.ClassifyRole(pl.Weapon1, pl.Weapon2)

	out := g.place(pl)
	if !out.Placed {
		g.toReserve(pl, out.Reason)
		return out, nil
	}
	g.notify(domain.Notification{
		Kind:        domain.MemberAssigned,
		UserID:      pl.UserID,
		PartyNumber: out.PartyNumber,
		Role:        pl.Role,
	})
	return out, nil
}

func isPrecondition(err error) bool {
	return errors.Is(err, ErrIncompleteProfile) ||
		errors.Is(err, ErrAutoAssignDisabled) ||
		errors.Is(err, ErrAlreadyPlaced) ||
		errors.Is(err, ErrNotFound)
}
