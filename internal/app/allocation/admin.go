package allocation

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/jose-valero/squad-allocator-bot/internal/domain"
)

// RemoveMember: el miembro se fue del guild o un admin lo saco. Se borra su
// Player y se drena la reserva para rellenar el hueco.
func (e *Engine) RemoveMember(ctx context.Context, guildID, userID string) (DrainResult, error) {
	var res DrainResult
	err := e.withGuild(ctx, guildID, func() error {
		_, err := e.mutate(ctx, guildID, func(g *guildState) error {
			_, known := g.players[userID]
			p := g.partyOf(userID)
			if !known && p == nil {
				return ErrNotFound
			}
			if p != nil {
				p.Remove(userID)
				g.touchParty(p)
			}
			g.removePlayer(userID)
			res = g.drain()
			return nil
		})
		return err
	})
	if err != nil {
		return DrainResult{}, err
	}
	e.metrics.ObservePromotions(res.Promoted)
	e.log.Info("member removed", zap.String("guild", guildID), zap.String("user", userID), zap.Int("promoted", res.Promoted))
	return res, nil
}

// ClearParty manda a todos los miembros de la party a la reserva y la borra.
// No drena: si no, los mismos miembros volverian a la party recien creada.
func (e *Engine) ClearParty(ctx context.Context, guildID string, number int) (int, error) {
	moved := 0
	err := e.withGuild(ctx, guildID, func() error {
		_, err := e.mutate(ctx, guildID, func(g *guildState) error {
			p := g.party(number)
			if p == nil {
				return fmt.Errorf("party %d: %w", number, ErrNotFound)
			}
			for _, m := range append(p.Members[:0:0], p.Members...) {
				if _, ok := g.evict(p, m.UserID, reasonCleared(number)); ok {
					moved++
				}
			}
			g.deleteParty(number)
			return nil
		})
		return err
	})
	if err != nil {
		return 0, err
	}
	e.log.Info("party cleared", zap.String("guild", guildID), zap.Int("party", number), zap.Int("moved", moved))
	return moved, nil
}

// SetAutoAssignment prende o apaga la asignacion automatica. Al prenderla se
// asigna a quienes completaron el perfil mientras estaba apagada y se drena.
func (e *Engine) SetAutoAssignment(ctx context.Context, guildID string, enabled bool) (DrainResult, error) {
	var res DrainResult
	err := e.withGuild(ctx, guildID, func() error {
		_, err := e.mutate(ctx, guildID, func(g *guildState) error {
			was := g.settings.AutoAssignmentEnabled
			g.settings.AutoAssignmentEnabled = enabled
			g.settingsDirty = true
			if !enabled || was {
				return nil
			}
			res = g.drain()
			var pending []*domain.Player
			for _, pl := range g.players {
				if pl.ProfileComplete() && !pl.Placed() && !pl.InReserve && g.partyOf(pl.UserID) == nil {
					pending = append(pending, pl)
				}
			}
			sort.SliceStable(pending, func(i, j int) bool { return domain.ReserveLess(*pending[i], *pending[j]) })
			for _, pl := range pending {
				if _, err := g.assign(pl); err != nil && !isPrecondition(err) {
					return err
				}
				res.Processed++
				if pl.Placed() {
					res.Promoted++
				}
			}
			return nil
		})
		return err
	})
	return res, err
}

// SetMaxHealers cambia el tope de healers por party. Bajarlo fuerza un
// rebalanceo (los healers que sobran van a reserva); subirlo drena.
func (e *Engine) SetMaxHealers(ctx context.Context, guildID string, n int) error {
	if n < 1 || n > domain.MaxHealersUpperBound {
		return fmt.Errorf("%w: %d (1..%d)", ErrInvalidMaxHealers, n, domain.MaxHealersUpperBound)
	}
	return e.withGuild(ctx, guildID, func() error {
		old := 0
		_, err := e.mutate(ctx, guildID, func(g *guildState) error {
			old = g.caps.MaxHealers
			g.settings.MaxHealersPerParty = n
			g.settingsDirty = true
			g.caps = g.settings.Caps()
			if n > old {
				g.drain()
			}
			return nil
		})
		if err != nil {
			return err
		}
		if n < old {
			if _, err := e.rebalanceLocked(ctx, guildID, true); err != nil {
				return fmt.Errorf("rebalance after healer cap change: %w", err)
			}
		}
		return nil
	})
}

func (e *Engine) Settings(ctx context.Context, guildID string) (domain.GuildSettings, error) {
	return e.store.GetSettings(ctx, guildID)
}

// Reconcile corre solo la pasada de reparacion de invariantes.
func (e *Engine) Reconcile(ctx context.Context, guildID string) (ReconcileReport, error) {
	var rep ReconcileReport
	err := e.withGuild(ctx, guildID, func() error {
		_, err := e.mutate(ctx, guildID, func(g *guildState) error {
			rep = g.reconcile()
			return nil
		})
		return err
	})
	return rep, err
}

type Roster struct {
	Settings   domain.GuildSettings
	Parties    []domain.Party
	Reserve    []domain.Player
	Unassigned []domain.Player
}

// Roster: parties activas (miembros ordenados por rol y CP) y la reserva en
// el mismo orden que usa el drain.
func (e *Engine) Roster(ctx context.Context, guildID string) (Roster, error) {
	g, err := loadGuild(ctx, e.store, guildID, e.now())
	if err != nil {
		return Roster{}, err
	}
	r := Roster{Settings: g.settings}
	for _, p := range g.active() {
		cp := p.Clone()
		cp.SortMembers()
		r.Parties = append(r.Parties, cp)
	}
	for _, pl := range g.reserve() {
		r.Reserve = append(r.Reserve, *pl)
	}
	for _, pl := range g.players {
		if !pl.Placed() && !pl.InReserve {
			r.Unassigned = append(r.Unassigned, *pl)
		}
	}
	sort.Slice(r.Unassigned, func(i, j int) bool { return r.Unassigned[i].UserID < r.Unassigned[j].UserID })
	return r, nil
}
