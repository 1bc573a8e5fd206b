package allocation

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/jose-valero/squad-allocator-bot/internal/domain"
)

// ProfileUpdate: los campos nil no se tocan. Un arma vacia tampoco.
type ProfileUpdate struct {
	GuildID string
	UserID  string
	Weapon1 *string
	Weapon2 *string
	CP      *int
}

type ProfileResult struct {
	Player  domain.Player
	Outcome *Outcome
	// Moved: el cambio de rol lo saco de su party
	Moved bool
}

// UpdateProfile aplica el cambio de perfil, re-deriva el rol y re-sincroniza
// el snapshot embebido en la party. Con el perfil completo y sin lugar corre
// la asignacion; si estaba en reserva intenta promoverlo.
func (e *Engine) UpdateProfile(ctx context.Context, u ProfileUpdate) (ProfileResult, error) {
	if u.CP != nil && *u.CP < 0 {
		return ProfileResult{}, ErrInvalidCP
	}
	var res ProfileResult
	err := e.withGuild(ctx, u.GuildID, func() error {
		_, err := e.mutate(ctx, u.GuildID, func(g *guildState) error {
			pl, ok := g.players[u.UserID]
			if !ok {
				pl = &domain.Player{GuildID: u.GuildID, UserID: u.UserID, Role: domain.RoleDPS, CreatedAt: g.now}
				g.players[u.UserID] = pl
			}
			if u.Weapon1 != nil && strings.TrimSpace(*u.Weapon1) != "" {
				pl.Weapon1 = domain.NormalizeWeapon(*u.Weapon1)
			}
			if u.Weapon2 != nil && strings.TrimSpace(*u.Weapon2) != "" {
				pl.Weapon2 = domain.NormalizeWeapon(*u.Weapon2)
			}
			if u.CP != nil {
				pl.CP = *u.CP
			}
			pl.Role = domain.ClassifyRole(pl.Weapon1, pl.Weapon2)
			g.touchPlayer(pl)

			out, moved := g.syncProfile(pl)
			res.Outcome = out
			res.Moved = moved
			res.Player = *pl
			return nil
		})
		return err
	})
	if err != nil {
		e.log.Error("profile update failed", zap.String("guild", u.GuildID), zap.String("user", u.UserID), zap.Error(err))
		return ProfileResult{}, err
	}
	if res.Outcome != nil {
		e.metrics.ObserveAssign(res.Outcome.label())
	}
	return res, nil
}

func (g *guildState) syncProfile(pl *domain.Player) (*Outcome, bool) {
	if p := g.partyOf(pl.UserID); p != nil {
		i := p.IndexOf(pl.UserID)
		old := p.Members[i]
		if old.Role != pl.Role && p.Count(pl.Role) >= g.caps.For(pl.Role) {
			// el rol nuevo no entra en su party: sale y se reubica
			p.Remove(pl.UserID)
			g.touchParty(p)
			pl.Unplace()
			out := g.place(pl)
			if !out.Placed {
				g.toReserve(pl, ReasonRoleChanged)
				return &out, true
			}
			g.notify(domain.Notification{
				Kind:        domain.MemberMoved,
				UserID:      pl.UserID,
				PartyNumber: out.PartyNumber,
				FromParty:   p.PartyNumber,
				ToParty:     out.PartyNumber,
				Role:        pl.Role,
				Reason:      ReasonRoleChanged,
			})
			return &out, true
		}
		m := &p.Members[i]
		m.Weapon1, m.Weapon2, m.CP, m.Role = pl.Weapon1, pl.Weapon2, pl.CP, pl.Role
		g.touchParty(p)
		pl.PlaceIn(p.PartyNumber)
		return nil, false
	}

	if !pl.ProfileComplete() || !g.settings.AutoAssignmentEnabled {
		return nil, false
	}
	if pl.InReserve {
		out := g.promote(pl)
		return &out, false
	}
	if pl.Placed() {
		// referencia colgada: la party no lo tiene
		pl.Unplace()
	}
	out, err := g.assign(pl)
	if err != nil {
		return nil, false
	}
	return &out, false
}

// Profile devuelve el Player tal como esta persistido.
func (e *Engine) Profile(ctx context.Context, guildID, userID string) (domain.Player, error) {
	return e.store.GetPlayer(ctx, guildID, userID)
}
