package allocation

import (
	"github.com/jose-valero/squad-allocator-bot/internal/domain"
)

// ReconcileReport cuenta lo que se reparo. Todo en cero = estado sano.
type ReconcileReport struct {
	DuplicatesRemoved int
	StrayParties      int
	PlayersRelinked   int
	PlayersReserved   int
	SnapshotsSynced   int
}

func (r ReconcileReport) Clean() bool { return r == ReconcileReport{} }

// reconcile restaura los invariantes entre parties y players. Es idempotente
// y corre al principio de cada operacion batch.
//
//  1. un userID aparece una sola vez en todo el guild (gana la primera aparicion, por numero de party)
//  2. parties por encima de maxParties se disuelven a la reserva
//  3. el snapshot embebido refleja armas, CP y rol del Player
//  4. Player.PartyNumber apunta a la party que realmente lo contiene
func (g *guildState) reconcile() ReconcileReport {
	var rep ReconcileReport

	seen := map[string]bool{}
	for _, p := range g.parties {
		kept := p.Members[:0:0]
		for _, m := range p.Members {
			if seen[m.UserID] {
				rep.DuplicatesRemoved++
				continue
			}
			seen[m.UserID] = true
			kept = append(kept, m)
		}
		if len(kept) != len(p.Members) {
			p.Members = kept
			g.touchParty(p)
		}
	}

	for _, p := range append([]*domain.Party(nil), g.parties...) {
		if p.PartyNumber <= g.settings.MaxParties {
			continue
		}
		rep.StrayParties++
		for _, m := range append([]domain.PartyMember(nil), p.Members...) {
			g.evict(p, m.UserID, reasonDisbanded(p.PartyNumber))
		}
		g.deleteParty(p.PartyNumber)
	}

	holder := map[string]int{}
	for _, p := range g.parties {
		changed := false
		for i := range p.Members {
			m := &p.Members[i]
			holder[m.UserID] = p.PartyNumber
			pl := g.player(*m)
			role := domain.ClassifyRole(pl.Weapon1, pl.Weapon2)
			if pl.Role != role {
				pl.Role = role
				g.touchPlayer(pl)
			}
			if m.Weapon1 != pl.Weapon1 || m.Weapon2 != pl.Weapon2 || m.CP != pl.CP || m.Role != pl.Role {
				m.Weapon1, m.Weapon2, m.CP, m.Role = pl.Weapon1, pl.Weapon2, pl.CP, pl.Role
				rep.SnapshotsSynced++
				changed = true
			}
		}
		before := p.TotalCP
		beforeRoles := p.Roles
		p.Recompute()
		if changed || p.TotalCP != before || p.Roles != beforeRoles {
			g.touchParty(p)
		}
	}

	for _, pl := range g.players {
		n, inParty := holder[pl.UserID]
		switch {
		case inParty && (!pl.Placed() || *pl.PartyNumber != n || pl.InReserve):
			pl.PlaceIn(n)
			g.touchPlayer(pl)
			rep.PlayersRelinked++
		case !inParty && pl.Placed():
			if pl.ProfileComplete() {
				g.toReserve(pl, ReasonPlacementLost)
				rep.PlayersReserved++
			} else {
				pl.Unplace()
				g.touchPlayer(pl)
				rep.PlayersRelinked++
			}
		}
	}
	return rep
}
