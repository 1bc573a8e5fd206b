package allocation

import (
	"fmt"

	"github.com/jose-valero/squad-allocator-bot/internal/domain"
)

// motivos de reserva (se muestran al usuario)
const (
	ReasonNoSlot          = "sin lugar disponible para tu rol"
	ReasonRebalanceNoSlot = "sin lugar tras el rebalanceo"
	ReasonPlacementLost   = "tu lugar en la party se perdio, quedas en reserva"
	ReasonRebalance       = "rebalanceo de fuerza"
	ReasonRoleChanged     = "cambio de rol"
)

func reasonReplaced(r domain.Role) string { return fmt.Sprintf("reemplazado por un %s con mas CP", r) }
func reasonDisbanded(n int) string        { return fmt.Sprintf("la party %d fue disuelta", n) }
func reasonCleared(n int) string          { return fmt.Sprintf("la party %d fue vaciada por un admin", n) }

// Outcome es el resultado estructurado de colocar a un jugador.
// Quedar en reserva no es un error.
type Outcome struct {
	Placed        bool
	PartyNumber   int
	CreatedParty  bool
	Substituted   bool
	Displaced     *domain.PartyMember
	DisplacedFrom int
	Reason        string
}

func (o Outcome) label() string {
	switch {
	case !o.Placed:
		return "reserved"
	case o.Substituted:
		return "substituted"
	default:
		return "placed"
	}
}

// place intenta meter al jugador en una party activa. No lo manda a la reserva
// si no hay lugar ni notifica: eso lo decide quien llama (assign, promocion,
// cambio de rol).
//
// tank/healer: primera party bajo el tope del rol con lugar; si no, una party
// nueva si queda numero libre; si estamos en el techo, sustitucion.
// dps: primera party viable con lugar, despues cualquiera con lugar, party
// nueva, y por ultimo sustitucion del dps mas debil.
func (g *guildState) place(pl *domain.Player) Outcome {
	var out Outcome
	var ok bool
	if pl.Role == domain.RoleDPS {
		out, ok = g.placeDPS(pl)
	} else {
		out, ok = g.placeCapped(pl)
	}
	if !ok {
		return Outcome{Reason: ReasonNoSlot}
	}
	return out
}

func (g *guildState) placeCapped(pl *domain.Player) (Outcome, bool) {
	limit := g.caps.For(pl.Role)
	for _, p := range g.active() {
		if p.Count(pl.Role) < limit && p.HasRoom() {
			g.placeMember(p, pl)
			return Outcome{Placed: true, PartyNumber: p.PartyNumber}, true
		}
	}
	if out, ok := g.placeInNewParty(pl); ok {
		return out, true
	}
	return g.substitute(pl)
}

func (g *guildState) placeDPS(pl *domain.Player) (Outcome, bool) {
	active := g.active()
	for _, p := range active {
		if p.Viable() && p.HasRoom() {
			g.placeMember(p, pl)
			return Outcome{Placed: true, PartyNumber: p.PartyNumber}, true
		}
	}
	for _, p := range active {
		if p.HasRoom() {
			g.placeMember(p, pl)
			return Outcome{Placed: true, PartyNumber: p.PartyNumber}, true
		}
	}
	if out, ok := g.placeInNewParty(pl); ok {
		return out, true
	}
	return g.substitute(pl)
}

func (g *guildState) placeInNewParty(pl *domain.Player) (Outcome, bool) {
	n, ok := g.freeNumber()
	if !ok {
		return Outcome{}, false
	}
	p := g.createParty(n)
	g.placeMember(p, pl)
	return Outcome{Placed: true, PartyNumber: n, CreatedParty: true}, true
}

// substitute recorre las parties asc y en la primera donde el mas debil del
// mismo rol tiene menos CP lo manda a la reserva y mete al nuevo. Gana la
// party de numero mas bajo, no el titular mas debil del guild.
func (g *guildState) substitute(pl *domain.Player) (Outcome, bool) {
	for _, p := range g.active() {
		w, ok := p.Weakest(pl.Role)
		if !ok || pl.CP <= w.CP {
			continue
		}
		displaced, _ := g.evict(p, w.UserID, reasonReplaced(pl.Role))
		g.placeMember(p, pl)
		return Outcome{
			Placed:        true,
			PartyNumber:   p.PartyNumber,
			Substituted:   true,
			Displaced:     &displaced,
			DisplacedFrom: p.PartyNumber,
		}, true
	}
	return Outcome{}, false
}
