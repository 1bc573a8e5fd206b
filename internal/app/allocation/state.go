package allocation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jose-valero/squad-allocator-bot/internal/app/partystore"
	"github.com/jose-valero/squad-allocator-bot/internal/domain"
)

// guildState es la foto en memoria de un guild durante una operacion.
// Todo se calcula aca y despues flush escribe solo lo que cambio.
type guildState struct {
	guildID  string
	settings domain.GuildSettings
	caps     domain.Caps
	now      time.Time

	parties []*domain.Party // todas, por numero asc
	players map[string]*domain.Player

	dirtyParties   map[int]bool
	deletedParties map[int]bool
	dirtyPlayers   map[string]bool
	deletedPlayers map[string]bool
	settingsDirty  bool

	notes []domain.Notification
}

func loadGuild(ctx context.Context, st partystore.Store, guildID string, now time.Time) (*guildState, error) {
	settings, err := st.GetSettings(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	parties, err := st.ListParties(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("load parties: %w", err)
	}
	players, err := st.ListPlayers(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("load players: %w", err)
	}

	g := &guildState{
		guildID:        guildID,
		settings:       settings,
		caps:           settings.Caps(),
		now:            now,
		players:        make(map[string]*domain.Player, len(players)),
		dirtyParties:   map[int]bool{},
		deletedParties: map[int]bool{},
		dirtyPlayers:   map[string]bool{},
		deletedPlayers: map[string]bool{},
	}
	for i := range parties {
		p := parties[i].Clone()
		g.parties = append(g.parties, &p)
	}
	sort.Slice(g.parties, func(i, j int) bool { return g.parties[i].PartyNumber < g.parties[j].PartyNumber })
	for i := range players {
		p := players[i]
		g.players[p.UserID] = &p
	}
	return g, nil
}

// active: parties con numero <= maxParties, asc.
func (g *guildState) active() []*domain.Party {
	out := make([]*domain.Party, 0, len(g.parties))
	for _, p := range g.parties {
		if p.PartyNumber <= g.settings.MaxParties {
			out = append(out, p)
		}
	}
	return out
}

func (g *guildState) party(n int) *domain.Party {
	for _, p := range g.parties {
		if p.PartyNumber == n {
			return p
		}
	}
	return nil
}

// partyOf devuelve la party que contiene al usuario (la party manda, no el Player).
func (g *guildState) partyOf(userID string) *domain.Party {
	for _, p := range g.parties {
		if p.Has(userID) {
			return p
		}
	}
	return nil
}

// freeNumber: el menor entero positivo sin party y <= maxParties.
func (g *guildState) freeNumber() (int, bool) {
	used := make(map[int]bool, len(g.parties))
	for _, p := range g.parties {
		used[p.PartyNumber] = true
	}
	for n := 1; n <= g.settings.MaxParties; n++ {
		if !used[n] {
			return n, true
		}
	}
	return 0, false
}

func (g *guildState) createParty(n int) *domain.Party {
	p := domain.NewParty(g.guildID, n)
	p.CreatedAt = g.now
	g.parties = append(g.parties, &p)
	sort.Slice(g.parties, func(i, j int) bool { return g.parties[i].PartyNumber < g.parties[j].PartyNumber })
	delete(g.deletedParties, n)
	g.dirtyParties[n] = true
	return &p
}

func (g *guildState) deleteParty(n int) {
	for i, p := range g.parties {
		if p.PartyNumber == n {
			g.parties = append(g.parties[:i], g.parties[i+1:]...)
			break
		}
	}
	delete(g.dirtyParties, n)
	g.deletedParties[n] = true
}

func (g *guildState) touchParty(p *domain.Party) {
	p.Recompute()
	p.UpdatedAt = g.now
	g.dirtyParties[p.PartyNumber] = true
}

func (g *guildState) touchPlayer(p *domain.Player) {
	p.UpdatedAt = g.now
	g.dirtyPlayers[p.UserID] = true
	delete(g.deletedPlayers, p.UserID)
}

func (g *guildState) removePlayer(userID string) {
	delete(g.players, userID)
	delete(g.dirtyPlayers, userID)
	g.deletedPlayers[userID] = true
}

func (g *guildState) notify(n domain.Notification) {
	n.GuildID = g.guildID
	g.notes = append(g.notes, n)
}

// player devuelve el Player del usuario; si falta (party sin Player) lo
// reconstruye desde el snapshot.
func (g *guildState) player(m domain.PartyMember) *domain.Player {
	if pl, ok := g.players[m.UserID]; ok {
		return pl
	}
	pl := &domain.Player{
		GuildID:   g.guildID,
		UserID:    m.UserID,
		Weapon1:   m.Weapon1,
		Weapon2:   m.Weapon2,
		Role:      m.Role,
		CP:        m.CP,
		CreatedAt: g.now,
	}
	g.players[m.UserID] = pl
	g.touchPlayer(pl)
	return pl
}

// placeMember mete al jugador en la party y actualiza su back-reference.
func (g *guildState) placeMember(p *domain.Party, pl *domain.Player) {
	p.Add(pl.Snapshot(g.now))
	g.touchParty(p)
	pl.PlaceIn(p.PartyNumber)
	g.touchPlayer(pl)
}

// evict saca al miembro de la party y lo manda a la reserva.
func (g *guildState) evict(p *domain.Party, userID, reason string) (domain.PartyMember, bool) {
	m, ok := p.Remove(userID)
	if !ok {
		return domain.PartyMember{}, false
	}
	g.touchParty(p)
	pl := g.player(m)
	pl.MoveToReserve(reason, g.now)
	g.touchPlayer(pl)
	g.notify(domain.Notification{
		Kind:        domain.MemberReserved,
		UserID:      m.UserID,
		PartyNumber: p.PartyNumber,
		Role:        m.Role,
		Reason:      reason,
	})
	return m, true
}

// toReserve manda a la reserva a alguien que no esta en ninguna party.
func (g *guildState) toReserve(pl *domain.Player, reason string) {
	pl.MoveToReserve(reason, g.now)
	g.touchPlayer(pl)
	g.notify(domain.Notification{
		Kind:   domain.MemberReserved,
		UserID: pl.UserID,
		Role:   pl.Role,
		Reason: reason,
	})
}

// reserve devuelve la reserva ordenada con domain.ReserveLess.
func (g *guildState) reserve() []*domain.Player {
	var out []*domain.Player
	for _, p := range g.players {
		if p.InReserve && !p.Placed() {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return domain.ReserveLess(*out[i], *out[j]) })
	return out
}

func (g *guildState) reserveSize() int {
	n := 0
	for _, p := range g.players {
		if p.InReserve {
			n++
		}
	}
	return n
}

func (g *guildState) flush(ctx context.Context, tx partystore.Store) error {
	if g.settingsDirty {
		g.settings.UpdatedAt = g.now
		if err := tx.SaveSettings(ctx, g.settings); err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
	}
	for n := range g.deletedParties {
		if err := tx.DeleteParty(ctx, g.guildID, n); err != nil {
			return fmt.Errorf("delete party %d: %w", n, err)
		}
	}
	for _, p := range g.parties {
		if !g.dirtyParties[p.PartyNumber] {
			continue
		}
		p.Recompute()
		if err := tx.SaveParty(ctx, *p); err != nil {
			return fmt.Errorf("save party %d: %w", p.PartyNumber, err)
		}
	}
	for id := range g.deletedPlayers {
		if err := tx.DeletePlayer(ctx, g.guildID, id); err != nil {
			return fmt.Errorf("delete player %s: %w", id, err)
		}
	}
	for id := range g.dirtyPlayers {
		pl, ok := g.players[id]
		if !ok {
			continue
		}
		if err := tx.SavePlayer(ctx, *pl); err != nil {
			return fmt.Errorf("save player %s: %w", id, err)
		}
	}
	return nil
}
