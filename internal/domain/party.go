package domain

import (
	"sort"
	"time"
)

const (
	PartySize            = 6
	MaxTanksPerParty     = 1
	DefaultMaxHealers    = 2
	DefaultMaxParties    = 10
	MaxHealersUpperBound = 3
)

// PartyMember es el snapshot del jugador embebido en la party.
type PartyMember struct {
	UserID  string
	Weapon1 string
	Weapon2 string
	CP      int
	Role    Role
	AddedAt time.Time
}

type Composition struct {
	Tank   int
	Healer int
	DPS    int
}

func (c Composition) Of(r Role) int {
	switch r {
	case RoleTank:
		return c.Tank
	case RoleHealer:
		return c.Healer
	default:
		return c.DPS
	}
}

type Party struct {
	GuildID     string
	PartyNumber int
	Members     []PartyMember
	TotalCP     int
	Roles       Composition
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewParty(guildID string, number int) Party {
	return Party{GuildID: guildID, PartyNumber: number, Members: []PartyMember{}}
}

// Recompute recalcula TotalCP y Roles desde Members. Se llama despues de
// cualquier cambio estructural; los caches nunca se tocan a mano.
func (p *Party) Recompute() {
	total := 0
	var c Composition
	for _, m := range p.Members {
		total += m.CP
		switch m.Role {
		case RoleTank:
			c.Tank++
		case RoleHealer:
			c.Healer++
		default:
			c.DPS++
		}
	}
	p.TotalCP = total
	p.Roles = c
}

func (p Party) Count(r Role) int { return p.Roles.Of(r) }

func (p Party) HasRoom() bool { return len(p.Members) < PartySize }

// Viable: al menos un tank y un healer.
func (p Party) Viable() bool { return p.Roles.Tank > 0 && p.Roles.Healer > 0 }

func (p Party) IndexOf(userID string) int {
	for i, m := range p.Members {
		if m.UserID == userID {
			return i
		}
	}
	return -1
}

func (p Party) Has(userID string) bool { return p.IndexOf(userID) >= 0 }

func (p *Party) Add(m PartyMember) {
	p.Members = append(p.Members, m)
	p.Recompute()
}

// Remove saca al miembro (si esta) y recalcula.
func (p *Party) Remove(userID string) (PartyMember, bool) {
	i := p.IndexOf(userID)
	if i < 0 {
		return PartyMember{}, false
	}
	m := p.Members[i]
	p.Members = append(p.Members[:i:i], p.Members[i+1:]...)
	p.Recompute()
	return m, true
}

// Weakest devuelve el miembro de ese rol con menos CP. Empate: el que entro
// mas tarde, y despues el userID mayor, para que sea determinista.
func (p Party) Weakest(r Role) (PartyMember, bool) {
	var out PartyMember
	found := false
	for _, m := range p.Members {
		if m.Role != r {
			continue
		}
		if !found || weakerThan(m, out) {
			out = m
			found = true
		}
	}
	return out, found
}

func weakerThan(a, b PartyMember) bool {
	if a.CP != b.CP {
		return a.CP < b.CP
	}
	if !a.AddedAt.Equal(b.AddedAt) {
		return a.AddedAt.After(b.AddedAt)
	}
	return a.UserID > b.UserID
}

// SortMembers ordena tank, healer, dps y dentro de cada rol por CP desc.
func (p *Party) SortMembers() {
	sort.SliceStable(p.Members, func(i, j int) bool {
		a, b := p.Members[i], p.Members[j]
		if a.Role.Priority() != b.Role.Priority() {
			return a.Role.Priority() < b.Role.Priority()
		}
		return StrongerFirst(a.CP, a.UserID, b.CP, b.UserID)
	})
}

// StrongerFirst: CP desc, desempate por userID asc.
func StrongerFirst(cpA int, idA string, cpB int, idB string) bool {
	if cpA != cpB {
		return cpA > cpB
	}
	return idA < idB
}

// Clone copia profunda (Members incluido).
func (p Party) Clone() Party {
	out := p
	out.Members = append([]PartyMember(nil), p.Members...)
	return out
}

// Caps son los limites por party que aplican en un guild.
type Caps struct {
	PartySize  int
	MaxTanks   int
	MaxHealers int
}

func DefaultCaps() Caps {
	return Caps{PartySize: PartySize, MaxTanks: MaxTanksPerParty, MaxHealers: DefaultMaxHealers}
}

// For devuelve el tope de un rol dentro de una party (dps solo esta limitado por el tamaño).
func (c Caps) For(r Role) int {
	switch r {
	case RoleTank:
		return c.MaxTanks
	case RoleHealer:
		return c.MaxHealers
	default:
		return c.PartySize
	}
}
