package domain

import "time"

// Player es el estado de asignacion de un miembro en un guild.
// PartyNumber e InReserve son excluyentes.
type Player struct {
	GuildID       string
	UserID        string
	Weapon1       string
	Weapon2       string
	Role          Role
	CP            int
	PartyNumber   *int
	InReserve     bool
	ReservedAt    *time.Time
	ReserveReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ProfileComplete: las dos armas estan cargadas.
func (p Player) ProfileComplete() bool {
	return p.Weapon1 != "" && p.Weapon2 != ""
}

func (p Player) Placed() bool { return p.PartyNumber != nil }

func (p Player) Snapshot(now time.Time) PartyMember {
	return PartyMember{
		UserID:  p.UserID,
		Weapon1: p.Weapon1,
		Weapon2: p.Weapon2,
		CP:      p.CP,
		Role:    p.Role,
		AddedAt: now,
	}
}

// PlaceIn deja al jugador en la party n y limpia los flags de reserva.
func (p *Player) PlaceIn(n int) {
	num := n
	p.PartyNumber = &num
	p.InReserve = false
	p.ReservedAt = nil
	p.ReserveReason = ""
}

// MoveToReserve saca al jugador de su party y lo marca en reserva.
// Si ya estaba en reserva se conserva el ReservedAt original (FIFO).
func (p *Player) MoveToReserve(reason string, now time.Time) {
	p.PartyNumber = nil
	if !p.InReserve || p.ReservedAt == nil {
		t := now
		p.ReservedAt = &t
	}
	p.InReserve = true
	p.ReserveReason = reason
}

// Unplace deja al jugador sin party ni reserva (perfil incompleto).
func (p *Player) Unplace() {
	p.PartyNumber = nil
	p.InReserve = false
	p.ReservedAt = nil
	p.ReserveReason = ""
}

type GuildSettings struct {
	GuildID               string
	MaxParties            int
	AutoAssignmentEnabled bool
	MaxHealersPerParty    int
	LastPeriodicRebalance *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func DefaultSettings(guildID string) GuildSettings {
	return GuildSettings{
		GuildID:               guildID,
		MaxParties:            DefaultMaxParties,
		AutoAssignmentEnabled: true,
		MaxHealersPerParty:    DefaultMaxHealers,
	}
}

func (s GuildSettings) Caps() Caps {
	c := DefaultCaps()
	if s.MaxHealersPerParty > 0 {
		c.MaxHealers = s.MaxHealersPerParty
	}
	return c
}
