package httpevents

import (
	"time"

	"github.com/jose-valero/squad-allocator-bot/internal/app/allocation"
	"github.com/jose-valero/squad-allocator-bot/internal/domain"
)

type profileEvent struct {
	GuildID string  `json:"guild_id"`
	UserID  string  `json:"user_id"`
	Weapon1 *string `json:"weapon1,omitempty"`
	Weapon2 *string `json:"weapon2,omitempty"`
	CP      *int    `json:"cp,omitempty"`
}

type maxPartiesEvent struct {
	GuildID    string `json:"guild_id"`
	MaxParties int    `json:"max_parties"`
}

// rebalanceEvent sin guild_id corre el batch de todos los guilds.
type rebalanceEvent struct {
	GuildID string `json:"guild_id,omitempty"`
	Force   bool   `json:"force"`
}

type playerDTO struct {
	UserID        string     `json:"user_id"`
	Weapon1       string     `json:"weapon1"`
	Weapon2       string     `json:"weapon2"`
	Role          string     `json:"role"`
	CP            int        `json:"cp"`
	PartyNumber   *int       `json:"party_number,omitempty"`
	InReserve     bool       `json:"in_reserve"`
	ReservedAt    *time.Time `json:"reserved_at,omitempty"`
	ReserveReason string     `json:"reserve_reason,omitempty"`
}

type outcomeDTO struct {
	Placed       bool   `json:"placed"`
	PartyNumber  int    `json:"party_number,omitempty"`
	CreatedParty bool   `json:"created_party,omitempty"`
	Substituted  bool   `json:"substituted,omitempty"`
	Displaced    string `json:"displaced_user_id,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

type profileResponse struct {
	Player  playerDTO   `json:"player"`
	Outcome *outcomeDTO `json:"outcome,omitempty"`
	Moved   bool        `json:"moved,omitempty"`
}

type capacityResponse struct {
	OldMax    int   `json:"old_max"`
	NewMax    int   `json:"new_max"`
	Created   []int `json:"created,omitempty"`
	Disbanded []int `json:"disbanded,omitempty"`
	Promoted  int   `json:"promoted"`
}

type rebalanceResponse struct {
	RunID    string `json:"run_id"`
	Moved    int    `json:"moved"`
	Overflow int    `json:"overflow"`
	Promoted int    `json:"promoted"`
	Repaired bool   `json:"repaired"`
}

type batchResponse struct {
	Ran     []string          `json:"ran"`
	Skipped []string          `json:"skipped"`
	Failed  map[string]string `json:"failed"`
}

type memberDTO struct {
	UserID  string    `json:"user_id"`
	Role    string    `json:"role"`
	CP      int       `json:"cp"`
	Weapon1 string    `json:"weapon1"`
	Weapon2 string    `json:"weapon2"`
	AddedAt time.Time `json:"added_at"`
}

type partyDTO struct {
	Number  int         `json:"number"`
	TotalCP int         `json:"total_cp"`
	Tanks   int         `json:"tanks"`
	Healers int         `json:"healers"`
	DPS     int         `json:"dps"`
	Members []memberDTO `json:"members"`
}

type rosterDTO struct {
	GuildID     string      `json:"guild_id"`
	MaxParties  int         `json:"max_parties"`
	AutoAssign  bool        `json:"auto_assignment_enabled"`
	MaxHealers  int         `json:"max_healers_per_party"`
	Parties     []partyDTO  `json:"parties"`
	Reserve     []playerDTO `json:"reserve"`
	Unassigned  []playerDTO `json:"unassigned"`
	LastBalance *time.Time  `json:"last_periodic_rebalance,omitempty"`
}

func toPlayerDTO(p domain.Player) playerDTO {
	return playerDTO{
		UserID:        p.UserID,
		Weapon1:       p.Weapon1,
		Weapon2:       p.Weapon2,
		Role:          string(p.Role),
		CP:            p.CP,
		PartyNumber:   p.PartyNumber,
		InReserve:     p.InReserve,
		ReservedAt:    p.ReservedAt,
		ReserveReason: p.ReserveReason,
	}
}

func toOutcomeDTO(o allocation.Outcome) outcomeDTO {
	out := outcomeDTO{
		Placed:       o.Placed,
		PartyNumber:  o.PartyNumber,
		CreatedParty: o.CreatedParty,
		Substituted:  o.Substituted,
		Reason:       o.Reason,
	}
	if o.Displaced != nil {
		out.Displaced = o.Displaced.UserID
	}
	return out
}

func toRosterDTO(guildID string, r allocation.Roster) rosterDTO {
	out := rosterDTO{
		GuildID:     guildID,
		MaxParties:  r.Settings.MaxParties,
		AutoAssign:  r.Settings.AutoAssignmentEnabled,
		MaxHealers:  r.Settings.Caps().MaxHealers,
		Parties:     make([]partyDTO, 0, len(r.Parties)),
		Reserve:     make([]playerDTO, 0, len(r.Reserve)),
		Unassigned:  make([]playerDTO, 0, len(r.Unassigned)),
		LastBalance: r.Settings.LastPeriodicRebalance,
	}
	for _, p := range r.Parties {
		pd := partyDTO{
			Number:  p.PartyNumber,
			TotalCP: p.TotalCP,
			Tanks:   p.Roles.Tank,
			Healers: p.Roles.Healer,
			DPS:     p.Roles.DPS,
			Members: make([]memberDTO, 0, len(p.Members)),
		}
		for _, m := range p.Members {
			pd.Members = append(pd.Members, memberDTO{
				UserID:  m.UserID,
				Role:    string(m.Role),
				CP:      m.CP,
				Weapon1: m.Weapon1,
				Weapon2: m.Weapon2,
				AddedAt: m.AddedAt,
			})
		}
		out.Parties = append(out.Parties, pd)
	}
	for _, p := range r.Reserve {
		out.Reserve = append(out.Reserve, toPlayerDTO(p))
	}
	for _, p := range r.Unassigned {
		out.Unassigned = append(out.Unassigned, toPlayerDTO(p))
	}
	return out
}
