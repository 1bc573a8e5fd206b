package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func member(id string, r Role, cp int, added time.Time) PartyMember {
	return PartyMember{UserID: id, Role: r, CP: cp, AddedAt: added}
}

func TestParty_AddRemoveRecompute(t *testing.T) {
	now := time.Now()
	p := NewParty("g", 1)
	p.Add(member("t", RoleTank, 100, now))
	p.Add(member("h", RoleHealer, 80, now))
	p.Add(member("d", RoleDPS, 50, now))

	assert.Equal(t, 230, p.TotalCP)
	assert.Equal(t, Composition{Tank: 1, Healer: 1, DPS: 1}, p.Roles)
	assert.True(t, p.Viable())
	assert.True(t, p.HasRoom())

	m, ok := p.Remove("h")
	require.True(t, ok)
	assert.Equal(t, "h", m.UserID)
	assert.Equal(t, 150, p.TotalCP)
	assert.False(t, p.Viable())
	assert.False(t, p.Has("h"))

	_, ok = p.Remove("nobody")
	assert.False(t, ok)
}

func TestParty_RemoveDoesNotAliasClone(t *testing.T) {
	now := time.Now()
	p := NewParty("g", 1)
	p.Add(member("a", RoleDPS, 1, now))
	p.Add(member("b", RoleDPS, 2, now))
	p.Add(member("c", RoleDPS, 3, now))
	c := p.Clone()

	p.Remove("a")

	assert.Equal(t, []string{"a", "b", "c"}, ids(c.Members))
	assert.Equal(t, []string{"b", "c"}, ids(p.Members))
}

func TestParty_Weakest(t *testing.T) {
	t0 := time.Now()
	p := NewParty("g", 1)
	p.Add(member("d1", RoleDPS, 100, t0))
	p.Add(member("d2", RoleDPS, 90, t0))
	p.Add(member("d3", RoleDPS, 90, t0.Add(time.Minute)))
	p.Add(member("h", RoleHealer, 10, t0))

	w, ok := p.Weakest(RoleDPS)
	require.True(t, ok)
	assert.Equal(t, "d3", w.UserID, "empate de CP: pierde el que entró más tarde")

	_, ok = p.Weakest(RoleTank)
	assert.False(t, ok)
}

func TestParty_SortMembers(t *testing.T) {
	now := time.Now()
	p := NewParty("g", 1)
	p.Add(member("d-low", RoleDPS, 10, now))
	p.Add(member("h", RoleHealer, 50, now))
	p.Add(member("d-b", RoleDPS, 90, now))
	p.Add(member("t", RoleTank, 1, now))
	p.Add(member("d-a", RoleDPS, 90, now))

	p.SortMembers()

	assert.Equal(t, []string{"t", "h", "d-a", "d-b", "d-low"}, ids(p.Members))
}

func TestCaps(t *testing.T) {
	c := GuildSettings{MaxHealersPerParty: 3}.Caps()
	assert.Equal(t, 1, c.For(RoleTank))
	assert.Equal(t, 3, c.For(RoleHealer))
	assert.Equal(t, PartySize, c.For(RoleDPS))
	assert.Equal(t, DefaultMaxHealers, GuildSettings{}.Caps().MaxHealers)
}

func ids(ms []PartyMember) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.UserID)
	}
	return out
}
