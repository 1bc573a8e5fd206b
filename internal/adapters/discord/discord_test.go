package discord

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jose-valero/squad-allocator-bot/internal/app/allocation"
	"github.com/jose-valero/squad-allocator-bot/internal/domain"
)

func TestNewSession(t *testing.T) {
	for _, tok := range []string{"abc", "Bot abc", "  bot abc "} {
		s, err := NewSession(tok)
		require.NoError(t, err, tok)
		assert.Equal(t, "Bot abc", strings.Replace(s.Token, "bot ", "Bot ", 1), tok)
	}
	_, err := NewSession("  ")
	assert.Error(t, err)
}

func TestIsAdmin(t *testing.T) {
	adminRole := &discordgo.Role{ID: "r-admin", Permissions: discordgo.PermissionAdministrator}
	plainRole := &discordgo.Role{ID: "r-plain"}
	member := func(id string, perms int64, roles ...string) *discordgo.Member {
		return &discordgo.Member{User: &discordgo.User{ID: id}, Permissions: perms, Roles: roles}
	}

	cases := []struct {
		name  string
		m     *discordgo.Member
		owner string
		roles []*discordgo.Role
		cfg   []string
		want  bool
	}{
		{"nil member", nil, "", nil, nil, false},
		{"owner", member("u1", 0), "u1", nil, nil, true},
		{"computed admin bit", member("u1", discordgo.PermissionAdministrator), "", nil, nil, true},
		{"admin through guild role", member("u1", 0, "r-admin"), "", []*discordgo.Role{adminRole, plainRole}, nil, true},
		{"configured role", member("u1", 0, "r-plain"), "", []*discordgo.Role{plainRole}, []string{"r-plain"}, true},
		{"nothing", member("u1", 0, "r-plain"), "u2", []*discordgo.Role{adminRole, plainRole}, []string{"r-x"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, isAdmin(tc.m, tc.owner, tc.roles, tc.cfg))
		})
	}
}

func TestUserLimiter(t *testing.T) {
	l := newUserLimiter(time.Hour, 2)
	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"), "burst agotado")
	assert.True(t, l.Allow("b"), "cada usuario tiene su bucket")

	l.buckets["a"].seen = time.Now().Add(-2 * limiterIdle)
	l.sweep(time.Now())
	_, still := l.buckets["a"]
	assert.False(t, still)
	assert.Contains(t, l.buckets, "b")
}

func TestErrMsg(t *testing.T) {
	wrapped := fmt.Errorf("x: %w", allocation.ErrInvalidMaxParties)
	assert.Contains(t, errMsg(wrapped), fmt.Sprint(allocation.MaxPartiesLimit))
	assert.Contains(t, errMsg(allocation.ErrDebounced), "force:true")
	assert.Contains(t, errMsg(errors.New("boom")), "boom")
}

func TestOutcomeMsg(t *testing.T) {
	assert.Contains(t, outcomeMsg(domain.RoleDPS, allocation.Outcome{Reason: allocation.ReasonNoSlot}), allocation.ReasonNoSlot)
	msg := outcomeMsg(domain.RoleTank, allocation.Outcome{
		Placed: true, PartyNumber: 2, Substituted: true,
		Displaced: &domain.PartyMember{UserID: "old"},
	})
	assert.Contains(t, msg, "Party 2")
	assert.Contains(t, msg, "<@old>")
}

func TestTruncateKeepsRunes(t *testing.T) {
	s := strings.Repeat("⚔️", 20)
	out := truncate(s, 11)
	assert.True(t, utf8.ValidString(out))
	assert.LessOrEqual(t, utf8.RuneCountInString(out), 11)
	assert.Equal(t, "abc", truncate("abc", 3))
}

func rosterWith(parties, reserve int) allocation.Roster {
	r := allocation.Roster{Settings: domain.DefaultSettings("g")}
	r.Settings.MaxParties = parties
	for i := 1; i <= parties; i++ {
		p := domain.NewParty("g", i)
		p.Add(domain.PartyMember{UserID: fmt.Sprintf("u%d", i), CP: 10 * i, Role: domain.RoleTank})
		r.Parties = append(r.Parties, p)
	}
	for i := 0; i < reserve; i++ {
		r.Reserve = append(r.Reserve, domain.Player{UserID: fmt.Sprintf("r%d", i), Role: domain.RoleDPS, InReserve: true})
	}
	return r
}

func TestRenderRoster_FieldLimit(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	e := renderRoster(rosterWith(3, 2), now)
	require.Len(t, e.Fields, 4)
	assert.Equal(t, "Reserva (2)", e.Fields[3].Name)
	assert.Contains(t, e.Fields[0].Name, "Party 1")
	assert.Contains(t, e.Fields[0].Name, "⚠️", "sin healer no es viable")

	e = renderRoster(rosterWith(maxEmbedFields-1, 0), now)
	assert.Len(t, e.Fields, maxEmbedFields)

	e = renderRoster(rosterWith(allocation.MaxPartiesLimit, 30), now)
	require.Len(t, e.Fields, maxEmbedFields)
	assert.Equal(t, "…", e.Fields[maxEmbedFields-2].Name)
	assert.Contains(t, e.Fields[maxEmbedFields-1].Value, "y 15 más")

	e = renderRoster(allocation.Roster{Settings: domain.DefaultSettings("g")}, now)
	assert.Contains(t, e.Description, "/profile set")
}

func TestRenderProfile(t *testing.T) {
	n := 3
	e := renderProfile(domain.Player{Weapon1: domain.WeaponWand, Weapon2: domain.WeaponStaff, Role: domain.RoleHealer, CP: 42, PartyNumber: &n})
	require.Len(t, e.Fields, 4)
	assert.Equal(t, "Wand + Staff", e.Fields[0].Value)
	assert.Equal(t, "Party 3", e.Fields[3].Value)

	e = renderProfile(domain.Player{Weapon1: domain.WeaponWand})
	assert.Len(t, e.Fields, 5)
	assert.Equal(t, "Sin asignar", e.Fields[3].Value)
}

func TestNotificationEmbed(t *testing.T) {
	e := notificationEmbed(domain.Notification{Kind: domain.MemberMoved, FromParty: 3, ToParty: 1, Role: domain.RoleDPS, Reason: allocation.ReasonRebalance})
	assert.Contains(t, e.Description, "Party 3")
	assert.Contains(t, e.Description, "**Party 1**")
	require.Len(t, e.Fields, 1)
	assert.Equal(t, allocation.ReasonRebalance, e.Fields[0].Value)

	e = notificationEmbed(domain.Notification{Kind: domain.MemberReserved})
	assert.Equal(t, "Quedaste en reserva", e.Title)
	assert.Empty(t, e.Fields)
}

func TestSpanLogsDurationAndLevel(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return at }

	sp := newSpan(log, "slash.party.show", "g1", now)
	at = at.Add(120 * time.Millisecond)
	sp.end()

	sp = newSpan(log, "ui.refresh", "g1", now)
	at = at.Add(slowStep + time.Second)
	sp.end()

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	fast := entries[0].ContextMap()
	assert.Equal(t, "slash.party.show", fast["step"])
	assert.Equal(t, "g1", fast["guild"])
	assert.Equal(t, int64(120), fast["took_ms"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, (slowStep + time.Second).Milliseconds(), entries[1].ContextMap()["took_ms"])
}
