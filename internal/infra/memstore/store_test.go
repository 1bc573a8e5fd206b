package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jose-valero/squad-allocator-bot/internal/app/partystore"
	"github.com/jose-valero/squad-allocator-bot/internal/domain"
)

func member(id string, cp int) domain.PartyMember {
	return domain.PartyMember{UserID: id, CP: cp, Role: domain.RoleDPS}
}

func TestWithTx_CommitAndRollback(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.WithTx(ctx, "g", func(tx partystore.Store) error {
		p := domain.NewParty("g", 1)
		p.Members = []domain.PartyMember{member("a", 10), member("b", 5)}
		return tx.SaveParty(ctx, p)
	})
	require.NoError(t, err)
	ps, err := s.ListParties(ctx, "g")
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, 15, ps[0].TotalCP, "SaveParty recalcula los caches")

	boom := errors.New("boom")
	err = s.WithTx(ctx, "g", func(tx partystore.Store) error {
		require.NoError(t, tx.DeleteParty(ctx, "g", 1))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	ps, _ = s.ListParties(ctx, "g")
	assert.Len(t, ps, 1)

	s.FailNextTx(boom)
	err = s.WithTx(ctx, "g", func(tx partystore.Store) error { return tx.DeleteParty(ctx, "g", 1) })
	assert.ErrorIs(t, err, boom)
	ps, _ = s.ListParties(ctx, "g")
	assert.Len(t, ps, 1)

	err = s.WithTx(ctx, "g", func(tx partystore.Store) error { return tx.DeleteParty(ctx, "g", 1) })
	require.NoError(t, err, "FailNextTx aplica una sola vez")
	ps, _ = s.ListParties(ctx, "g")
	assert.Empty(t, ps)
}

func TestWithTx_RejectsDuplicateMembership(t *testing.T) {
	ctx := context.Background()
	s := New()
	err := s.WithTx(ctx, "g", func(tx partystore.Store) error {
		for n := 1; n <= 2; n++ {
			p := domain.NewParty("g", n)
			p.Members = []domain.PartyMember{member("a", 1)}
			if err := tx.SaveParty(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
	assert.Error(t, err)
	ps, _ := s.ListParties(ctx, "g")
	assert.Empty(t, ps)
}

func TestStore_Validation(t *testing.T) {
	ctx := context.Background()
	s := New()

	p := domain.NewParty("g", 1)
	for i := 0; i <= domain.PartySize; i++ {
		p.Members = append(p.Members, member(string(rune('a'+i)), 1))
	}
	assert.Error(t, s.SaveParty(ctx, p))

	n := 1
	assert.Error(t, s.SavePlayer(ctx, domain.Player{GuildID: "g", UserID: "u", PartyNumber: &n, InReserve: true}))

	_, err := s.GetPlayer(ctx, "g", "u")
	assert.ErrorIs(t, err, partystore.ErrNotFound)

	st, err := s.GetSettings(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultMaxParties, st.MaxParties)
	all, err := s.ListSettings(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestListReserve_Order(t *testing.T) {
	ctx := context.Background()
	s := New()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	for _, p := range []domain.Player{
		{GuildID: "g", UserID: "d-old", Role: domain.RoleDPS, CP: 10, InReserve: true, ReservedAt: &t0},
		{GuildID: "g", UserID: "d-new", Role: domain.RoleDPS, CP: 10, InReserve: true, ReservedAt: &t1},
		{GuildID: "g", UserID: "h", Role: domain.RoleHealer, CP: 1, InReserve: true, ReservedAt: &t1},
		{GuildID: "g", UserID: "free", Role: domain.RoleTank, CP: 99},
		{GuildID: "other", UserID: "t", Role: domain.RoleTank, CP: 99, InReserve: true, ReservedAt: &t0},
	} {
		require.NoError(t, s.SavePlayer(ctx, p))
	}

	got, err := s.ListReserve(ctx, "g")
	require.NoError(t, err)
	var ids []string
	for _, p := range got {
		ids = append(ids, p.UserID)
	}
	assert.Equal(t, []string{"h", "d-old", "d-new"}, ids)
}

func TestPanels(t *testing.T) {
	ctx := context.Background()
	p := NewPanels()

	_, err := p.Get(ctx, "g")
	assert.ErrorIs(t, err, partystore.ErrNotFound)

	require.NoError(t, p.Upsert(ctx, "g", "c1", "m1"))
	first, err := p.Get(ctx, "g")
	require.NoError(t, err)
	require.NoError(t, p.Upsert(ctx, "g", "c2", "m2"))
	got, err := p.Get(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, "c2", got.ChannelID)
	assert.Equal(t, "m2", got.MessageID)
	assert.Equal(t, first.CreatedAt, got.CreatedAt)

	require.NoError(t, p.Delete(ctx, "g"))
	_, err = p.Get(ctx, "g")
	assert.ErrorIs(t, err, partystore.ErrNotFound)
}

func TestDedup(t *testing.T) {
	ctx := context.Background()
	d := NewDedup()

	ok, err := d.Claim(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = d.Claim(ctx, "k")
	assert.False(t, ok)

	require.NoError(t, d.Release(ctx, "k"))
	ok, _ = d.Claim(ctx, "k")
	assert.True(t, ok)

	n, err := d.Prune(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = d.Prune(ctx, -time.Second)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
