package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jose-valero/squad-allocator-bot/internal/domain"
)

func TestReconcile_RepairsBrokenState(t *testing.T) {
	f := newFixture(t)
	f.settings(2, true)
	at := f.now

	p1 := domain.NewParty(guild, 1)
	p1.Members = []domain.PartyMember{snapshot("t1", tankKit, 100, at), snapshot("d1", dpsKit, 10, at)}
	p2 := domain.NewParty(guild, 2)
	p2.Members = []domain.PartyMember{snapshot("d1", dpsKit, 10, at), snapshot("h1", healerKit, 20, at)}
	p3 := domain.NewParty(guild, 3)
	p3.Members = []domain.PartyMember{snapshot("d2", dpsKit, 30, at)}
	for _, p := range []domain.Party{p1, p2, p3} {
		require.NoError(t, f.store.SaveParty(f.ctx, p))
	}

	t1 := seedPlayer("t1", tankKit, 150) // snapshot viejo
	t1.PartyNumber = intp(1)
	d1 := seedPlayer("d1", dpsKit, 10)
	d1.PartyNumber = intp(2)
	h1 := seedPlayer("h1", healerKit, 20)
	d2 := seedPlayer("d2", dpsKit, 30)
	d2.PartyNumber = intp(3)
	lost := seedPlayer("x", dpsKit, 40)
	lost.PartyNumber = intp(1)
	for _, p := range []domain.Player{t1, d1, h1, d2, lost} {
		require.NoError(t, f.store.SavePlayer(f.ctx, p))
	}

	rep, err := f.eng.Reconcile(f.ctx, guild)
	require.NoError(t, err)

	assert.Equal(t, ReconcileReport{
		DuplicatesRemoved: 1,
		StrayParties:      1,
		PlayersRelinked:   2,
		PlayersReserved:   1,
		SnapshotsSynced:   1,
	}, rep)
	assert.Equal(t, map[int][]string{1: {"t1", "d1"}, 2: {"h1"}}, f.parties())
	assert.Equal(t, 1, f.partyOf("d1"))
	assert.Equal(t, 2, f.partyOf("h1"))
	assert.Equal(t, reasonDisbanded(3), f.player("d2").ReserveReason)
	assert.Equal(t, ReasonPlacementLost, f.player("x").ReserveReason)

	ps, err := f.store.ListParties(f.ctx, guild)
	require.NoError(t, err)
	assert.Equal(t, 160, ps[0].TotalCP)
	requireConsistent(t, f)

	rep, err = f.eng.Reconcile(f.ctx, guild)
	require.NoError(t, err)
	assert.True(t, rep.Clean())
}
