package allocation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jose-valero/squad-allocator-bot/internal/domain"
)

// party 1 llena: t1, h1, h2, d1, d2, d3 (todos 100 CP)
func fullParty(f *fixture) {
	f.settings(1, true)
	f.join("t1", tankKit, 100)
	f.join("h1", healerKit, 100)
	f.join("h2", healerKit, 100)
	f.join("d1", dpsKit, 100)
	f.join("d2", dpsKit, 100)
	f.join("d3", dpsKit, 100)
	require.Len(f.t, f.parties()[1], domain.PartySize)
}

func TestDrain_TankBeforeHealerAndSeniorityKept(t *testing.T) {
	f := newFixture(t)
	fullParty(f)
	f.join("h3", healerKit, 50)
	f.now = f.now.Add(time.Minute)
	f.join("t2", tankKit, 50)
	require.True(t, f.player("h3").InReserve)
	require.True(t, f.player("t2").InReserve)
	h3Since := *f.player("h3").ReservedAt

	res, err := f.eng.RemoveMember(f.ctx, guild, "t1")
	require.NoError(t, err)

	assert.Equal(t, DrainResult{Processed: 2, Promoted: 1}, res)
	assert.Equal(t, 1, f.partyOf("t2"))
	h3 := f.player("h3")
	assert.True(t, h3.InReserve)
	assert.Equal(t, h3Since, *h3.ReservedAt)
	assert.Contains(t, f.rec.kinds("t2"), domain.MemberPromoted)
	requireConsistent(t, f)
}

func TestDrain_DisplacedMemberNotRetriedInSamePass(t *testing.T) {
	f := newFixture(t)
	fullParty(f)

	// t2 entra a la reserva sin pasar por Assign
	at := f.now.Add(-time.Hour)
	t2 := seedPlayer("t2", tankKit, 200)
	t2.InReserve, t2.ReservedAt, t2.ReserveReason = true, &at, ReasonNoSlot
	require.NoError(t, f.store.SavePlayer(f.ctx, t2))

	res, err := f.eng.Drain(f.ctx, guild)
	require.NoError(t, err)

	assert.Equal(t, DrainResult{Processed: 1, Promoted: 1}, res)
	assert.Equal(t, 1, f.partyOf("t2"))
	t1 := f.player("t1")
	assert.True(t, t1.InReserve)
	assert.Equal(t, reasonReplaced(domain.RoleTank), t1.ReserveReason)
	requireConsistent(t, f)
}

func TestDrain_SkippedWhenAutoAssignOff(t *testing.T) {
	f := newFixture(t)
	at := f.now
	p := seedPlayer("d1", dpsKit, 10)
	p.InReserve, p.ReservedAt = true, &at
	require.NoError(t, f.store.SavePlayer(f.ctx, p))
	f.settings(3, false)

	res, err := f.eng.Drain(f.ctx, guild)
	require.NoError(t, err)
	assert.Equal(t, DrainResult{}, res)
	assert.True(t, f.player("d1").InReserve)
}

func TestAttemptPromotion(t *testing.T) {
	f := newFixture(t)
	fullParty(f)
	f.join("t2", tankKit, 50)

	_, err := f.eng.AttemptPromotion(f.ctx, guild, "t1")
	assert.ErrorIs(t, err, ErrNotInReserve)
	_, err = f.eng.AttemptPromotion(f.ctx, guild, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	out, err := f.eng.AttemptPromotion(f.ctx, guild, "t2")
	require.NoError(t, err)
	assert.False(t, out.Placed)
	assert.True(t, f.player("t2").InReserve)

	cp := 500
	_, err = f.eng.UpdateProfile(f.ctx, ProfileUpdate{GuildID: guild, UserID: "t2", CP: &cp})
	require.NoError(t, err)
	assert.Equal(t, 1, f.partyOf("t2"), "al subir el CP el perfil intenta promoverlo")
	assert.True(t, f.player("t1").InReserve)
	requireConsistent(t, f)
}

func TestDrain_RolePriorityIndependentOfArrival(t *testing.T) {
	f := newFixture(t)
	f.settings(3, true)
	require.NoError(t, f.store.SaveParty(f.ctx, domain.NewParty(guild, 3)))

	healerAt := f.now
	tankAt := f.now.Add(5 * time.Minute)
	h := seedPlayer("h", healerKit, 80)
	h.InReserve, h.ReservedAt = true, &healerAt
	tk := seedPlayer("t", tankKit, 50)
	tk.InReserve, tk.ReservedAt = true, &tankAt
	require.NoError(t, f.store.SavePlayer(f.ctx, h))
	require.NoError(t, f.store.SavePlayer(f.ctx, tk))

	res, err := f.eng.Drain(f.ctx, guild)
	require.NoError(t, err)

	assert.Equal(t, DrainResult{Processed: 2, Promoted: 2}, res)
	assert.Equal(t, map[int][]string{3: {"t", "h"}}, f.parties())
	notes := f.rec.all()
	require.Len(t, notes, 2)
	assert.Equal(t, "t", notes[0].UserID)
	assert.Equal(t, 3, notes[0].PartyNumber)
	requireConsistent(t, f)
}
