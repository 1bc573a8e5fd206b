package allocation

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jose-valero/squad-allocator-bot/internal/domain"
)

func TestAssign_CreatesFirstPartyLazily(t *testing.T) {
	f := newFixture(t)

	res := f.join("t1", tankKit, 100)

	require.NotNil(t, res.Outcome)
	assert.True(t, res.Outcome.Placed)
	assert.True(t, res.Outcome.CreatedParty)
	assert.Equal(t, 1, res.Outcome.PartyNumber)
	assert.Equal(t, map[int][]string{1: {"t1"}}, f.parties())
	assert.Equal(t, []domain.NotificationKind{domain.MemberAssigned}, f.rec.kinds("t1"))
	requireConsistent(t, f)
}

func TestAssign_TankSubstitutesWeakerIncumbent(t *testing.T) {
	f := newFixture(t)
	f.settings(1, true)
	f.join("t1", tankKit, 100)

	res := f.join("t2", tankKit, 150)

	require.NotNil(t, res.Outcome)
	out := res.Outcome
	assert.True(t, out.Placed)
	assert.True(t, out.Substituted)
	require.NotNil(t, out.Displaced)
	assert.Equal(t, "t1", out.Displaced.UserID)
	assert.Equal(t, 1, out.DisplacedFrom)

	assert.Equal(t, map[int][]string{1: {"t2"}}, f.parties())
	t1 := f.player("t1")
	assert.True(t, t1.InReserve)
	assert.Equal(t, reasonReplaced(domain.RoleTank), t1.ReserveReason)
	assert.Equal(t, []domain.NotificationKind{domain.MemberAssigned, domain.MemberReserved}, f.rec.kinds("t1"))
	assert.Equal(t, []domain.NotificationKind{domain.MemberAssigned}, f.rec.kinds("t2"))
	requireConsistent(t, f)
}

func TestAssign_TankNotStrongerGoesToReserve(t *testing.T) {
	f := newFixture(t)
	f.settings(1, true)
	f.join("t1", tankKit, 150)

	res := f.join("t2", tankKit, 150)

	require.NotNil(t, res.Outcome)
	assert.False(t, res.Outcome.Placed)
	assert.Equal(t, ReasonNoSlot, res.Outcome.Reason)
	t2 := f.player("t2")
	assert.True(t, t2.InReserve)
	assert.NotNil(t, t2.ReservedAt)
	assert.Equal(t, map[int][]string{1: {"t1"}}, f.parties())
	requireConsistent(t, f)
}

func TestAssign_HealerCapThenSubstitution(t *testing.T) {
	f := newFixture(t)
	f.settings(1, true)
	f.join("h1", healerKit, 10)
	f.join("h2", healerKit, 20)

	res := f.join("h3", healerKit, 30)

	assert.True(t, res.Outcome.Substituted)
	assert.Equal(t, "h1", res.Outcome.Displaced.UserID)
	assert.ElementsMatch(t, []string{"h2", "h3"}, f.parties()[1])
	assert.True(t, f.player("h1").InReserve)
	requireConsistent(t, f)
}

func TestAssign_DPSPrefersViablePartyThenAnyRoom(t *testing.T) {
	f := newFixture(t)
	f.settings(2, true)

	f.join("d1", dpsKit, 10)
	f.join("t1", tankKit, 100)
	f.join("h1", healerKit, 100)
	for _, id := range []string{"d2", "d3", "d4"} {
		f.join(id, dpsKit, 50)
	}
	require.Len(t, f.parties()[1], domain.PartySize)

	res := f.join("d5", dpsKit, 50)
	assert.True(t, res.Outcome.CreatedParty)
	assert.Equal(t, 2, res.Outcome.PartyNumber)

	// la party 2 no es viable pero es la única con lugar
	res = f.join("d6", dpsKit, 1000)
	assert.Equal(t, 2, res.Outcome.PartyNumber)
	assert.False(t, res.Outcome.Substituted)
	requireConsistent(t, f)
}

func TestAssign_DPSSubstitutionWhenEverythingIsFull(t *testing.T) {
	f := newFixture(t)
	f.settings(1, true)
	for i := 1; i <= domain.PartySize; i++ {
		f.join(fmt.Sprintf("d%d", i), dpsKit, i*10)
	}

	res := f.join("strong", dpsKit, 35)

	assert.True(t, res.Outcome.Substituted)
	assert.Equal(t, "d1", res.Outcome.Displaced.UserID)
	assert.True(t, f.player("d1").InReserve)

	res = f.join("weak", dpsKit, 5)
	assert.False(t, res.Outcome.Placed)
	requireConsistent(t, f)
}

func TestAssign_Preconditions(t *testing.T) {
	f := newFixture(t)

	_, err := f.eng.Assign(f.ctx, guild, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	w := domain.WeaponWand
	res, err := f.eng.UpdateProfile(f.ctx, ProfileUpdate{GuildID: guild, UserID: "half", Weapon1: &w})
	require.NoError(t, err)
	assert.Nil(t, res.Outcome)
	_, err = f.eng.Assign(f.ctx, guild, "half")
	assert.ErrorIs(t, err, ErrIncompleteProfile)

	f.join("t1", tankKit, 100)
	_, err = f.eng.Assign(f.ctx, guild, "t1")
	assert.ErrorIs(t, err, ErrAlreadyPlaced)

	_, err = f.eng.SetAutoAssignment(f.ctx, guild, false)
	require.NoError(t, err)
	res = f.join("late", dpsKit, 10)
	assert.Nil(t, res.Outcome)
	_, err = f.eng.Assign(f.ctx, guild, "late")
	assert.ErrorIs(t, err, ErrAutoAssignDisabled)
	assert.False(t, f.player("late").Placed())
	requireConsistent(t, f)
}

func TestAssign_ConcurrentJoinsKeepInvariants(t *testing.T) {
	f := newFixture(t)
	f.settings(3, true)
	kits := [][2]string{tankKit, healerKit, dpsKit, dpsKit}

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			kit := kits[i%len(kits)]
			w1, w2, cp := kit[0], kit[1], 100+i
			_, err := f.eng.UpdateProfile(context.Background(), ProfileUpdate{
				GuildID: guild, UserID: fmt.Sprintf("u%02d", i), Weapon1: &w1, Weapon2: &w2, CP: &cp,
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	requireConsistent(t, f)
	placed := 0
	for _, ids := range f.parties() {
		placed += len(ids)
	}
	assert.Equal(t, 3*domain.PartySize, placed)

	players, err := f.store.ListPlayers(f.ctx, guild)
	require.NoError(t, err)
	for _, pl := range players {
		assert.True(t, pl.Placed() || pl.InReserve, "user %s unplaced", pl.UserID)
	}
}
