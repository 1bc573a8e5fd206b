package allocation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jose-valero/squad-allocator-bot/internal/domain"
	"github.com/jose-valero/squad-allocator-bot/internal/infra/lock"
	"github.com/jose-valero/squad-allocator-bot/internal/infra/memstore"
)

const guild = "g1"

// armas por rol
var (
	tankKit   = [2]string{domain.WeaponSwordShield, domain.WeaponGreatsword}
	healerKit = [2]string{domain.WeaponWand, domain.WeaponStaff}
	dpsKit    = [2]string{domain.WeaponDaggers, domain.WeaponCrossbow}
)

type recorder struct {
	mu    sync.Mutex
	notes []domain.Notification
}

func (r *recorder) Notify(_ context.Context, n domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
	return nil
}

func (r *recorder) all() []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Notification(nil), r.notes...)
}

func (r *recorder) kinds(userID string) []domain.NotificationKind {
	var out []domain.NotificationKind
	for _, n := range r.all() {
		if n.UserID == userID {
			out = append(out, n.Kind)
		}
	}
	return out
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *memstore.Store
	rec   *recorder
	eng   *Engine
	now   time.Time
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		store: memstore.New(),
		rec:   &recorder{},
		now:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	opts = append([]Option{WithClock(func() time.Time { return f.now })}, opts...)
	f.eng = New(f.store, f.rec, lock.NewLocal(), zap.NewNop(), opts...)
	f.eng.dispatch = func(fn func()) { fn() }
	return f
}

func (f *fixture) settings(maxParties int, auto bool) {
	f.t.Helper()
	s := domain.DefaultSettings(guild)
	s.MaxParties = maxParties
	s.AutoAssignmentEnabled = auto
	require.NoError(f.t, f.store.SaveSettings(f.ctx, s))
}

// join carga el perfil completo; con auto-asignación eso dispara Assign.
func (f *fixture) join(userID string, kit [2]string, cp int) ProfileResult {
	f.t.Helper()
	w1, w2 := kit[0], kit[1]
	res, err := f.eng.UpdateProfile(f.ctx, ProfileUpdate{GuildID: guild, UserID: userID, Weapon1: &w1, Weapon2: &w2, CP: &cp})
	require.NoError(f.t, err)
	return res
}

func (f *fixture) player(userID string) domain.Player {
	f.t.Helper()
	p, err := f.store.GetPlayer(f.ctx, guild, userID)
	require.NoError(f.t, err)
	return p
}

func (f *fixture) parties() map[int][]string {
	f.t.Helper()
	ps, err := f.store.ListParties(f.ctx, guild)
	require.NoError(f.t, err)
	out := map[int][]string{}
	for _, p := range ps {
		ids := []string{}
		for _, m := range p.Members {
			ids = append(ids, m.UserID)
		}
		out[p.PartyNumber] = ids
	}
	return out
}

func (f *fixture) partyOf(userID string) int {
	f.t.Helper()
	pl := f.player(userID)
	if pl.PartyNumber == nil {
		return 0
	}
	return *pl.PartyNumber
}

func snapshot(id string, kit [2]string, cp int, at time.Time) domain.PartyMember {
	return domain.PartyMember{
		UserID:  id,
		Weapon1: kit[0],
		Weapon2: kit[1],
		CP:      cp,
		Role:    domain.ClassifyRole(kit[0], kit[1]),
		AddedAt: at,
	}
}

func seedPlayer(id string, kit [2]string, cp int) domain.Player {
	return domain.Player{
		GuildID: guild,
		UserID:  id,
		Weapon1: kit[0],
		Weapon2: kit[1],
		CP:      cp,
		Role:    domain.ClassifyRole(kit[0], kit[1]),
	}
}

func intp(n int) *int { return &n }

// requireConsistent chequea los invariantes entre parties y players del guild.
func requireConsistent(t *testing.T, f *fixture) {
	t.Helper()
	st, err := f.store.GetSettings(f.ctx, guild)
	require.NoError(t, err)
	caps := st.Caps()
	parties, err := f.store.ListParties(f.ctx, guild)
	require.NoError(t, err)
	players, err := f.store.ListPlayers(f.ctx, guild)
	require.NoError(t, err)

	where := map[string]int{}
	for _, p := range parties {
		require.LessOrEqual(t, p.PartyNumber, st.MaxParties, "party %d above max", p.PartyNumber)
		require.LessOrEqual(t, len(p.Members), caps.PartySize)
		require.LessOrEqual(t, p.Roles.Tank, caps.MaxTanks, "party %d tanks", p.PartyNumber)
		require.LessOrEqual(t, p.Roles.Healer, caps.MaxHealers, "party %d healers", p.PartyNumber)
		sum := 0
		for _, m := range p.Members {
			_, dup := where[m.UserID]
			require.False(t, dup, "user %s in two parties", m.UserID)
			where[m.UserID] = p.PartyNumber
			sum += m.CP
		}
		require.Equal(t, sum, p.TotalCP, "party %d total cp", p.PartyNumber)
	}
	for _, pl := range players {
		require.False(t, pl.Placed() && pl.InReserve, "user %s placed and reserved", pl.UserID)
		n, in := where[pl.UserID]
		if in {
			require.True(t, pl.Placed(), "user %s in party %d without back-reference", pl.UserID, n)
			require.Equal(t, n, *pl.PartyNumber)
		} else {
			require.False(t, pl.Placed(), "user %s points to a party that does not hold it", pl.UserID)
		}
	}
}
