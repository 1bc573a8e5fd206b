package allocation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jose-valero/squad-allocator-bot/internal/domain"
)

type RebalanceReport struct {
	RunID     string
	Reconcile ReconcileReport
	Moved     int
	Overflow  int
	Drain     DrainResult
}

// Rebalance concentra la fuerza: tanks, healers y dps ordenados por CP desc
// llenan las parties en orden ascendente, asi la party 1 es la mas fuerte.
// Despues drena la reserva. Sin force respeta el debounce.
func (e *Engine) Rebalance(ctx context.Context, guildID string, force bool) (RebalanceReport, error) {
	var rep RebalanceReport
	err := e.withGuild(ctx, guildID, func() error {
		r, err := e.rebalanceLocked(ctx, guildID, force)
		rep = r
		return err
	})
	return rep, err
}

func (e *Engine) rebalanceLocked(ctx context.Context, guildID string, force bool) (RebalanceReport, error) {
	started := time.Now()
	rep := RebalanceReport{RunID: uuid.NewString()}
	log := e.log.With(zap.String("guild", guildID), zap.String("run", rep.RunID))

	settings, err := e.store.GetSettings(ctx, guildID)
	if err != nil {
		return rep, fmt.Errorf("load settings: %w", err)
	}
	if !force && settings.LastPeriodicRebalance != nil &&
		e.now().Sub(*settings.LastPeriodicRebalance) < e.rebalanceDebounce {
		return rep, ErrDebounced
	}

	// pasos 1-4 en una sola transaccion: nadie ve el guild "sin tanks"
	_, err = e.mutate(ctx, guildID, func(g *guildState) error {
		rep.Reconcile = g.reconcile()
		rep.Moved, rep.Overflow = g.concentrate()
		return nil
	})
	if err != nil {
		e.metrics.ObserveRebalance(time.Since(started), err)
		log.Error("strength concentration aborted", zap.Error(err))
		return rep, fmt.Errorf("concentrate: %w", err)
	}
	if !rep.Reconcile.Clean() {
		log.Warn("reconcile repaired state",
			zap.Int("duplicates", rep.Reconcile.DuplicatesRemoved),
			zap.Int("stray_parties", rep.Reconcile.StrayParties),
			zap.Int("relinked", rep.Reconcile.PlayersRelinked),
			zap.Int("reserved", rep.Reconcile.PlayersReserved),
			zap.Int("snapshots", rep.Reconcile.SnapshotsSynced))
	}

	// paso 5
	_, err = e.mutate(ctx, guildID, func(g *guildState) error {
		rep.Drain = g.drain()
		now := g.now
		g.settings.LastPeriodicRebalance = &now
		g.settingsDirty = true
		return nil
	})
	e.metrics.ObserveRebalance(time.Since(started), err)
	if err != nil {
		log.Error("reserve drain after rebalance failed", zap.Error(err))
		return rep, fmt.Errorf("drain: %w", err)
	}
	e.metrics.ObservePromotions(rep.Drain.Promoted)

	log.Info("rebalance done",
		zap.Int("moved", rep.Moved),
		zap.Int("overflow", rep.Overflow),
		zap.Int("promoted", rep.Drain.Promoted),
		zap.Duration("took", time.Since(started)))
	return rep, nil
}

// concentrate arma en memoria la nueva composicion de todas las parties
// activas. Devuelve cuantos cambiaron de party y cuantos quedaron sin lugar.
func (g *guildState) concentrate() (moved, overflow int) {
	active := g.active()
	if len(active) == 0 {
		return 0, 0
	}

	var tanks, healers, dps []domain.PartyMember
	from := map[string]int{}
	for _, p := range active {
		for _, m := range p.Members {
			from[m.UserID] = p.PartyNumber
			switch m.Role {
			case domain.RoleTank:
				tanks = append(tanks, m)
			case domain.RoleHealer:
				healers = append(healers, m)
			default:
				dps = append(dps, m)
			}
		}
	}
	strongestFirst(tanks)
	strongestFirst(healers)
	strongestFirst(dps)

	next := make(map[int][]domain.PartyMember, len(active))
	fill := func(list []domain.PartyMember, limit int) []domain.PartyMember {
		i := 0
		for _, p := range active {
			n := p.PartyNumber
			take := min(limit, g.caps.PartySize-len(next[n]))
			for ; take > 0 && i < len(list); take-- {
				next[n] = append(next[n], list[i])
				i++
			}
		}
		return list[i:]
	}

	var leftover []domain.PartyMember
	leftover = append(leftover, fill(tanks, g.caps.MaxTanks)...)
	leftover = append(leftover, fill(healers, g.caps.MaxHealers)...)
	leftover = append(leftover, fill(dps, g.caps.PartySize)...)

	for _, p := range active {
		n := p.PartyNumber
		members := next[n]
		for i := range members {
			m := &members[i]
			if from[m.UserID] == n {
				continue
			}
			m.AddedAt = g.now
			moved++
			pl := g.player(*m)
			pl.PlaceIn(n)
			g.touchPlayer(pl)
			g.notify(domain.Notification{
				Kind:        domain.MemberMoved,
				UserID:      m.UserID,
				PartyNumber: n,
				FromParty:   from[m.UserID],
				ToParty:     n,
				Role:        m.Role,
				Reason:      ReasonRebalance,
			})
		}
		if !sameMembers(p.Members, members) {
			p.Members = append([]domain.PartyMember{}, members...)
			g.touchParty(p)
		}
	}

	for _, m := range leftover {
		overflow++
		g.toReserve(g.player(m), ReasonRebalanceNoSlot)
	}
	return moved, overflow
}

func strongestFirst(ms []domain.PartyMember) {
	sort.SliceStable(ms, func(i, j int) bool {
		return domain.StrongerFirst(ms[i].CP, ms[i].UserID, ms[j].CP, ms[j].UserID)
	})
}

func sameMembers(a, b []domain.PartyMember) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].UserID != b[i].UserID {
			return false
		}
	}
	return true
}

type BatchReport struct {
	Ran     []string
	Skipped []string
	Failed  map[string]error
}

// RebalanceAll corre Rebalance en cada guild con auto-asignacion cuyo ultimo
// rebalanceo periodico tenga mas de rebalanceInterval. Un guild que falla no
// frena al resto.
func (e *Engine) RebalanceAll(ctx context.Context, force bool) (BatchReport, error) {
	rep := BatchReport{Failed: map[string]error{}}
	all, err := e.store.ListSettings(ctx)
	if err != nil {
		return rep, fmt.Errorf("list guilds: %w", err)
	}
	var errs []error
	for _, s := range all {
		if !s.AutoAssignmentEnabled {
			continue
		}
		if !force && s.LastPeriodicRebalance != nil && e.now().Sub(*s.LastPeriodicRebalance) < e.rebalanceInterval {
			rep.Skipped = append(rep.Skipped, s.GuildID)
			continue
		}
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if _, err := e.Rebalance(ctx, s.GuildID, true); err != nil {
			rep.Failed[s.GuildID] = err
			errs = append(errs, fmt.Errorf("guild %s: %w", s.GuildID, err))
			continue
		}
		rep.Ran = append(rep.Ran, s.GuildID)
	}
	return rep, errors.Join(errs...)
}
