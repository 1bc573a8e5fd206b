// Package memstore es un partystore.Store en memoria. Se usa en tests y para
// correr el bot sin Postgres (STORAGE=memory). Las transacciones trabajan
// sobre una copia y se aplican enteras al commit.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jose-valero/squad-allocator-bot/internal/app/partystore"
	"github.com/jose-valero/squad-allocator-bot/internal/domain"
)

type playerKey struct{ guild, user string }
type partyKey struct {
	guild  string
	number int
}

type data struct {
	settings map[string]domain.GuildSettings
	players  map[playerKey]domain.Player
	parties  map[partyKey]domain.Party
}

func newData() *data {
	return &data{
		settings: map[string]domain.GuildSettings{},
		players:  map[playerKey]domain.Player{},
		parties:  map[partyKey]domain.Party{},
	}
}

func (d *data) clone() *data {
	out := newData()
	for k, v := range d.settings {
		out.settings[k] = v
	}
	for k, v := range d.players {
		out.players[k] = v
	}
	for k, v := range d.parties {
		out.parties[k] = v.Clone()
	}
	return out
}

type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex
	d    *data
	inTx bool

	failNext error
}

var _ partystore.Store = (*Store)(nil)

func New() *Store { return &Store{d: newData()} }

// FailNextTx hace que la proxima transaccion falle al commit con err.
func (s *Store) FailNextTx(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

func (s *Store) GetSettings(_ context.Context, guildID string) (domain.GuildSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.d.settings[guildID]; ok {
		return v, nil
	}
	v := domain.DefaultSettings(guildID)
	v.CreatedAt = time.Now()
	v.UpdatedAt = v.CreatedAt
	s.d.settings[guildID] = v
	return v, nil
}

func (s *Store) SaveSettings(_ context.Context, v domain.GuildSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.settings[v.GuildID] = v
	return nil
}

func (s *Store) ListSettings(_ context.Context) ([]domain.GuildSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.GuildSettings, 0, len(s.d.settings))
	for _, v := range s.d.settings {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GuildID < out[j].GuildID })
	return out, nil
}

func (s *Store) GetPlayer(_ context.Context, guildID, userID string) (domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.d.players[playerKey{guildID, userID}]
	if !ok {
		return domain.Player{}, partystore.ErrNotFound
	}
	return p, nil
}

func (s *Store) GetPlayers(_ context.Context, guildID string, userIDs []string) (map[string]domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]domain.Player, len(userIDs))
	for _, id := range userIDs {
		if p, ok := s.d.players[playerKey{guildID, id}]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *Store) SavePlayer(_ context.Context, p domain.Player) error {
	if p.PartyNumber != nil && p.InReserve {
		return fmt.Errorf("player %s: placed and in reserve at the same time", p.UserID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.players[playerKey{p.GuildID, p.UserID}] = p
	return nil
}

func (s *Store) DeletePlayer(_ context.Context, guildID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.d.players, playerKey{guildID, userID})
	return nil
}

func (s *Store) ListPlayers(_ context.Context, guildID string) ([]domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Player
	for k, p := range s.d.players {
		if k.guild == guildID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *Store) ListReserve(_ context.Context, guildID string) ([]domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Player
	for k, p := range s.d.players {
		if k.guild == guildID && p.InReserve {
			out = append(out, p)
		}
	}
	domain.SortReserve(out)
	return out, nil
}

func (s *Store) ListParties(_ context.Context, guildID string) ([]domain.Party, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Party
	for k, p := range s.d.parties {
		if k.guild == guildID {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PartyNumber < out[j].PartyNumber })
	return out, nil
}

func (s *Store) SaveParty(_ context.Context, p domain.Party) error {
	if len(p.Members) > domain.PartySize {
		return fmt.Errorf("party %d: %d members exceeds %d", p.PartyNumber, len(p.Members), domain.PartySize)
	}
	c := p.Clone()
	c.Recompute()
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.d.parties[partyKey{p.GuildID, p.PartyNumber}]; ok && c.CreatedAt.IsZero() {
		c.CreatedAt = old.CreatedAt
	}
	s.d.parties[partyKey{p.GuildID, p.PartyNumber}] = c
	return nil
}

func (s *Store) DeleteParty(_ context.Context, guildID string, number int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.d.parties, partyKey{guildID, number})
	return nil
}

// WithTx serializa todas las transacciones con txMu; el guild no cambia nada.
func (s *Store) WithTx(ctx context.Context, _ string, fn func(tx partystore.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	tx := &Store{d: s.d.clone(), inTx: true}
	s.mu.Unlock()

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failNext; err != nil {
		s.failNext = nil
		return err
	}
	if err := tx.d.validate(); err != nil {
		return err
	}
	s.d = tx.d
	return nil
}

// validate replica lo que en Postgres hace el UNIQUE(guild_id, user_id) diferido.
func (d *data) validate() error {
	seen := map[playerKey]int{}
	for k, p := range d.parties {
		for _, m := range p.Members {
			pk := playerKey{k.guild, m.UserID}
			if n, dup := seen[pk]; dup {
				return fmt.Errorf("user %s in parties %d and %d", m.UserID, n, k.number)
			}
			seen[pk] = k.number
		}
	}
	return nil
}
