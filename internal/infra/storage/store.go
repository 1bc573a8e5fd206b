package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jose-valero/squad-allocator-bot/internal/app/partystore"
)

var ErrNotFound = partystore.ErrNotFound

// querier lo cumplen *sql.DB y *sql.Tx; los repos no saben si estan en una transaccion.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store junta los repos de settings, players y parties detras de partystore.Store.
type Store struct {
	*SettingsRepo
	*PlayerRepo
	*PartyRepo

	db   *sql.DB
	inTx bool
}

var _ partystore.Store = (*Store)(nil)

func NewStore(db *sql.DB) *Store { return newStore(db, db, false) }

func newStore(db *sql.DB, q querier, inTx bool) *Store {
	return &Store{
		SettingsRepo: &SettingsRepo{q: q},
		PlayerRepo:   &PlayerRepo{q: q},
		PartyRepo:    &PartyRepo{q: q},
		db:           db,
		inTx:         inTx,
	}
}

// WithTx toma un advisory lock de transaccion por guild antes de correr fn, asi
// dos procesos contra la misma base quedan en fila aunque no compartan Redis.
// El lock se suelta solo en commit o rollback.
func (s *Store) WithTx(ctx context.Context, guildID string, fn func(tx partystore.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if guildID != "" {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, guildLockKey(guildID)); err != nil {
			return fmt.Errorf("guild lock %s: %w", guildID, err)
		}
	}

	if err := fn(newStore(s.db, tx, true)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func guildLockKey(guildID string) string { return "squadbot:guild:" + guildID }
