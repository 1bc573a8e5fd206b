package storage

import (
	"context"
	"database/sql"
	"errors"

	pq "github.com/lib/pq"

	"github.com/jose-valero/squad-allocator-bot/internal/domain"
)

type PlayerRepo struct{ q querier }

const playerCols = `guild_id, user_id, weapon1, weapon2, role, cp, party_number,
       in_reserve, reserved_at, reserve_reason, created_at, updated_at`

func scanPlayer(row interface{ Scan(...any) error }) (domain.Player, error) {
	var p domain.Player
	var role string
	err := row.Scan(&p.GuildID, &p.UserID, &p.Weapon1, &p.Weapon2, &role, &p.CP, &p.PartyNumber,
		&p.InReserve, &p.ReservedAt, &p.ReserveReason, &p.CreatedAt, &p.UpdatedAt)
	p.Role = domain.Role(role)
	return p, err
}

func (r *PlayerRepo) GetPlayer(ctx context.Context, guildID, userID string) (domain.Player, error) {
	p, err := scanPlayer(r.q.QueryRowContext(ctx, `
SELECT `+playerCols+`
  FROM players
 WHERE guild_id = $1 AND user_id = $2
`, guildID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Player{}, ErrNotFound
	}
	return p, err
}

// GetPlayers: mapa user_id -> Player; los que no existen no aparecen.
func (r *PlayerRepo) GetPlayers(ctx context.Context, guildID string, userIDs []string) (map[string]domain.Player, error) {
	out := map[string]domain.Player{}
	if len(userIDs) == 0 {
		return out, nil
	}
	rows, err := r.q.QueryContext(ctx, `
SELECT `+playerCols+`
  FROM players
 WHERE guild_id = $1 AND user_id = ANY($2)
`, guildID, pq.Array(userIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		out[p.UserID] = p
	}
	return out, rows.Err()
}

// SavePlayer: upsert completo por (guild_id, user_id).
func (r *PlayerRepo) SavePlayer(ctx context.Context, p domain.Player) error {
	_, err := r.q.ExecContext(ctx, `
INSERT INTO players
  (guild_id, user_id, weapon1, weapon2, role, cp, party_number, in_reserve, reserved_at, reserve_reason)
VALUES
  ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (guild_id, user_id) DO UPDATE SET
  weapon1        = EXCLUDED.weapon1,
  weapon2        = EXCLUDED.weapon2,
  role           = EXCLUDED.role,
  cp             = EXCLUDED.cp,
  party_number   = EXCLUDED.party_number,
  in_reserve     = EXCLUDED.in_reserve,
  reserved_at    = EXCLUDED.reserved_at,
  reserve_reason = EXCLUDED.reserve_reason,
  updated_at     = now()
`, p.GuildID, p.UserID, p.Weapon1, p.Weapon2, string(p.Role), p.CP, p.PartyNumber,
		p.InReserve, p.ReservedAt, p.ReserveReason)
	return err
}

func (r *PlayerRepo) DeletePlayer(ctx context.Context, guildID, userID string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM players WHERE guild_id = $1 AND user_id = $2`, guildID, userID)
	return err
}

func (r *PlayerRepo) ListPlayers(ctx context.Context, guildID string) ([]domain.Player, error) {
	return r.list(ctx, `
SELECT `+playerCols+`
  FROM players
 WHERE guild_id = $1
 ORDER BY user_id ASC
`, guildID)
}

// ListReserve: el orden final lo da domain.SortReserve, igual que en el drain.
func (r *PlayerRepo) ListReserve(ctx context.Context, guildID string) ([]domain.Player, error) {
	out, err := r.list(ctx, `
SELECT `+playerCols+`
  FROM players
 WHERE guild_id = $1 AND in_reserve
`, guildID)
	if err != nil {
		return nil, err
	}
	domain.SortReserve(out)
	return out, nil
}

func (r *PlayerRepo) list(ctx context.Context, query string, args ...any) ([]domain.Player, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
