package storage

import (
	"context"

	"github.com/jose-valero/squad-allocator-bot/internal/domain"
)

type PartyRepo struct{ q querier }

// ListParties: todas las parties del guild con sus miembros, por numero asc.
func (r *PartyRepo) ListParties(ctx context.Context, guildID string) ([]domain.Party, error) {
	rows, err := r.q.QueryContext(ctx, `
SELECT guild_id, party_number, total_cp, tank_count, healer_count, dps_count, created_at, updated_at
  FROM parties
 WHERE guild_id = $1
 ORDER BY party_number ASC
`, guildID)
	if err != nil {
		return nil, err
	}
	var out []domain.Party
	idx := map[int]int{}
	for rows.Next() {
		p := domain.Party{Members: []domain.PartyMember{}}
		if err := rows.Scan(&p.GuildID, &p.PartyNumber, &p.TotalCP, &p.Roles.Tank, &p.Roles.Healer, &p.Roles.DPS,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		idx[p.PartyNumber] = len(out)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	if len(out) == 0 {
		return out, nil
	}

	mrows, err := r.q.QueryContext(ctx, `
SELECT party_number, user_id, weapon1, weapon2, cp, role, added_at
  FROM party_members
 WHERE guild_id = $1
 ORDER BY party_number ASC, position ASC
`, guildID)
	if err != nil {
		return nil, err
	}
	defer mrows.Close()
	for mrows.Next() {
		var n int
		var m domain.PartyMember
		var role string
		if err := mrows.Scan(&n, &m.UserID, &m.Weapon1, &m.Weapon2, &m.CP, &role, &m.AddedAt); err != nil {
			return nil, err
		}
		m.Role = domain.Role(role)
		if i, ok := idx[n]; ok {
			out[i].Members = append(out[i].Members, m)
		}
	}
	return out, mrows.Err()
}

// SaveParty reescribe la party entera: fila con caches recalculados y miembros
// en orden. Conviene llamarlo dentro de WithTx.
func (r *PartyRepo) SaveParty(ctx context.Context, p domain.Party) error {
	p.Recompute()
	_, err := r.q.ExecContext(ctx, `
INSERT INTO parties (guild_id, party_number, total_cp, tank_count, healer_count, dps_count)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (guild_id, party_number) DO UPDATE SET
  total_cp     = EXCLUDED.total_cp,
  tank_count   = EXCLUDED.tank_count,
  healer_count = EXCLUDED.healer_count,
  dps_count    = EXCLUDED.dps_count,
  updated_at   = now()
`, p.GuildID, p.PartyNumber, p.TotalCP, p.Roles.Tank, p.Roles.Healer, p.Roles.DPS)
	if err != nil {
		return err
	}

	if _, err := r.q.ExecContext(ctx, `
DELETE FROM party_members WHERE guild_id = $1 AND party_number = $2
`, p.GuildID, p.PartyNumber); err != nil {
		return err
	}
	for i, m := range p.Members {
		if _, err := r.q.ExecContext(ctx, `
INSERT INTO party_members (guild_id, party_number, user_id, weapon1, weapon2, cp, role, added_at, position)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`, p.GuildID, p.PartyNumber, m.UserID, m.Weapon1, m.Weapon2, m.CP, string(m.Role), m.AddedAt, i); err != nil {
			return err
		}
	}
	return nil
}

// DeleteParty: los miembros caen por ON DELETE CASCADE.
func (r *PartyRepo) DeleteParty(ctx context.Context, guildID string, number int) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM parties WHERE guild_id = $1 AND party_number = $2`, guildID, number)
	return err
}
