package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jose-valero/squad-allocator-bot/internal/domain"
)

type SettingsRepo struct{ q querier }

const settingsCols = `guild_id, max_parties, auto_assignment_enabled, max_healers_per_party,
       last_periodic_rebalance, created_at, updated_at`

func scanSettings(row interface{ Scan(...any) error }) (domain.GuildSettings, error) {
	var s domain.GuildSettings
	err := row.Scan(&s.GuildID, &s.MaxParties, &s.AutoAssignmentEnabled, &s.MaxHealersPerParty,
		&s.LastPeriodicRebalance, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (r *SettingsRepo) GetSettings(ctx context.Context, guildID string) (domain.GuildSettings, error) {
	s, err := scanSettings(r.q.QueryRowContext(ctx, `
SELECT `+settingsCols+`
  FROM guild_settings
 WHERE guild_id = $1
`, guildID))
	if errors.Is(err, sql.ErrNoRows) {
		// crea default
		d := domain.DefaultSettings(guildID)
		_, err := r.q.ExecContext(ctx, `
INSERT INTO guild_settings (guild_id, max_parties, auto_assignment_enabled, max_healers_per_party)
VALUES ($1,$2,$3,$4)
ON CONFLICT (guild_id) DO NOTHING
`, d.GuildID, d.MaxParties, d.AutoAssignmentEnabled, d.MaxHealersPerParty)
		if err != nil {
			return domain.GuildSettings{}, err
		}
		return r.GetSettings(ctx, guildID)
	}
	return s, err
}

func (r *SettingsRepo) SaveSettings(ctx context.Context, s domain.GuildSettings) error {
	_, err := r.q.ExecContext(ctx, `
INSERT INTO guild_settings
  (guild_id, max_parties, auto_assignment_enabled, max_healers_per_party, last_periodic_rebalance, created_at, updated_at)
VALUES
  ($1, $2, $3, $4, $5, now(), now())
ON CONFLICT (guild_id) DO UPDATE SET
  max_parties             = EXCLUDED.max_parties,
  auto_assignment_enabled = EXCLUDED.auto_assignment_enabled,
  max_healers_per_party   = EXCLUDED.max_healers_per_party,
  last_periodic_rebalance = EXCLUDED.last_periodic_rebalance,
  updated_at              = now()
`, s.GuildID, s.MaxParties, s.AutoAssignmentEnabled, s.MaxHealersPerParty, s.LastPeriodicRebalance)
	return err
}

func (r *SettingsRepo) ListSettings(ctx context.Context) ([]domain.GuildSettings, error) {
	rows, err := r.q.QueryContext(ctx, `
SELECT `+settingsCols+`
  FROM guild_settings
 ORDER BY guild_id ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.GuildSettings
	for rows.Next() {
		s, err := scanSettings(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
