package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jose-valero/squad-allocator-bot/internal/domain"
)

type PanelRepo struct{ db *sql.DB }

func NewPanelRepo(db *sql.DB) *PanelRepo { return &PanelRepo{db: db} }

func (r *PanelRepo) Get(ctx context.Context, guildID string) (domain.Panel, error) {
	var p domain.Panel
	err := r.db.QueryRowContext(ctx, `
SELECT guild_id, channel_id, message_id, created_at, updated_at
  FROM guild_panels
 WHERE guild_id = $1
`, guildID).Scan(&p.GuildID, &p.ChannelID, &p.MessageID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Panel{}, ErrNotFound
	}
	return p, err
}

func (r *PanelRepo) Upsert(ctx context.Context, guildID, channelID, messageID string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO guild_panels (guild_id, channel_id, message_id)
VALUES ($1,$2,$3)
ON CONFLICT (guild_id) DO UPDATE SET
  channel_id = EXCLUDED.channel_id,
  message_id = EXCLUDED.message_id,
  updated_at = now()
`, guildID, channelID, messageID)
	return err
}

func (r *PanelRepo) Delete(ctx context.Context, guildID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM guild_panels WHERE guild_id = $1`, guildID)
	return err
}
