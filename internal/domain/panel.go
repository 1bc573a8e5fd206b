package domain

import "time"

// Panel es el mensaje con el roster publicado en un canal; se edita en cada cambio.
type Panel struct {
	GuildID   string
	ChannelID string
	MessageID string
	CreatedAt time.Time
	UpdatedAt time.Time
}
