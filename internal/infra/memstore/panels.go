package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/jose-valero/squad-allocator-bot/internal/app/partystore"
	"github.com/jose-valero/squad-allocator-bot/internal/domain"
)

// Panels guarda en memoria el mensaje de roster publicado por guild.
type Panels struct {
	mu sync.Mutex
	m  map[string]domain.Panel
}

func NewPanels() *Panels { return &Panels{m: map[string]domain.Panel{}} }

func (p *Panels) Get(_ context.Context, guildID string) (domain.Panel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.m[guildID]
	if !ok {
		return domain.Panel{}, partystore.ErrNotFound
	}
	return v, nil
}

func (p *Panels) Upsert(_ context.Context, guildID, channelID, messageID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	v, ok := p.m[guildID]
	if !ok {
		v = domain.Panel{GuildID: guildID, CreatedAt: now}
	}
	v.ChannelID, v.MessageID, v.UpdatedAt = channelID, messageID, now
	p.m[guildID] = v
	return nil
}

func (p *Panels) Delete(_ context.Context, guildID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.m, guildID)
	return nil
}
