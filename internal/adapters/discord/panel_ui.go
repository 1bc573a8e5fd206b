package discord

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	uiDebounce   = 250 * time.Millisecond
	ctxRenderMax = 3 * time.Second
)

// Publica (o re-publica) el panel del roster en ESTE canal
func (r *Router) publishPanel(ctx context.Context, guildID, channelID string) error {
	embed, comps, err := r.renderPanel(ctx, guildID)
	if err != nil {
		return err
	}
	msg, err := r.s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: []discordgo.MessageComponent{comps},
	})
	if err != nil {
		return err
	}
	return r.panels.Upsert(ctx, guildID, channelID, msg.ID)
}

// RefreshPanel re-renderiza el panel publicado del guild. Varios cambios
// seguidos (un rebalanceo manda muchas notificaciones) se juntan en un solo edit.
func (r *Router) RefreshPanel(guildID string) {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()
	if t, ok := r.refreshTimers[guildID]; ok {
		t.Stop()
	}
	r.refreshTimers[guildID] = time.AfterFunc(uiDebounce, func() {
		r.refreshMu.Lock()
		delete(r.refreshTimers, guildID)
		r.refreshMu.Unlock()
		r.editPanel(guildID)
	})
}

// SyncPanel edita el panel en el momento, sin debounce. Lo usan los procesos
// cortos que terminan antes de que dispare el timer de RefreshPanel.
func (r *Router) SyncPanel(guildID string) { r.editPanel(guildID) }

func (r *Router) editPanel(guildID string) {
	defer r.span("ui.refresh", guildID).end()
	ctx, cancel := context.WithTimeout(context.Background(), ctxRenderMax)
	defer cancel()

	ui, err := r.panels.Get(ctx, guildID)
	if err != nil || ui.ChannelID == "" || ui.MessageID == "" {
		return
	}
	embed, comps, err := r.renderPanel(ctx, guildID)
	if err != nil {
		r.log.Warn("panel render", zap.String("guild", guildID), zap.Error(err))
		return
	}
	em := []*discordgo.MessageEmbed{embed}
	cc := []discordgo.MessageComponent{comps}
	_, err = r.s.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    ui.ChannelID,
		ID:         ui.MessageID,
		Embeds:     &em,
		Components: &cc,
	})
	if err == nil {
		return
	}
	var re *discordgo.RESTError
	if errors.As(err, &re) && re.Message != nil && re.Message.Code == 10008 {
		// Unknown Message: alguien borró el panel, lo olvidamos
		_ = r.panels.Delete(ctx, guildID)
		r.log.Info("panel message gone, forgetting it", zap.String("guild", guildID))
		return
	}
	if errors.As(err, &re) && re.Response != nil {
		r.log.Warn("panel edit",
			zap.String("guild", guildID),
			zap.Int("status", re.Response.StatusCode),
			zap.String("retry_after", re.Response.Header.Get("Retry-After")),
			zap.Error(err))
		return
	}
	r.log.Warn("panel edit", zap.String("guild", guildID), zap.Error(err))
}

// Render del embed + botones
func (r *Router) renderPanel(ctx context.Context, guildID string) (*discordgo.MessageEmbed, discordgo.MessageComponent, error) {
	roster, err := r.engine.Roster(ctx, guildID)
	if err != nil {
		return nil, nil, err
	}
	embed := renderRoster(roster, time.Now())
	comps := discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.Button{
				Style:    discordgo.PrimaryButton,
				Label:    "Mi perfil",
				CustomID: "panel_profile",
				Emoji:    &discordgo.ComponentEmoji{Name: "🧾"},
			},
			discordgo.Button{
				Style:    discordgo.SecondaryButton,
				Label:    "Actualizar",
				CustomID: "panel_refresh",
				Emoji:    &discordgo.ComponentEmoji{Name: "🔄"},
			},
			discordgo.Button{
				Style:    discordgo.SecondaryButton,
				Label:    "Admin",
				CustomID: "admin_panel",
				Emoji:    &discordgo.ComponentEmoji{Name: "👮"},
			},
		},
	}
	return embed, comps, nil
}
