package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const maxSelectOptions = 25

func (r *Router) handleMessageComponent(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	data := ic.MessageComponentData()

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("panic in component", zap.String("id", data.CustomID), zap.Any("recover", rec))
			ReplyEphemeral(s, ic, "❌ Ocurrió un error inesperado.")
		}
	}()

	_ = DeferEphemeral(s, ic)
	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	defer r.span("component."+data.CustomID, ic.GuildID).end()

	if !r.clickLimiter.Allow(ic.Member.User.ID) {
		ReplyEphemeral(s, ic, "⏳ Esperá un segundo…")
		return
	}

	switch data.CustomID {
	case "panel_profile":
		r.cmdProfileShow(ctx, s, ic)

	case "panel_refresh":
		r.RefreshPanel(ic.GuildID)
		ReplyEphemeral(s, ic, "🔄 Actualizando el panel…")

	case "admin_panel":
		if !r.requireAdminOrRoles(s, ic) {
			return
		}
		roster, err := r.engine.Roster(ctx, ic.GuildID)
		if err != nil {
			ReplyEphemeral(s, ic, errMsg(err))
			return
		}

		opts := make([]discordgo.SelectMenuOption, 0, maxSelectOptions)
		for _, p := range roster.Parties {
			for _, m := range p.Members {
				if len(opts) == maxSelectOptions {
					break
				}
				opts = append(opts, discordgo.SelectMenuOption{
					Label:       truncate(fmt.Sprintf("Party %d · %s", p.PartyNumber, m.UserID), 100),
					Value:       "uid:" + m.UserID,
					Description: truncate(fmt.Sprintf("%s · %d CP", roleLabel(m.Role), m.CP), 100),
				})
			}
		}
		for _, pl := range roster.Reserve {
			if len(opts) == maxSelectOptions {
				break
			}
			opts = append(opts, discordgo.SelectMenuOption{
				Label:       truncate("Reserva · "+pl.UserID, 100),
				Value:       "uid:" + pl.UserID,
				Description: truncate(fmt.Sprintf("%s · %d CP", roleLabel(pl.Role), pl.CP), 100),
			})
		}
		if len(opts) == 0 {
			ReplyEphemeral(s, ic, "ℹ️ No hay nadie en parties ni en reserva.")
			return
		}
		row := discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					CustomID:    "kick_select",
					Placeholder: "Selecciona a quién sacar",
					Options:     opts,
				},
			},
		}
		if err := ReplyComponents(s, ic, "Elige un jugador para **sacar**:", row); err != nil {
			ReplyEphemeral(s, ic, "⚠️ No pude mostrar el panel admin: "+err.Error())
		}

	//--> solo admins
	case "kick_select":
		if !r.requireAdminOrRoles(s, ic) {
			return
		}
		if len(data.Values) == 0 {
			ReplyEphemeral(s, ic, "⚠️ Selección inválida.")
			return
		}
		r.kick(ctx, s, ic, strings.TrimPrefix(data.Values[0], "uid:"))
	}
}
