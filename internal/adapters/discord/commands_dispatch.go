// Lógica de InteractionApplicationCommand: acá sólo se parsea la interacción
// del usuario y se despacha al engine de asignación.
package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/jose-valero/squad-allocator-bot/internal/app/allocation"
)

func (r *Router) handleSlashCommand(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	cmd := ic.ApplicationCommandData()
	sub, _ := subcmdName(ic)
	log := r.log.With(
		zap.String("cmd", cmd.Name),
		zap.String("sub", sub),
		zap.String("guild", ic.GuildID),
		zap.String("user", ic.Member.User.ID))
	log.Debug("slash")

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("panic in slash command", zap.Any("recover", rec))
			ReplyEphemeral(s, ic, "❌ Ocurrió un error inesperado procesando el comando. Contacta con un administrador.")
		}
	}()

	_ = DeferEphemeral(s, ic)
	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()
	defer r.span("slash."+cmd.Name+"."+sub, ic.GuildID).end()

	switch cmd.Name {
	case "profile":
		switch sub {
		case "set":
			r.cmdProfileSet(ctx, s, ic)
		case "show":
			r.cmdProfileShow(ctx, s, ic)
		default:
			ReplyEphemeral(s, ic, "Usa `/profile set` o `/profile show`.")
		}

	case "party":
		switch sub {
		case "list":
			r.cmdPartyList(ctx, s, ic)
		case "config":
			if !r.requireAdminOrRoles(s, ic) {
				return
			}
			r.cmdPartyConfig(ctx, s, ic)
		case "rebalance":
			if !r.requireAdminOrRoles(s, ic) {
				return
			}
			r.cmdPartyRebalance(ctx, s, ic)
		case "clear":
			if !r.requireAdminOrRoles(s, ic) {
				return
			}
			r.cmdPartyClear(ctx, s, ic)
		case "kick":
			if !r.requireAdminOrRoles(s, ic) {
				return
			}
			uid, ok := optUserID(ic, "user")
			if !ok {
				ReplyEphemeral(s, ic, "⚠️ Indica a quién sacar.")
				return
			}
			r.kick(ctx, s, ic, uid)
		case "panel":
			if !r.requireAdminOrRoles(s, ic) {
				return
			}
			if err := r.publishPanel(ctx, ic.GuildID, ic.ChannelID); err != nil {
				log.Warn("publish panel", zap.Error(err))
				ReplyEphemeral(s, ic, "⚠️ No pude publicar el panel: "+err.Error())
				return
			}
			ReplyEphemeral(s, ic, "✅ Panel publicado aquí. Se actualiza solo con cada cambio.")
		default:
			ReplyEphemeral(s, ic, "Usa `/party list`, `/party config`, `/party rebalance`, `/party clear`, `/party kick` o `/party panel`.")
		}

	case "reserve":
		roster, err := r.engine.Roster(ctx, ic.GuildID)
		if err != nil {
			ReplyEphemeral(s, ic, errMsg(err))
			return
		}
		ReplyEphemeral(s, ic, "", renderReserve(roster.Reserve, time.Now()))
	}
}

func (r *Router) cmdProfileSet(ctx context.Context, s *discordgo.Session, ic *discordgo.InteractionCreate) {
	u := allocation.ProfileUpdate{GuildID: ic.GuildID, UserID: ic.Member.User.ID}
	if v, ok := optStr(ic, "weapon1"); ok {
		u.Weapon1 = &v
	}
	if v, ok := optStr(ic, "weapon2"); ok {
		u.Weapon2 = &v
	}
	if v, ok := optInt(ic, "cp"); ok {
		u.CP = &v
	}
	if u.Weapon1 == nil && u.Weapon2 == nil && u.CP == nil {
		ReplyEphemeral(s, ic, "Pasa al menos `weapon1`, `weapon2` o `cp`.")
		return
	}

	res, err := r.engine.UpdateProfile(ctx, u)
	if err != nil {
		ReplyEphemeral(s, ic, errMsg(err))
		return
	}

	var b strings.Builder
	b.WriteString("✅ Perfil actualizado.")
	switch {
	case res.Outcome != nil:
		b.WriteString("\n" + outcomeMsg(res.Player.Role, *res.Outcome))
	case !res.Player.ProfileComplete():
		b.WriteString("\nTe falta un arma para entrar a una party.")
	case res.Player.Placed():
		fmt.Fprintf(&b, "\nSigues en la **Party %d**.", *res.Player.PartyNumber)
	}
	ReplyEphemeral(s, ic, b.String(), renderProfile(res.Player))
	r.RefreshPanel(ic.GuildID)
}

func (r *Router) cmdProfileShow(ctx context.Context, s *discordgo.Session, ic *discordgo.InteractionCreate) {
	pl, err := r.engine.Profile(ctx, ic.GuildID, ic.Member.User.ID)
	if errors.Is(err, allocation.ErrNotFound) {
		ReplyEphemeral(s, ic, "Todavía no tienes perfil. Usa `/profile set weapon1 weapon2 cp`.")
		return
	}
	if err != nil {
		ReplyEphemeral(s, ic, errMsg(err))
		return
	}
	ReplyEphemeral(s, ic, "", renderProfile(pl))
}

func (r *Router) cmdPartyList(ctx context.Context, s *discordgo.Session, ic *discordgo.InteractionCreate) {
	roster, err := r.engine.Roster(ctx, ic.GuildID)
	if err != nil {
		ReplyEphemeral(s, ic, errMsg(err))
		return
	}
	ReplyEphemeral(s, ic, "", renderRoster(roster, time.Now()))
}

func (r *Router) cmdPartyConfig(ctx context.Context, s *discordgo.Session, ic *discordgo.InteractionCreate) {
	var lines []string

	if v, ok := optBool(ic, "auto_assign"); ok {
		res, err := r.engine.SetAutoAssignment(ctx, ic.GuildID, v)
		if err != nil {
			ReplyEphemeral(s, ic, errMsg(err))
			return
		}
		if v {
			lines = append(lines, fmt.Sprintf("✅ Asignación automática encendida (%d asignados).", res.Promoted))
		} else {
			lines = append(lines, "⏸️ Asignación automática apagada.")
		}
	}
	if v, ok := optInt(ic, "max_healers"); ok {
		if err := r.engine.SetMaxHealers(ctx, ic.GuildID, v); err != nil {
			ReplyEphemeral(s, ic, strings.Join(append(lines, errMsg(err)), "\n"))
			return
		}
		lines = append(lines, fmt.Sprintf("✅ Healers por party: %d.", v))
	}
	if v, ok := optInt(ic, "max_parties"); ok {
		res, err := r.engine.SetMaxParties(ctx, ic.GuildID, v)
		if err != nil {
			ReplyEphemeral(s, ic, strings.Join(append(lines, errMsg(err)), "\n"))
			return
		}
		line := fmt.Sprintf("✅ Parties: %d → %d.", res.OldMax, res.NewMax)
		if len(res.Disbanded) > 0 {
			line += fmt.Sprintf(" Disueltas: %v.", res.Disbanded)
		}
		if res.Drain.Promoted > 0 {
			line += fmt.Sprintf(" %d salieron de la reserva.", res.Drain.Promoted)
		}
		lines = append(lines, line)
	}

	if len(lines) == 0 {
		st, err := r.engine.Settings(ctx, ic.GuildID)
		if err != nil {
			ReplyEphemeral(s, ic, errMsg(err))
			return
		}
		ReplyEphemeral(s, ic, fmt.Sprintf("max_parties: **%d** · auto_assign: **%t** · max_healers: **%d**",
			st.MaxParties, st.AutoAssignmentEnabled, st.Caps().MaxHealers))
		return
	}
	ReplyEphemeral(s, ic, strings.Join(lines, "\n"))
	r.RefreshPanel(ic.GuildID)
}

func (r *Router) cmdPartyRebalance(ctx context.Context, s *discordgo.Session, ic *discordgo.InteractionCreate) {
	force, _ := optBool(ic, "force")
	rep, err := r.engine.Rebalance(ctx, ic.GuildID, force)
	if err != nil {
		ReplyEphemeral(s, ic, errMsg(err))
		return
	}
	msg := fmt.Sprintf("✅ Rebalanceo listo: %d movidos, %d a reserva, %d promovidos.",
		rep.Moved, rep.Overflow, rep.Drain.Promoted)
	if !rep.Reconcile.Clean() {
		msg += "\n🔧 Se repararon inconsistencias en el estado."
	}
	ReplyEphemeral(s, ic, msg)
	r.RefreshPanel(ic.GuildID)
}

func (r *Router) cmdPartyClear(ctx context.Context, s *discordgo.Session, ic *discordgo.InteractionCreate) {
	n, ok := optInt(ic, "number")
	if !ok {
		ReplyEphemeral(s, ic, "⚠️ Indica el número de party.")
		return
	}
	moved, err := r.engine.ClearParty(ctx, ic.GuildID, n)
	if err != nil {
		ReplyEphemeral(s, ic, errMsg(err))
		return
	}
	ReplyEphemeral(s, ic, fmt.Sprintf("🧹 Party %d vaciada: %d a la reserva.", n, moved))
	r.RefreshPanel(ic.GuildID)
}

func (r *Router) kick(ctx context.Context, s *discordgo.Session, ic *discordgo.InteractionCreate, userID string) {
	res, err := r.engine.RemoveMember(ctx, ic.GuildID, userID)
	if errors.Is(err, allocation.ErrNotFound) {
		ReplyEphemeral(s, ic, "ℹ️ Ese jugador no estaba en ninguna party ni en la reserva.")
		return
	}
	if err != nil {
		ReplyEphemeral(s, ic, errMsg(err))
		return
	}
	msg := "✅ " + mention(userID) + " fuera."
	if res.Promoted > 0 {
		msg += fmt.Sprintf(" %d salieron de la reserva.", res.Promoted)
	}
	ReplyEphemeral(s, ic, msg)
	r.RefreshPanel(ic.GuildID)
}
