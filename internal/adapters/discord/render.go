package discord

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/squad-allocator-bot/internal/app/allocation"
	"github.com/jose-valero/squad-allocator-bot/internal/domain"
)

// límites de Discord para embeds
const (
	maxEmbedFields  = 25
	maxFieldValue   = 1024
	reservePreview  = 15
	colorRosterMain = 0x2b6cb0
)

func memberLine(m domain.PartyMember) string {
	return fmt.Sprintf("%s %s · **%d** CP", roleEmoji(m.Role), mention(m.UserID), m.CP)
}

func partyField(p domain.Party, caps domain.Caps) *discordgo.MessageEmbedField {
	name := fmt.Sprintf("Party %d · %d/%d · %d CP", p.PartyNumber, len(p.Members), caps.PartySize, p.TotalCP)
	if !p.Viable() && len(p.Members) > 0 {
		name += " ⚠️"
	}
	value := "_vacía_"
	if len(p.Members) > 0 {
		lines := make([]string, 0, len(p.Members))
		for _, m := range p.Members {
			lines = append(lines, memberLine(m))
		}
		value = truncate(strings.Join(lines, "\n"), maxFieldValue)
	}
	return &discordgo.MessageEmbedField{Name: name, Value: value, Inline: true}
}

func reserveLines(reserve []domain.Player, limit int) string {
	if len(reserve) == 0 {
		return "Nadie en reserva."
	}
	var b strings.Builder
	for i, pl := range reserve {
		if i == limit {
			fmt.Fprintf(&b, "… y %d más", len(reserve)-limit)
			break
		}
		fmt.Fprintf(&b, "%d) %s %s · **%d** CP", i+1, roleEmoji(pl.Role), mention(pl.UserID), pl.CP)
		if pl.ReserveReason != "" {
			fmt.Fprintf(&b, " · _%s_", pl.ReserveReason)
		}
		b.WriteByte('\n')
	}
	return truncate(b.String(), maxFieldValue)
}

// renderRoster arma el embed con las parties activas y un resumen de la reserva.
func renderRoster(r allocation.Roster, now time.Time) *discordgo.MessageEmbed {
	caps := r.Settings.Caps()
	auto := "✅ auto"
	if !r.Settings.AutoAssignmentEnabled {
		auto = "⏸️ manual"
	}
	embed := &discordgo.MessageEmbed{
		Title: "Parties",
		Description: fmt.Sprintf("%d/%d parties · %s · healers por party: %d",
			len(r.Parties), r.Settings.MaxParties, auto, caps.MaxHealers),
		Color:     colorRosterMain,
		Timestamp: now.Format(time.RFC3339),
	}
	if len(r.Parties) == 0 {
		embed.Description += "\n\nTodavía no hay parties. Carga tu perfil con `/profile set`."
	}

	// un field queda para la reserva
	room := maxEmbedFields - 1
	for i, p := range r.Parties {
		if i == room-1 && len(r.Parties) > room {
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
				Name:  "…",
				Value: fmt.Sprintf("%d parties más, usa `/party list`.", len(r.Parties)-i),
			})
			break
		}
		embed.Fields = append(embed.Fields, partyField(p, caps))
	}
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:  fmt.Sprintf("Reserva (%d)", len(r.Reserve)),
		Value: reserveLines(r.Reserve, reservePreview),
	})
	return embed
}

func renderReserve(reserve []domain.Player, now time.Time) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Reserva (%d)", len(reserve)),
		Description: reserveLines(reserve, 40),
		Footer:      &discordgo.MessageEmbedFooter{Text: "Orden: tank, healer, dps · CP · antigüedad"},
		Timestamp:   now.Format(time.RFC3339),
	}
}

func renderProfile(pl domain.Player) *discordgo.MessageEmbed {
	where := "Sin asignar"
	switch {
	case pl.Placed():
		where = fmt.Sprintf("Party %d", *pl.PartyNumber)
	case pl.InReserve:
		where = "Reserva"
		if pl.ReserveReason != "" {
			where += " · " + pl.ReserveReason
		}
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "Armas", Value: weaponLabel(pl.Weapon1) + " + " + weaponLabel(pl.Weapon2), Inline: true},
		{Name: "Rol", Value: roleEmoji(pl.Role) + " " + roleLabel(pl.Role), Inline: true},
		{Name: "CP", Value: fmt.Sprintf("%d", pl.CP), Inline: true},
		{Name: "Lugar", Value: where},
	}
	if !pl.ProfileComplete() {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  "Perfil incompleto",
			Value: "Necesitas las dos armas para entrar a una party.",
		})
	}
	return &discordgo.MessageEmbed{Title: "Tu perfil", Fields: fields}
}
