package discord

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/squad-allocator-bot/internal/app/allocation"
	"github.com/jose-valero/squad-allocator-bot/internal/domain"
)

// subOptions devuelve las opciones del subcomando (o las de primer nivel si no hay).
func subOptions(ic *discordgo.InteractionCreate) []*discordgo.ApplicationCommandInteractionDataOption {
	if ic.Type != discordgo.InteractionApplicationCommand {
		return nil
	}
	opts := ic.ApplicationCommandData().Options
	for _, o := range opts {
		if o.Type == discordgo.ApplicationCommandOptionSubCommand {
			return o.Options
		}
	}
	return opts
}

func findOpt(ic *discordgo.InteractionCreate, name string, t discordgo.ApplicationCommandOptionType) *discordgo.ApplicationCommandInteractionDataOption {
	for _, o := range subOptions(ic) {
		if o.Name == name && o.Type == t {
			return o
		}
	}
	return nil
}

func optStr(ic *discordgo.InteractionCreate, name string) (string, bool) {
	if o := findOpt(ic, name, discordgo.ApplicationCommandOptionString); o != nil {
		return o.StringValue(), true
	}
	return "", false
}

func optBool(ic *discordgo.InteractionCreate, name string) (bool, bool) {
	if o := findOpt(ic, name, discordgo.ApplicationCommandOptionBoolean); o != nil {
		return o.BoolValue(), true
	}
	return false, false
}

func optInt(ic *discordgo.InteractionCreate, name string) (int, bool) {
	if o := findOpt(ic, name, discordgo.ApplicationCommandOptionInteger); o != nil {
		return int(o.IntValue()), true
	}
	return 0, false
}

func optUserID(ic *discordgo.InteractionCreate, name string) (string, bool) {
	if o := findOpt(ic, name, discordgo.ApplicationCommandOptionUser); o != nil {
		if u := o.UserValue(nil); u != nil && u.ID != "" {
			return u.ID, true
		}
	}
	return "", false
}

func subcmdName(ic *discordgo.InteractionCreate) (string, bool) {
	if ic.Type != discordgo.InteractionApplicationCommand {
		return "", false
	}
	for _, o := range ic.ApplicationCommandData().Options {
		if o.Type == discordgo.ApplicationCommandOptionSubCommand {
			return o.Name, true
		}
	}
	return "", false
}

var weaponLabels = map[string]string{
	domain.WeaponSwordShield: "Sword & Shield",
	domain.WeaponGreatsword:  "Greatsword",
	domain.WeaponDaggers:     "Daggers",
	domain.WeaponCrossbow:    "Crossbow",
	domain.WeaponLongbow:     "Longbow",
	domain.WeaponStaff:       "Staff",
	domain.WeaponWand:        "Wand",
	domain.WeaponSpear:       "Spear",
	domain.WeaponOrb:         "Orb",
}

func weaponLabel(w string) string {
	if l, ok := weaponLabels[w]; ok {
		return l
	}
	if w == "" {
		return "—"
	}
	return w
}

func roleEmoji(r domain.Role) string {
	switch r {
	case domain.RoleTank:
		return "🛡️"
	case domain.RoleHealer:
		return "💚"
	default:
		return "⚔️"
	}
}

func roleLabel(r domain.Role) string {
	switch r {
	case domain.RoleTank:
		return "tank"
	case domain.RoleHealer:
		return "healer"
	default:
		return "dps"
	}
}

func mention(userID string) string { return "<@" + userID + ">" }

// errMsg traduce los errores del engine a algo legible para el usuario.
func errMsg(err error) string {
	switch {
	case errors.Is(err, allocation.ErrIncompleteProfile):
		return "⚠️ Te faltan armas en el perfil. Usa `/profile set weapon1 weapon2`."
	case errors.Is(err, allocation.ErrAutoAssignDisabled):
		return "⏸️ La asignación automática está apagada en este servidor."
	case errors.Is(err, allocation.ErrAlreadyPlaced):
		return "ℹ️ Ya tienes lugar en una party."
	case errors.Is(err, allocation.ErrNotInReserve):
		return "ℹ️ Ese jugador no está en la reserva."
	case errors.Is(err, allocation.ErrInvalidMaxParties):
		return fmt.Sprintf("⚠️ max_parties debe estar entre 1 y %d.", allocation.MaxPartiesLimit)
	case errors.Is(err, allocation.ErrInvalidMaxHealers):
		return fmt.Sprintf("⚠️ max_healers debe estar entre 1 y %d.", domain.MaxHealersUpperBound)
	case errors.Is(err, allocation.ErrInvalidCP):
		return "⚠️ El CP no puede ser negativo."
	case errors.Is(err, allocation.ErrDebounced):
		return "⏳ Hubo un rebalanceo hace muy poco. Usa `force:true` para forzarlo."
	case errors.Is(err, allocation.ErrNotFound):
		return "ℹ️ No encontré eso en este servidor."
	default:
		return "❌ Ocurrió un error: " + err.Error()
	}
}

func outcomeMsg(role domain.Role, out allocation.Outcome) string {
	switch {
	case !out.Placed:
		return fmt.Sprintf("⏸️ Quedaste en la **reserva** (%s). Te aviso cuando se libere un lugar.", out.Reason)
	case out.Substituted && out.Displaced != nil:
		return fmt.Sprintf("✅ Entraste a la **Party %d** como %s %s reemplazando a %s.",
			out.PartyNumber, roleEmoji(role), roleLabel(role), mention(out.Displaced.UserID))
	case out.CreatedParty:
		return fmt.Sprintf("✅ Abrimos la **Party %d** y entraste como %s %s.", out.PartyNumber, roleEmoji(role), roleLabel(role))
	default:
		return fmt.Sprintf("✅ Entraste a la **Party %d** como %s %s.", out.PartyNumber, roleEmoji(role), roleLabel(role))
	}
}

// truncate corta en runas, no en bytes, para no partir un emoji.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n-1])) + "…"
}
