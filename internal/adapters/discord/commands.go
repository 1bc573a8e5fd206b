package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/squad-allocator-bot/internal/app/allocation"
	"github.com/jose-valero/squad-allocator-bot/internal/domain"
)

var (
	zeroCP      = 0.0
	oneParty    = 1.0
	maxParties  = float64(allocation.MaxPartiesLimit)
	maxHealers  = float64(domain.MaxHealersUpperBound)
	weaponsOpts = weaponChoices()
)

func weaponChoices() []*discordgo.ApplicationCommandOptionChoice {
	ws := domain.Weapons()
	out := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(ws))
	for _, w := range ws {
		out = append(out, &discordgo.ApplicationCommandOptionChoice{Name: weaponLabel(w), Value: w})
	}
	return out
}

var Commands = []*discordgo.ApplicationCommand{
	{
		Name:        "profile",
		Description: "Tu perfil: armas y CP",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "set",
				Description: "Actualizar tu perfil (sólo lo que pases)",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionString, Name: "weapon1", Description: "Arma principal", Choices: weaponsOpts},
					{Type: discordgo.ApplicationCommandOptionString, Name: "weapon2", Description: "Arma secundaria", Choices: weaponsOpts},
					{Type: discordgo.ApplicationCommandOptionInteger, Name: "cp", Description: "Combat power", MinValue: &zeroCP},
				},
			},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "show", Description: "Ver tu perfil y tu party"},
		},
	},
	{
		Name:        "party",
		Description: "Parties del servidor",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "list", Description: "Ver las parties y la reserva"},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "config",
				Description: "Configurar parties (admins)",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionInteger, Name: "max_parties", Description: "Cantidad máxima de parties", MinValue: &oneParty, MaxValue: maxParties},
					{Type: discordgo.ApplicationCommandOptionBoolean, Name: "auto_assign", Description: "Asignación automática"},
					{Type: discordgo.ApplicationCommandOptionInteger, Name: "max_healers", Description: "Healers por party", MinValue: &oneParty, MaxValue: maxHealers},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "rebalance",
				Description: "Rebalancear la fuerza de las parties (admins)",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionBoolean, Name: "force", Description: "Ignorar el debounce"},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "clear",
				Description: "Vaciar una party y mandar a todos a la reserva (admins)",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionInteger, Name: "number", Description: "Número de party", Required: true, MinValue: &oneParty, MaxValue: maxParties},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "kick",
				Description: "Sacar a un miembro de las parties y la reserva (admins)",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Miembro", Required: true},
				},
			},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "panel", Description: "Publicar el panel del roster en este canal (admins)"},
		},
	},
	{
		Name:        "reserve",
		Description: "Reserva de jugadores",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "list", Description: "Ver la reserva en orden de prioridad"},
		},
	},
}
