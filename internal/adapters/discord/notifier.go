package discord

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/jose-valero/squad-allocator-bot/internal/domain"
)

// DMNotifier manda por DM los cambios de lugar de cada miembro y pide
// refrescar el panel del guild.
type DMNotifier struct {
	s   *discordgo.Session
	log *zap.Logger

	mu       sync.RWMutex
	onChange func(guildID string)

	// cache de canales DM por usuario
	dmMu sync.Mutex
	dms  map[string]string
}

func NewDMNotifier(s *discordgo.Session, log *zap.Logger) *DMNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &DMNotifier{s: s, log: log.Named("notifier"), dms: map[string]string{}}
}

// OnChange registra el callback que se llama por cada notificación (el
// Router lo usa para refrescar el panel).
func (n *DMNotifier) OnChange(fn func(guildID string)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onChange = fn
}

func (n *DMNotifier) Notify(ctx context.Context, note domain.Notification) error {
	n.mu.RLock()
	cb := n.onChange
	n.mu.RUnlock()
	if cb != nil {
		cb(note.GuildID)
	}

	ch, err := n.dmChannel(note.UserID)
	if err != nil {
		return fmt.Errorf("dm channel %s: %w", note.UserID, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := n.s.ChannelMessageSendEmbed(ch, notificationEmbed(note)); err != nil {
		return fmt.Errorf("send dm %s: %w", note.UserID, err)
	}
	n.log.Debug("dm sent", zap.String("user", note.UserID), zap.String("kind", string(note.Kind)))
	return nil
}

func (n *DMNotifier) dmChannel(userID string) (string, error) {
	n.dmMu.Lock()
	if id, ok := n.dms[userID]; ok {
		n.dmMu.Unlock()
		return id, nil
	}
	n.dmMu.Unlock()

	ch, err := n.s.UserChannelCreate(userID)
	if err != nil {
		return "", err
	}
	n.dmMu.Lock()
	n.dms[userID] = ch.ID
	n.dmMu.Unlock()
	return ch.ID, nil
}

func notificationEmbed(note domain.Notification) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{}
	role := roleEmoji(note.Role) + " " + roleLabel(note.Role)
	switch note.Kind {
	case domain.MemberAssigned:
		e.Title = "Tienes party"
		e.Description = fmt.Sprintf("Entraste a la **Party %d** como %s.", note.PartyNumber, role)
		e.Color = 0x2f855a
	case domain.MemberPromoted:
		e.Title = "Saliste de la reserva"
		e.Description = fmt.Sprintf("Se liberó un lugar: ahora estás en la **Party %d** como %s.", note.PartyNumber, role)
		e.Color = 0x2f855a
	case domain.MemberMoved:
		e.Title = "Cambiaste de party"
		e.Description = fmt.Sprintf("Pasaste de la Party %d a la **Party %d** como %s.", note.FromParty, note.ToParty, role)
		e.Color = 0x2b6cb0
	case domain.MemberReserved:
		e.Title = "Quedaste en reserva"
		e.Description = "Te aviso apenas se libere un lugar para tu rol."
		e.Color = 0xc05621
	default:
		e.Title = "Novedades de tu party"
	}
	if note.Reason != "" {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: "Motivo", Value: note.Reason})
	}
	return e
}
