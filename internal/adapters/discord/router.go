package discord

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/jose-valero/squad-allocator-bot/internal/app/allocation"
	"github.com/jose-valero/squad-allocator-bot/internal/domain"
)

// PanelStore guarda el mensaje de roster publicado por guild.
// Lo implementan storage.PanelRepo y memstore.Panels.
type PanelStore interface {
	Get(ctx context.Context, guildID string) (domain.Panel, error)
	Upsert(ctx context.Context, guildID, channelID, messageID string) error
	Delete(ctx context.Context, guildID string) error
}

type Router struct {
	s       *discordgo.Session
	guildID string // vacío = comandos globales
	log     *zap.Logger

	engine       *allocation.Engine
	panels       PanelStore
	adminRoleIDs []string

	clickLimiter *userLimiter

	refreshMu     sync.Mutex
	refreshTimers map[string]*time.Timer
}

// NewSession arma la sesión a partir del token, con o sin el prefijo "Bot ".
// Sin Open sólo sirve para REST: DMs y edición del panel desde las lambdas.
func NewSession(token string) (*discordgo.Session, error) {
	auth := strings.TrimSpace(token)
	if auth == "" {
		return nil, errors.New("discord token empty")
	}
	if !strings.HasPrefix(strings.ToLower(auth), "bot ") {
		auth = "Bot " + auth
	}
	return discordgo.New(auth)
}

func NewRouter(
	s *discordgo.Session,
	guildID string,
	engine *allocation.Engine,
	panels PanelStore,
	adminRoleIDs []string,
	log *zap.Logger,
) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{
		s:             s,
		guildID:       guildID,
		log:           log.Named("discord"),
		engine:        engine,
		panels:        panels,
		adminRoleIDs:  adminRoleIDs,
		clickLimiter:  newUserLimiter(time.Second, 2),
		refreshTimers: map[string]*time.Timer{},
	}
}

func (r *Router) Register() error {
	appID := r.s.State.User.ID
	for _, cmd := range Commands {
		if _, err := r.s.ApplicationCommandCreate(appID, r.guildID, cmd); err != nil {
			return err
		}
	}
	return nil
}

func (r *Router) Handlers() {
	r.s.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		if ic.Member == nil || ic.Member.User == nil {
			// sin guild no hay parties
			return
		}
		switch ic.Type {
		case discordgo.InteractionApplicationCommand:
			r.handleSlashCommand(s, ic)
		case discordgo.InteractionMessageComponent:
			r.handleMessageComponent(s, ic)
		}
	})

	// El miembro se fue del servidor: sale de su party o de la reserva
	r.s.AddHandler(func(s *discordgo.Session, ev *discordgo.GuildMemberRemove) {
		if ev.Member == nil || ev.Member.User == nil {
			return
		}
		if r.guildID != "" && ev.GuildID != r.guildID {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		uid := ev.Member.User.ID
		res, err := r.engine.RemoveMember(ctx, ev.GuildID, uid)
		if err != nil {
			if !errors.Is(err, allocation.ErrNotFound) {
				r.log.Warn("member remove", zap.String("guild", ev.GuildID), zap.String("user", uid), zap.Error(err))
			}
			return
		}
		r.log.Info("member left guild",
			zap.String("guild", ev.GuildID),
			zap.String("user", uid),
			zap.Int("promoted", res.Promoted))
		r.RefreshPanel(ev.GuildID)
	})
}
