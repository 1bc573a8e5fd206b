// Package partystore declara el contrato de persistencia de parties, players y
// settings por guild. Lo implementan internal/infra/storage (Postgres) e
// internal/infra/memstore (memoria).
package partystore

import (
	"context"
	"errors"

	"github.com/jose-valero/squad-allocator-bot/internal/domain"
)

var ErrNotFound = errors.New("not found")

type Store interface {
	// GetSettings devuelve los settings del guild; si no existen los crea con defaults.
	GetSettings(ctx context.Context, guildID string) (domain.GuildSettings, error)
	SaveSettings(ctx context.Context, s domain.GuildSettings) error
	ListSettings(ctx context.Context) ([]domain.GuildSettings, error)

	GetPlayer(ctx context.Context, guildID, userID string) (domain.Player, error)
	GetPlayers(ctx context.Context, guildID string, userIDs []string) (map[string]domain.Player, error)
	SavePlayer(ctx context.Context, p domain.Player) error
	DeletePlayer(ctx context.Context, guildID, userID string) error
	ListPlayers(ctx context.Context, guildID string) ([]domain.Player, error)
	ListReserve(ctx context.Context, guildID string) ([]domain.Player, error)

	// ListParties devuelve todas las parties del guild (activas o no) por numero asc.
	ListParties(ctx context.Context, guildID string) ([]domain.Party, error)
	// SaveParty reemplaza la party completa (miembros incluidos) y recalcula caches.
	SaveParty(ctx context.Context, p domain.Party) error
	DeleteParty(ctx context.Context, guildID string, number int) error

	// WithTx corre fn dentro de una transaccion serializada por guild: dos
	// procesos que muten el mismo guildID no se pisan aunque no compartan lock.
	// Si fn falla no se aplica nada. Anidado reutiliza la transaccion exterior.
	WithTx(ctx context.Context, guildID string, fn func(tx Store) error) error
}
