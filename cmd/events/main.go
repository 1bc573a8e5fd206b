package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/bwmarrin/discordgo"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	discordrouter "github.com/jose-valero/squad-allocator-bot/internal/adapters/discord"
	"github.com/jose-valero/squad-allocator-bot/internal/adapters/httpevents"
	"github.com/jose-valero/squad-allocator-bot/internal/app/allocation"
	"github.com/jose-valero/squad-allocator-bot/internal/infra/lock"
	"github.com/jose-valero/squad-allocator-bot/internal/infra/storage"
)

// Los eventos HTTP (perfil, capacidad, rebalanceo) como lambda detrás de un
// API Gateway HTTP. Las conexiones viven entre invocaciones.
var (
	pool *pgxpool.Pool
	db   *sql.DB
	srv  *httpevents.Server
)

func init() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Fatal("DATABASE_URL empty")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, db, err = storage.OpenPool(ctx, dsn, 4)
	if err != nil {
		logger.Fatal("db", zap.Error(err))
	}

	var locker allocation.Locker = lock.NewLocal()
	if url := os.Getenv("REDIS_URL"); url != "" {
		opt, err := redis.ParseURL(url)
		if err != nil {
			logger.Fatal("redis url", zap.Error(err))
		}
		locker = lock.NewRedis(redis.NewClient(opt), "squadbot:", 30*time.Second)
	}

	// DMs y panel por REST; el runtime se congela al responder, así que todo
	// sale antes de devolver la respuesta
	var notifier allocation.Notifier
	var dc *discordgo.Session
	if token := os.Getenv("DISCORD_BOT_TOKEN"); token != "" {
		dc, err = discordrouter.NewSession(token)
		if err != nil {
			logger.Fatal("discord session", zap.Error(err))
		}
		notifier = discordrouter.NewDMNotifier(dc, logger)
	} else {
		logger.Warn("DISCORD_BOT_TOKEN vacío: sin DMs ni refresco de panel")
	}

	engine := allocation.New(storage.NewStore(db), notifier, locker, logger, allocation.WithSyncNotify())
	opts := []httpevents.Option{httpevents.WithDedup(storage.NewDedupRepo(db))}
	if dc != nil {
		r := discordrouter.NewRouter(dc, "", engine, storage.NewPanelRepo(db), nil, logger)
		opts = append(opts, httpevents.WithOnChange(r.SyncPanel))
	}
	srv = httpevents.New(os.Getenv("EVENTS_SECRET"), engine, logger, opts...)
}

func main() { lambda.Start(srv.HandleAPIGateway) }
