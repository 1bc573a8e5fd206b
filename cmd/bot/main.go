package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	discordrouter "github.com/jose-valero/squad-allocator-bot/internal/adapters/discord"
	"github.com/jose-valero/squad-allocator-bot/internal/adapters/httpevents"
	"github.com/jose-valero/squad-allocator-bot/internal/app/allocation"
	"github.com/jose-valero/squad-allocator-bot/internal/app/partystore"
	"github.com/jose-valero/squad-allocator-bot/internal/infra/config"
	"github.com/jose-valero/squad-allocator-bot/internal/infra/lock"
	"github.com/jose-valero/squad-allocator-bot/internal/infra/memstore"
	"github.com/jose-valero/squad-allocator-bot/internal/infra/metrics"
	"github.com/jose-valero/squad-allocator-bot/internal/infra/storage"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const dedupRetention = 7 * 24 * time.Hour

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	var logger *zap.Logger
	var logErr error
	if strings.EqualFold(cfg.LogLevel, "debug") {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	// Storage
	var (
		store  partystore.Store
		panels discordrouter.PanelStore
		dedup  httpevents.Deduper
		db     *sql.DB
	)
	switch cfg.Storage {
	case "memory":
		store, panels, dedup = memstore.New(), memstore.NewPanels(), memstore.NewDedup()
		logger.Warn("STORAGE=memory: el estado se pierde al reiniciar")
	default:
		var err error
		db, err = storage.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("db open", zap.Error(err))
		}
		defer db.Close()
		version, err := storage.Migrate(ctx, db)
		if err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		store, panels, dedup = storage.NewStore(db), storage.NewPanelRepo(db), storage.NewDedupRepo(db)
		logger.Info("✅ DB lista y migrada", zap.Int64("schema_version", version))
	}

	// Lock por guild: Redis si lo hay (bot + lambda), si no local
	var locker allocation.Locker = lock.NewLocal()
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis url", zap.Error(err))
		}
		rdb := redis.NewClient(opt)
		defer rdb.Close()
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = rdb.Ping(pctx).Err()
		cancel()
		if err != nil {
			logger.Fatal("redis ping", zap.Error(err))
		}
		locker = lock.NewRedis(rdb, "squadbot:", 30*time.Second)
		logger.Info("✅ lock distribuido en Redis")
	}

	// Métricas
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if db != nil {
		reg.MustRegister(collectors.NewDBStatsCollector(db, "squadbot"))
	}
	prom := metrics.NewPrometheus(reg, "")

	// Discord session
	s, err := discordrouter.NewSession(cfg.DiscordToken)
	if err != nil {
		logger.Fatal("discord session", zap.Error(err))
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers

	notifier := discordrouter.NewDMNotifier(s, logger)
	engine := allocation.New(store, notifier, locker, logger,
		allocation.WithMetrics(prom),
		allocation.WithRebalanceInterval(cfg.RebalanceInterval),
		allocation.WithRebalanceDebounce(cfg.RebalanceDebounce),
	)

	r := discordrouter.NewRouter(s, cfg.DiscordGuild, engine, panels, cfg.AdminRoleIDs, logger)
	notifier.OnChange(r.RefreshPanel)
	r.Handlers()

	if err := s.Open(); err != nil {
		logger.Fatal("discord open", zap.Error(err))
	}
	defer s.Close()
	logger.Info("✅ conectado", zap.String("user", s.State.User.Username), zap.String("id", s.State.User.ID))

	if err := r.Register(); err != nil {
		logger.Fatal("registrando comandos", zap.Error(err))
	}
	logger.Info("✅ comandos registrados", zap.String("guild", cfg.DiscordGuild))

	// HTTP: eventos, roster, health y métricas
	web := httpevents.New(cfg.EventsSecret, engine, logger,
		httpevents.WithDedup(dedup),
		httpevents.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
		httpevents.WithOnChange(r.RefreshPanel),
	)
	if cfg.EventsSecret == "" {
		logger.Warn("EVENTS_SECRET vacío: los endpoints de eventos responden 401")
	}
	go func() {
		if err := web.Start(ctx, cfg.HTTPAddr); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("http server", zap.Error(err))
			stop()
		}
	}()

	// Rebalanceo periódico y limpieza de claves de dedup dentro del proceso
	go engine.RunPeriodic(ctx, cfg.RebalanceCheckEvery)
	go web.RunDedupPrune(ctx, time.Hour, dedupRetention)

	<-ctx.Done()
	logger.Info("apagando")
}
