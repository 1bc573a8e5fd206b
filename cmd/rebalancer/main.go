package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/bwmarrin/discordgo"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	discordrouter "github.com/jose-valero/squad-allocator-bot/internal/adapters/discord"
	"github.com/jose-valero/squad-allocator-bot/internal/app/allocation"
	"github.com/jose-valero/squad-allocator-bot/internal/infra/lock"
	"github.com/jose-valero/squad-allocator-bot/internal/infra/storage"
)

const dedupRetention = 7 * 24 * time.Hour

type Input struct {
	// Force ignora el intervalo de 72h (para correrlo a mano)
	Force bool `json:"force"`
}

type Output struct {
	Ran         []string          `json:"ran"`
	Skipped     []string          `json:"skipped"`
	Failed      map[string]string `json:"failed,omitempty"`
	DedupPruned int64             `json:"dedup_pruned"`
}

var logger = zap.NewNop()

func handler(ctx context.Context, in Input) (Output, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return Output{}, fmt.Errorf("no DATABASE_URL")
	}

	pool, db, err := storage.OpenPool(ctx, dsn, 4)
	if err != nil {
		return Output{}, err
	}
	defer pool.Close()
	defer db.Close()

	var locker allocation.Locker = lock.NewLocal()
	if url := os.Getenv("REDIS_URL"); url != "" {
		opt, err := redis.ParseURL(url)
		if err != nil {
			return Output{}, fmt.Errorf("redis url: %w", err)
		}
		rdb := redis.NewClient(opt)
		defer rdb.Close()
		locker = lock.NewRedis(rdb, "squadbot:", 30*time.Second)
	}

	// DMs y panel por REST, en línea: la lambda termina al devolver
	var notifier allocation.Notifier
	var dc *discordgo.Session
	if token := os.Getenv("DISCORD_BOT_TOKEN"); token != "" {
		dc, err = discordrouter.NewSession(token)
		if err != nil {
			return Output{}, fmt.Errorf("discord session: %w", err)
		}
		notifier = discordrouter.NewDMNotifier(dc, logger)
	}

	engine := allocation.New(storage.NewStore(db), notifier, locker, logger,
		allocation.WithSyncNotify(),
		allocation.WithRebalanceInterval(envDuration("REBALANCE_INTERVAL", allocation.DefaultRebalanceInterval)))

	rep, batchErr := engine.RebalanceAll(ctx, in.Force)
	if dc != nil {
		r := discordrouter.NewRouter(dc, "", engine, storage.NewPanelRepo(db), nil, logger)
		for _, g := range rep.Ran {
			r.SyncPanel(g)
		}
	}
	out := Output{Ran: rep.Ran, Skipped: rep.Skipped}
	if len(rep.Failed) > 0 {
		out.Failed = map[string]string{}
		for g, e := range rep.Failed {
			out.Failed[g] = e.Error()
		}
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	out.DedupPruned, err = storage.NewDedupRepo(db).Prune(cctx, dedupRetention)
	if err != nil {
		logger.Warn("dedup prune", zap.Error(err))
	}

	logger.Info("rebalance batch",
		zap.Strings("ran", out.Ran),
		zap.Int("skipped", len(out.Skipped)),
		zap.Int("failed", len(out.Failed)),
		zap.Int64("dedup_pruned", out.DedupPruned))
	if batchErr != nil {
		logger.Warn("rebalance batch errors", zap.Error(batchErr))
	}
	// un guild que falla no reintenta el batch entero
	return out, nil
}

func envDuration(k string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(k))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func main() {
	if l, err := zap.NewProduction(); err == nil {
		logger = l
	}
	defer func() { _ = logger.Sync() }()
	lambda.Start(handler)
}
