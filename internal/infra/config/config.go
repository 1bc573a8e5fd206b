package config

import (
	"log"
	"os"
	"strings"
	"time"
)

type Config struct {
	Storage      string // postgres | memory
	DatabaseURL  string
	DiscordToken string
	DiscordGuild string   // opcional: registra comandos solo en este guild (vacío = globales)
	AdminRoleIDs []string // roles con permisos de admin además de Administrator
	HTTPAddr     string   // opcional, default :8080
	EventsSecret string   // header X-Events-Secret del server HTTP
	RedisURL     string   // opcional: lock entre procesos
	LogLevel     string

	RebalanceInterval   time.Duration
	RebalanceDebounce   time.Duration
	RebalanceCheckEvery time.Duration
}

func Load() Config {
	get := func(k string, req bool) string {
		v := strings.TrimSpace(os.Getenv(k))
		if v == "" && req {
			log.Fatalf("faltante env %s", k)
		}
		return v
	}

	cfg := Config{
		Storage:      strings.ToLower(get("STORAGE", false)),
		DiscordToken: get("DISCORD_BOT_TOKEN", true),
		DiscordGuild: get("DISCORD_GUILD_ID", false),
		AdminRoleIDs: splitList(get("ADMIN_ROLE_IDS", false)),
		HTTPAddr:     get("HTTP_ADDR", false),
		EventsSecret: get("EVENTS_SECRET", false),
		RedisURL:     get("REDIS_URL", false),
		LogLevel:     get("LOG_LEVEL", false),

		RebalanceInterval:   duration(get("REBALANCE_INTERVAL", false), 72*time.Hour),
		RebalanceDebounce:   duration(get("REBALANCE_DEBOUNCE", false), 5*time.Minute),
		RebalanceCheckEvery: duration(get("REBALANCE_CHECK_EVERY", false), 10*time.Minute),
	}
	if cfg.Storage == "" {
		cfg.Storage = "postgres"
	}
	if cfg.Storage == "postgres" {
		cfg.DatabaseURL = get("DATABASE_URL", true)
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	return cfg
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// duration acepta "72h", "5m"... y cae al default si está vacío o mal formado.
func duration(raw string, def time.Duration) time.Duration {
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("config: duración inválida %q, uso %s", raw, def)
		return def
	}
	return d
}
