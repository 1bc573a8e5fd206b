package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	botMaxOpen  = 10
	botMaxIdle  = 5
	pingTimeout = 5 * time.Second
)

// Open es la conexion del bot (proceso largo): driver pgx sobre database/sql,
// con ping antes de devolverla.
func Open(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	db.SetMaxOpenConns(botMaxOpen)
	db.SetMaxIdleConns(botMaxIdle)
	db.SetConnMaxLifetime(time.Hour)

	if err := ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	return nil
}

// OpenPool es para las lambdas: pool chico de pgx y un *sql.DB encima para
// reutilizar los mismos repos. Cerrar el *sql.DB no cierra el pool.
func OpenPool(ctx context.Context, url string, maxConns int32) (*pgxpool.Pool, *sql.DB, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, nil, fmt.Errorf("parse: %w", err)
	}
	cfg.MaxConns = maxConns
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("pool: %w", err)
	}
	db := stdlib.OpenDBFromPool(pool)
	if err := ping(ctx, db); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pool, db, nil
}

// Migrate lleva el schema a la ultima migracion embebida y devuelve la
// version resultante.
func Migrate(ctx context.Context, db *sql.DB) (int64, error) {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("postgres"); err != nil {
		return 0, err
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return 0, fmt.Errorf("migrate: %w", err)
	}
	return goose.GetDBVersionContext(ctx, db)
}
