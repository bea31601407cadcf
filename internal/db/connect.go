package db

import (
	"context"
	"time"

	"duel_webapp/internal/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// Connect opens the profile database. An empty dsn disables it and returns nil.
func Connect(dsn string) *pgxpool.Pool {
	if dsn == "" {
		logger.Warn("DATABASE_URL not set, profile reporting disabled")
		return nil
	}

	db, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		logger.Fatal("failed to create database pool", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.Ping(ctx); err != nil {
		logger.Fatal("failed to ping database", "error", err)
	}

	logger.Info("database connected")
	return db
}

// ConnectRedis returns nil when addr is empty or the server does not answer,
// so callers can degrade instead of failing.
func ConnectRedis(addr, password string, dbIndex int) *redis.Client {
	if addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: dbIndex})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable", "addr", addr, "error", err)
		_ = rdb.Close()
		return nil
	}

	logger.Info("redis connected", "addr", addr)
	return rdb
}
