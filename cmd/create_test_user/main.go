package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"duel_webapp/internal/config"
	"duel_webapp/internal/db"
	"duel_webapp/internal/domain"
	"duel_webapp/internal/logger"
	"duel_webapp/internal/repository"
	"duel_webapp/internal/service"
)

// Prints a token for a test user, creating the user if needed.
func main() {
	username := flag.String("username", "testuser", "username to create or reuse")
	ttl := flag.Duration("ttl", service.DefaultTokenTTL, "token lifetime")
	flag.Parse()

	cfg := config.Load()
	service.InitJWT(cfg.JWTSecret)

	pool := db.Connect(cfg.DatabaseURL)
	if pool == nil {
		logger.Fatal("DATABASE_URL not set")
	}
	defer pool.Close()

	repo := repository.NewProfileRepository(pool)
	ctx := context.Background()

	u, err := repo.GetByUsername(ctx, *username)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		u = &domain.User{Username: *username}
		if err := repo.Create(ctx, u); err != nil {
			logger.Fatal("create user failed", "error", err)
		}
		logger.Info("user created", "id", u.ID, "username", u.Username)
	case err != nil:
		logger.Fatal("lookup failed", "error", err)
	default:
		logger.Info("user already exists", "id", u.ID, "credits", u.Credits, "wins", u.Wins, "losses", u.Losses)
	}

	token, err := service.GenerateJWT(u.ID, u.Username, *ttl)
	if err != nil {
		logger.Fatal("failed to generate token", "error", err)
	}
	fmt.Printf("user_id=%d expires=%s\ntoken=%s\n", u.ID, time.Now().Add(*ttl).Format(time.RFC3339), token)
}
