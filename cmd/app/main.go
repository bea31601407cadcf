package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"duel_webapp/internal/config"
	"duel_webapp/internal/db"
	httpServer "duel_webapp/internal/http"
	"duel_webapp/internal/logger"
	"duel_webapp/internal/match"
	"duel_webapp/internal/repository"
	"duel_webapp/internal/service"
	"duel_webapp/internal/session"
	"duel_webapp/internal/syncbus"
	"duel_webapp/internal/worker"
	"duel_webapp/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	redis "github.com/redis/go-redis/v9"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	service.InitJWT(cfg.JWTSecret)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool := db.Connect(cfg.DatabaseURL)
	if dbPool != nil {
		defer dbPool.Close()
	}
	rdb := db.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if rdb != nil {
		defer rdb.Close()
	}

	clock := clockwork.NewRealClock()
	origin := uuid.NewString()

	store, live := openBus(cfg, rdb, clock)
	defer store.Close()

	bus := syncbus.New(store, live, clock, syncbus.Config{
		Origin:       origin,
		Freshness:    cfg.JoinFreshness,
		PollInterval: cfg.PollInterval,
	})
	dir := session.NewDirectory(origin, session.WithClock(clock), session.WithTTL(cfg.SessionTTL))
	dir.SetPublisher(bus)

	var profiles *service.ProfileService
	if dbPool != nil {
		profiles = service.NewProfileService(repository.NewProfileRepository(dbPool), cfg.WinReward, cfg.LossPenalty)
	} else {
		profiles = service.NewProfileService(nil, cfg.WinReward, cfg.LossPenalty)
	}

	hub := ws.NewHub(dir, bus, profiles, ws.HubConfig{
		Clock: clock,
		Timings: match.Timings{
			Roll:       cfg.RollDelay,
			Resolve:    cfg.ResolveDelay,
			RoundPause: cfg.RoundPause,
		},
		BotMinDelay: cfg.BotMinDelay,
		BotMaxDelay: cfg.BotMaxDelay,
	})
	bus.Subscribe(hub.OnDirectory)
	bus.OnJoin(hub.OnJoin)

	if err := bus.Load(ctx); err != nil {
		logger.Warn("directory load failed, starting empty", "error", err)
	}
	go func() {
		if err := bus.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("sync bus stopped", "error", err)
		}
	}()

	janitor, err := worker.NewJanitor(dir, hub, worker.DefaultInterval, worker.DefaultMaxIdle)
	if err != nil {
		logger.Fatal("janitor init failed", "error", err)
	}
	if err := janitor.Start(); err != nil {
		logger.Fatal("janitor start failed", "error", err)
	}
	defer janitor.Stop()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpServer.CORS(cfg.AllowedOrigin))

	httpServer.RegisterRoutes(r, httpServer.Deps{
		Hub:           hub,
		Profiles:      profiles,
		DB:            dbPool,
		Redis:         rdb,
		Version:       version,
		AllowedOrigin: cfg.AllowedOrigin,
		RateLimit:     cfg.APIRateLimit,
		RateWindow:    cfg.APIRateWindow,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "origin", origin, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	logger.Info("server exited")
}

// openBus picks the durable store and, with redis, the live channel.
func openBus(cfg *config.Config, rdb *redis.Client, clock clockwork.Clock) (syncbus.Store, syncbus.Broadcaster) {
	switch cfg.StoreDriver {
	case config.StoreRedis:
		if rdb == nil {
			logger.Fatal("STORE_DRIVER=redis but redis is unavailable", "addr", cfg.RedisAddr)
		}
		return syncbus.NewRedisStore(rdb, ""), syncbus.NewRedisBroadcaster(rdb, "")
	case config.StoreSQLite:
		store, err := syncbus.OpenSQLiteStore(cfg.SQLitePath, clock)
		if err != nil {
			logger.Fatal("open sqlite store", "path", cfg.SQLitePath, "error", err)
		}
		return store, nil
	default:
		logger.Warn("memory store in use, sessions are not shared between processes")
		return syncbus.NewMemoryStore(clock), nil
	}
}
