package http

import (
	"context"
	"time"

	"duel_webapp/internal/http/handlers"
	"duel_webapp/internal/http/middleware"
	"duel_webapp/internal/service"
	"duel_webapp/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
)

// Deps is everything the HTTP surface needs. DB and Redis may be nil.
type Deps struct {
	Hub      *ws.Hub
	Profiles *service.ProfileService
	DB       *pgxpool.Pool
	Redis    *redis.Client

	Version       string
	AllowedOrigin string
	RateLimit     int
	RateWindow    time.Duration
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	if d.RateLimit <= 0 {
		d.RateLimit = 120
	}
	if d.RateWindow <= 0 {
		d.RateWindow = time.Minute
	}

	h := handlers.NewHandler(d.Hub, d.Profiles)

	checks := map[string]handlers.CheckFunc{}
	if d.DB != nil {
		checks["database"] = d.DB.Ping
	}
	if d.Redis != nil {
		rdb := d.Redis
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	healthHandler := handlers.NewHealthHandler(d.Version, checks)

	// Health checks (no rate limiting)
	r.GET("/health", healthHandler.Health)
	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.Use(middleware.RedisRateLimit(d.Redis, d.RateLimit, d.RateWindow))
	{
		v1.GET("/sessions", h.ListSessions)
		v1.POST("/sessions", middleware.JWT(), h.CreateSession)
		v1.DELETE("/sessions/:id", middleware.JWT(), h.CancelSession)

		v1.GET("/me", middleware.JWT(), h.Me)
		v1.POST("/logout", middleware.JWT(), h.Logout)
	}

	r.GET("/ws", ws.HandleWS(d.Hub, d.AllowedOrigin))
}

// CORS mirrors the request origin; an allowed origin, when set, is the only
// one mirrored.
func CORS(allowedOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && (allowedOrigin == "" || origin == allowedOrigin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
