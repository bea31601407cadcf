package config

import (
	"fmt"
	"time"

	"duel_webapp/internal/logger"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store drivers for the synchronization bus.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// poll interval ceiling of the bus fallback path
const maxPollInterval = time.Second

type Config struct {
	AppPort     string `env:"APP_PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	JWTSecret   string `env:"JWT_SECRET,required,notEmpty"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"memory"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"duel.db"`

	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogJSON       bool   `env:"LOG_JSON" envDefault:"false"`
	AllowedOrigin string `env:"ALLOWED_ORIGIN"`

	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"1h"`
	JoinFreshness time.Duration `env:"JOIN_FRESHNESS" envDefault:"5s"`
	PollInterval  time.Duration `env:"POLL_INTERVAL" envDefault:"1s"`

	RollDelay    time.Duration `env:"ROLL_DELAY" envDefault:"1200ms"`
	ResolveDelay time.Duration `env:"RESOLVE_DELAY" envDefault:"600ms"`
	RoundPause   time.Duration `env:"ROUND_PAUSE" envDefault:"1500ms"`
	BotMinDelay  time.Duration `env:"BOT_MIN_DELAY" envDefault:"800ms"`
	BotMaxDelay  time.Duration `env:"BOT_MAX_DELAY" envDefault:"2s"`

	WinReward   int64 `env:"WIN_REWARD" envDefault:"100"`
	LossPenalty int64 `env:"LOSS_PENALTY" envDefault:"0"`

	APIRateLimit  int           `env:"API_RATE_LIMIT" envDefault:"120"`
	APIRateWindow time.Duration `env:"API_RATE_WINDOW" envDefault:"1m"`
}

// Load reads .env (if present) and the process environment. Invalid or
// missing required keys are fatal.
func Load() *Config {
	_ = godotenv.Load()

	cfg, err := Parse()
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}
	return cfg
}

// Parse builds a Config from the process environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	switch cfg.StoreDriver {
	case StoreMemory, StoreSQLite:
	case StoreRedis:
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("STORE_DRIVER=redis needs REDIS_ADDR")
		}
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	if cfg.PollInterval <= 0 || cfg.PollInterval > maxPollInterval {
		cfg.PollInterval = maxPollInterval
	}
	if cfg.BotMaxDelay < cfg.BotMinDelay {
		cfg.BotMaxDelay = cfg.BotMinDelay
	}
	if cfg.APIRateLimit <= 0 {
		cfg.APIRateLimit = 120
	}
	return &cfg, nil
}
