package match

import (
	"context"
	"log/slog"
	"time"

	"duel_webapp/internal/bot"
	"duel_webapp/internal/domain"
	"duel_webapp/internal/game"
	"duel_webapp/internal/logger"

	"github.com/jonboulle/clockwork"
)

// Timings are the presentation delays between phases. They only shape pacing;
// phase order does not depend on them.
type Timings struct {
	Roll       time.Duration
	Resolve    time.Duration
	RoundPause time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		Roll:       1200 * time.Millisecond,
		Resolve:    600 * time.Millisecond,
		RoundPause: 1500 * time.Millisecond,
	}
}

// Reporter is the profile collaborator told about the final result.
type Reporter interface {
	ReportResult(ctx context.Context, isWinner bool) (domain.ProfileTotals, error)
}

type Options struct {
	Clock    clockwork.Clock
	Rand     game.Rand
	Bot      *bot.Agent
	Timings  Timings
	Reporter Reporter
	// Observer receives a snapshot after every transition. It runs with the
	// controller locked and must not call back into it.
	Observer func(Snapshot)
	// Strict panics on state invariant violations instead of clamping them.
	Strict bool
	Logger *slog.Logger

	ReportTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Rand == nil {
		o.Rand = game.NewCryptoRand()
	}
	if o.Bot == nil {
		o.Bot = bot.NewAgent(o.Rand, bot.DefaultMinDelay, bot.DefaultMaxDelay)
	}
	if o.Logger == nil {
		o.Logger = logger.With("component", "match")
	}
	if o.ReportTimeout <= 0 {
		o.ReportTimeout = 5 * time.Second
	}
	return o
}
