package bot

import (
	"time"

	"duel_webapp/internal/domain"
	"duel_webapp/internal/game"
)

const (
	DefaultMinDelay = 800 * time.Millisecond
	DefaultMaxDelay = 2 * time.Second
)

// Agent plays the opponent side of a solo match. It has no strategy: every
// legal option is equally likely.
type Agent struct {
	rng      game.Rand
	minDelay time.Duration
	maxDelay time.Duration
}

func NewAgent(rng game.Rand, minDelay, maxDelay time.Duration) *Agent {
	if rng == nil {
		rng = game.NewCryptoRand()
	}
	if minDelay <= 0 {
		minDelay = DefaultMinDelay
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &Agent{rng: rng, minDelay: minDelay, maxDelay: maxDelay}
}

// Decide picks uniformly among the options the round offers side. ok is false
// when the side has nothing to decide.
func (a *Agent) Decide(side domain.Side, round game.Round) (game.Decision, bool) {
	options := round.Options(side)
	if len(options) == 0 {
		return "", false
	}
	return options[a.rng.Intn(len(options))], true
}

// Delay is the thinking time before a decision is emitted, in [min, max]
// with millisecond granularity.
func (a *Agent) Delay() time.Duration {
	spread := int((a.maxDelay - a.minDelay) / time.Millisecond)
	if spread <= 0 {
		return a.minDelay
	}
	return a.minDelay + time.Duration(a.rng.Intn(spread+1))*time.Millisecond
}
