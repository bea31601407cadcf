package game

import "duel_webapp/internal/domain"

const (
	NvutiMin       = 1
	NvutiMax       = 100
	NvutiLowUpTo   = 50
	NvutiWinWeight = 35 // percent chance that the logically correct side takes the round
)

// Nvuti: a number in 1..100 is drawn, the caller bets on low or high. The
// round is then settled by a weighted coin that favours the wrong side
// 65/35. The weighting keeps matches competitive and must stay exact.
type Nvuti struct{}

func (Nvuti) Type() domain.GameType  { return domain.GameTypeNvuti }
func (Nvuti) FixedRounds() int       { return 0 }
func (Nvuti) TieConsumesRound() bool { return false }

var nvutiRanges = []Decision{RangeLow, RangeHigh}

func (Nvuti) NewRound(r Rand, rc RoundContext) Round {
	return &nvutiRound{
		rng:    r,
		round:  rc.Round,
		caller: rc.CallerSide(),
		number: r.Intn(NvutiMax-NvutiMin+1) + NvutiMin,
		coin:   r.Intn(100),
	}
}

type nvutiRound struct {
	rng    Rand
	round  int
	caller domain.Side
	number int
	coin   int
	call   Decision
}

func (g *nvutiRound) Pending() []domain.Side {
	if g.call == "" {
		return []domain.Side{g.caller}
	}
	return nil
}

func (g *nvutiRound) Options(side domain.Side) []Decision {
	if side != g.caller || g.call != "" {
		return nil
	}
	return nvutiRanges
}

func (g *nvutiRound) Apply(side domain.Side, d Decision) error {
	options := g.Options(side)
	if options == nil {
		return ErrNotYourTurn
	}
	if !contains(options, d) {
		return ErrIllegalDecision
	}
	g.call = d
	return nil
}

func (g *nvutiRound) Default(side domain.Side) Decision {
	return pick(g.rng, g.Options(side))
}

func (g *nvutiRound) View() map[string]any {
	return map[string]any{
		"caller": g.caller,
		"call":   g.call,
	}
}

func (g *nvutiRound) Resolve() domain.RoundOutcome {
	low := g.number <= NvutiLowUpTo
	correct := (g.call == RangeLow && low) || (g.call == RangeHigh && !low)

	correctSide := g.caller.Other()
	if correct {
		correctSide = g.caller
	}

	winner := correctSide.Other()
	if g.coin < NvutiWinWeight {
		winner = correctSide
	}

	return domain.RoundOutcome{
		Round:      g.round,
		WinnerSide: winner,
		Reason:     "weighted_range",
		Payload: map[string]any{
			"caller":       g.caller,
			"call":         g.call,
			"number":       g.number,
			"call_correct": correct,
		},
	}
}
