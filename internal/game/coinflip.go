package game

import "duel_webapp/internal/domain"

// Coinflip: the caller commits to a face before the coin is revealed.
type Coinflip struct{}

func (Coinflip) Type() domain.GameType  { return domain.GameTypeCoinflip }
func (Coinflip) FixedRounds() int       { return 0 }
func (Coinflip) TieConsumesRound() bool { return false }

var coinFaces = []Decision{FaceHeads, FaceTails}

func (Coinflip) NewRound(r Rand, rc RoundContext) Round {
	// the face is drawn before the call so timing of the call cannot matter
	return &coinflipRound{
		rng:    r,
		round:  rc.Round,
		caller: rc.CallerSide(),
		face:   coinFaces[r.Intn(len(coinFaces))],
	}
}

type coinflipRound struct {
	rng    Rand
	round  int
	caller domain.Side
	face   Decision
	call   Decision
}

func (g *coinflipRound) Pending() []domain.Side {
	if g.call == "" {
		return []domain.Side{g.caller}
	}
	return nil
}

func (g *coinflipRound) Options(side domain.Side) []Decision {
	if side != g.caller || g.call != "" {
		return nil
	}
	return coinFaces
}

func (g *coinflipRound) Apply(side domain.Side, d Decision) error {
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

func (g *coinflipRound) Default(side domain.Side) Decision {
	return pick(g.rng, g.Options(side))
}

func (g *coinflipRound) View() map[string]any {
	return map[string]any{
		"caller": g.caller,
		"call":   g.call,
	}
}

func (g *coinflipRound) Resolve() domain.RoundOutcome {
	winner := g.caller.Other()
	if g.call == g.face {
		winner = g.caller
	}
	return domain.RoundOutcome{
		Round:      g.round,
		WinnerSide: winner,
		Reason:     "face_call",
		Payload: map[string]any{
			"caller": g.caller,
			"call":   g.call,
			"face":   g.face,
		},
	}
}
