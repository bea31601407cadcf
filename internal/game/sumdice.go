package game

import "duel_webapp/internal/domain"

// SumDice: three d6 per side, higher sum takes the round.
type SumDice struct{}

func (SumDice) Type() domain.GameType  { return domain.GameTypeSumDice }
func (SumDice) FixedRounds() int       { return 0 }
func (SumDice) TieConsumesRound() bool { return true }

func (SumDice) NewRound(r Rand, rc RoundContext) Round {
	return &sumDiceRound{
		round: rc.Round,
		diceA: RollDice(r, 3),
		diceB: RollDice(r, 3),
	}
}

type sumDiceRound struct {
	noDecisions
	round int
	diceA []int
	diceB []int
}

func (g *sumDiceRound) View() map[string]any {
	return map[string]any{
		"dice_a": g.diceA,
		"dice_b": g.diceB,
	}
}

func (g *sumDiceRound) Resolve() domain.RoundOutcome {
	sumA, sumB := sum(g.diceA), sum(g.diceB)

	winner := domain.SideTie
	if sumA > sumB {
		winner = domain.SideA
	} else if sumB > sumA {
		winner = domain.SideB
	}

	return domain.RoundOutcome{
		Round:      g.round,
		WinnerSide: winner,
		Reason:     "higher_sum",
		Payload: map[string]any{
			"dice_a": g.diceA,
			"dice_b": g.diceB,
			"sum_a":  sumA,
			"sum_b":  sumB,
		},
	}
}
