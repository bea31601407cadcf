package game

import (
	"slices"

	"duel_webapp/internal/domain"
)

const AmericanDiceMaxRerolls = 2

// ComboKind ranks an american-dice hand.
type ComboKind int

const (
	ComboNone  ComboKind = iota
	ComboPoint           // a pair plus an odd die; the odd die is the point
	ComboTriple
)

// Combo is the scoring value of three dice.
type Combo struct {
	Kind  ComboKind `json:"kind"`
	Value int       `json:"value"`
}

// ClassifyDice scores three dice: triples rank by sum, pairs by the odd die.
func ClassifyDice(dice []int) Combo {
	if len(dice) != 3 {
		return Combo{}
	}
	d := slices.Clone(dice)
	slices.Sort(d)
	switch {
	case d[0] == d[2]:
		return Combo{Kind: ComboTriple, Value: sum(d)}
	case d[0] == d[1]:
		return Combo{Kind: ComboPoint, Value: d[2]}
	case d[1] == d[2]:
		return Combo{Kind: ComboPoint, Value: d[0]}
	}
	return Combo{}
}

// Beats reports whether c ranks strictly above other.
func (c Combo) Beats(other Combo) bool {
	if c.Kind != other.Kind {
		return c.Kind > other.Kind
	}
	return c.Value > other.Value
}

// InstantResult checks an initial roll: {1,2,3} loses and {4,5,6} wins on the spot.
// It returns +1, -1 or 0.
func InstantResult(dice []int) int {
	if len(dice) != 3 {
		return 0
	}
	d := slices.Clone(dice)
	slices.Sort(d)
	switch {
	case slices.Equal(d, []int{1, 2, 3}):
		return -1
	case slices.Equal(d, []int{4, 5, 6}):
		return 1
	}
	return 0
}

// AmericanDice: three d6 per side with up to two rerolls for a hand that has
// no scoring combination. Instant combos on the initial roll end the match.
type AmericanDice struct{}

func (AmericanDice) Type() domain.GameType  { return domain.GameTypeAmericanDice }
func (AmericanDice) FixedRounds() int       { return 0 }
func (AmericanDice) TieConsumesRound() bool { return false }

func (AmericanDice) NewRound(r Rand, rc RoundContext) Round {
	g := &americanDiceRound{
		rng:     r,
		round:   rc.Round,
		dice:    map[domain.Side][]int{domain.SideA: RollDice(r, 3), domain.SideB: RollDice(r, 3)},
		rerolls: make(map[domain.Side]int, 2),
		held:    make(map[domain.Side]bool, 2),
	}
	g.instant = g.instantWinner()
	return g
}

type americanDiceRound struct {
	rng     Rand
	round   int
	dice    map[domain.Side][]int
	rerolls map[domain.Side]int
	held    map[domain.Side]bool
	instant domain.Side
}

// instantWinner checks side A first, then side B.
func (g *americanDiceRound) instantWinner() domain.Side {
	for _, side := range []domain.Side{domain.SideA, domain.SideB} {
		switch InstantResult(g.dice[side]) {
		case 1:
			return side
		case -1:
			return side.Other()
		}
	}
	return domain.SideNone
}

func (g *americanDiceRound) canDecide(side domain.Side) bool {
	if g.instant != domain.SideNone {
		return false
	}
	if side != domain.SideA && side != domain.SideB {
		return false
	}
	return !g.held[side] &&
		g.rerolls[side] < AmericanDiceMaxRerolls &&
		ClassifyDice(g.dice[side]).Kind == ComboNone
}

func (g *americanDiceRound) Pending() []domain.Side {
	var pending []domain.Side
	for _, side := range []domain.Side{domain.SideA, domain.SideB} {
		if g.canDecide(side) {
			pending = append(pending, side)
		}
	}
	return pending
}

func (g *americanDiceRound) Options(side domain.Side) []Decision {
	if !g.canDecide(side) {
		return nil
	}
	return []Decision{ActionReroll, ActionHold}
}

func (g *americanDiceRound) Apply(side domain.Side, d Decision) error {
	if !g.canDecide(side) {
		return ErrNotYourTurn
	}
	switch d {
	case ActionReroll:
		g.dice[side] = RollDice(g.rng, 3)
		g.rerolls[side]++
	case ActionHold:
		g.held[side] = true
	default:
		return ErrIllegalDecision
	}
	return nil
}

// Default keeps rerolling while a reroll is allowed.
func (g *americanDiceRound) Default(side domain.Side) Decision {
	if !g.canDecide(side) {
		return ""
	}
	return ActionReroll
}

func (g *americanDiceRound) View() map[string]any {
	return map[string]any{
		"dice_a":    g.dice[domain.SideA],
		"dice_b":    g.dice[domain.SideB],
		"rerolls_a": g.rerolls[domain.SideA],
		"rerolls_b": g.rerolls[domain.SideB],
	}
}

func (g *americanDiceRound) Resolve() domain.RoundOutcome {
	payload := g.View()

	if g.instant != domain.SideNone {
		return domain.RoundOutcome{
			Round:      g.round,
			WinnerSide: g.instant,
			EndsMatch:  true,
			Reason:     "instant",
			Payload:    payload,
		}
	}

	comboA := ClassifyDice(g.dice[domain.SideA])
	comboB := ClassifyDice(g.dice[domain.SideB])
	payload["combo_a"] = comboA
	payload["combo_b"] = comboB

	winner := domain.SideTie
	if comboA.Beats(comboB) {
		winner = domain.SideA
	} else if comboB.Beats(comboA) {
		winner = domain.SideB
	}

	return domain.RoundOutcome{
		Round:      g.round,
		WinnerSide: winner,
		Reason:     "combo",
		Payload:    payload,
	}
}
