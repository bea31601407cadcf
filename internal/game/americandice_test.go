package game

import (
	"testing"

	"duel_webapp/internal/domain"
)

func TestClassifyDice(t *testing.T) {
	cases := []struct {
		dice []int
		want Combo
	}{
		{[]int{5, 5, 5}, Combo{Kind: ComboTriple, Value: 15}},
		{[]int{2, 6, 2}, Combo{Kind: ComboPoint, Value: 6}},
		{[]int{4, 1, 1}, Combo{Kind: ComboPoint, Value: 4}},
		{[]int{3, 3, 1}, Combo{Kind: ComboPoint, Value: 1}},
		{[]int{1, 3, 5}, Combo{}},
	}
	for _, tc := range cases {
		if got := ClassifyDice(tc.dice); got != tc.want {
			t.Fatalf("ClassifyDice(%v) = %+v; want %+v", tc.dice, got, tc.want)
		}
	}
}

func TestComboOrdering(t *testing.T) {
	low := Combo{Kind: ComboTriple, Value: 3}
	high := Combo{Kind: ComboTriple, Value: 18}
	point := Combo{Kind: ComboPoint, Value: 6}
	if !low.Beats(point) || !high.Beats(low) || point.Beats(low) {
		t.Fatalf("triples must beat points and rank by sum")
	}
	if (Combo{}).Beats(Combo{}) {
		t.Fatalf("empty combos tie")
	}
}

func TestAmericanDiceOneTwoThreeAlwaysLoses(t *testing.T) {
	perms := [][]int{{1, 2, 3}, {3, 2, 1}, {2, 1, 3}, {3, 1, 2}}
	for _, a := range perms {
		for x := 1; x <= 6; x++ {
			for y := 1; y <= 6; y++ {
				for z := 1; z <= 6; z++ {
					draws := append(faces(a...), faces(x, y, z)...)
					round := AmericanDice{}.NewRound(script(draws...), RoundContext{Round: 1})
					if p := round.Pending(); len(p) != 0 {
						t.Fatalf("instant round should not wait for decisions, got %v", p)
					}
					out := round.Resolve()
					if out.WinnerSide != domain.SideB || !out.EndsMatch {
						t.Fatalf("a=%v b=%v: outcome %+v; want instant loss for a", a, []int{x, y, z}, out)
					}
				}
			}
		}
	}
}

func TestAmericanDiceInstantWinForB(t *testing.T) {
	round := AmericanDice{}.NewRound(script(faces(2, 2, 5, 6, 4, 5)...), RoundContext{Round: 1})
	out := round.Resolve()
	if out.WinnerSide != domain.SideB || !out.EndsMatch || out.Reason != "instant" {
		t.Fatalf("outcome = %+v; want instant win for b", out)
	}
}

func TestAmericanDiceRerollLimit(t *testing.T) {
	// a: 1,3,5 (nothing), b: 2,2,6 (point 6); rerolls keep a without a combo
	draws := append(faces(1, 3, 5, 2, 2, 6), faces(1, 3, 6, 2, 4, 6)...)
	round := AmericanDice{}.NewRound(script(draws...), RoundContext{Round: 1})

	if p := round.Pending(); len(p) != 1 || p[0] != domain.SideA {
		t.Fatalf("pending = %v; want [a]", p)
	}
	for i := 0; i < AmericanDiceMaxRerolls; i++ {
		if err := round.Apply(domain.SideA, ActionReroll); err != nil {
			t.Fatalf("reroll %d: %v", i, err)
		}
	}
	if err := round.Apply(domain.SideA, ActionReroll); err != ErrNotYourTurn {
		t.Fatalf("third reroll = %v; want ErrNotYourTurn", err)
	}
	if out := round.Resolve(); out.WinnerSide != domain.SideB {
		t.Fatalf("winner = %q; want b holding a point", out.WinnerSide)
	}
}

func TestAmericanDiceHoldAndTie(t *testing.T) {
	round := AmericanDice{}.NewRound(script(faces(1, 3, 5, 2, 4, 6)...), RoundContext{Round: 1})
	if d := round.Default(domain.SideB); d != ActionReroll {
		t.Fatalf("default = %q; want reroll", d)
	}
	_ = round.Apply(domain.SideA, ActionHold)
	_ = round.Apply(domain.SideB, ActionHold)
	if p := round.Pending(); len(p) != 0 {
		t.Fatalf("pending after holds = %v", p)
	}
	if out := round.Resolve(); out.WinnerSide != domain.SideTie {
		t.Fatalf("winner = %q; want tie", out.WinnerSide)
	}
}
