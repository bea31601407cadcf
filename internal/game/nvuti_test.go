package game

import (
	"testing"

	"duel_webapp/internal/domain"
)

func TestNvutiWeightedCoin(t *testing.T) {
	// number 30 (low) with a low call: caller is logically correct
	correctWins := 0
	for coin := 0; coin < 100; coin++ {
		round := Nvuti{}.NewRound(script(29, coin), RoundContext{Round: 1, LocalRole: domain.RoleInitiator})
		if err := round.Apply(domain.SideA, RangeLow); err != nil {
			t.Fatalf("Apply: %v", err)
		}
		if round.Resolve().WinnerSide == domain.SideA {
			correctWins++
		}
	}
	if correctWins != NvutiWinWeight {
		t.Fatalf("correct call won %d of 100 coins; want %d", correctWins, NvutiWinWeight)
	}
}

func TestNvutiWrongCallFavouredSide(t *testing.T) {
	cases := []struct {
		name   string
		number int
		call   Decision
		coin   int
		winner domain.Side
	}{
		{"wrong call, coin favours correct side", 80, RangeLow, 10, domain.SideB},
		{"wrong call, coin favours the other side", 80, RangeLow, 90, domain.SideA},
		{"right call high, low coin", 51, RangeHigh, 0, domain.SideA},
		{"boundary 50 is low", 50, RangeHigh, 0, domain.SideB},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			round := Nvuti{}.NewRound(script(tc.number-1, tc.coin), RoundContext{Round: 2, LocalRole: domain.RoleInitiator})
			if err := round.Apply(domain.SideA, tc.call); err != nil {
				t.Fatalf("Apply: %v", err)
			}
			out := round.Resolve()
			if out.WinnerSide != tc.winner {
				t.Fatalf("winner = %q; want %q (payload %v)", out.WinnerSide, tc.winner, out.Payload)
			}
			if out.Payload["number"] != tc.number {
				t.Fatalf("number = %v; want %d", out.Payload["number"], tc.number)
			}
		})
	}
}
