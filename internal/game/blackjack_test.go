package game

import (
	"testing"

	"duel_webapp/internal/domain"
)

func hand(ranks ...string) []Card {
	cards := make([]Card, len(ranks))
	for i, r := range ranks {
		cards[i] = Card{Rank: r, Suit: "spades"}
	}
	return cards
}

func TestHandValue(t *testing.T) {
	cases := []struct {
		cards []Card
		want  int
	}{
		{hand("A", "K"), 21},
		{hand("A", "A"), 12},
		{hand("A", "9", "5"), 15},
		{hand("10", "Q"), 20},
		{hand("K", "Q", "2"), 22},
		{hand("A", "A", "A", "8"), 21},
	}
	for _, tc := range cases {
		if got := HandValue(tc.cards); got != tc.want {
			t.Fatalf("HandValue(%v) = %d; want %d", tc.cards, got, tc.want)
		}
	}
}

func TestNewDeckIsComplete(t *testing.T) {
	deck := NewDeck(NewSeededRand(3))
	if len(deck) != 52 {
		t.Fatalf("deck size = %d", len(deck))
	}
	seen := make(map[Card]bool)
	for _, c := range deck {
		if seen[c] {
			t.Fatalf("duplicate card %v", c)
		}
		seen[c] = true
	}
}

func newBlackjackRound(a, b []Card) *blackjackRound {
	g := &blackjackRound{
		round: 1,
		deck:  hand("K", "K", "K", "5", "5", "5"),
		hands: map[domain.Side][]Card{domain.SideA: a, domain.SideB: b},
		done:  make(map[domain.Side]bool),
	}
	g.settle(domain.SideA)
	g.settle(domain.SideB)
	return g
}

func TestBlackjackBustSkipsOpponent(t *testing.T) {
	g := newBlackjackRound(hand("10", "6"), hand("9", "8"))
	if err := g.Apply(domain.SideB, ActionStand); err != ErrNotYourTurn {
		t.Fatalf("side b acted before a finished: %v", err)
	}
	if err := g.Apply(domain.SideA, ActionHit); err != nil {
		t.Fatalf("hit: %v", err)
	}
	if p := g.Pending(); len(p) != 0 {
		t.Fatalf("after a bust nobody should be pending, got %v", p)
	}
	out := g.Resolve()
	if out.WinnerSide != domain.SideB || out.Reason != "bust" {
		t.Fatalf("outcome = %+v; want b by bust", out)
	}
}

func TestBlackjackStandAndCompare(t *testing.T) {
	g := newBlackjackRound(hand("10", "9"), hand("10", "7"))
	if err := g.Apply(domain.SideA, ActionStand); err != nil {
		t.Fatalf("stand: %v", err)
	}
	if d := g.Default(domain.SideB); d != ActionStand {
		t.Fatalf("dealer default on 17 = %q; want stand", d)
	}
	_ = g.Apply(domain.SideB, ActionStand)
	if out := g.Resolve(); out.WinnerSide != domain.SideA {
		t.Fatalf("winner = %q; want a", out.WinnerSide)
	}
}

func TestBlackjackPush(t *testing.T) {
	g := newBlackjackRound(hand("A", "K"), hand("A", "Q"))
	if p := g.Pending(); len(p) != 0 {
		t.Fatalf("two naturals leave nothing to decide, got %v", p)
	}
	if out := g.Resolve(); out.WinnerSide != domain.SideTie {
		t.Fatalf("winner = %q; want tie", out.WinnerSide)
	}
}
