package game

import (
	"strconv"

	"duel_webapp/internal/domain"
)

const (
	BlackjackTarget     = 21
	BlackjackDealerStop = 17
)

var (
	cardSuits = []string{"hearts", "diamonds", "clubs", "spades"}
	cardRanks = []string{"A", "2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K"}
)

type Card struct {
	Rank string `json:"rank"`
	Suit string `json:"suit"`
}

// NewDeck returns a freshly shuffled 52-card deck.
func NewDeck(r Rand) []Card {
	deck := make([]Card, 0, len(cardSuits)*len(cardRanks))
	for _, s := range cardSuits {
		for _, rank := range cardRanks {
			deck = append(deck, Card{Rank: rank, Suit: s})
		}
	}
	for i := len(deck) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}
	return deck
}

// HandValue counts aces as 11 unless that would bust the hand.
func HandValue(hand []Card) int {
	total, aces := 0, 0
	for _, c := range hand {
		switch c.Rank {
		case "A":
			total += 11
			aces++
		case "J", "Q", "K":
			total += 10
		default:
			v, _ := strconv.Atoi(c.Rank)
			total += v
		}
	}
	for total > BlackjackTarget && aces > 0 {
		total -= 10
		aces--
	}
	return total
}

// Blackjack: two cards each from a fresh deck; side A plays out its hand
// first, so both sides can never bust in the same round.
type Blackjack struct{}

func (Blackjack) Type() domain.GameType  { return domain.GameTypeBlackjack }
func (Blackjack) FixedRounds() int       { return 0 }
func (Blackjack) TieConsumesRound() bool { return false }

func (Blackjack) NewRound(r Rand, rc RoundContext) Round {
	g := &blackjackRound{
		round: rc.Round,
		deck:  NewDeck(r),
		hands: make(map[domain.Side][]Card, 2),
		done:  make(map[domain.Side]bool, 2),
	}
	for i := 0; i < 2; i++ {
		g.hands[domain.SideA] = append(g.hands[domain.SideA], g.draw())
		g.hands[domain.SideB] = append(g.hands[domain.SideB], g.draw())
	}
	g.settle(domain.SideA)
	g.settle(domain.SideB)
	return g
}

type blackjackRound struct {
	round int
	deck  []Card
	hands map[domain.Side][]Card
	done  map[domain.Side]bool
}

func (g *blackjackRound) draw() Card {
	c := g.deck[0]
	g.deck = g.deck[1:]
	return c
}

// settle closes a hand that reached or passed 21.
func (g *blackjackRound) settle(side domain.Side) {
	if HandValue(g.hands[side]) >= BlackjackTarget {
		g.done[side] = true
	}
}

func (g *blackjackRound) busted(side domain.Side) bool {
	return HandValue(g.hands[side]) > BlackjackTarget
}

func (g *blackjackRound) Pending() []domain.Side {
	if !g.done[domain.SideA] {
		return []domain.Side{domain.SideA}
	}
	if g.busted(domain.SideA) {
		return nil
	}
	if !g.done[domain.SideB] {
		return []domain.Side{domain.SideB}
	}
	return nil
}

func (g *blackjackRound) Options(side domain.Side) []Decision {
	pending := g.Pending()
	if len(pending) == 0 || pending[0] != side {
		return nil
	}
	return []Decision{ActionHit, ActionStand}
}

func (g *blackjackRound) Apply(side domain.Side, d Decision) error {
	options := g.Options(side)
	if options == nil {
		return ErrNotYourTurn
	}
	switch d {
	case ActionHit:
		g.hands[side] = append(g.hands[side], g.draw())
		g.settle(side)
	case ActionStand:
		g.done[side] = true
	default:
		return ErrIllegalDecision
	}
	return nil
}

// Default plays the remote hand like a dealer.
func (g *blackjackRound) Default(side domain.Side) Decision {
	if g.Options(side) == nil {
		return ""
	}
	if HandValue(g.hands[side]) < BlackjackDealerStop {
		return ActionHit
	}
	return ActionStand
}

func (g *blackjackRound) View() map[string]any {
	view := map[string]any{
		"hand_a":  g.hands[domain.SideA],
		"value_a": HandValue(g.hands[domain.SideA]),
		"cards_b": len(g.hands[domain.SideB]),
	}
	if g.done[domain.SideA] {
		view["hand_b"] = g.hands[domain.SideB]
		view["value_b"] = HandValue(g.hands[domain.SideB])
	}
	return view
}

func (g *blackjackRound) Resolve() domain.RoundOutcome {
	valueA := HandValue(g.hands[domain.SideA])
	valueB := HandValue(g.hands[domain.SideB])

	var winner domain.Side
	reason := "higher_total"
	switch {
	case valueA > BlackjackTarget:
		winner, reason = domain.SideB, "bust"
	case valueB > BlackjackTarget:
		winner, reason = domain.SideA, "bust"
	case valueA > valueB:
		winner = domain.SideA
	case valueB > valueA:
		winner = domain.SideB
	default:
		winner, reason = domain.SideTie, "push"
	}

	return domain.RoundOutcome{
		Round:      g.round,
		WinnerSide: winner,
		Reason:     reason,
		Payload: map[string]any{
			"hand_a":  g.hands[domain.SideA],
			"hand_b":  g.hands[domain.SideB],
			"value_a": valueA,
			"value_b": valueB,
		},
	}
}
