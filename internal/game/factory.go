package game

import (
	"fmt"

	"duel_webapp/internal/domain"
)

var table = map[domain.GameType]Variant{
	domain.GameTypeSumDice:      SumDice{},
	domain.GameTypeAmericanDice: AmericanDice{},
	domain.GameTypeCoinflip:     Coinflip{},
	domain.GameTypeNvuti:        Nvuti{},
	domain.GameTypeFootball:     Football{},
	domain.GameTypeBlackjack:    Blackjack{},
}

// Lookup returns the rule set for a game type.
func Lookup(gameType domain.GameType) (Variant, error) {
	v, ok := table[gameType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownGame, gameType)
	}
	return v, nil
}

// EffectiveRounds validates a requested round count and returns the count
// the match will actually use.
func EffectiveRounds(gameType domain.GameType, requested int) (int, error) {
	v, err := Lookup(gameType)
	if err != nil {
		return 0, err
	}
	if fixed := v.FixedRounds(); fixed > 0 {
		return fixed, nil
	}
	if requested < 1 {
		return 0, domain.NewValidationError("round_count", "must be positive")
	}
	if requested%2 == 0 {
		return 0, domain.NewValidationError("round_count", "must be odd")
	}
	return requested, nil
}
