package domain

// GameType - one of the six duel variants
type GameType string

const (
	GameTypeSumDice      GameType = "dice"
	GameTypeAmericanDice GameType = "dice_american"
	GameTypeCoinflip     GameType = "coinflip"
	GameTypeNvuti        GameType = "nvuti"
	GameTypeFootball     GameType = "football"
	GameTypeBlackjack    GameType = "blackjack"
)

// AllGameTypes lists the variants in catalog order.
func AllGameTypes() []GameType {
	return []GameType{
		GameTypeSumDice,
		GameTypeAmericanDice,
		GameTypeCoinflip,
		GameTypeNvuti,
		GameTypeFootball,
		GameTypeBlackjack,
	}
}

func (t GameType) Valid() bool {
	for _, gt := range AllGameTypes() {
		if gt == t {
			return true
		}
	}
	return false
}

// GameMode - how the opponent side is driven
type GameMode string

const (
	GameModePVP  GameMode = "pvp"
	GameModeSolo GameMode = "solo"
)

// Role - polarity role; a join needs the opposite role of the creator
type Role string

const (
	RoleInitiator Role = "initiator"
	RoleResponder Role = "responder"
)

func (r Role) Valid() bool {
	return r == RoleInitiator || r == RoleResponder
}

// Opposite returns the other polarity role.
func (r Role) Opposite() Role {
	if r == RoleInitiator {
		return RoleResponder
	}
	return RoleInitiator
}
