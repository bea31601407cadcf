package game

import "duel_webapp/internal/domain"

const (
	FootballRounds       = 3
	FootballAttackWeight = 35 // percent chance the attacker wins a coin
)

// Football: the attacker (initiator) shoots at one of five zones, the
// defender guards one. Matching zones block the shot and end the whole
// match on a 35/65 coin; otherwise a 35/65 coin decides the round.
type Football struct{}

func (Football) Type() domain.GameType  { return domain.GameTypeFootball }
func (Football) FixedRounds() int       { return FootballRounds }
func (Football) TieConsumesRound() bool { return false }

var footballZones = []Decision{ZoneTopLeft, ZoneTopRight, ZoneCenter, ZoneBottomLeft, ZoneBottomRight}

func (Football) NewRound(r Rand, rc RoundContext) Round {
	return &footballRound{
		rng:      r,
		round:    rc.Round,
		attacker: rc.CallerSide(),
		coin:     r.Intn(100),
		zones:    make(map[domain.Side]Decision, 2),
	}
}

type footballRound struct {
	rng      Rand
	round    int
	attacker domain.Side
	coin     int
	zones    map[domain.Side]Decision
}

func (g *footballRound) Pending() []domain.Side {
	var pending []domain.Side
	for _, side := range []domain.Side{domain.SideA, domain.SideB} {
		if _, ok := g.zones[side]; !ok {
			pending = append(pending, side)
		}
	}
	return pending
}

func (g *footballRound) Options(side domain.Side) []Decision {
	if side != domain.SideA && side != domain.SideB {
		return nil
	}
	if _, ok := g.zones[side]; ok {
		return nil
	}
	return footballZones
}

func (g *footballRound) Apply(side domain.Side, d Decision) error {
	options := g.Options(side)
	if options == nil {
		return ErrNotYourTurn
	}
	if !contains(options, d) {
		return ErrIllegalDecision
	}
	g.zones[side] = d
	return nil
}

func (g *footballRound) Default(side domain.Side) Decision {
	return pick(g.rng, g.Options(side))
}

func (g *footballRound) View() map[string]any {
	_, pickedA := g.zones[domain.SideA]
	_, pickedB := g.zones[domain.SideB]
	return map[string]any{
		"attacker": g.attacker,
		"picked_a": pickedA,
		"picked_b": pickedB,
	}
}

func (g *footballRound) Resolve() domain.RoundOutcome {
	defender := g.attacker.Other()
	winner := defender
	if g.coin < FootballAttackWeight {
		winner = g.attacker
	}

	blocked := g.zones[domain.SideA] == g.zones[domain.SideB]
	reason := "shot"
	if blocked {
		reason = "blocked"
	}

	return domain.RoundOutcome{
		Round:      g.round,
		WinnerSide: winner,
		EndsMatch:  blocked,
		Reason:     reason,
		Payload: map[string]any{
			"attacker": g.attacker,
			"zone_a":   g.zones[domain.SideA],
			"zone_b":   g.zones[domain.SideB],
			"blocked":  blocked,
		},
	}
}
