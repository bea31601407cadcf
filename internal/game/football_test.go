package game

import (
	"testing"

	"duel_webapp/internal/domain"
)

func TestFootballSameZoneEndsMatch(t *testing.T) {
	for _, zone := range footballZones {
		round := Football{}.NewRound(script(50), RoundContext{Round: 1, LocalRole: domain.RoleInitiator})
		if err := round.Apply(domain.SideA, zone); err != nil {
			t.Fatalf("Apply A: %v", err)
		}
		if err := round.Apply(domain.SideB, zone); err != nil {
			t.Fatalf("Apply B: %v", err)
		}
		out := round.Resolve()
		if !out.EndsMatch {
			t.Fatalf("zone %s: blocked shot must end the match", zone)
		}
		// coin 50 >= 35 goes to the defender
		if out.WinnerSide != domain.SideB {
			t.Fatalf("zone %s: winner = %q; want defender b", zone, out.WinnerSide)
		}
	}
}

func TestFootballAttackerWeight(t *testing.T) {
	attackerWins := 0
	for coin := 0; coin < 100; coin++ {
		round := Football{}.NewRound(script(coin), RoundContext{Round: 1, LocalRole: domain.RoleResponder})
		_ = round.Apply(domain.SideA, ZoneTopLeft)
		_ = round.Apply(domain.SideB, ZoneBottomRight)
		out := round.Resolve()
		if out.EndsMatch {
			t.Fatalf("different zones must not end the match")
		}
		// responder is local, so the attacker is side B
		if out.WinnerSide == domain.SideB {
			attackerWins++
		}
	}
	if attackerWins != FootballAttackWeight {
		t.Fatalf("attacker won %d of 100; want %d", attackerWins, FootballAttackWeight)
	}
}

func TestFootballPendingBothSides(t *testing.T) {
	round := Football{}.NewRound(script(0), RoundContext{Round: 1, LocalRole: domain.RoleInitiator})
	if p := round.Pending(); len(p) != 2 {
		t.Fatalf("pending = %v; want both sides", p)
	}
	_ = round.Apply(domain.SideB, round.Default(domain.SideB))
	if p := round.Pending(); len(p) != 1 || p[0] != domain.SideA {
		t.Fatalf("pending = %v; want [a]", p)
	}
	if (Football{}).FixedRounds() != 3 {
		t.Fatalf("football must be fixed at 3 rounds")
	}
}
