package game

import "duel_webapp/internal/domain"

// MajorityReached is the shared early-termination rule: a side that holds
// more than half of the rounds can no longer be caught.
func MajorityReached(score, roundCount int) bool {
	return 2*score > roundCount
}

// Verdict applies the outer termination rule to the scores after a round.
// extend is true when the final round left the scores level.
func Verdict(scoreA, scoreB, roundIndex, roundCount int) (done bool, winner domain.Side, extend bool) {
	switch {
	case MajorityReached(scoreA, roundCount):
		return true, domain.SideA, false
	case MajorityReached(scoreB, roundCount):
		return true, domain.SideB, false
	}
	if roundIndex < roundCount {
		return false, domain.SideNone, false
	}
	switch {
	case scoreA > scoreB:
		return true, domain.SideA, false
	case scoreB > scoreA:
		return true, domain.SideB, false
	}
	return false, domain.SideNone, true
}
