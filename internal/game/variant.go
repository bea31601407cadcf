package game

import (
	"errors"

	"duel_webapp/internal/domain"
)

// Decision is a participant choice fed into a round.
type Decision string

const (
	FaceHeads Decision = "heads"
	FaceTails Decision = "tails"

	RangeLow  Decision = "low"
	RangeHigh Decision = "high"

	ZoneTopLeft     Decision = "top_left"
	ZoneTopRight    Decision = "top_right"
	ZoneCenter      Decision = "center"
	ZoneBottomLeft  Decision = "bottom_left"
	ZoneBottomRight Decision = "bottom_right"

	ActionHit    Decision = "hit"
	ActionStand  Decision = "stand"
	ActionReroll Decision = "reroll"
	ActionHold   Decision = "hold"
)

var (
	ErrNotYourTurn     = errors.New("no decision expected from this side")
	ErrIllegalDecision = errors.New("decision is not a legal option")
)

// RoundContext carries what a variant needs to know when drawing a round.
type RoundContext struct {
	Round     int
	LocalRole domain.Role
}

// CallerSide is the side holding the initiator role. It calls the coin face,
// the nvuti range and takes the football penalty.
func (rc RoundContext) CallerSide() domain.Side {
	if rc.LocalRole == domain.RoleInitiator {
		return domain.SideA
	}
	return domain.SideB
}

// Variant is one row of the rule table.
type Variant interface {
	Type() domain.GameType
	// FixedRounds overrides the requested round count when non-zero.
	FixedRounds() int
	// TieConsumesRound reports whether a tied round still advances the round index.
	TieConsumesRound() bool
	// NewRound draws the raw results for one round.
	NewRound(r Rand, rc RoundContext) Round
}

// Round is a single round in progress. Rounds are owned by one controller
// and are not safe for concurrent use.
type Round interface {
	// Pending lists the sides that still owe a decision.
	Pending() []domain.Side
	Options(side domain.Side) []Decision
	Apply(side domain.Side, d Decision) error
	// Default is used for a remote side whose decisions never reach this context.
	Default(side domain.Side) Decision
	// View is the state visible before resolution.
	View() map[string]any
	Resolve() domain.RoundOutcome
}

func contains(options []Decision, d Decision) bool {
	for _, o := range options {
		if o == d {
			return true
		}
	}
	return false
}

func pick(r Rand, options []Decision) Decision {
	if len(options) == 0 {
		return ""
	}
	return options[r.Intn(len(options))]
}

// noDecisions is embedded by variants without player agency.
type noDecisions struct{}

func (noDecisions) Pending() []domain.Side            { return nil }
func (noDecisions) Options(domain.Side) []Decision    { return nil }
func (noDecisions) Default(domain.Side) Decision      { return "" }
func (noDecisions) Apply(domain.Side, Decision) error { return ErrNotYourTurn }
