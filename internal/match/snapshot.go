package match

import (
	"duel_webapp/internal/domain"
	"duel_webapp/internal/game"
)

// Snapshot is the read-only view of a match handed to renderers.
type Snapshot struct {
	State domain.MatchState `json:"state"`
	// Round is the visible state of the round in play, if any.
	Round map[string]any `json:"round,omitempty"`
	// Options lists the decisions the local participant may send now.
	Options     []game.Decision      `json:"options,omitempty"`
	LastOutcome *domain.RoundOutcome `json:"last_outcome,omitempty"`
}
