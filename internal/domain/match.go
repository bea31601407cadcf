package domain

// Phase - Match Controller lifecycle state
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseWaiting          Phase = "waiting_for_opponent"
	PhaseRolling          Phase = "rolling"
	PhaseAwaitingDecision Phase = "awaiting_decision"
	PhaseResolving        Phase = "resolving"
	PhaseRoundComplete    Phase = "round_complete"
	PhaseTiedExtend       Phase = "tied_extend"
	PhaseComplete         Phase = "complete"
)

// Side identifies a participant inside one match. Side A is always the
// local participant.
type Side string

const (
	SideNone Side = ""
	SideA    Side = "a"
	SideB    Side = "b"
	SideTie  Side = "tie"
)

// Other returns the opposing side. Tie and none map to themselves.
func (s Side) Other() Side {
	switch s {
	case SideA:
		return SideB
	case SideB:
		return SideA
	default:
		return s
	}
}

// MatchState is owned by exactly one controller and never shared across contexts.
type MatchState struct {
	SessionID       string   `json:"session_id,omitempty"`
	GameType        GameType `json:"game_type"`
	Phase           Phase    `json:"phase"`
	RoundIndex      int      `json:"round_index"`
	RoundCount      int      `json:"round_count"`
	ScoreA          int      `json:"score_a"`
	ScoreB          int      `json:"score_b"`
	IsSoloMode      bool     `json:"is_solo_mode"`
	ParticipantRole Role     `json:"participant_role"`
	AwaitingSide    Side     `json:"awaiting_side,omitempty"`
	Winner          Side     `json:"winner,omitempty"`
}

// RoundOutcome is the immutable verdict of one round.
type RoundOutcome struct {
	Round      int            `json:"round"`
	WinnerSide Side           `json:"winner_side"`
	EndsMatch  bool           `json:"ends_match,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// GameResult - final result as seen by one participant
type GameResult string

const (
	GameResultWin  GameResult = "win"
	GameResultLose GameResult = "lose"
)
