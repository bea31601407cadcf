package ws

import (
	"encoding/json"
	"errors"

	"duel_webapp/internal/domain"
	"duel_webapp/internal/game"
	"duel_webapp/internal/match"
	"duel_webapp/internal/service"
)

const (
	// client - server
	MsgListSessions  = "list_sessions"
	MsgCreateSession = "create_session"
	MsgCancelSession = "cancel_session"
	MsgJoinSession   = "join_session"
	MsgPlaySolo      = "play_solo"
	MsgDecision      = "decision"
	MsgLeave         = "leave"

	// server - client
	MsgReady          = "ready"
	MsgSessions       = "sessions"
	MsgSessionCreated = "session_created"
	MsgMatchState     = "match_state"
	MsgProfile        = "profile"
	MsgError          = "error"
)

// Request is any client command. Fields that do not apply are left empty.
type Request struct {
	Type        string          `json:"type"`
	SessionID   string          `json:"session_id,omitempty"`
	GameType    domain.GameType `json:"game_type,omitempty"`
	Role        domain.Role     `json:"role,omitempty"`
	RoundCount  int             `json:"round_count,omitempty"`
	DisplayName string          `json:"display_name,omitempty"`
	Decision    game.Decision   `json:"decision,omitempty"`
}

type SessionsPayload struct {
	Type     string                 `json:"type"`
	Sessions []domain.SessionRecord `json:"sessions"`
}

type SessionCreatedPayload struct {
	Type    string               `json:"type"`
	Session domain.SessionRecord `json:"session"`
}

type MatchStatePayload struct {
	Type  string         `json:"type"`
	Match match.Snapshot `json:"match"`
}

type ProfilePayload struct {
	Type    string               `json:"type"`
	Profile domain.ProfileTotals `json:"profile"`
}

type ErrorPayload struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

var readyMsg = []byte(`{"type":"ready"}`)

func encode(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(ErrorPayload{Type: MsgError, Code: "internal", Message: "encode failed"})
	}
	return b
}

func errorMsg(err error) []byte {
	return encode(ErrorPayload{Type: MsgError, Code: errorCode(err), Message: err.Error()})
}

// errorCode maps failures to the short codes clients switch on.
func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrRoleConflict):
		return "role_conflict"
	case errors.Is(err, domain.ErrUnknownGame):
		return "unknown_game"
	case domain.IsValidation(err):
		return "invalid"
	case errors.Is(err, match.ErrBusy):
		return "busy"
	case errors.Is(err, match.ErrNoDecisionExpected), errors.Is(err, game.ErrNotYourTurn):
		return "not_your_turn"
	case errors.Is(err, game.ErrIllegalDecision):
		return "illegal_decision"
	case errors.Is(err, ErrNotOwner):
		return "forbidden"
	case errors.Is(err, ErrNotConnected):
		return "not_connected"
	case errors.Is(err, service.ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, ErrUnknownCommand):
		return "unknown_command"
	default:
		return "internal"
	}
}
