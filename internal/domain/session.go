package domain

import "time"

// SessionRecord - an advertised match nobody has joined yet
type SessionRecord struct {
	ID          string    `json:"id"`
	GameType    GameType  `json:"game_type"`
	CreatorRole Role      `json:"creator_role"`
	CreatorName string    `json:"creator_name"`
	CreatorID   int64     `json:"creator_id,omitempty"`
	RoundCount  int       `json:"round_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Complete reports whether every required field is present. Records read
// back from a durable store that fail this check are dropped.
func (s SessionRecord) Complete() bool {
	return s.ID != "" &&
		s.GameType.Valid() &&
		s.CreatorRole.Valid() &&
		s.CreatorName != "" &&
		s.RoundCount > 0 &&
		!s.CreatedAt.IsZero()
}

// Expired reports whether the record outlived the retention window.
func (s SessionRecord) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.CreatedAt) > ttl
}

// JoinNotification wakes a session creator once somebody claimed the session.
type JoinNotification struct {
	SessionID  string    `json:"session_id"`
	RoundCount int       `json:"round_count"`
	GameType   GameType  `json:"game_type"`
	JoinerName string    `json:"joiner_name,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Fresh reports whether a persisted notification is still recent enough to act on.
func (n JoinNotification) Fresh(now time.Time, window time.Duration) bool {
	age := now.Sub(n.Timestamp)
	return age >= -window && age <= window
}
