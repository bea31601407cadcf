package domain

import "time"

type User struct {
	ID        int64     `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	Credits   int64     `db:"credits" json:"credits"`
	Wins      int64     `db:"wins" json:"wins"`
	Losses    int64     `db:"losses" json:"losses"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ProfileTotals - what the profile collaborator returns after a result report
type ProfileTotals struct {
	UserID  int64 `json:"user_id"`
	Credits int64 `json:"credits"`
	Wins    int64 `json:"wins"`
	Losses  int64 `json:"losses"`
}
