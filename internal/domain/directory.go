package domain

// DirectorySnapshot is the full session list as published on the bus.
// Receivers replace their view with it when Stamp is newer than what they hold.
type DirectorySnapshot struct {
	Origin   string          `json:"origin"`
	Stamp    int64           `json:"stamp"`
	Sessions []SessionRecord `json:"sessions"`
}
