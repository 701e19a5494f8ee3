package model

import "time"

// PlayCount is one confirmed playback. Immutable once created; exactly one row
// is ever created per one-time play identifier.
type PlayCount struct {
	ID           int64     `json:"id" gorm:"primaryKey"`
	UserID       int64     `json:"userId" gorm:"index"`
	SongID       int64     `json:"songId" gorm:"index"`
	Country      string    `json:"country" gorm:"size:64"`
	City         string    `json:"city" gorm:"size:128"`
	IP           string    `json:"ip" gorm:"size:45"` // fits IPv6
	PayoutAmount float64   `json:"payoutAmount"`
	CreatedAt    time.Time `json:"createdAt"`
}

// MonthlyListener tracks the last time a user played any song of an artist.
// Upserted on every recorded play; used only for trailing-28-day unique
// listener aggregation, not payout.
type MonthlyListener struct {
	ID           int64     `json:"id" gorm:"primaryKey"`
	UserID       int64     `json:"userId" gorm:"uniqueIndex:uq_user_artist"`
	ArtistID     int64     `json:"artistId" gorm:"uniqueIndex:uq_user_artist"`
	LastPlayedAt time.Time `json:"lastPlayedAt" gorm:"index"`
}

// ArtistStats aggregates a song catalog's play accounting for one artist.
type ArtistStats struct {
	TotalPlays       int64   `json:"totalPlays"`
	TotalIncome      float64 `json:"totalIncome"`
	MonthlyListeners int64   `json:"monthlyListeners"`
}
