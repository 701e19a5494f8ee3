package model

import "time"

// Subscription plans. The plan in effect at record time decides the payout rate.
const (
	PlanFree    = "free"
	PlanPremium = "premium"
)

// Stream quality preferences.
const (
	QualityStandard = "standard"
	QualityHigh     = "high"
)

// User represents a listener or artist account.
type User struct {
	ID            int64     `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"` // Not exposed in API responses
	Plan          string    `json:"plan"`
	StreamQuality string    `json:"streamQuality"`
	IsArtist      bool      `json:"isArtist"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
