package model

import "time"

// PlayConfiguration holds the global pay-rate and ad cadence settings.
// Singleton-like: the most recent row wins; defaults apply when none exists.
type PlayConfiguration struct {
	ID          int64     `json:"id" gorm:"primaryKey"`
	FreeRate    float64   `json:"freeRate"`    // payout per play, free tier
	PremiumRate float64   `json:"premiumRate"` // payout per play, premium tier
	AdFrequency int       `json:"adFrequency"` // every Nth unwrap in a rolling 24h window; 0 disables ads
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// RateFor returns the per-play payout for a subscription plan.
func (c *PlayConfiguration) RateFor(plan string) float64 {
	if plan == PlanPremium {
		return c.PremiumRate
	}
	return c.FreeRate
}
