package model

import "time"

// AudioAd is an advertisement asset served by the ad gate.
type AudioAd struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	AudioURL  string    `json:"audioUrl"`
	CoverURL  string    `json:"coverUrl"`
	NavLink   string    `json:"navLink"`
	Duration  float32   `json:"duration"`  // seconds
	SkipAfter float32   `json:"skipAfter"` // seconds before the skip control appears
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
