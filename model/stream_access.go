package model

import "time"

// StreamAccess states. A record only ever moves forward:
//
//	issued → unwrapped → consumed
//	issued → unwrapped → ad_pending → ad_acknowledged → consumed
//
// Every edge is a single conditional UPDATE keyed on the current state, so two
// concurrent attempts at the same edge resolve to one winner.
const (
	StateIssued         = "issued"
	StateUnwrapped      = "unwrapped"
	StateAdPending      = "ad_pending"
	StateAdAcknowledged = "ad_acknowledged"
	StateConsumed       = "consumed"
)

// StreamAccess is one issued wrapper token and its paired one-time play identifier.
type StreamAccess struct {
	ID         int64  `json:"id" gorm:"primaryKey"`
	UserID     int64  `json:"userId" gorm:"index:idx_user_state"`
	SongID     int64  `json:"songId"`
	Token      string `json:"token" gorm:"size:64;uniqueIndex"`
	ShortToken string `json:"shortToken" gorm:"size:16;uniqueIndex"`
	OTPlayID   string `json:"uniqueOtplayId" gorm:"column:ot_play_id;size:64;uniqueIndex"`
	State      string `json:"state" gorm:"size:24;index:idx_user_state"`

	// Ad gating. AdID and AdSubmitID are set when the gate fires.
	AdID       int64  `json:"adId,omitempty"`
	AdSubmitID string `json:"-" gorm:"size:64;index"`

	UnwrappedAt *time.Time `json:"unwrappedAt,omitempty" gorm:"index"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// TableName keeps the table name stable regardless of pluralization rules.
func (StreamAccess) TableName() string { return "stream_accesses" }

// Expired reports whether the one-time access window has passed.
func (s *StreamAccess) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}
