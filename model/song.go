package model

import "time"

// Song represents an audio asset in the catalog.
//
// FilePath is the original upload's object key in managed storage.
// HighQualityPath and LowBitratePath are optional variant keys; ExternalURL, when
// set, points outside managed storage and is served unsigned.
type Song struct {
	ID              int64     `json:"id"`
	ArtistID        int64     `json:"artistId"`
	Title           string    `json:"title"`
	FilePath        string    `json:"-"`
	HighQualityPath string    `json:"-"`
	LowBitratePath  string    `json:"-"`
	ExternalURL     string    `json:"-"`
	CoverArtPath    string    `json:"coverArtPath"`
	Duration        float32   `json:"duration"` // seconds
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}
