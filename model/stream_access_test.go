package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStreamAccessExpired(t *testing.T) {
	now := time.Now()

	noExpiry := &StreamAccess{}
	assert.False(t, noExpiry.Expired(now))

	future := now.Add(time.Hour)
	assert.False(t, (&StreamAccess{ExpiresAt: &future}).Expired(now))

	past := now.Add(-time.Hour)
	assert.True(t, (&StreamAccess{ExpiresAt: &past}).Expired(now))
}

func TestPlayConfigurationRateFor(t *testing.T) {
	cfg := &PlayConfiguration{FreeRate: 0.001, PremiumRate: 0.004}

	assert.Equal(t, 0.001, cfg.RateFor(PlanFree))
	assert.Equal(t, 0.004, cfg.RateFor(PlanPremium))
	assert.Equal(t, 0.001, cfg.RateFor("unknown"))
}
