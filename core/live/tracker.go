package live

import (
	"context"
	"time"

	"RezoFM/cache"
	"RezoFM/logger"
	"RezoFM/model"
)

const (
	// 长轮询最长等待
	defaultMaxPollWait = 25 * time.Second
	// 等待期间的兜底重采样间隔，覆盖 TTL 过期导致的无通知下降
	defaultResample = 2 * time.Second
)

// Store is the persistence behind live-listener tracking: active-playback
// records and per-artist listener counts. The Redis-backed implementation
// lives with the server wiring.
type Store interface {
	SetActivePlayback(ctx context.Context, userID int64, pb cache.ActivePlayback) (prevArtist int64, err error)
	GetActivePlayback(ctx context.Context, userID int64) (*cache.ActivePlayback, error)
	LiveListenerCount(ctx context.Context, artistID int64) (int64, error)
}

// Tracker combines the store-backed live-listener counts with the in-process
// notification hub. It is both the playback-tracker side effect of stream
// resolution and the read side for the live-listener endpoints.
type Tracker struct {
	hub   *Hub
	store Store

	maxPollWait time.Duration
	resample    time.Duration
}

// NewTracker 创建听众追踪器
func NewTracker(hub *Hub, store Store) *Tracker {
	return &Tracker{
		hub:         hub,
		store:       store,
		maxPollWait: defaultMaxPollWait,
		resample:    defaultResample,
	}
}

// Started records an active playback for the user and wakes subscribers of
// the song's artist. Called from the stream path; must never fail it.
func (t *Tracker) Started(ctx context.Context, userID int64, song *model.Song) {
	ttl := time.Duration(song.Duration * float32(time.Second))
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	prevArtist, err := t.store.SetActivePlayback(ctx, userID, cache.ActivePlayback{
		SongID:    song.ID,
		ArtistID:  song.ArtistID,
		ExpiresAt: time.Now().Add(ttl),
	})
	if err != nil {
		logger.Error("failed to record active playback",
			logger.Int64("userId", userID),
			logger.Int64("songId", song.ID),
			logger.ErrorField(err),
		)
		return
	}

	t.hub.Publish(song.ArtistID)
	if prevArtist != 0 && prevArtist != song.ArtistID {
		// 用户从一个艺术家切到另一个，两边的听众数都变了
		t.hub.Publish(prevArtist)
	}
}

// NowPlaying returns the user's current active playback, nil when idle.
func (t *Tracker) NowPlaying(ctx context.Context, userID int64) (*cache.ActivePlayback, error) {
	return t.store.GetActivePlayback(ctx, userID)
}

// Count returns the artist's current live-listener count.
func (t *Tracker) Count(ctx context.Context, artistID int64) (int64, error) {
	return t.store.LiveListenerCount(ctx, artistID)
}

// Poll blocks until the artist's live-listener count differs from last, the
// wait budget runs out, or ctx is done. It returns the current count and
// whether it changed. Expiry-driven drops produce no hub notification, so a
// slow ticker re-samples while waiting.
func (t *Tracker) Poll(ctx context.Context, artistID int64, last int64) (int64, bool, error) {
	count, err := t.Count(ctx, artistID)
	if err != nil {
		return 0, false, err
	}
	if count != last {
		return count, true, nil
	}

	notify, cancel := t.hub.Subscribe(artistID)
	defer cancel()

	deadline := time.NewTimer(t.maxPollWait)
	defer deadline.Stop()
	ticker := time.NewTicker(t.resample)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return last, false, ctx.Err()
		case <-deadline.C:
			return last, false, nil
		case <-notify:
		case <-ticker.C:
		}

		count, err = t.Count(ctx, artistID)
		if err != nil {
			return 0, false, err
		}
		if count != last {
			return count, true, nil
		}
	}
}
