package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"RezoFM/logger"
	"RezoFM/model"
	"RezoFM/repository"

	"github.com/google/uuid"
)

// Signer produces limited-lifetime URLs for objects in managed storage and
// answers whether an object key is actually present there.
type Signer interface {
	PresignedGetURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	ObjectExists(ctx context.Context, key string) (bool, error)
}

// PlaybackTracker is notified when a stream URL has been handed out, so
// live-listener state can be updated. Failures are the tracker's problem;
// they must never fail the stream request.
type PlaybackTracker interface {
	Started(ctx context.Context, userID int64, song *model.Song)
}

// Options carry the fallbacks used when no PlayConfiguration row exists.
type Options struct {
	SignedURLTTL       time.Duration
	AccessTokenTTL     time.Duration
	DefaultAdFrequency int
	DefaultFreeRate    float64
	DefaultPremiumRate float64
}

// Service implements the streaming-access lifecycle: wrapper-token issuance,
// redemption with ad gating, URL resolution and exactly-once play recording.
type Service struct {
	accesses repository.StreamAccessRepository
	plays    repository.PlayRepository
	ads      repository.AdRepository
	songs    repository.SongRepository
	users    repository.UserRepository
	playCfg  repository.PlayConfigRepository
	signer   Signer
	tracker  PlaybackTracker
	opts     Options

	now func() time.Time
}

// NewService wires the streaming-access service.
func NewService(
	accesses repository.StreamAccessRepository,
	plays repository.PlayRepository,
	ads repository.AdRepository,
	songs repository.SongRepository,
	users repository.UserRepository,
	playCfg repository.PlayConfigRepository,
	signer Signer,
	tracker PlaybackTracker,
	opts Options,
) *Service {
	if opts.SignedURLTTL <= 0 {
		opts.SignedURLTTL = time.Hour
	}
	if opts.AccessTokenTTL <= 0 {
		opts.AccessTokenTTL = 6 * time.Hour
	}
	return &Service{
		accesses: accesses,
		plays:    plays,
		ads:      ads,
		songs:    songs,
		users:    users,
		playCfg:  playCfg,
		signer:   signer,
		tracker:  tracker,
		opts:     opts,
		now:      time.Now,
	}
}

// IssueResult is returned when a client requests to play a song. The one-time
// play identifier is generated at issuance so the client has it up front.
type IssueResult struct {
	Token      string    `json:"token"`
	ShortToken string    `json:"shortToken"`
	OTPlayID   string    `json:"uniqueOtplayId"`
	SongID     int64     `json:"songId"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Issue creates a wrapper token for the user/song pair.
func (s *Service) Issue(ctx context.Context, userID, songID int64) (*IssueResult, error) {
	song, err := s.songs.GetSongByID(ctx, songID)
	if err != nil {
		return nil, err
	}
	if song == nil {
		return nil, ErrNotFound
	}

	otPlayID := uuid.NewString()
	expiresAt := s.now().Add(s.opts.AccessTokenTTL)

	// Random generation with a bounded retry loop; the storage uniqueness
	// constraint is the arbiter. After maxTokenAttempts collisions the
	// UUID-derived fallback takes over.
	for attempt := 0; attempt <= maxTokenAttempts; attempt++ {
		var token, shortToken string
		if attempt < maxTokenAttempts {
			if token, err = randomToken(); err != nil {
				return nil, err
			}
			if shortToken, err = randomShortToken(); err != nil {
				return nil, err
			}
		} else {
			token, shortToken = fallbackTokens()
		}

		access := &model.StreamAccess{
			UserID:     userID,
			SongID:     songID,
			Token:      token,
			ShortToken: shortToken,
			OTPlayID:   otPlayID,
			State:      model.StateIssued,
			ExpiresAt:  &expiresAt,
		}
		err = s.accesses.Create(ctx, access)
		if errors.Is(err, repository.ErrDuplicate) {
			logger.Warn("stream token collision, regenerating",
				logger.Int64("userId", userID),
				logger.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return nil, err
		}

		return &IssueResult{
			Token:      token,
			ShortToken: shortToken,
			OTPlayID:   otPlayID,
			SongID:     songID,
			ExpiresAt:  expiresAt,
		}, nil
	}

	return nil, fmt.Errorf("failed to generate a unique stream token for user %d", userID)
}

// UnwrapResult is either an ad detour or the resolved stream payload.
type UnwrapResult struct {
	Type string `json:"type"` // "ad" or "stream"

	// Ad detour fields.
	Ad       *model.AudioAd `json:"ad,omitempty"`
	SubmitID string         `json:"submitId,omitempty"`

	// Stream fields.
	URL       string `json:"url,omitempty"`
	SongID    int64  `json:"songId,omitempty"`
	ExpiresIn int64  `json:"expiresIn,omitempty"` // seconds; 0 for unsigned external URLs
	OTPlayID  string `json:"uniqueOtplayId,omitempty"`
}

// Redeem exchanges a wrapper token for either the stream payload or an ad
// detour. The lookup is scoped to the requesting user; a foreign token is
// NotFound. A second redemption of the same token is AlreadyUsed.
func (s *Service) Redeem(ctx context.Context, userID int64, token string, short bool) (*UnwrapResult, error) {
	var access *model.StreamAccess
	var err error
	if short {
		access, err = s.accesses.GetByShortToken(ctx, token, userID)
	} else {
		access, err = s.accesses.GetByToken(ctx, token, userID)
	}
	if err != nil {
		return nil, err
	}
	if access == nil {
		return nil, ErrNotFound
	}

	// An outstanding unseen ad blocks every new stream: the user gets the
	// same ad again until it is acknowledged, no matter which token they
	// redeem. The current token stays issued so it survives the detour.
	pending, err := s.accesses.PendingAd(ctx, userID)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		ad, adErr := s.ads.GetAdByID(ctx, pending.AdID)
		if adErr != nil {
			return nil, adErr
		}
		if ad != nil {
			return &UnwrapResult{Type: "ad", Ad: ad, SubmitID: pending.AdSubmitID}, nil
		}
		// The pending ad was deleted from the catalog. Unblock the record and
		// deliver the stream it was gating; the token being redeemed here
		// stays issued, exactly as on the normal ad detour.
		ok, ackErr := s.accesses.MarkAdAcknowledged(ctx, pending.ID)
		if ackErr != nil {
			return nil, ackErr
		}
		logger.Warn("pending ad missing from catalog, acknowledged implicitly",
			logger.Int64("accessId", pending.ID),
			logger.Int64("adId", pending.AdID),
		)
		if ok {
			return s.resolve(ctx, userID, pending)
		}
	}

	if access.State != model.StateIssued {
		return nil, ErrAlreadyUsed
	}

	now := s.now()
	ok, err := s.accesses.MarkUnwrapped(ctx, access.ID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost the race against a concurrent redemption of the same token.
		return nil, ErrAlreadyUsed
	}

	// Rolling 24h window over unwrap timestamps, current unwrap included.
	count, err := s.accesses.UnwrappedCountSince(ctx, userID, now.Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}

	n := s.adFrequency(ctx)
	if n > 0 && count%int64(n) == 0 {
		ad, adErr := s.ads.RandomActiveAd(ctx)
		if adErr != nil {
			// Ad selection failing must not block playback.
			logger.Error("failed to select ad, serving stream without one", logger.ErrorField(adErr))
			ad = nil
		}
		if ad != nil {
			submitID := uuid.NewString()
			gated, gateErr := s.accesses.MarkAdPending(ctx, access.ID, ad.ID, submitID)
			if gateErr != nil {
				return nil, gateErr
			}
			if gated {
				return &UnwrapResult{Type: "ad", Ad: ad, SubmitID: submitID}, nil
			}
		}
		// No active ads: playback proceeds without the ad step.
	}

	return s.resolve(ctx, userID, access)
}

// AcknowledgeAd marks an ad as seen and releases the gated stream. The gating
// decision was made at redemption time and is not re-run here.
func (s *Service) AcknowledgeAd(ctx context.Context, userID int64, submitID string) (*UnwrapResult, error) {
	access, err := s.accesses.GetBySubmitID(ctx, submitID, userID)
	if err != nil {
		return nil, err
	}
	if access == nil {
		return nil, ErrNotFound
	}
	if access.State != model.StateAdPending {
		return nil, ErrAlreadyUsed
	}

	ok, err := s.accesses.MarkAdAcknowledged(ctx, access.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyUsed
	}

	return s.resolve(ctx, userID, access)
}

// resolve produces the final stream payload for a redeemed (and, if gated,
// acknowledged) access record.
func (s *Service) resolve(ctx context.Context, userID int64, access *model.StreamAccess) (*UnwrapResult, error) {
	song, err := s.songs.GetSongByID(ctx, access.SongID)
	if err != nil {
		return nil, err
	}
	if song == nil {
		return nil, fmt.Errorf("song %d missing for stream access %d", access.SongID, access.ID)
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	quality := model.QualityStandard
	if user != nil {
		quality = user.StreamQuality
	}

	url, expiresIn, err := s.resolveURL(ctx, song, quality)
	if err != nil {
		return nil, err
	}

	if s.tracker != nil {
		s.tracker.Started(ctx, userID, song)
	}

	return &UnwrapResult{
		Type:      "stream",
		URL:       url,
		SongID:    song.ID,
		ExpiresIn: expiresIn,
		OTPlayID:  access.OTPlayID,
	}, nil
}

// resolveURL selects the quality variant and signs it when it lives in
// managed storage. High preference uses the high-quality asset when present;
// everyone else (and high-preference users without one) gets the
// pre-transcoded low-bitrate variant, falling back to the original upload.
// Candidates whose object is missing from storage are skipped, so a stale
// variant path degrades to the next tier instead of a dead signed URL.
func (s *Service) resolveURL(ctx context.Context, song *model.Song, quality string) (string, int64, error) {
	if song.ExternalURL != "" {
		// Not managed storage; served as-is, unsigned.
		return song.ExternalURL, 0, nil
	}

	var candidates []string
	if quality == model.QualityHigh && song.HighQualityPath != "" {
		candidates = append(candidates, song.HighQualityPath)
	}
	if song.LowBitratePath != "" {
		candidates = append(candidates, song.LowBitratePath)
	}
	if song.FilePath != "" {
		candidates = append(candidates, song.FilePath)
	}
	if len(candidates) == 0 {
		return "", 0, fmt.Errorf("song %d has no playable asset", song.ID)
	}

	key := ""
	for i, candidate := range candidates {
		exists, err := s.signer.ObjectExists(ctx, candidate)
		if err != nil {
			// Storage checks failing must not block playback; sign the
			// current candidate and let the client surface a fetch error.
			logger.Error("failed to check stream asset, signing unverified",
				logger.Int64("songId", song.ID),
				logger.String("key", candidate),
				logger.ErrorField(err),
			)
			key = candidate
			break
		}
		if exists {
			key = candidate
			break
		}
		logger.Warn("stream asset missing from storage, trying next variant",
			logger.Int64("songId", song.ID),
			logger.String("key", candidate),
			logger.Int("remaining", len(candidates)-i-1),
		)
	}
	if key == "" {
		return "", 0, fmt.Errorf("song %d has no asset present in storage", song.ID)
	}

	url, err := s.signer.PresignedGetURL(ctx, key, s.opts.SignedURLTTL)
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign stream URL for song %d: %w", song.ID, err)
	}
	return url, int64(s.opts.SignedURLTTL.Seconds()), nil
}

// PlayReport is the client's playback-completed submission.
type PlayReport struct {
	OTPlayID string
	Country  string
	City     string
	IP       string
}

// RecordPlay converts a playback report into exactly one PlayCount. The
// consume transition and the insert run in one transaction; a retried report
// observes AlreadyUsed with nothing double-written.
func (s *Service) RecordPlay(ctx context.Context, userID int64, report PlayReport) (*model.PlayCount, error) {
	access, err := s.accesses.GetByOTPlayID(ctx, report.OTPlayID, userID)
	if err != nil {
		return nil, err
	}
	if access == nil {
		return nil, ErrNotFound
	}
	if access.State == model.StateConsumed {
		return nil, ErrAlreadyUsed
	}

	now := s.now()
	if access.Expired(now) {
		return nil, ErrExpired
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	plan := model.PlanFree
	if user != nil {
		plan = user.Plan
	}

	play := &model.PlayCount{
		UserID:       userID,
		SongID:       access.SongID,
		Country:      report.Country,
		City:         report.City,
		IP:           report.IP,
		PayoutAmount: s.payoutRate(ctx, plan),
		CreatedAt:    now,
	}

	recorded, err := s.plays.RecordPlay(ctx, access.ID, play)
	if err != nil {
		return nil, err
	}
	if !recorded {
		// Two cases land here: a concurrent report consumed the record first,
		// or the record was never unwrapped (its identifier was taken straight
		// from issuance without redeeming the token). Both are a conflict on
		// the consume transition and surface identically.
		return nil, ErrAlreadyUsed
	}

	// Monthly-listener bookkeeping is not payout-relevant; failures are
	// logged, never surfaced.
	song, songErr := s.songs.GetSongByID(ctx, access.SongID)
	if songErr == nil && song != nil {
		if upErr := s.plays.UpsertMonthlyListener(ctx, userID, song.ArtistID, now); upErr != nil {
			logger.Error("failed to upsert monthly listener", logger.ErrorField(upErr))
		}
	}

	return play, nil
}

// adFrequency reads the configured cadence, falling back to the default.
func (s *Service) adFrequency(ctx context.Context) int {
	cfg, err := s.playCfg.Latest(ctx)
	if err != nil {
		logger.Error("failed to load play configuration", logger.ErrorField(err))
		return s.opts.DefaultAdFrequency
	}
	if cfg == nil {
		return s.opts.DefaultAdFrequency
	}
	return cfg.AdFrequency
}

// payoutRate reads the per-play rate for a plan, falling back to the defaults.
func (s *Service) payoutRate(ctx context.Context, plan string) float64 {
	cfg, err := s.playCfg.Latest(ctx)
	if err != nil {
		logger.Error("failed to load play configuration", logger.ErrorField(err))
		cfg = nil
	}
	if cfg == nil {
		if plan == model.PlanPremium {
			return s.opts.DefaultPremiumRate
		}
		return s.opts.DefaultFreeRate
	}
	return cfg.RateFor(plan)
}
