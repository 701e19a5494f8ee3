package stream

import (
	"context"
	"sync"
	"testing"
	"time"

	"RezoFM/model"
	"RezoFM/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAccessRepo is an in-memory StreamAccessRepository with the same
// one-winner transition semantics as the real one.
type fakeAccessRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*model.StreamAccess
}

func newFakeAccessRepo() *fakeAccessRepo {
	return &fakeAccessRepo{rows: map[int64]*model.StreamAccess{}}
}

func (f *fakeAccessRepo) Create(_ context.Context, access *model.StreamAccess) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.Token == access.Token || row.ShortToken == access.ShortToken || row.OTPlayID == access.OTPlayID {
			return repository.ErrDuplicate
		}
	}
	f.nextID++
	access.ID = f.nextID
	cp := *access
	f.rows[cp.ID] = &cp
	return nil
}

func (f *fakeAccessRepo) find(match func(*model.StreamAccess) bool) *model.StreamAccess {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if match(row) {
			cp := *row
			return &cp
		}
	}
	return nil
}

func (f *fakeAccessRepo) GetByToken(_ context.Context, token string, userID int64) (*model.StreamAccess, error) {
	return f.find(func(r *model.StreamAccess) bool { return r.Token == token && r.UserID == userID }), nil
}

func (f *fakeAccessRepo) GetByShortToken(_ context.Context, shortToken string, userID int64) (*model.StreamAccess, error) {
	return f.find(func(r *model.StreamAccess) bool { return r.ShortToken == shortToken && r.UserID == userID }), nil
}

func (f *fakeAccessRepo) GetByOTPlayID(_ context.Context, otPlayID string, userID int64) (*model.StreamAccess, error) {
	return f.find(func(r *model.StreamAccess) bool { return r.OTPlayID == otPlayID && r.UserID == userID }), nil
}

func (f *fakeAccessRepo) GetBySubmitID(_ context.Context, submitID string, userID int64) (*model.StreamAccess, error) {
	return f.find(func(r *model.StreamAccess) bool { return r.AdSubmitID == submitID && r.UserID == userID }), nil
}

func (f *fakeAccessRepo) PendingAd(_ context.Context, userID int64) (*model.StreamAccess, error) {
	return f.find(func(r *model.StreamAccess) bool { return r.UserID == userID && r.State == model.StateAdPending }), nil
}

func (f *fakeAccessRepo) UnwrappedCountSince(_ context.Context, userID int64, since time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, row := range f.rows {
		if row.UserID == userID && row.UnwrappedAt != nil && row.UnwrappedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeAccessRepo) MarkUnwrapped(_ context.Context, id int64, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok || row.State != model.StateIssued {
		return false, nil
	}
	row.State = model.StateUnwrapped
	t := at
	row.UnwrappedAt = &t
	return true, nil
}

func (f *fakeAccessRepo) MarkAdPending(_ context.Context, id, adID int64, submitID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok || row.State != model.StateUnwrapped {
		return false, nil
	}
	row.State = model.StateAdPending
	row.AdID = adID
	row.AdSubmitID = submitID
	return true, nil
}

func (f *fakeAccessRepo) MarkAdAcknowledged(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok || row.State != model.StateAdPending {
		return false, nil
	}
	row.State = model.StateAdAcknowledged
	return true, nil
}

// setExpiry backdates a row's expiry, for expiration tests.
func (f *fakeAccessRepo) setExpiry(otPlayID string, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.OTPlayID == otPlayID {
			t := at
			row.ExpiresAt = &t
		}
	}
}

// fakePlayRepo consumes through the access repo, mirroring the transactional
// conditional UPDATE.
type fakePlayRepo struct {
	accesses *fakeAccessRepo
	mu       sync.Mutex
	plays    []*model.PlayCount
	monthly  map[[2]int64]time.Time
}

func newFakePlayRepo(accesses *fakeAccessRepo) *fakePlayRepo {
	return &fakePlayRepo{accesses: accesses, monthly: map[[2]int64]time.Time{}}
}

func (f *fakePlayRepo) RecordPlay(_ context.Context, accessID int64, play *model.PlayCount) (bool, error) {
	f.accesses.mu.Lock()
	defer f.accesses.mu.Unlock()
	row, ok := f.accesses.rows[accessID]
	if !ok {
		return false, nil
	}
	if row.State != model.StateUnwrapped && row.State != model.StateAdAcknowledged {
		return false, nil
	}
	row.State = model.StateConsumed

	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *play
	f.plays = append(f.plays, &cp)
	return true, nil
}

func (f *fakePlayRepo) UpsertMonthlyListener(_ context.Context, userID, artistID int64, playedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.monthly[[2]int64{userID, artistID}] = playedAt
	return nil
}

func (f *fakePlayRepo) ArtistStats(_ context.Context, artistID int64, _ time.Time) (*model.ArtistStats, error) {
	return &model.ArtistStats{}, nil
}

type fakeAdRepo struct {
	mu  sync.Mutex
	ads map[int64]*model.AudioAd
}

func newFakeAdRepo() *fakeAdRepo { return &fakeAdRepo{ads: map[int64]*model.AudioAd{}} }

func (f *fakeAdRepo) CreateAd(_ context.Context, ad *model.AudioAd) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ad.ID = int64(len(f.ads) + 1)
	f.ads[ad.ID] = ad
	return ad.ID, nil
}

func (f *fakeAdRepo) GetAdByID(_ context.Context, id int64) (*model.AudioAd, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ads[id], nil
}

func (f *fakeAdRepo) GetAllActiveAds(_ context.Context) ([]*model.AudioAd, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.AudioAd
	for _, ad := range f.ads {
		if ad.Active {
			out = append(out, ad)
		}
	}
	return out, nil
}

func (f *fakeAdRepo) RandomActiveAd(_ context.Context) (*model.AudioAd, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ad := range f.ads {
		if ad.Active {
			return ad, nil
		}
	}
	return nil, nil
}

// remove drops an ad outright, for deleted-catalog-entry tests.
func (f *fakeAdRepo) remove(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.ads, id)
}

func (f *fakeAdRepo) SetActive(_ context.Context, id int64, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ad, ok := f.ads[id]; ok {
		ad.Active = active
	}
	return nil
}

type fakeSongRepo struct {
	songs map[int64]*model.Song
}

func (f *fakeSongRepo) CreateSong(_ context.Context, song *model.Song) (int64, error) {
	song.ID = int64(len(f.songs) + 1)
	f.songs[song.ID] = song
	return song.ID, nil
}

func (f *fakeSongRepo) GetSongByID(_ context.Context, id int64) (*model.Song, error) {
	return f.songs[id], nil
}

func (f *fakeSongRepo) GetAllSongsByArtistID(_ context.Context, artistID int64) ([]*model.Song, error) {
	return nil, nil
}

func (f *fakeSongRepo) UpdateVariantPaths(_ context.Context, songID int64, hq, low string) error {
	return nil
}

func (f *fakeSongRepo) UpdateDuration(_ context.Context, songID int64, d float32) error {
	return nil
}

type fakeUserRepo struct {
	users map[int64]*model.User
}

func (f *fakeUserRepo) CreateUser(_ context.Context, u *model.User) (int64, error) { return u.ID, nil }
func (f *fakeUserRepo) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	return f.users[id], nil
}
func (f *fakeUserRepo) GetUserByUsername(_ context.Context, _ string) (*model.User, error) {
	return nil, nil
}
func (f *fakeUserRepo) GetUserByEmail(_ context.Context, _ string) (*model.User, error) {
	return nil, nil
}
func (f *fakeUserRepo) UpdatePreferences(_ context.Context, _ int64, _, _ string) error { return nil }

type fakeCfgRepo struct {
	cfg *model.PlayConfiguration
}

func (f *fakeCfgRepo) Latest(_ context.Context) (*model.PlayConfiguration, error) {
	return f.cfg, nil
}
func (f *fakeCfgRepo) Save(_ context.Context, cfg *model.PlayConfiguration) error {
	f.cfg = cfg
	return nil
}

// fakeSigner treats every key as present unless a test drops it.
type fakeSigner struct {
	mu      sync.Mutex
	missing map[string]bool
}

func (f *fakeSigner) PresignedGetURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://signed.example/" + key, nil
}

func (f *fakeSigner) ObjectExists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.missing[key], nil
}

func (f *fakeSigner) drop(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing == nil {
		f.missing = map[string]bool{}
	}
	f.missing[key] = true
}

type recordingTracker struct {
	mu      sync.Mutex
	started []int64 // song IDs
}

func (t *recordingTracker) Started(_ context.Context, _ int64, song *model.Song) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started = append(t.started, song.ID)
}

type fixture struct {
	svc      *Service
	accesses *fakeAccessRepo
	plays    *fakePlayRepo
	ads      *fakeAdRepo
	songs    *fakeSongRepo
	users    *fakeUserRepo
	cfg      *fakeCfgRepo
	signer   *fakeSigner
	tracker  *recordingTracker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	accesses := newFakeAccessRepo()
	plays := newFakePlayRepo(accesses)
	ads := newFakeAdRepo()
	songs := &fakeSongRepo{songs: map[int64]*model.Song{
		1: {ID: 1, ArtistID: 100, Title: "First", FilePath: "songs/100/first.mp3", LowBitratePath: "variants/100/first_low.mp3", HighQualityPath: "songs/100/first_hq.flac", Duration: 180},
		2: {ID: 2, ArtistID: 100, Title: "External", ExternalURL: "https://elsewhere.example/ext.mp3"},
		3: {ID: 3, ArtistID: 101, Title: "OriginalOnly", FilePath: "songs/101/raw.wav"},
	}}
	users := &fakeUserRepo{users: map[int64]*model.User{
		10: {ID: 10, Username: "listener", Plan: model.PlanFree, StreamQuality: model.QualityStandard},
		11: {ID: 11, Username: "audiophile", Plan: model.PlanPremium, StreamQuality: model.QualityHigh},
	}}
	cfg := &fakeCfgRepo{}
	signer := &fakeSigner{}
	tracker := &recordingTracker{}

	svc := NewService(accesses, plays, ads, songs, users, cfg, signer, tracker, Options{
		SignedURLTTL:       time.Hour,
		AccessTokenTTL:     6 * time.Hour,
		DefaultAdFrequency: 0, // ads off unless a test configures them
		DefaultFreeRate:    0.001,
		DefaultPremiumRate: 0.004,
	})
	return &fixture{svc: svc, accesses: accesses, plays: plays, ads: ads, songs: songs, users: users, cfg: cfg, signer: signer, tracker: tracker}
}

func TestIssueAndRedeem(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	issued, err := fx.svc.Issue(ctx, 10, 1)
	require.NoError(t, err)
	require.NotEmpty(t, issued.Token)
	require.Len(t, issued.ShortToken, 10)
	require.NotEmpty(t, issued.OTPlayID)

	result, err := fx.svc.Redeem(ctx, 10, issued.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "stream", result.Type)
	assert.Equal(t, "https://signed.example/variants/100/first_low.mp3", result.URL)
	assert.Equal(t, int64(3600), result.ExpiresIn)
	assert.Equal(t, issued.OTPlayID, result.OTPlayID)
	assert.Equal(t, []int64{1}, fx.tracker.started)
}

func TestRedeemShortToken(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	issued, err := fx.svc.Issue(ctx, 10, 1)
	require.NoError(t, err)

	result, err := fx.svc.Redeem(ctx, 10, issued.ShortToken, true)
	require.NoError(t, err)
	assert.Equal(t, "stream", result.Type)
}

func TestRedeemTwiceFails(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	issued, err := fx.svc.Issue(ctx, 10, 1)
	require.NoError(t, err)

	_, err = fx.svc.Redeem(ctx, 10, issued.Token, false)
	require.NoError(t, err)

	_, err = fx.svc.Redeem(ctx, 10, issued.Token, false)
	assert.ErrorIs(t, err, ErrAlreadyUsed)
}

func TestRedeemForeignTokenIsNotFound(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	issued, err := fx.svc.Issue(ctx, 10, 1)
	require.NoError(t, err)

	// Another user cannot distinguish a foreign token from a nonexistent one.
	_, err = fx.svc.Redeem(ctx, 11, issued.Token, false)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = fx.svc.Redeem(ctx, 11, "no-such-token", false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentRedeemHasOneWinner(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	issued, err := fx.svc.Issue(ctx, 10, 1)
	require.NoError(t, err)

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = fx.svc.Redeem(ctx, 10, issued.Token, false)
		}(i)
	}
	wg.Wait()

	var wins int
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, ErrAlreadyUsed)
		}
	}
	assert.Equal(t, 1, wins)
}

func redeemNth(t *testing.T, fx *fixture, userID, songID int64) *UnwrapResult {
	t.Helper()
	issued, err := fx.svc.Issue(context.Background(), userID, songID)
	require.NoError(t, err)
	result, err := fx.svc.Redeem(context.Background(), userID, issued.Token, false)
	require.NoError(t, err)
	return result
}

func TestAdCadence(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.cfg.cfg = &model.PlayConfiguration{FreeRate: 0.001, PremiumRate: 0.004, AdFrequency: 3}
	_, err := fx.ads.CreateAd(ctx, &model.AudioAd{Title: "Spot", AudioURL: "ads/spot.mp3", Active: true})
	require.NoError(t, err)

	// Unwraps 1 and 2 stream; the 3rd hits the gate.
	assert.Equal(t, "stream", redeemNth(t, fx, 10, 1).Type)
	assert.Equal(t, "stream", redeemNth(t, fx, 10, 1).Type)

	gated := redeemNth(t, fx, 10, 1)
	require.Equal(t, "ad", gated.Type)
	require.NotNil(t, gated.Ad)
	require.NotEmpty(t, gated.SubmitID)

	// Acknowledging releases the gated stream.
	released, err := fx.svc.AcknowledgeAd(ctx, 10, gated.SubmitID)
	require.NoError(t, err)
	assert.Equal(t, "stream", released.Type)

	// 4th and 5th stream, 6th gates again.
	assert.Equal(t, "stream", redeemNth(t, fx, 10, 1).Type)
	assert.Equal(t, "stream", redeemNth(t, fx, 10, 1).Type)
	assert.Equal(t, "ad", redeemNth(t, fx, 10, 1).Type)
}

func TestPendingAdBlocksNewStreams(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.cfg.cfg = &model.PlayConfiguration{AdFrequency: 1}
	_, err := fx.ads.CreateAd(ctx, &model.AudioAd{Title: "Spot", AudioURL: "ads/spot.mp3", Active: true})
	require.NoError(t, err)

	gated := redeemNth(t, fx, 10, 1)
	require.Equal(t, "ad", gated.Type)

	// A fresh token returns the same outstanding ad and stays redeemable.
	other, err := fx.svc.Issue(ctx, 10, 1)
	require.NoError(t, err)
	blocked, err := fx.svc.Redeem(ctx, 10, other.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "ad", blocked.Type)
	assert.Equal(t, gated.SubmitID, blocked.SubmitID)

	// The block is per user.
	foreign := redeemNth(t, fx, 11, 1)
	assert.NotEqual(t, gated.SubmitID, foreign.SubmitID)

	_, err = fx.svc.AcknowledgeAd(ctx, 10, gated.SubmitID)
	require.NoError(t, err)

	// With frequency 1 the next unwrap gates again, but the blocked token
	// itself was never consumed by the detour.
	after, err := fx.svc.Redeem(ctx, 10, other.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "ad", after.Type)
}

func TestDeletedPendingAdStillDeliversStream(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.cfg.cfg = &model.PlayConfiguration{AdFrequency: 1}
	adID, err := fx.ads.CreateAd(ctx, &model.AudioAd{Title: "Spot", AudioURL: "ads/spot.mp3", Active: true})
	require.NoError(t, err)

	issued, err := fx.svc.Issue(ctx, 10, 1)
	require.NoError(t, err)
	gated, err := fx.svc.Redeem(ctx, 10, issued.Token, false)
	require.NoError(t, err)
	require.Equal(t, "ad", gated.Type)

	// The ad vanishes from the catalog while the record is still pending.
	fx.ads.remove(adID)

	// Redeeming a fresh token releases the gated record's stream instead of
	// leaving it wedged behind an ad that can never be acknowledged.
	other, err := fx.svc.Issue(ctx, 10, 1)
	require.NoError(t, err)
	released, err := fx.svc.Redeem(ctx, 10, other.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "stream", released.Type)
	assert.Equal(t, issued.OTPlayID, released.OTPlayID)

	// The gated record is consumable and the fresh token is still redeemable.
	_, err = fx.svc.RecordPlay(ctx, 10, PlayReport{OTPlayID: issued.OTPlayID})
	require.NoError(t, err)
	after, err := fx.svc.Redeem(ctx, 10, other.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "stream", after.Type)
	assert.Equal(t, other.OTPlayID, after.OTPlayID)
}

func TestAcknowledgeAdTwiceFails(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.cfg.cfg = &model.PlayConfiguration{AdFrequency: 1}
	_, err := fx.ads.CreateAd(ctx, &model.AudioAd{Title: "Spot", AudioURL: "ads/spot.mp3", Active: true})
	require.NoError(t, err)

	gated := redeemNth(t, fx, 10, 1)
	require.Equal(t, "ad", gated.Type)

	_, err = fx.svc.AcknowledgeAd(ctx, 10, gated.SubmitID)
	require.NoError(t, err)

	_, err = fx.svc.AcknowledgeAd(ctx, 10, gated.SubmitID)
	assert.ErrorIs(t, err, ErrAlreadyUsed)
}

func TestAcknowledgeAdForeignSubmitIsNotFound(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.cfg.cfg = &model.PlayConfiguration{AdFrequency: 1}
	_, err := fx.ads.CreateAd(ctx, &model.AudioAd{Title: "Spot", AudioURL: "ads/spot.mp3", Active: true})
	require.NoError(t, err)

	gated := redeemNth(t, fx, 10, 1)
	require.Equal(t, "ad", gated.Type)

	_, err = fx.svc.AcknowledgeAd(ctx, 11, gated.SubmitID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNoActiveAdsSkipsGate(t *testing.T) {
	fx := newFixture(t)
	fx.cfg.cfg = &model.PlayConfiguration{AdFrequency: 1}

	// Gate fires on every unwrap, but with no active ads playback proceeds.
	result := redeemNth(t, fx, 10, 1)
	assert.Equal(t, "stream", result.Type)
}

func TestQualitySelection(t *testing.T) {
	fx := newFixture(t)

	// Standard quality gets the low-bitrate variant.
	assert.Equal(t, "https://signed.example/variants/100/first_low.mp3", redeemNth(t, fx, 10, 1).URL)

	// High preference gets the high-quality asset when present.
	assert.Equal(t, "https://signed.example/songs/100/first_hq.flac", redeemNth(t, fx, 11, 1).URL)

	// Without variants the original upload serves everyone.
	assert.Equal(t, "https://signed.example/songs/101/raw.wav", redeemNth(t, fx, 11, 3).URL)

	// External URLs pass through unsigned.
	ext := redeemNth(t, fx, 10, 2)
	assert.Equal(t, "https://elsewhere.example/ext.mp3", ext.URL)
	assert.Zero(t, ext.ExpiresIn)
}

func TestMissingVariantFallsBackToNextTier(t *testing.T) {
	fx := newFixture(t)

	// The high-quality object is gone from storage; the high-preference
	// user degrades to the low-bitrate variant instead of a dead URL.
	fx.signer.drop("songs/100/first_hq.flac")
	assert.Equal(t, "https://signed.example/variants/100/first_low.mp3", redeemNth(t, fx, 11, 1).URL)

	// With the low variant gone too, the original upload serves.
	fx.signer.drop("variants/100/first_low.mp3")
	assert.Equal(t, "https://signed.example/songs/100/first.mp3", redeemNth(t, fx, 11, 1).URL)

	// Nothing present at all is an error, not a signed dead link.
	fx.signer.drop("songs/101/raw.wav")
	issued, err := fx.svc.Issue(context.Background(), 10, 3)
	require.NoError(t, err)
	_, err = fx.svc.Redeem(context.Background(), 10, issued.Token, false)
	assert.Error(t, err)
}

func TestRecordPlayExactlyOnce(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.cfg.cfg = &model.PlayConfiguration{FreeRate: 0.002, PremiumRate: 0.008}

	result := redeemNth(t, fx, 10, 1)
	report := PlayReport{OTPlayID: result.OTPlayID, Country: "DE", City: "Berlin", IP: "203.0.113.7"}

	play, err := fx.svc.RecordPlay(ctx, 10, report)
	require.NoError(t, err)
	assert.Equal(t, int64(1), play.SongID)
	assert.Equal(t, 0.002, play.PayoutAmount)

	_, err = fx.svc.RecordPlay(ctx, 10, report)
	assert.ErrorIs(t, err, ErrAlreadyUsed)
	assert.Len(t, fx.plays.plays, 1)

	// The listener shows up in the artist's monthly set.
	_, ok := fx.plays.monthly[[2]int64{10, 100}]
	assert.True(t, ok)
}

func TestConcurrentRecordPlayHasOneWinner(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	result := redeemNth(t, fx, 10, 1)
	report := PlayReport{OTPlayID: result.OTPlayID, Country: "DE", City: "Berlin", IP: "203.0.113.7"}

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = fx.svc.RecordPlay(ctx, 10, report)
		}(i)
	}
	wg.Wait()

	var wins int
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, ErrAlreadyUsed)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Len(t, fx.plays.plays, 1)
}

func TestRecordPlayPremiumRate(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.cfg.cfg = &model.PlayConfiguration{FreeRate: 0.002, PremiumRate: 0.008}

	result := redeemNth(t, fx, 11, 1)
	play, err := fx.svc.RecordPlay(ctx, 11, PlayReport{OTPlayID: result.OTPlayID})
	require.NoError(t, err)
	assert.Equal(t, 0.008, play.PayoutAmount)
}

func TestRecordPlayUnknownIDIsNotFound(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.svc.RecordPlay(context.Background(), 10, PlayReport{OTPlayID: "nope"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordPlayForeignIDIsNotFound(t *testing.T) {
	fx := newFixture(t)
	result := redeemNth(t, fx, 10, 1)
	_, err := fx.svc.RecordPlay(context.Background(), 11, PlayReport{OTPlayID: result.OTPlayID})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordPlayExpired(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	result := redeemNth(t, fx, 10, 1)
	fx.accesses.setExpiry(result.OTPlayID, time.Now().Add(-time.Minute))

	_, err := fx.svc.RecordPlay(ctx, 10, PlayReport{OTPlayID: result.OTPlayID})
	assert.ErrorIs(t, err, ErrExpired)
	assert.Empty(t, fx.plays.plays)
}

func TestRecordPlayWithoutRedeemFails(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	issued, err := fx.svc.Issue(ctx, 10, 1)
	require.NoError(t, err)

	// The identifier exists but the token was never unwrapped.
	_, err = fx.svc.RecordPlay(ctx, 10, PlayReport{OTPlayID: issued.OTPlayID})
	assert.ErrorIs(t, err, ErrAlreadyUsed)
	assert.Empty(t, fx.plays.plays)
}

func TestIssueUnknownSongIsNotFound(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.svc.Issue(context.Background(), 10, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}
