package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ActivePlayback 表示用户当前正在播放的歌曲
// Ephemeral only: superseded on every new stream request, expires with the song.
type ActivePlayback struct {
	SongID    int64     `json:"songId"`
	ArtistID  int64     `json:"artistId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// playbackKey 根据用户ID生成当前播放记录的Redis键
func playbackKey(userID int64) string {
	return fmt.Sprintf("playback:user:%d", userID)
}

// liveKey 根据艺术家ID生成在线听众集合的Redis键
func liveKey(artistID int64) string {
	return fmt.Sprintf("live:artist:%d", artistID)
}

// SetActivePlayback 更新用户的当前播放记录，替换之前的记录
// The per-artist sorted set is scored by expiry so stale listeners can be
// trimmed with a single ZREMRANGEBYSCORE. Returns the artist the user was
// previously listening to (0 when none or unchanged).
func SetActivePlayback(ctx context.Context, userID int64, pb ActivePlayback) (int64, error) {
	if RedisClient == nil {
		return 0, fmt.Errorf("Redis client not initialized")
	}

	key := playbackKey(userID)
	var prevArtist int64

	// 删除旧记录在旧艺术家集合中的成员
	prevJSON, err := RedisClient.Get(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("failed to get previous playback: %w", err)
	}
	if err == nil {
		var prev ActivePlayback
		if jsonErr := json.Unmarshal([]byte(prevJSON), &prev); jsonErr == nil && prev.ArtistID != pb.ArtistID {
			if remErr := RedisClient.ZRem(ctx, liveKey(prev.ArtistID), strconv.FormatInt(userID, 10)).Err(); remErr != nil {
				return 0, fmt.Errorf("failed to remove listener from previous artist set: %w", remErr)
			}
			prevArtist = prev.ArtistID
		}
	}

	ttl := time.Until(pb.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}

	pbJSON, err := json.Marshal(pb)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal playback record: %w", err)
	}

	if err := RedisClient.Set(ctx, key, pbJSON, ttl).Err(); err != nil {
		return 0, fmt.Errorf("failed to set playback record: %w", err)
	}

	err = RedisClient.ZAdd(ctx, liveKey(pb.ArtistID), redis.Z{
		Score:  float64(pb.ExpiresAt.Unix()),
		Member: strconv.FormatInt(userID, 10),
	}).Err()
	if err != nil {
		return 0, fmt.Errorf("failed to add listener to artist set: %w", err)
	}

	// 集合整体的过期时间随最长的播放记录滚动
	if err := RedisClient.Expire(ctx, liveKey(pb.ArtistID), 24*time.Hour).Err(); err != nil {
		return 0, fmt.Errorf("failed to set artist set expiration: %w", err)
	}

	return prevArtist, nil
}

// GetActivePlayback 获取用户的当前播放记录，不存在时返回 nil
func GetActivePlayback(ctx context.Context, userID int64) (*ActivePlayback, error) {
	if RedisClient == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}

	val, err := RedisClient.Get(ctx, playbackKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get playback record: %w", err)
	}

	var pb ActivePlayback
	if err := json.Unmarshal([]byte(val), &pb); err != nil {
		return nil, fmt.Errorf("failed to unmarshal playback record: %w", err)
	}
	return &pb, nil
}

// LiveListenerCount 返回艺术家当前的在线听众数量
// 先清理已过期的成员，再统计剩余数量。
func LiveListenerCount(ctx context.Context, artistID int64) (int64, error) {
	if RedisClient == nil {
		return 0, fmt.Errorf("Redis client not initialized")
	}

	key := liveKey(artistID)
	now := time.Now().Unix()

	if err := RedisClient.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(now, 10)).Err(); err != nil {
		return 0, fmt.Errorf("failed to trim expired listeners: %w", err)
	}

	count, err := RedisClient.ZCard(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to count live listeners: %w", err)
	}

	return count, nil
}
