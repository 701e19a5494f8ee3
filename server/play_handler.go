package server

import (
	"encoding/json"
	"net/http"
	"time"

	"RezoFM/core/stream"
	"RezoFM/logger"
)

// RecordPlayHandler converts a playback-completed report into a play count.
// The IP is taken from the connection, not the body. Retries of the same
// report are rejected without double counting.
// POST /api/play/count  body: {"uniqueOtplayId": "...", "country": "...", "city": "..."}
func (h *APIHandler) RecordPlayHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		OTPlayID string `json:"uniqueOtplayId"`
		Country  string `json:"country"`
		City     string `json:"city"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OTPlayID == "" {
		http.Error(w, "Missing uniqueOtplayId", http.StatusBadRequest)
		return
	}

	play, err := h.streamSvc.RecordPlay(r.Context(), userID, stream.PlayReport{
		OTPlayID: req.OTPlayID,
		Country:  req.Country,
		City:     req.City,
		IP:       clientIP(r),
	})
	if err != nil {
		writeStreamError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "recorded",
		"songId":       play.SongID,
		"payoutAmount": play.PayoutAmount,
	})
}

// ArtistStatsHandler 聚合艺术家的播放、收入和月听众数
// GET /api/artist/stats
func (h *APIHandler) ArtistStatsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.userRepo.GetUserByID(r.Context(), userID)
	if err != nil || user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if !user.IsArtist {
		http.Error(w, "Only artists have stats", http.StatusForbidden)
		return
	}

	stats, err := h.playRepo.ArtistStats(r.Context(), userID, time.Now())
	if err != nil {
		logger.Error("failed to aggregate artist stats", logger.Int64("artistId", userID), logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
