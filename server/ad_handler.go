package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"RezoFM/logger"
	"RezoFM/model"

	"github.com/gorilla/mux"
)

// SubmitAdHandler acknowledges an ad and releases the gated stream.
// POST /api/ads/submit  body: {"submitId": "..."}
func (h *APIHandler) SubmitAdHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		SubmitID string `json:"submitId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SubmitID == "" {
		http.Error(w, "Missing submitId", http.StatusBadRequest)
		return
	}

	result, err := h.streamSvc.AcknowledgeAd(r.Context(), userID, req.SubmitID)
	if err != nil {
		writeStreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// CreateAdHandler registers a new audio advertisement.
// POST /api/ads
func (h *APIHandler) CreateAdHandler(w http.ResponseWriter, r *http.Request) {
	var ad model.AudioAd
	if err := json.NewDecoder(r.Body).Decode(&ad); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if ad.Title == "" || ad.AudioURL == "" {
		http.Error(w, "Title and audioUrl are required", http.StatusBadRequest)
		return
	}

	id, err := h.adRepo.CreateAd(r.Context(), &ad)
	if err != nil {
		logger.Error("failed to create ad", logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	ad.ID = id

	logger.Info("ad created", logger.Int64("adId", id), logger.String("title", ad.Title))
	writeJSON(w, http.StatusCreated, ad)
}

// ListAdsHandler 列出当前启用的广告
// GET /api/ads
func (h *APIHandler) ListAdsHandler(w http.ResponseWriter, r *http.Request) {
	ads, err := h.adRepo.GetAllActiveAds(r.Context())
	if err != nil {
		logger.Error("failed to list ads", logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ads)
}

// SetAdActiveHandler 启用或停用广告
// PUT /api/ads/{id}/active  body: {"active": true}
func (h *APIHandler) SetAdActiveHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid ad ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.adRepo.SetActive(r.Context(), id, req.Active); err != nil {
		logger.Error("failed to update ad", logger.Int64("adId", id), logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
