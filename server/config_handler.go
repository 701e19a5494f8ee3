package server

import (
	"encoding/json"
	"net/http"

	"RezoFM/logger"
	"RezoFM/model"
)

// GetPlayConfigHandler returns the effective pay-rate configuration,
// falling back to the environment defaults when no row exists yet.
// GET /api/config/play
func (h *APIHandler) GetPlayConfigHandler(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.playCfgRepo.Latest(r.Context())
	if err != nil {
		logger.Error("failed to load play configuration", logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if cfg == nil {
		cfg = &model.PlayConfiguration{
			FreeRate:    h.cfg.DefaultFreeRate,
			PremiumRate: h.cfg.DefaultPremiumRate,
			AdFrequency: h.cfg.DefaultAdFrequency,
		}
	}
	writeJSON(w, http.StatusOK, cfg)
}

// UpdatePlayConfigHandler stores a new pay-rate configuration row.
// PUT /api/config/play
func (h *APIHandler) UpdatePlayConfigHandler(w http.ResponseWriter, r *http.Request) {
	var cfg model.PlayConfiguration
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if cfg.FreeRate < 0 || cfg.PremiumRate < 0 || cfg.AdFrequency < 0 {
		http.Error(w, "Rates and ad frequency must be non-negative", http.StatusBadRequest)
		return
	}

	cfg.ID = 0 // 追加新行，保留历史配置
	if err := h.playCfgRepo.Save(r.Context(), &cfg); err != nil {
		logger.Error("failed to save play configuration", logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	logger.Info("play configuration updated",
		logger.Float64("freeRate", cfg.FreeRate),
		logger.Float64("premiumRate", cfg.PremiumRate),
		logger.Int("adFrequency", cfg.AdFrequency),
	)
	writeJSON(w, http.StatusOK, cfg)
}
