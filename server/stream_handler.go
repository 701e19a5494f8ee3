package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// UnwrapHandler exchanges a wrapper token for the stream payload or an ad
// detour. GET /stream/unwrap/{token}
func (h *APIHandler) UnwrapHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	token := mux.Vars(r)["token"]
	if token == "" {
		http.Error(w, "Missing token", http.StatusBadRequest)
		return
	}

	result, err := h.streamSvc.Redeem(r.Context(), userID, token, false)
	if err != nil {
		writeStreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// UnwrapShortHandler is the short-token form of UnwrapHandler, for clients
// with tight URL budgets. GET /stream/s/{short_token}
func (h *APIHandler) UnwrapShortHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	shortToken := mux.Vars(r)["short_token"]
	if shortToken == "" {
		http.Error(w, "Missing token", http.StatusBadRequest)
		return
	}

	result, err := h.streamSvc.Redeem(r.Context(), userID, shortToken, true)
	if err != nil {
		writeStreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
