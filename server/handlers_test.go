package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"RezoFM/core/auth"
	"RezoFM/core/stream"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteStreamErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{stream.ErrNotFound, http.StatusNotFound},
		{stream.ErrAlreadyUsed, http.StatusBadRequest},
		{stream.ErrExpired, http.StatusGone},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeStreamError(rec, tc.err)
		assert.Equal(t, tc.want, rec.Code, "error %v", tc.err)
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/play/count", nil)
	r.RemoteAddr = "198.51.100.4:51234"
	assert.Equal(t, "198.51.100.4", clientIP(r))

	r.Header.Set("X-Real-IP", "203.0.113.9")
	assert.Equal(t, "203.0.113.9", clientIP(r))

	r.Header.Set("X-Forwarded-For", "192.0.2.1, 10.0.0.1")
	assert.Equal(t, "192.0.2.1", clientIP(r))
}

func TestAuthMiddleware(t *testing.T) {
	auth.Configure("test-secret", time.Hour)
	h := &APIHandler{}

	var gotUserID int64
	wrapped := h.AuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		id, err := GetUserIDFromContext(r.Context())
		require.NoError(t, err)
		gotUserID = id
		w.WriteHeader(http.StatusOK)
	})

	// Missing header.
	rec := httptest.NewRecorder()
	wrapped(rec, httptest.NewRequest(http.MethodGet, "/api/songs", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Malformed header.
	rec = httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/songs", nil)
	r.Header.Set("Authorization", "not-a-bearer-token")
	wrapped(rec, r)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Garbage token.
	rec = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodGet, "/api/songs", nil)
	r.Header.Set("Authorization", "Bearer garbage")
	wrapped(rec, r)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid token carries the user ID into the handler context.
	token, err := auth.GenerateToken(77, "tester")
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodGet, "/api/songs", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	wrapped(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(77), gotUserID)
}
