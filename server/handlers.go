package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"RezoFM/config"
	"RezoFM/core/audio"
	"RezoFM/core/auth"
	"RezoFM/core/live"
	"RezoFM/core/stream"
	"RezoFM/logger"
	"RezoFM/repository"
)

// APIHandler 处理所有API请求
type APIHandler struct {
	userRepo       repository.UserRepository
	songRepo       repository.SongRepository
	adRepo         repository.AdRepository
	playRepo       repository.PlayRepository
	playCfgRepo    repository.PlayConfigRepository
	streamSvc      *stream.Service
	tracker        *live.Tracker
	audioProcessor *audio.FFmpegProcessor
	cfg            *config.Config
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(
	userRepo repository.UserRepository,
	songRepo repository.SongRepository,
	adRepo repository.AdRepository,
	playRepo repository.PlayRepository,
	playCfgRepo repository.PlayConfigRepository,
	streamSvc *stream.Service,
	tracker *live.Tracker,
	audioProcessor *audio.FFmpegProcessor,
	cfg *config.Config,
) *APIHandler {
	return &APIHandler{
		userRepo:       userRepo,
		songRepo:       songRepo,
		adRepo:         adRepo,
		playRepo:       playRepo,
		playCfgRepo:    playCfgRepo,
		streamSvc:      streamSvc,
		tracker:        tracker,
		audioProcessor: audioProcessor,
		cfg:            cfg,
	}
}

type contextKey string

const userIDKey contextKey = "userID"

// AuthMiddleware 验证JWT token并把用户ID写入请求上下文
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
			return
		}

		claims, err := auth.ParseToken(tokenString)
		if err != nil {
			logger.Warn("invalid token", logger.ErrorField(err))
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// GetUserIDFromContext 从请求上下文中取出用户ID
func GetUserIDFromContext(ctx context.Context) (int64, error) {
	userID, ok := ctx.Value(userIDKey).(int64)
	if !ok {
		return 0, fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// writeJSON 输出JSON响应
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", logger.ErrorField(err))
	}
}

// writeStreamError maps the stream service's sentinel errors onto HTTP
// statuses. Anything unrecognized is a 500 with a generic body.
func writeStreamError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, stream.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, stream.ErrAlreadyUsed):
		http.Error(w, "Already used", http.StatusBadRequest)
	case errors.Is(err, stream.ErrExpired):
		http.Error(w, "Expired", http.StatusGone)
	default:
		logger.Error("stream operation failed", logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// clientIP 提取请求方的IP，优先信任反向代理头
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
