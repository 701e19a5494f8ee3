package server

import (
	"net/http"
	"strconv"
	"time"

	"RezoFM/logger"

	"github.com/gorilla/websocket"
)

var liveUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS 已在路由中间件处理
	},
}

// NowPlayingHandler returns the user's current active playback, if any.
// GET /api/me/playback
func (h *APIHandler) NowPlayingHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	pb, err := h.tracker.NowPlaying(r.Context(), userID)
	if err != nil {
		logger.Error("failed to load active playback", logger.Int64("userId", userID), logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if pb == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"playing": false})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"playing":   true,
		"songId":    pb.SongID,
		"artistId":  pb.ArtistID,
		"expiresAt": pb.ExpiresAt,
	})
}

// liveArtistID resolves which artist's listeners are being asked about:
// an explicit artistId query parameter, or the authenticated artist themself.
func (h *APIHandler) liveArtistID(r *http.Request) (int64, error) {
	if raw := r.URL.Query().Get("artistId"); raw != "" {
		return strconv.ParseInt(raw, 10, 64)
	}
	return GetUserIDFromContext(r.Context())
}

// LiveListenersHandler returns the artist's current live-listener count.
// GET /api/artist/live-listeners[?artistId=N]
func (h *APIHandler) LiveListenersHandler(w http.ResponseWriter, r *http.Request) {
	artistID, err := h.liveArtistID(r)
	if err != nil {
		http.Error(w, "Invalid artist ID", http.StatusBadRequest)
		return
	}

	count, err := h.tracker.Count(r.Context(), artistID)
	if err != nil {
		logger.Error("failed to count live listeners", logger.Int64("artistId", artistID), logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"liveListeners": count})
}

// LiveListenersPollHandler long-polls until the count changes or the wait
// budget runs out. The client passes the last count it saw.
// GET /api/artist/live-listeners/poll?last=N[&artistId=N]
func (h *APIHandler) LiveListenersPollHandler(w http.ResponseWriter, r *http.Request) {
	artistID, err := h.liveArtistID(r)
	if err != nil {
		http.Error(w, "Invalid artist ID", http.StatusBadRequest)
		return
	}

	last, err := strconv.ParseInt(r.URL.Query().Get("last"), 10, 64)
	if err != nil {
		last = -1 // 第一次轮询必定立即返回
	}

	count, changed, err := h.tracker.Poll(r.Context(), artistID, last)
	if err != nil {
		if r.Context().Err() != nil {
			return // 客户端已断开
		}
		logger.Error("live-listener poll failed", logger.Int64("artistId", artistID), logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"liveListeners": count,
		"changed":       changed,
	})
}

// LiveListenersWSHandler pushes count updates over a websocket. Each update
// is a small JSON frame; unchanged samples are not sent.
// GET /api/artist/live-listeners/ws[?artistId=N]
func (h *APIHandler) LiveListenersWSHandler(w http.ResponseWriter, r *http.Request) {
	artistID, err := h.liveArtistID(r)
	if err != nil {
		http.Error(w, "Invalid artist ID", http.StatusBadRequest)
		return
	}

	conn, err := liveUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}
	defer conn.Close()

	// 读循环只用于检测断开
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ctx := r.Context()
	last := int64(-1)
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		default:
		}

		count, changed, err := h.tracker.Poll(ctx, artistID, last)
		if err != nil {
			return
		}
		if changed {
			last = count
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(map[string]int64{"liveListeners": count}); err != nil {
				return
			}
		} else {
			// 空转保活
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
