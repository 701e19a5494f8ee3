package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"RezoFM/logger"
	"RezoFM/model"
	"RezoFM/storage"

	"github.com/gorilla/mux"
)

var nonAlphaNumeric = regexp.MustCompile(`[^a-zA-Z0-9_\-\.]`)
var multipleSpaces = regexp.MustCompile(`\s+`)

func generateSafeFilenamePrefix(title string) string {
	base := strings.TrimSpace(title)
	if base == "" {
		base = "Untitled_Song"
	}
	base = multipleSpaces.ReplaceAllString(base, "_")
	base = nonAlphaNumeric.ReplaceAllString(base, "")
	if len(base) > 150 {
		base = base[:150]
	}
	if base == "" {
		base = "fallback_filename"
	}
	return base
}

// UploadSongHandler handles audio file uploads and metadata.
// Expected multipart form fields:
// - songFile: the audio file (WAV, MP3, FLAC, etc.)
// - title: song title
// - coverFile: cover art image (JPEG, PNG, optional)
// - externalUrl: alternative to songFile, a URL hosted elsewhere
func (h *APIHandler) UploadSongHandler(w http.ResponseWriter, r *http.Request) {
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
		http.Error(w, "Only artists can upload songs", http.StatusForbidden)
		return
	}

	if err := r.ParseMultipartForm(64 << 20); err != nil { // 64MB max memory
		http.Error(w, fmt.Sprintf("Failed to parse multipart form: %v", err), http.StatusBadRequest)
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		http.Error(w, "Missing 'title' in form", http.StatusBadRequest)
		return
	}

	externalURL := strings.TrimSpace(r.FormValue("externalUrl"))

	song := &model.Song{
		ArtistID:    userID,
		Title:       title,
		ExternalURL: externalURL,
	}

	// 外链歌曲不需要上传文件
	if externalURL == "" {
		songFile, songHeader, err := r.FormFile("songFile")
		if err != nil {
			http.Error(w, "Missing 'songFile' in form", http.StatusBadRequest)
			return
		}
		defer songFile.Close()

		prefix := generateSafeFilenamePrefix(title)
		ext := filepath.Ext(songHeader.Filename)
		objectKey := fmt.Sprintf("songs/%d/%s_%d%s", userID, prefix, time.Now().Unix(), ext)

		if err := storage.Upload(r.Context(), objectKey, songFile, songHeader.Size, songHeader.Header.Get("Content-Type")); err != nil {
			logger.Error("failed to upload song file", logger.ErrorField(err))
			http.Error(w, "Failed to store song file", http.StatusInternalServerError)
			return
		}
		song.FilePath = objectKey
	}

	// 封面可选
	if coverFile, coverHeader, err := r.FormFile("coverFile"); err == nil {
		defer coverFile.Close()
		coverKey := fmt.Sprintf("covers/%d/%s_%d%s", userID,
			generateSafeFilenamePrefix(title), time.Now().Unix(), filepath.Ext(coverHeader.Filename))
		if upErr := storage.Upload(r.Context(), coverKey, coverFile, coverHeader.Size, coverHeader.Header.Get("Content-Type")); upErr != nil {
			logger.Warn("failed to upload cover art", logger.ErrorField(upErr))
		} else {
			song.CoverArtPath = coverKey
		}
	}

	songID, err := h.songRepo.CreateSong(r.Context(), song)
	if err != nil {
		logger.Error("failed to create song", logger.ErrorField(err))
		http.Error(w, "Failed to create song", http.StatusInternalServerError)
		return
	}
	song.ID = songID

	// 本地文件：后台生成低码率副本并探测时长。失败时直接使用原始文件。
	if song.FilePath != "" {
		go h.prepareVariants(songID, song.FilePath, title, userID)
	}

	logger.Info("song uploaded",
		logger.Int64("songId", songID),
		logger.Int64("artistId", userID),
		logger.String("title", title),
	)
	writeJSON(w, http.StatusCreated, song)
}

// prepareVariants downloads the original upload, probes its duration and
// transcodes the low-bitrate variant. Runs detached from the request; any
// failure leaves the song serving its original file.
func (h *APIHandler) prepareVariants(songID int64, objectKey, title string, userID int64) {
	ctx, cancel := repoContext()
	defer cancel()

	client := storage.GetMinioClient()
	if client == nil {
		logger.Error("minio client unavailable, skipping variant generation", logger.Int64("songId", songID))
		return
	}

	tmpDir, err := os.MkdirTemp("", "rezofm-transcode-*")
	if err != nil {
		logger.Error("failed to create temp dir for transcode", logger.ErrorField(err))
		return
	}
	defer os.RemoveAll(tmpDir)

	localOriginal := filepath.Join(tmpDir, "original"+filepath.Ext(objectKey))
	if err := downloadObject(ctx, objectKey, localOriginal); err != nil {
		logger.Error("failed to download original for transcode",
			logger.Int64("songId", songID), logger.ErrorField(err))
		return
	}

	duration, err := h.audioProcessor.GetAudioDuration(localOriginal)
	if err == nil && duration > 0 {
		if durErr := h.songRepo.UpdateDuration(ctx, songID, duration); durErr != nil {
			logger.Error("failed to store song duration", logger.Int64("songId", songID), logger.ErrorField(durErr))
		}
	}

	localVariant := filepath.Join(tmpDir, "low.mp3")
	if _, err := h.audioProcessor.TranscodeToBitrate(localOriginal, localVariant, h.cfg.AudioBitrate); err != nil {
		logger.Warn("low-bitrate transcode failed, serving original",
			logger.Int64("songId", songID), logger.ErrorField(err))
		return
	}

	variantKey := fmt.Sprintf("variants/%d/%s_%d_low.mp3", userID,
		generateSafeFilenamePrefix(title), time.Now().Unix())

	f, err := os.Open(localVariant)
	if err != nil {
		logger.Error("failed to open transcoded variant", logger.ErrorField(err))
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		logger.Error("failed to stat transcoded variant", logger.ErrorField(err))
		return
	}

	if err := storage.Upload(ctx, variantKey, f, info.Size(), "audio/mpeg"); err != nil {
		logger.Error("failed to upload low-bitrate variant",
			logger.Int64("songId", songID), logger.ErrorField(err))
		return
	}

	if err := h.songRepo.UpdateVariantPaths(ctx, songID, objectKey, variantKey); err != nil {
		logger.Error("failed to store variant paths",
			logger.Int64("songId", songID), logger.ErrorField(err))
		return
	}

	logger.Info("low-bitrate variant ready",
		logger.Int64("songId", songID),
		logger.String("variant", variantKey),
	)
}

// GetSongsHandler 列出当前用户（艺术家）的全部歌曲
func (h *APIHandler) GetSongsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	songs, err := h.songRepo.GetAllSongsByArtistID(r.Context(), userID)
	if err != nil {
		logger.Error("failed to list songs", logger.Int64("artistId", userID), logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, songs)
}

// IssuePlayHandler hands out a wrapper token for a song. The response carries
// both token forms and the one-time play identifier; the actual stream URL is
// only revealed at unwrap time.
func (h *APIHandler) IssuePlayHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	songID, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid song ID", http.StatusBadRequest)
		return
	}

	result, err := h.streamSvc.Issue(r.Context(), userID, songID)
	if err != nil {
		writeStreamError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// repoContext is the detached context used by background variant work.
func repoContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Minute)
}

// downloadObject streams a MinIO object to a local file.
func downloadObject(ctx context.Context, objectKey, localPath string) error {
	obj, err := storage.GetObject(ctx, objectKey)
	if err != nil {
		return err
	}
	defer obj.Close()

	out, err := os.Create(localPath)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, obj)
	return err
}
