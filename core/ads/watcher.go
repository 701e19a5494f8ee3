package ads

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"RezoFM/core/audio"
	"RezoFM/logger"
	"RezoFM/model"
	"RezoFM/repository"
	"RezoFM/storage"

	"github.com/fsnotify/fsnotify"
)

// DropWatcher 监听广告投放目录，把新落盘的音频文件自动入库
// 架构：fsnotify 监听 → ffprobe 探测时长 → MinIO 上传 → audio_ads 入库
type DropWatcher struct {
	dir       string
	repo      repository.AdRepository
	processor audio.Processor
}

// NewDropWatcher 创建广告目录监听器
func NewDropWatcher(dir string, repo repository.AdRepository, processor audio.Processor) *DropWatcher {
	return &DropWatcher{dir: dir, repo: repo, processor: processor}
}

// isAudioFile 判断是否为支持的广告音频格式
func isAudioFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp3", ".aac", ".m4a", ".ogg", ".wav", ".flac":
		return true
	}
	return false
}

// Run watches the drop directory until ctx is cancelled. It returns an error
// only when the watcher itself cannot be set up.
func (w *DropWatcher) Run(ctx context.Context) error {
	if w.dir == "" {
		logger.Info("ad drop directory not configured, watcher disabled")
		return nil
	}
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return err
	}

	logger.Info("ad drop watcher started", logger.String("dir", w.dir))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create == fsnotify.Create && isAudioFile(event.Name) {
				// 等待写入完成再处理，避免读到半个文件
				go w.ingestLater(ctx, event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("ad drop watcher error", logger.ErrorField(err))
		}
	}
}

// ingestLater waits for the file size to settle, then ingests it.
func (w *DropWatcher) ingestLater(ctx context.Context, path string) {
	var lastSize int64 = -1
	for i := 0; i < 30; i++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.Size() == lastSize {
			break
		}
		lastSize = info.Size()
	}

	if err := w.ingest(ctx, path); err != nil {
		logger.Error("failed to ingest dropped ad",
			logger.String("path", path),
			logger.ErrorField(err),
		)
	}
}

// ingest 上传广告音频并写入广告库，入库后删除本地文件
func (w *DropWatcher) ingest(ctx context.Context, path string) error {
	duration, err := w.processor.GetAudioDuration(path)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	key := "ads/" + filepath.Base(path)
	if err := storage.Upload(ctx, key, f, info.Size(), "audio/mpeg"); err != nil {
		return err
	}

	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	ad := &model.AudioAd{
		Title:    title,
		AudioURL: key,
		Duration: duration,
		Active:   true,
	}
	adID, err := w.repo.CreateAd(ctx, ad)
	if err != nil {
		return err
	}

	logger.Info("ingested dropped ad",
		logger.String("title", title),
		logger.Int64("adId", adID),
		logger.Float64("duration", float64(duration)),
	)

	if err := os.Remove(path); err != nil {
		logger.Warn("failed to remove ingested ad file", logger.String("path", path), logger.ErrorField(err))
	}
	return nil
}
