package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"RezoFM/cache"
	"RezoFM/config"
	"RezoFM/core/ads"
	"RezoFM/core/audio"
	"RezoFM/core/auth"
	"RezoFM/core/live"
	"RezoFM/core/stream"
	"RezoFM/db"
	"RezoFM/logger"
	"RezoFM/model"
	"RezoFM/repository"
	"RezoFM/storage"

	"github.com/gorilla/mux"
)

// playbackTracker adapts the live tracker to the stream service's side-effect
// interface.
type playbackTracker struct {
	tracker *live.Tracker
}

func (p *playbackTracker) Started(ctx context.Context, userID int64, song *model.Song) {
	p.tracker.Started(ctx, userID, song)
}

// signer adapts the storage package to the stream service.
type signer struct{}

func (signer) PresignedGetURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return storage.PresignedGetURL(ctx, key, ttl)
}

func (signer) ObjectExists(ctx context.Context, key string) (bool, error) {
	return storage.ObjectExists(ctx, key)
}

// listenerStore backs the live tracker with the Redis cache.
type listenerStore struct{}

func (listenerStore) SetActivePlayback(ctx context.Context, userID int64, pb cache.ActivePlayback) (int64, error) {
	return cache.SetActivePlayback(ctx, userID, pb)
}

func (listenerStore) GetActivePlayback(ctx context.Context, userID int64) (*cache.ActivePlayback, error) {
	return cache.GetActivePlayback(ctx, userID)
}

func (listenerStore) LiveListenerCount(ctx context.Context, artistID int64) (int64, error) {
	return cache.LiveListenerCount(ctx, artistID)
}

// Start initializes and starts the HTTP server.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.InfoLevel,
		OutputPath: "logs/rezofm.log",
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	})

	auth.Configure(cfg.JWTSecret, cfg.JWTExpiry)

	// 设置服务器超时
	httpServer := &http.Server{
		Addr:         ":8080",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second, // 长轮询最长等待25秒
		IdleTimeout:  120 * time.Second,
	}

	// 初始化 MinIO 客户端
	if err := storage.InitMinio(cfg); err != nil {
		logger.Fatal("Failed to initialize MinIO", logger.ErrorField(err))
	}

	// Connect to the database
	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("Failed to connect to database", logger.ErrorField(err))
	}
	defer db.DB.Close()

	if err := db.InitDB(); err != nil {
		logger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}

	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Fatal("Failed to connect GORM", logger.ErrorField(err))
	}
	defer db.CloseGormDB()

	if err := db.AutoMigrateModels(
		&model.StreamAccess{},
		&model.PlayCount{},
		&model.PlayConfiguration{},
		&model.MonthlyListener{},
	); err != nil {
		logger.Fatal("Failed to migrate models", logger.ErrorField(err))
	}

	// Connect to Redis
	if err := cache.ConnectRedis(cfg); err != nil {
		logger.Fatal("Failed to connect to Redis", logger.ErrorField(err))
	}
	defer cache.CloseRedis()
	logger.Info("Successfully connected to Redis")

	audioProcessor := audio.NewFFmpegProcessor(cfg.FFmpegPath)

	userRepo := repository.NewMySQLUserRepository(db.DB)
	songRepo := repository.NewMySQLSongRepository(db.DB)
	adRepo := repository.NewMySQLAdRepository(db.DB)
	accessRepo := repository.NewGormStreamAccessRepository(db.GormDB)
	playRepo := repository.NewGormPlayRepository(db.GormDB)
	playCfgRepo := repository.NewGormPlayConfigRepository(db.GormDB)

	hub := live.NewHub()
	tracker := live.NewTracker(hub, listenerStore{})

	streamSvc := stream.NewService(
		accessRepo, playRepo, adRepo, songRepo, userRepo, playCfgRepo,
		signer{}, &playbackTracker{tracker: tracker},
		stream.Options{
			SignedURLTTL:       cfg.SignedURLTTL,
			AccessTokenTTL:     cfg.AccessTokenTTL,
			DefaultAdFrequency: cfg.DefaultAdFrequency,
			DefaultFreeRate:    cfg.DefaultFreeRate,
			DefaultPremiumRate: cfg.DefaultPremiumRate,
		},
	)

	apiHandler := NewAPIHandler(userRepo, songRepo, adRepo, playRepo, playCfgRepo,
		streamSvc, tracker, audioProcessor, cfg)

	// 广告投放目录监听
	watcherCtx, stopWatcher := context.WithCancel(context.Background())
	defer stopWatcher()
	adWatcher := ads.NewDropWatcher(cfg.AdDropDir, adRepo, audioProcessor)
	go func() {
		if err := adWatcher.Run(watcherCtx); err != nil {
			logger.Error("ad drop watcher stopped", logger.ErrorField(err))
		}
	}()

	// 使用 gorilla/mux 创建路由器
	router := mux.NewRouter()

	// 添加 CORS 中间件
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Range")
			w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// 用户认证相关的API端点
	router.HandleFunc("/api/auth/register", apiHandler.RegisterHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/login", apiHandler.LoginHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/user/preferences", apiHandler.AuthMiddleware(apiHandler.UpdatePreferencesHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/me/playback", apiHandler.AuthMiddleware(apiHandler.NowPlayingHandler)).Methods(http.MethodGet)

	// 歌曲与播放授权
	router.HandleFunc("/api/songs", apiHandler.AuthMiddleware(apiHandler.GetSongsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/songs", apiHandler.AuthMiddleware(apiHandler.UploadSongHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/songs/{id}/play", apiHandler.AuthMiddleware(apiHandler.IssuePlayHandler)).Methods(http.MethodGet)

	// 流解包
	router.HandleFunc("/stream/unwrap/{token}", apiHandler.AuthMiddleware(apiHandler.UnwrapHandler)).Methods(http.MethodGet)
	router.HandleFunc("/stream/s/{short_token}", apiHandler.AuthMiddleware(apiHandler.UnwrapShortHandler)).Methods(http.MethodGet)

	// 广告
	router.HandleFunc("/api/ads/submit", apiHandler.AuthMiddleware(apiHandler.SubmitAdHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/ads", apiHandler.AuthMiddleware(apiHandler.CreateAdHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/ads", apiHandler.AuthMiddleware(apiHandler.ListAdsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/ads/{id}/active", apiHandler.AuthMiddleware(apiHandler.SetAdActiveHandler)).Methods(http.MethodPut)

	// 播放计数与艺术家统计
	router.HandleFunc("/api/play/count", apiHandler.AuthMiddleware(apiHandler.RecordPlayHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/artist/stats", apiHandler.AuthMiddleware(apiHandler.ArtistStatsHandler)).Methods(http.MethodGet)

	// 在线听众
	router.HandleFunc("/api/artist/live-listeners", apiHandler.AuthMiddleware(apiHandler.LiveListenersHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/artist/live-listeners/poll", apiHandler.AuthMiddleware(apiHandler.LiveListenersPollHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/artist/live-listeners/ws", apiHandler.AuthMiddleware(apiHandler.LiveListenersWSHandler)).Methods(http.MethodGet)

	// 播放配置
	router.HandleFunc("/api/config/play", apiHandler.AuthMiddleware(apiHandler.GetPlayConfigHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/config/play", apiHandler.AuthMiddleware(apiHandler.UpdatePlayConfigHandler)).Methods(http.MethodPut)

	httpServer.Handler = router

	// 优雅关闭
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("Shutting down server...")

		stopWatcher()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server forced to shutdown", logger.ErrorField(err))
		}
	}()

	logger.Info("Server starting", logger.String("addr", httpServer.Addr))
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("Server failed", logger.ErrorField(err))
	}
	logger.Info("Server stopped")
}
