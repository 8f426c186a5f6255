package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"camselect/internal/camera"
	"camselect/internal/config"
	"camselect/internal/logger"
	"camselect/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Server はHTTPサーバーを管理する構造体
type Server struct {
	config     *config.Config
	manager    *camera.Manager
	renderer   *camera.MJPEGRenderer
	logger     *slog.Logger
	router     *gin.Engine
	httpServer *http.Server
}

// New は新しいServerインスタンスを作成する
func New(cfg *config.Config, manager *camera.Manager, renderer *camera.MJPEGRenderer, m *metrics.Metrics, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.RequestLogger(log))
	router.Use(metrics.RequestMiddleware(m))

	s := &Server{
		config:   cfg,
		manager:  manager,
		renderer: renderer,
		logger:   log,
		router:   router,
		httpServer: &http.Server{
			Addr:         cfg.ServerAddress(),
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	h := &CameraHandler{
		config:   cfg,
		manager:  manager,
		renderer: renderer,
		logger:   log,
	}
	s.setupRoutes(h, m)

	return s
}

// setupRoutes はHTTPルートを設定する
func (s *Server) setupRoutes(h *CameraHandler, m *metrics.Metrics) {
	// ヘルスチェックエンドポイント
	s.router.GET("/health", h.HealthCheck)

	// APIエンドポイント
	api := s.router.Group("/api")
	{
		api.GET("/status", h.GetStatus)
		api.GET("/cameras", h.GetCameras)
		api.POST("/cameras/initialize", h.InitializeCameras)
		api.POST("/cameras/view", h.ViewCamera)
		api.POST("/cameras/toggle", h.ToggleCamera)
		api.POST("/cameras/switch", h.SwitchCamera)
		api.GET("/stream", h.GetStream)
	}

	// メトリクス
	s.router.GET("/metrics", gin.WrapH(m.Handler(func() {
		m.SetCameras(len(s.manager.FrontCameras()), len(s.manager.RearCameras()))
	})))

	// ビューア
	s.router.GET("/", serveIndex)
}

// Build は設定からホストのキャプチャ機能を使うサーバーを組み立てる
// カメラドライバーの登録は呼び出し側で行う
func Build(cfg *config.Config, log *slog.Logger) (*Server, error) {
	direction, err := camera.ParseDirection(cfg.Camera.Direction)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	manager := camera.NewManager(camera.NewPionMediaDevices(),
		camera.WithPreferredResolution(
			camera.ExactRange(cfg.Camera.PreferredWidth),
			camera.ExactRange(cfg.Camera.PreferredHeight),
		),
		camera.WithDirection(direction),
		camera.WithLogger(log),
		camera.WithRecorder(m),
	)
	renderer := camera.NewMJPEGRenderer(cfg.Camera.JPEGQuality, cfg.Camera.FrameInterval, log)

	return New(cfg, manager, renderer, m, log), nil
}

// InitializeCameras はカメラを検出し、見つかったカメラの表示を始める
func (s *Server) InitializeCameras(ctx context.Context) error {
	if err := s.manager.Initialize(ctx); err != nil {
		return fmt.Errorf("カメラの検出に失敗: %w", err)
	}
	if err := s.manager.ViewCameraStream(ctx, s.renderer, nil); err != nil {
		return fmt.Errorf("カメラの表示に失敗: %w", err)
	}
	return nil
}

// Handler はルーティング済みのhttp.Handlerを返す
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start はサーバーを起動する
func (s *Server) Start(ctx context.Context) error {
	// シャットダウン用のチャンネル
	shutdownCh := make(chan error, 1)

	// サーバーを別ゴルーチンで起動
	go func() {
		s.logger.Info("HTTPサーバーを起動しています", slog.String("addr", s.config.ServerAddress()))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			shutdownCh <- fmt.Errorf("サーバーの起動に失敗: %w", err)
		}
	}()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// コンテキストかシグナルを待つ
	select {
	case <-ctx.Done():
		s.logger.Info("コンテキストがキャンセルされました")
	case sig := <-sigCh:
		s.logger.Info("シグナルを受信しました", slog.String("signal", sig.String()))
	case err := <-shutdownCh:
		return err
	}

	// グレースフルシャットダウン
	return s.Shutdown()
}

// Shutdown はサーバーをグレースフルにシャットダウンし、配信中のストリームを解放する
func (s *Server) Shutdown() error {
	s.logger.Info("サーバーをシャットダウンしています...")

	// 5秒のタイムアウトを設定
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 配信中のクライアントが残っているとShutdownが終わらないため、先に配信を止める
	if err := s.manager.Close(); err != nil {
		s.logger.Warn("ストリームの解放に失敗", slog.Any("error", err))
	}
	s.renderer.Close()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("サーバーのシャットダウンに失敗: %w", err)
	}

	s.logger.Info("サーバーが正常にシャットダウンされました")
	return nil
}
