// Package main はcamselectサーバーコマンドの実装です
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"camselect/internal/config"
	"camselect/internal/logger"
	"camselect/internal/server"

	"github.com/gin-gonic/gin"
	// カメラドライバーを登録する
	_ "github.com/pion/mediadevices/pkg/driver/camera"
)

func main() {
	// コマンドラインオプション
	var (
		host      = flag.String("host", "", "サーバーのホスト (デフォルト: 0.0.0.0)")
		port      = flag.Int("port", 0, "サーバーのポート (デフォルト: 8080)")
		width     = flag.Int("width", -1, "プローブ時の希望幅 (0で指定なし, デフォルト: 1280)")
		height    = flag.Int("height", -1, "プローブ時の希望高さ (0で指定なし, デフォルト: 720)")
		direction = flag.String("direction", "", "最初に表示する向き front/rear (デフォルト: front)")
		help      = flag.Bool("help", false, "ヘルプを表示")
	)

	flag.Parse()

	// ヘルプ表示
	if *help {
		fmt.Println("camselect")
		fmt.Println()
		fmt.Println("使用方法:")
		fmt.Println("  server [オプション]")
		fmt.Println()
		fmt.Println("オプション:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	// 設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// コマンドラインオプションで設定を上書き
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *width >= 0 {
		cfg.Camera.PreferredWidth = *width
	}
	if *height >= 0 {
		cfg.Camera.PreferredHeight = *height
	}
	if *direction != "" {
		cfg.Camera.Direction = *direction
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("設定の検証に失敗しました: %v", err)
	}

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	appLogger := logger.New(cfg.Log.Level, cfg.Log.Format)

	// サーバーを作成
	srv, err := server.Build(cfg, appLogger)
	if err != nil {
		log.Fatalf("サーバーの作成に失敗しました: %v", err)
	}

	// コンテキストを作成
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// カメラの検出はサーバー起動と並行して行う
	go func() {
		if err := srv.InitializeCameras(ctx); err != nil {
			appLogger.Error("カメラを開始できませんでした", slog.Any("error", err))
		}
	}()

	// サーバーを起動
	appLogger.Info("camselect サーバーを起動します", slog.String("addr", cfg.ServerAddress()))
	if err := srv.Start(ctx); err != nil {
		log.Fatalf("サーバーの起動に失敗しました: %v", err)
	}
}
