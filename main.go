package main

import (
	"context"
	"log"
	"log/slog"

	"camselect/internal/config"
	"camselect/internal/logger"
	"camselect/internal/server"

	// カメラドライバーを登録する
	_ "github.com/pion/mediadevices/pkg/driver/camera"
)

func main() {
	// 設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
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
	if err := srv.Start(ctx); err != nil {
		log.Fatalf("サーバーの起動に失敗しました: %v", err)
	}
}
