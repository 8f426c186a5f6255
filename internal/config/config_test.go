package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestConfigLoad は設定の読み込みをテストする
func TestConfigLoad(t *testing.T) {
	t.Setenv("CAMSELECT_CONFIG", "")

	// 設定を読み込む
	cfg, err := Load()
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// 基本的な設定値を検証
	if cfg == nil {
		t.Fatal("設定がnilです")
	}

	// サーバー設定の検証
	if cfg.Server.Host == "" {
		t.Error("サーバーホストが設定されていません")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		t.Errorf("無効なポート番号: %d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout <= 0 {
		t.Error("読み込みタイムアウトが設定されていません")
	}
	// WriteTimeout は 0（無効）でも正常
	if cfg.Server.WriteTimeout < 0 {
		t.Error("書き込みタイムアウトが負の値です")
	}

	// カメラ設定の検証
	if cfg.Camera.PreferredWidth <= 0 {
		t.Error("希望幅が設定されていません")
	}
	if cfg.Camera.PreferredHeight <= 0 {
		t.Error("希望高さが設定されていません")
	}
	if cfg.Camera.JPEGQuality <= 0 {
		t.Error("JPEG品質が設定されていません")
	}
}

// TestConfigValidation は設定の検証をテストする
func TestConfigValidation(t *testing.T) {
	testCases := []struct {
		name      string
		modify    func(c *Config)
		expectErr bool
	}{
		{
			name:      "正常な設定",
			modify:    func(c *Config) {},
			expectErr: false,
		},
		{
			name:      "無効なポート番号",
			modify:    func(c *Config) { c.Server.Port = 99999 },
			expectErr: true,
		},
		{
			name:      "解像度指定なし",
			modify:    func(c *Config) { c.Camera.PreferredWidth, c.Camera.PreferredHeight = 0, 0 },
			expectErr: false,
		},
		{
			name:      "負の幅",
			modify:    func(c *Config) { c.Camera.PreferredWidth = -1 },
			expectErr: true,
		},
		{
			name:      "無効な向き",
			modify:    func(c *Config) { c.Camera.Direction = "side" },
			expectErr: true,
		},
		{
			name:      "背面から開始",
			modify:    func(c *Config) { c.Camera.Direction = "rear" },
			expectErr: false,
		},
		{
			name:      "背面の別名",
			modify:    func(c *Config) { c.Camera.Direction = "back" },
			expectErr: false,
		},
		{
			name:      "向きの別名（environment）",
			modify:    func(c *Config) { c.Camera.Direction = "environment" },
			expectErr: false,
		},
		{
			name:      "無効なJPEG品質",
			modify:    func(c *Config) { c.Camera.JPEGQuality = 101 },
			expectErr: true,
		},
		{
			name:      "負のフレーム間隔",
			modify:    func(c *Config) { c.Camera.FrameInterval = -time.Second },
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.modify(cfg)

			err := cfg.Validate()
			if tc.expectErr && err == nil {
				t.Error("エラーが期待されましたが、エラーが発生しませんでした")
			}
			if !tc.expectErr && err != nil {
				t.Errorf("予期しないエラーが発生しました: %v", err)
			}
		})
	}
}

// TestServerAddress はサーバーアドレスの生成をテストする
func TestServerAddress(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{
			Host: "192.168.1.100",
			Port: 9090,
		},
	}

	expected := "192.168.1.100:9090"
	actual := cfg.ServerAddress()

	if actual != expected {
		t.Errorf("サーバーアドレスが一致しません: got %s, want %s", actual, expected)
	}
}

// TestEnvironmentVariables は環境変数の処理をテストする
func TestEnvironmentVariables(t *testing.T) {
	t.Setenv("CAMSELECT_CONFIG", "")
	t.Setenv("SERVER_HOST", "test.example.com")
	t.Setenv("PORT", "9999")
	t.Setenv("CAMERA_WIDTH", "640")
	t.Setenv("CAMERA_HEIGHT", "480")
	t.Setenv("CAMERA_FRAME_INTERVAL", "100ms")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CAMERA_DIRECTION", "back")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	if cfg.Server.Host != "test.example.com" {
		t.Errorf("環境変数のホストが反映されていません: got %s, want test.example.com", cfg.Server.Host)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("環境変数のポートが反映されていません: got %d, want 9999", cfg.Server.Port)
	}
	if cfg.Camera.PreferredWidth != 640 || cfg.Camera.PreferredHeight != 480 {
		t.Errorf("環境変数の解像度が反映されていません: got %dx%d", cfg.Camera.PreferredWidth, cfg.Camera.PreferredHeight)
	}
	if cfg.Camera.FrameInterval != 100*time.Millisecond {
		t.Errorf("環境変数のフレーム間隔が反映されていません: got %s", cfg.Camera.FrameInterval)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("環境変数のログレベルが反映されていません: got %s", cfg.Log.Level)
	}
	if cfg.Camera.Direction != "back" {
		t.Errorf("環境変数の向きが反映されていません: got %s", cfg.Camera.Direction)
	}
}

// TestLoadFile はYAML設定ファイルの読み込みをテストする
func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "camselect.yaml")
	content := `server:
  host: 127.0.0.1
  port: 8181
camera:
  preferred_width: 1920
  preferred_height: 1080
  direction: rear
log:
  format: text
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("設定ファイルの作成に失敗しました: %v", err)
	}

	t.Setenv("CAMSELECT_CONFIG", path)
	t.Setenv("PORT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	if cfg.ServerAddress() != "127.0.0.1:8181" {
		t.Errorf("ファイルのアドレスが反映されていません: got %s", cfg.ServerAddress())
	}
	if cfg.Camera.PreferredWidth != 1920 || cfg.Camera.Direction != "rear" {
		t.Errorf("ファイルのカメラ設定が反映されていません: %+v", cfg.Camera)
	}
	// ファイルで指定していない項目はデフォルト値のまま
	if cfg.Camera.JPEGQuality != 80 {
		t.Errorf("デフォルトのJPEG品質が失われています: got %d", cfg.Camera.JPEGQuality)
	}
	if cfg.Log.Format != "text" || cfg.Log.Level != "info" {
		t.Errorf("ログ設定が正しくありません: %+v", cfg.Log)
	}
}

// TestLoadFile_Missing は存在しない設定ファイルを指定した場合をテストする
func TestLoadFile_Missing(t *testing.T) {
	t.Setenv("CAMSELECT_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Error("存在しない設定ファイルでエラーが期待されました")
	}
}
