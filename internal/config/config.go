package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"camselect/internal/camera"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server ServerConfig `yaml:"server"`
	Camera CameraConfig `yaml:"camera"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host"` // リッスンするホスト
	Port int    `yaml:"port"` // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // 読み込みタイムアウト
	WriteTimeout time.Duration `yaml:"write_timeout"` // 書き込みタイムアウト
}

// CameraConfig はカメラ関連の設定
type CameraConfig struct {
	// プローブ時の希望解像度
	PreferredWidth  int `yaml:"preferred_width"`
	PreferredHeight int `yaml:"preferred_height"`

	// 最初に表示する向き ("front"/"user" または "rear"/"back"/"environment")
	Direction string `yaml:"direction"`

	// MJPEG配信の設定
	JPEGQuality   int           `yaml:"jpeg_quality"`   // JPEG品質 (1-100)
	FrameInterval time.Duration `yaml:"frame_interval"` // フレーム間隔
}

// LogConfig はログの設定
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json または text
}

// Load は設定を読み込む
// デフォルト値、設定ファイル（CAMSELECT_CONFIG）、環境変数の順に上書きする
func Load() (*Config, error) {
	// .env がなくてもエラーにしない
	_ = godotenv.Load()

	cfg := Default()

	if path := os.Getenv("CAMSELECT_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// Default はデフォルト設定を返す
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 0, // ストリーミング用にタイムアウト無効化
		},
		Camera: CameraConfig{
			PreferredWidth:  1280,
			PreferredHeight: 720,
			Direction:       "front",
			JPEGQuality:     80,
			FrameInterval:   66 * time.Millisecond,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadFile はYAMLの設定ファイルを読み込む
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("設定ファイルが見つかりません: %s", path)
		}
		return fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("設定ファイルの解析に失敗: %w", err)
	}
	return nil
}

// applyEnv は環境変数で設定を上書きする
func (c *Config) applyEnv() {
	c.Server.Host = getEnvOrDefault("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvAsIntOrDefault("PORT", c.Server.Port)
	c.Camera.PreferredWidth = getEnvAsIntOrDefault("CAMERA_WIDTH", c.Camera.PreferredWidth)
	c.Camera.PreferredHeight = getEnvAsIntOrDefault("CAMERA_HEIGHT", c.Camera.PreferredHeight)
	c.Camera.Direction = getEnvOrDefault("CAMERA_DIRECTION", c.Camera.Direction)
	c.Camera.JPEGQuality = getEnvAsIntOrDefault("CAMERA_JPEG_QUALITY", c.Camera.JPEGQuality)
	c.Camera.FrameInterval = getEnvAsDurationOrDefault("CAMERA_FRAME_INTERVAL", c.Camera.FrameInterval)
	c.Log.Level = getEnvOrDefault("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnvOrDefault("LOG_FORMAT", c.Log.Format)
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	// サーバー設定の検証
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("無効なポート番号: %d", c.Server.Port)
	}

	// カメラ設定の検証（0は解像度指定なし）
	if c.Camera.PreferredWidth < 0 || c.Camera.PreferredWidth > 8192 {
		return fmt.Errorf("無効な幅: %d", c.Camera.PreferredWidth)
	}
	if c.Camera.PreferredHeight < 0 || c.Camera.PreferredHeight > 8192 {
		return fmt.Errorf("無効な高さ: %d", c.Camera.PreferredHeight)
	}
	if _, err := camera.ParseDirection(c.Camera.Direction); err != nil {
		return err
	}
	if c.Camera.JPEGQuality < 1 || c.Camera.JPEGQuality > 100 {
		return fmt.Errorf("無効なJPEG品質: %d", c.Camera.JPEGQuality)
	}
	if c.Camera.FrameInterval < 0 {
		return fmt.Errorf("無効なフレーム間隔: %s", c.Camera.FrameInterval)
	}

	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvAsDurationOrDefault は環境変数を時間として取得する（例: 100ms）
func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
