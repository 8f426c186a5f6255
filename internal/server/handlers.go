package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"camselect/internal/camera"
	"camselect/internal/config"

	"github.com/gin-gonic/gin"
)

// CameraHandler はカメラ選択APIのハンドラー
type CameraHandler struct {
	config   *config.Config
	manager  *camera.Manager
	renderer *camera.MJPEGRenderer
	logger   *slog.Logger
}

// ErrorResponse はエラーレスポンス
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Details   *string   `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthResponse はヘルスチェックのレスポンス
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ServerInfo はサーバー情報
type ServerInfo struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// StatusResponse はシステム状態のレスポンス
type StatusResponse struct {
	Status                    string       `json:"status"`
	Server                    ServerInfo   `json:"server"`
	State                     camera.State `json:"state"`
	CanToggleLenses           bool         `json:"can_toggle_lenses"`
	CanSwitchCameraDirections bool         `json:"can_switch_camera_directions"`
	Timestamp                 time.Time    `json:"timestamp"`
}

// CamerasResponse はカメラ一覧のレスポンス
type CamerasResponse struct {
	Cameras      []camera.Descriptor `json:"cameras"`
	FrontCameras []camera.Descriptor `json:"front_cameras"`
	RearCameras  []camera.Descriptor `json:"rear_cameras"`
	Current      *camera.Descriptor  `json:"current,omitempty"`
}

// ViewRequest はカメラ表示リクエスト
type ViewRequest struct {
	DeviceID string `json:"device_id"`
}

// HealthCheck はヘルスチェックエンドポイントの実装
func (h *CameraHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	})
}

// GetStatus はシステム状態取得エンドポイントの実装
func (h *CameraHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.status())
}

// GetCameras はカメラ一覧取得エンドポイントの実装
func (h *CameraHandler) GetCameras(c *gin.Context) {
	state := h.manager.State()
	c.JSON(http.StatusOK, CamerasResponse{
		Cameras:      state.AllCameras,
		FrontCameras: state.FrontCameras,
		RearCameras:  state.RearCameras,
		Current:      state.CurrCamera,
	})
}

// InitializeCameras はカメラを再検出し、見つかったカメラの表示を始める
func (h *CameraHandler) InitializeCameras(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.manager.Initialize(ctx); err != nil {
		h.respondCameraError(c, err)
		return
	}
	if err := h.manager.ViewCameraStream(ctx, h.renderer, nil); err != nil {
		h.respondCameraError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.status())
}

// ViewCamera は指定されたカメラ（省略時は現在のカメラ）を表示する
func (h *CameraHandler) ViewCamera(c *gin.Context) {
	var req ViewRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, http.StatusBadRequest, "invalid_request", "リクエストの形式が正しくありません")
		return
	}
	if !h.ready(c) {
		return
	}

	var device *camera.Descriptor
	if req.DeviceID != "" {
		d, found := h.manager.FindCamera(req.DeviceID)
		if !found {
			respondError(c, http.StatusNotFound, "camera_not_found", "指定されたカメラが見つかりません")
			return
		}
		device = &d
	}

	if err := h.manager.ViewCameraStream(c.Request.Context(), h.renderer, device); err != nil {
		h.respondCameraError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.status())
}

// ToggleCamera は同じ向きの次のレンズに切り替える
func (h *CameraHandler) ToggleCamera(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	if !h.manager.CanToggleLenses() {
		respondError(c, http.StatusConflict, "cannot_toggle", "同じ向きに切り替え可能なカメラがありません")
		return
	}
	h.navigate(c, h.manager.ToggleCurrentCamera)
}

// SwitchCamera は前面と背面を切り替える
func (h *CameraHandler) SwitchCamera(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	if !h.manager.CanSwitchCameraDirections() {
		respondError(c, http.StatusConflict, "cannot_switch", "前面と背面の両方のカメラが必要です")
		return
	}
	h.navigate(c, h.manager.SwitchCameraDirection)
}

// GetStream はMJPEGストリーミングエンドポイントの実装
func (h *CameraHandler) GetStream(c *gin.Context) {
	if !h.manager.IsStreaming() {
		respondError(c, http.StatusServiceUnavailable, "not_streaming", "配信中のカメラがありません")
		return
	}
	h.streamMJPEG(c)
}

// ヘルパー関数

func (h *CameraHandler) navigate(c *gin.Context, op func(ctx context.Context, target camera.Renderer) error) {
	if err := op(c.Request.Context(), h.renderer); err != nil {
		h.respondCameraError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.status())
}

// ready は検出中でなければtrueを返す。検出中なら503を返す
func (h *CameraHandler) ready(c *gin.Context) bool {
	if h.manager.IsLoading() {
		respondError(c, http.StatusServiceUnavailable, "loading", "カメラの検出中です")
		return false
	}
	return true
}

func (h *CameraHandler) status() StatusResponse {
	return StatusResponse{
		Status: "running",
		Server: ServerInfo{
			Host: h.config.Server.Host,
			Port: h.config.Server.Port,
		},
		State:                     h.manager.State(),
		CanToggleLenses:           h.manager.CanToggleLenses(),
		CanSwitchCameraDirections: h.manager.CanSwitchCameraDirections(),
		Timestamp:                 time.Now(),
	}
}

// respondCameraError はカメラ操作のエラーをステータスコードに変換して返す
func (h *CameraHandler) respondCameraError(c *gin.Context, err error) {
	status, code := cameraErrorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("カメラ操作に失敗", slog.String("path", c.FullPath()), slog.Any("error", err))
	}

	details := err.Error()
	c.JSON(status, ErrorResponse{
		Error:     code,
		Message:   cameraErrorMessage(err),
		Details:   &details,
		Timestamp: time.Now(),
	})
}

// cameraErrorStatus はエラーに対応するHTTPステータスとエラーコードを返す
func cameraErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, camera.ErrAlreadyLoading):
		return http.StatusConflict, "already_loading"
	case errors.Is(err, camera.ErrUnsupportedPlatform):
		return http.StatusServiceUnavailable, "unsupported_platform"
	case errors.Is(err, camera.ErrPermissionDenied):
		return http.StatusForbidden, "permission_denied"
	case errors.Is(err, camera.ErrNoDevicesFound):
		return http.StatusNotFound, "no_devices_found"
	case errors.Is(err, camera.ErrNoCameras):
		return http.StatusNotFound, "no_cameras"
	case errors.Is(err, camera.ErrStreamAcquisition):
		return http.StatusBadGateway, "stream_acquisition_failed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "canceled"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// cameraErrorMessage は利用者向けのメッセージを返す
func cameraErrorMessage(err error) string {
	for _, sentinel := range []error{
		camera.ErrAlreadyLoading,
		camera.ErrUnsupportedPlatform,
		camera.ErrPermissionDenied,
		camera.ErrNoDevicesFound,
		camera.ErrNoCameras,
		camera.ErrStreamAcquisition,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "カメラ操作に失敗しました"
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorResponse{
		Error:     code,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// streamMJPEG はMJPEGストリームを配信する
func (h *CameraHandler) streamMJPEG(c *gin.Context) {
	frameChan, unsubscribe := h.renderer.Subscribe()
	defer unsubscribe()

	// レスポンスヘッダーを設定
	c.Header("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")
	c.Status(http.StatusOK)

	// レスポンスライターを取得
	writer := c.Writer

	// クライアント切断を検知するためのコンテキスト
	clientGone := c.Request.Context().Done()

	// 最新フレームがあれば先に送る
	if frame, ok := h.renderer.Latest(); ok {
		if err := writeFrame(writer, frame); err != nil {
			return
		}
	}

	// ストリーミングループ
	for {
		select {
		case <-clientGone:
			// クライアントが切断された
			return

		case frame, ok := <-frameChan:
			if !ok {
				// チャンネルがクローズされた
				return
			}
			if err := writeFrame(writer, frame); err != nil {
				return
			}
		}
	}
}

// writeFrame はMJPEGの1フレームを書き込んでフラッシュする
func writeFrame(w gin.ResponseWriter, frame []byte) error {
	if _, err := w.Write([]byte("--frame\r\nContent-Type: image/jpeg\r\n\r\n")); err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}
	if _, err := w.Write([]byte("\r\n")); err != nil {
		return err
	}

	// バッファをフラッシュ
	w.Flush()
	return nil
}
