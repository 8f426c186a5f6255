package camera

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Manager はカメラの検出・分類と表示カメラの切り替えを担う
type Manager struct {
	devices   MediaDevices
	preferred Constraints // 希望解像度（幅・高さのみ使用）
	logger    *slog.Logger
	recorder  Recorder

	// 初期化と切り替え操作を直列化する
	opMu sync.Mutex

	// 以下の状態を保護する
	mu             sync.RWMutex
	isLoading      bool
	isStreaming    bool
	allCameras     []Descriptor
	frontCameras   []Descriptor
	rearCameras    []Descriptor
	currFrontIndex int
	currRearIndex  int
	currDirection  Direction
	currCamera     *Descriptor

	// 描画先に割り当て中のストリーム
	current Stream
	target  Renderer
}

// Option はManagerの設定を変更する
type Option func(*Manager)

// WithPreferredResolution はプローブ時の希望解像度を設定する
func WithPreferredResolution(width, height Range) Option {
	return func(m *Manager) {
		m.preferred.Width = width
		m.preferred.Height = height
	}
}

// WithLogger はロガーを設定する
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithRecorder はメトリクスの記録先を設定する
func WithRecorder(r Recorder) Option {
	return func(m *Manager) {
		if r != nil {
			m.recorder = r
		}
	}
}

// WithDirection は最初に使う向きを設定する
func WithDirection(d Direction) Option {
	return func(m *Manager) {
		m.currDirection = d
	}
}

// NewManager は新しいManagerを作成する
// devices が nil の場合 Initialize は ErrUnsupportedPlatform を返す
func NewManager(devices MediaDevices, opts ...Option) *Manager {
	m := &Manager{
		devices: devices,
		preferred: Constraints{
			Width:  ExactRange(1280),
			Height: ExactRange(720),
		},
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		recorder:      nopRecorder{},
		currDirection: DirectionFront,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// IsLoading は検出中かどうかを返す
func (m *Manager) IsLoading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isLoading
}

// IsStreaming は描画先にストリームが割り当てられているかを返す
func (m *Manager) IsStreaming() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isStreaming
}

// AllCameras は検出順の全カメラを返す
func (m *Manager) AllCameras() []Descriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneDescriptors(m.allCameras)
}

// FrontCameras は前面カメラ一覧を返す
func (m *Manager) FrontCameras() []Descriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneDescriptors(m.frontCameras)
}

// RearCameras は背面カメラ一覧を返す
func (m *Manager) RearCameras() []Descriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneDescriptors(m.rearCameras)
}

// State は現在の状態のスナップショットを返す
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := State{
		IsLoading:      m.isLoading,
		IsStreaming:    m.isStreaming,
		AllCameras:     cloneDescriptors(m.allCameras),
		FrontCameras:   cloneDescriptors(m.frontCameras),
		RearCameras:    cloneDescriptors(m.rearCameras),
		CurrFrontIndex: m.currFrontIndex,
		CurrRearIndex:  m.currRearIndex,
		CurrDirection:  m.currDirection,
	}
	if m.currCamera != nil {
		c := *m.currCamera
		s.CurrCamera = &c
	}
	return s
}

// FindCamera はデバイスIDからカメラを探す
func (m *Manager) FindCamera(deviceID string) (Descriptor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if i := indexOf(m.allCameras, deviceID); i >= 0 {
		return m.allCameras[i], true
	}
	return Descriptor{}, false
}

// CanToggleLenses は現在の向きに複数のカメラがあるかを返す
func (m *Manager) CanToggleLenses() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.canToggleLensesLocked()
}

// CanSwitchCameraDirections は前面・背面の両方にカメラがあるかを返す
func (m *Manager) CanSwitchCameraDirections() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.canSwitchLocked()
}

// ToggleCurrentCamera は同じ向きの次のカメラに切り替える
// ストリーミング中でない場合や切り替え先がない場合は何もしない
func (m *Manager) ToggleCurrentCamera(ctx context.Context, target Renderer) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	if !m.isStreaming || !m.canToggleLensesLocked() {
		m.mu.RUnlock()
		return nil
	}
	list := m.listLocked(m.currDirection)
	next := (m.cursorLocked(m.currDirection) + 1) % len(list)
	device := list[next]
	m.mu.RUnlock()

	return m.view(ctx, target, &device)
}

// SwitchCameraDirection は反対の向きのカメラに切り替える
// ストリーミング中でない場合や反対の向きにカメラがない場合は何もしない
func (m *Manager) SwitchCameraDirection(ctx context.Context, target Renderer) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	if !m.isStreaming || !m.canSwitchLocked() {
		m.mu.RUnlock()
		return nil
	}
	other := m.currDirection.Other()
	device := m.listLocked(other)[m.cursorLocked(other)]
	m.mu.RUnlock()

	return m.view(ctx, target, &device)
}

// ViewCameraStream は指定されたカメラを描画先に表示する
// device が nil の場合は直前のカメラ、現在の向きのカメラ、反対の向きのカメラの順に選ぶ
func (m *Manager) ViewCameraStream(ctx context.Context, target Renderer, device *Descriptor) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	return m.view(ctx, target, device)
}

// Close は表示中のストリームを切り離して解放する
func (m *Manager) Close() error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	return m.release()
}

// view はストリームを取得し直して描画先に割り当てる（opMu取得済み前提）
func (m *Manager) view(ctx context.Context, target Renderer, device *Descriptor) error {
	if target == nil {
		return fmt.Errorf("描画先が指定されていません")
	}

	m.mu.RLock()
	dev, err := m.resolveLocked(device)
	m.mu.RUnlock()
	if err != nil {
		return err
	}

	// 取得前に必ず切り離す
	target.SetStream(nil)
	if err := m.release(); err != nil {
		m.logger.Warn("ストリームの解放に失敗", "error", err)
	}

	c := Constraints{DeviceID: dev.DeviceID}
	if dev.WorkingConstraints != nil {
		c = *dev.WorkingConstraints
	}

	stream, err := m.devices.GetUserMedia(ctx, c)
	m.recorder.ObserveAcquisition(err == nil)
	if err != nil {
		m.logger.Warn("カメラの切り替えに失敗", "device_id", dev.DeviceID, "error", err)
		return fmt.Errorf("%w: %s: %w", ErrStreamAcquisition, dev.DeviceID, err)
	}

	target.SetStream(stream)
	if err := target.Play(ctx); err != nil {
		target.SetStream(nil)
		_ = stream.Close()
		return fmt.Errorf("%w: 再生に失敗: %w", ErrStreamAcquisition, err)
	}

	dir := dev.Direction()

	m.mu.Lock()
	if i := indexOf(m.listLocked(dir), dev.DeviceID); i >= 0 {
		m.setCursorLocked(dir, i)
	}
	m.currDirection = dir
	m.currCamera = &dev
	m.isStreaming = true
	m.current = stream
	m.target = target
	m.mu.Unlock()

	m.recorder.SetStreaming(true)
	m.logger.Info("カメラを表示しました", "device_id", dev.DeviceID, "label", dev.Label, "direction", dir.String())
	return nil
}

// release は割り当て中のストリームを切り離して閉じる
func (m *Manager) release() error {
	m.mu.Lock()
	stream, target := m.current, m.target
	m.current, m.target = nil, nil
	m.isStreaming = false
	m.mu.Unlock()

	m.recorder.SetStreaming(false)

	if target != nil {
		target.SetStream(nil)
	}
	if stream == nil {
		return nil
	}
	return stream.Close()
}

// resolveLocked は表示するカメラを決定する（mu取得済み前提）
func (m *Manager) resolveLocked(device *Descriptor) (Descriptor, error) {
	if device != nil {
		return *device, nil
	}
	if m.currCamera != nil {
		return *m.currCamera, nil
	}
	for _, dir := range []Direction{m.currDirection, m.currDirection.Other()} {
		if list := m.listLocked(dir); len(list) > 0 {
			return list[m.cursorLocked(dir)], nil
		}
	}
	return Descriptor{}, ErrNoCameras
}

func (m *Manager) canToggleLensesLocked() bool {
	return len(m.listLocked(m.currDirection)) > 1
}

func (m *Manager) canSwitchLocked() bool {
	return len(m.frontCameras) > 0 && len(m.rearCameras) > 0
}

func (m *Manager) listLocked(d Direction) []Descriptor {
	if d == DirectionRear {
		return m.rearCameras
	}
	return m.frontCameras
}

// cursorLocked は向きごとの選択位置を返す。範囲外なら0に戻す
func (m *Manager) cursorLocked(d Direction) int {
	i := m.currFrontIndex
	if d == DirectionRear {
		i = m.currRearIndex
	}
	if i < 0 || i >= len(m.listLocked(d)) {
		return 0
	}
	return i
}

func (m *Manager) setCursorLocked(d Direction, i int) {
	if d == DirectionRear {
		m.currRearIndex = i
		return
	}
	m.currFrontIndex = i
}

func indexOf(list []Descriptor, deviceID string) int {
	for i, d := range list {
		if d.DeviceID == deviceID {
			return i
		}
	}
	return -1
}

func cloneDescriptors(list []Descriptor) []Descriptor {
	out := make([]Descriptor, len(list))
	copy(out, list)
	return out
}
