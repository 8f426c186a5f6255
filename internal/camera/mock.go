package camera

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
)

// MockMediaDevices はテスト用のMediaDevices実装
type MockMediaDevices struct {
	mu      sync.Mutex
	devices []InputDevice

	// accept が false を返す制約は失敗させる
	accept func(c Constraints) bool

	permissionErr error
	enumerateErr  error

	requests []Constraints
	open     int
	maxOpen  int
	nextID   int
}

// NewMockMediaDevices は新しいMockMediaDevicesを作成する
// 既定ではデバイス指定・向き指定のない要求と、存在するデバイスへの要求を受け付ける
func NewMockMediaDevices(devices ...InputDevice) *MockMediaDevices {
	m := &MockMediaDevices{devices: devices}
	m.accept = m.defaultAccept
	return m
}

// VideoInput はテスト用の映像入力デバイスを作成する
func VideoInput(id, label string) InputDevice {
	return InputDevice{DeviceID: id, Label: label, Kind: KindVideoInput}
}

// SetAccept は制約ごとの成否を決める関数を設定する
func (m *MockMediaDevices) SetAccept(accept func(c Constraints) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accept = accept
}

// SetPermissionError は権限要求の失敗を設定する
func (m *MockMediaDevices) SetPermissionError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.permissionErr = err
}

// SetEnumerateError は列挙の失敗を設定する
func (m *MockMediaDevices) SetEnumerateError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enumerateErr = err
}

// Requests はこれまでに受け取った制約を返す
func (m *MockMediaDevices) Requests() []Constraints {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Constraints, len(m.requests))
	copy(out, m.requests)
	return out
}

// OpenStreams は解放されていないストリーム数を返す
func (m *MockMediaDevices) OpenStreams() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// MaxOpenStreams は同時に開かれたストリーム数の最大値を返す
func (m *MockMediaDevices) MaxOpenStreams() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxOpen
}

// GetUserMedia は制約を記録し、accept に従ってストリームを返す
func (m *MockMediaDevices) GetUserMedia(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, c)

	if m.permissionErr != nil {
		return nil, m.permissionErr
	}
	if !m.accept(c) {
		if m.missing(c) {
			return nil, fmt.Errorf("モック: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("モック: %w", ErrOverconstrained)
	}

	m.nextID++
	m.open++
	if m.open > m.maxOpen {
		m.maxOpen = m.open
	}
	return &MockStream{
		id:          fmt.Sprintf("mock-stream-%d", m.nextID),
		Constraints: c,
		onClose: func() {
			m.mu.Lock()
			m.open--
			m.mu.Unlock()
		},
	}, nil
}

// EnumerateDevices はモックデバイス一覧を返す
func (m *MockMediaDevices) EnumerateDevices(ctx context.Context) ([]InputDevice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.enumerateErr != nil {
		return nil, m.enumerateErr
	}
	out := make([]InputDevice, len(m.devices))
	copy(out, m.devices)
	return out, nil
}

// defaultAccept はロック取得済みで呼ばれる
func (m *MockMediaDevices) defaultAccept(c Constraints) bool {
	if c.FacingMode != "" {
		return false
	}
	return !m.missing(c)
}

// missing は要求に該当するデバイスが存在しないかを判定する
func (m *MockMediaDevices) missing(c Constraints) bool {
	if c.DeviceID == "" {
		return c.FacingMode == "" && len(m.devices) == 0
	}
	for _, d := range m.devices {
		if d.DeviceID == c.DeviceID {
			return false
		}
	}
	return true
}

// MockStream はテスト用のストリーム
type MockStream struct {
	id          string
	Constraints Constraints

	mu      sync.Mutex
	closed  bool
	onClose func()
}

// ID はストリームの識別子を返す
func (s *MockStream) ID() string {
	return s.id
}

// ReadFrame は単色の画像を返す
func (s *MockStream) ReadFrame() (image.Image, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, func() {}, fmt.Errorf("モック: ストリームは閉じられています")
	}

	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: 0x20, G: 0x80, B: 0xc0, A: 0xff})
		}
	}
	return img, func() {}, nil
}

// Close はストリームを閉じる
func (s *MockStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.onClose != nil {
		s.onClose()
	}
	return nil
}

// Closed は閉じられたかを返す
func (s *MockStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// MockRenderer はテスト用の描画先
type MockRenderer struct {
	mu      sync.Mutex
	stream  Stream
	history []Stream
	plays   int
	playErr error
}

// NewMockRenderer は新しいMockRendererを作成する
func NewMockRenderer() *MockRenderer {
	return &MockRenderer{}
}

// SetStream はストリームを記録する
func (r *MockRenderer) SetStream(s Stream) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stream = s
	r.history = append(r.history, s)
}

// Play は再生回数を記録する
func (r *MockRenderer) Play(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.playErr != nil {
		return r.playErr
	}
	r.plays++
	return nil
}

// SetPlayError はPlayの失敗を設定する
func (r *MockRenderer) SetPlayError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playErr = err
}

// Stream は現在割り当てられているストリームを返す
func (r *MockRenderer) Stream() Stream {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stream
}

// History はSetStreamの呼び出し履歴を返す
func (r *MockRenderer) History() []Stream {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Stream, len(r.history))
	copy(out, r.history)
	return out
}

// Plays はPlayが成功した回数を返す
func (r *MockRenderer) Plays() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.plays
}
