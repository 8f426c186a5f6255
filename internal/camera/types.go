package camera

import (
	"context"
	"fmt"
	"image"
	"strings"
)

// Direction はカメラの向きを表す
type Direction int

const (
	DirectionFront Direction = iota // 前面カメラ
	DirectionRear                   // 背面カメラ
)

// String は向きの文字列表現を返す
func (d Direction) String() string {
	if d == DirectionRear {
		return "rear"
	}
	return "front"
}

// MarshalText は向きを文字列としてエンコードする
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText は文字列から向きを復元する
func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDirection は文字列から向きを返す
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "front", "user":
		return DirectionFront, nil
	case "rear", "back", "environment":
		return DirectionRear, nil
	}
	return DirectionFront, fmt.Errorf("無効な向き: %q", s)
}

// Other は反対の向きを返す
func (d Direction) Other() Direction {
	if d == DirectionRear {
		return DirectionFront
	}
	return DirectionRear
}

// FacingMode はキャプチャ要求で指定する向きのセレクタ
type FacingMode string

const (
	FacingUser        FacingMode = "user"        // 前面
	FacingEnvironment FacingMode = "environment" // 背面
)

// facingModeFor は向きに対応するFacingModeを返す
func facingModeFor(d Direction) FacingMode {
	if d == DirectionRear {
		return FacingEnvironment
	}
	return FacingUser
}

// rearLabelMarker を含むラベルは背面カメラとして扱う
const rearLabelMarker = "back"

// DirectionFromLabel はラベルからカメラの向きを判定する
// 大文字小文字を区別せず "back" を含めば背面、それ以外は前面
func DirectionFromLabel(label string) Direction {
	if strings.Contains(strings.ToLower(label), rearLabelMarker) {
		return DirectionRear
	}
	return DirectionFront
}

// Range は数値の制約（完全一致または範囲）を表す
// ゼロ値は制約なし
type Range struct {
	Exact int `json:"exact,omitempty"`
	Min   int `json:"min,omitempty"`
	Max   int `json:"max,omitempty"`
	Ideal int `json:"ideal,omitempty"`
}

// ExactRange は完全一致の制約を作成する
func ExactRange(v int) Range {
	return Range{Exact: v}
}

// IsZero は制約が指定されていないか判定する
func (r Range) IsZero() bool {
	return r == Range{}
}

// Constraints はキャプチャ要求の形を表す
// 検出時のプローブとストリーム取得の両方に使う
type Constraints struct {
	Width      Range      `json:"width,omitempty"`
	Height     Range      `json:"height,omitempty"`
	DeviceID   string     `json:"device_id,omitempty"`   // 完全一致のデバイス指定
	FacingMode FacingMode `json:"facing_mode,omitempty"` // 完全一致の向き指定
	Audio      bool       `json:"audio"`
}

// Descriptor は1台のカメラデバイスを識別する
type Descriptor struct {
	DeviceID string `json:"device_id"` // 一意識別子
	Label    string `json:"label"`     // 表示名

	// 最後に成功したキャプチャ設定
	WorkingConstraints *Constraints `json:"working_constraints,omitempty"`
}

// Direction はラベルから判定した向きを返す
func (d Descriptor) Direction() Direction {
	return DirectionFromLabel(d.Label)
}

// DeviceKind は入力デバイスの種類
type DeviceKind string

const (
	KindVideoInput DeviceKind = "videoinput"
	KindAudioInput DeviceKind = "audioinput"
)

// InputDevice は列挙で得られるデバイス情報
type InputDevice struct {
	DeviceID string
	Label    string
	Kind     DeviceKind
}

// State はマネージャーの状態のスナップショット
type State struct {
	IsLoading      bool         `json:"is_loading"`
	IsStreaming    bool         `json:"is_streaming"`
	AllCameras     []Descriptor `json:"all_cameras"`
	FrontCameras   []Descriptor `json:"front_cameras"`
	RearCameras    []Descriptor `json:"rear_cameras"`
	CurrFrontIndex int          `json:"curr_front_index"`
	CurrRearIndex  int          `json:"curr_rear_index"`
	CurrDirection  Direction    `json:"curr_direction"`
	CurrCamera     *Descriptor  `json:"curr_camera,omitempty"`
}

// Stream はホストから取得したライブキャプチャストリーム
type Stream interface {
	// ID はストリームの識別子を返す
	ID() string

	// ReadFrame は1フレームを読み取る。release は使用後に必ず呼ぶ
	ReadFrame() (img image.Image, release func(), err error)

	// Close はストリームを解放しカメラのロックを外す
	Close() error
}

// MediaDevices はホストが提供するキャプチャ機能
type MediaDevices interface {
	// GetUserMedia は制約に合うストリームを取得する
	GetUserMedia(ctx context.Context, c Constraints) (Stream, error)

	// EnumerateDevices は利用可能な入力デバイスを列挙する
	EnumerateDevices(ctx context.Context) ([]InputDevice, error)
}

// Renderer はストリームを表示する描画先
type Renderer interface {
	// SetStream はストリームを描画先に割り当てる。nil で切り離す
	SetStream(s Stream)

	// Play は割り当てたストリームの再生を開始する
	Play(ctx context.Context) error
}

// Recorder はマネージャーの動作を計測する
type Recorder interface {
	ObserveProbe(ok bool)
	ObserveAcquisition(ok bool)
	SetStreaming(streaming bool)
}

type nopRecorder struct{}

func (nopRecorder) ObserveProbe(bool)       {}
func (nopRecorder) ObserveAcquisition(bool) {}
func (nopRecorder) SetStreaming(bool)       {}
