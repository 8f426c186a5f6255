package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/prop"
)

// PionMediaDevices はpion/mediadevicesを使ったMediaDevices実装
//
// カメラドライバーは github.com/pion/mediadevices/pkg/driver/camera の
// ブランクインポートで登録しておく必要がある
type PionMediaDevices struct{}

// NewPionMediaDevices は新しいPionMediaDevicesを作成する
func NewPionMediaDevices() *PionMediaDevices {
	return &PionMediaDevices{}
}

// EnumerateDevices は登録済みドライバーの入力デバイスを列挙する
func (p *PionMediaDevices) EnumerateDevices(ctx context.Context) ([]InputDevice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	infos := mediadevices.EnumerateDevices()
	devices := make([]InputDevice, 0, len(infos))
	for _, info := range infos {
		var kind DeviceKind
		switch info.Kind {
		case mediadevices.VideoInput:
			kind = KindVideoInput
		case mediadevices.AudioInput:
			kind = KindAudioInput
		default:
			continue
		}
		devices = append(devices, InputDevice{
			DeviceID: info.DeviceID,
			Label:    info.Label,
			Kind:     kind,
		})
	}
	return devices, nil
}

// GetUserMedia は制約に合うカメラを開く
// ドライバー層は向き指定に対応していないため FacingMode 付きの要求は失敗する
func (p *PionMediaDevices) GetUserMedia(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.FacingMode != "" {
		return nil, fmt.Errorf("%w: facingMode %q には対応していません", ErrOverconstrained, c.FacingMode)
	}

	devices, err := p.EnumerateDevices(ctx)
	if err != nil {
		return nil, err
	}
	if !hasVideoInput(devices, c.DeviceID) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, c.DeviceID)
	}

	constraints := mediadevices.MediaStreamConstraints{
		Video: func(t *mediadevices.MediaTrackConstraints) {
			if c.DeviceID != "" {
				t.DeviceID = prop.StringExact(c.DeviceID)
			}
			if w := intConstraint(c.Width); w != nil {
				t.Width = w
			}
			if h := intConstraint(c.Height); h != nil {
				t.Height = h
			}
		},
	}
	if c.Audio {
		constraints.Audio = func(*mediadevices.MediaTrackConstraints) {}
	}

	ms, err := mediadevices.GetUserMedia(constraints)
	if err != nil {
		return nil, classifyError(err)
	}

	tracks := ms.GetVideoTracks()
	if len(tracks) == 0 {
		closeTracks(ms)
		return nil, fmt.Errorf("%w: 映像トラックがありません", ErrNotFound)
	}
	track, ok := tracks[0].(*mediadevices.VideoTrack)
	if !ok {
		closeTracks(ms)
		return nil, fmt.Errorf("想定外のトラック型: %T", tracks[0])
	}

	return &pionStream{
		id:     uuid.NewString(),
		media:  ms,
		reader: track.NewReader(false),
	}, nil
}

// pionStream はMediaStreamをStreamとして扱うラッパー
type pionStream struct {
	id     string
	media  mediadevices.MediaStream
	reader interface {
		Read() (image.Image, func(), error)
	}

	closeOnce sync.Once
	closeErr  error
}

func (s *pionStream) ID() string {
	return s.id
}

func (s *pionStream) ReadFrame() (image.Image, func(), error) {
	return s.reader.Read()
}

func (s *pionStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = closeTracks(s.media)
	})
	return s.closeErr
}

func closeTracks(ms mediadevices.MediaStream) error {
	var errs []error
	for _, t := range ms.GetTracks() {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// intConstraint はRangeをpropの制約に変換する。制約なしならnil
func intConstraint(r Range) prop.IntConstraint {
	switch {
	case r.Exact > 0:
		return prop.IntExact(r.Exact)
	case r.Min > 0 || r.Max > 0:
		return prop.IntRanged{Min: r.Min, Max: r.Max, Ideal: r.Ideal}
	case r.Ideal > 0:
		return prop.Int(r.Ideal)
	default:
		return nil
	}
}

func hasVideoInput(devices []InputDevice, deviceID string) bool {
	for _, d := range devices {
		if d.Kind != KindVideoInput {
			continue
		}
		if deviceID == "" || d.DeviceID == deviceID {
			return true
		}
	}
	return false
}

// classifyError はドライバーのエラーを失敗の種類に対応付ける
func classifyError(err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %w", ErrOverconstrained, err)
}
