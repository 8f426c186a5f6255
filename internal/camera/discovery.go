package camera

import (
	"context"
	"errors"
	"fmt"
)

// syntheticLabels は向き指定のプローブで見つかったカメラの表示名
var syntheticLabels = map[Direction]string{
	DirectionFront: "Front Camera",
	DirectionRear:  "Back Camera",
}

// Initialize は権限を要求し、カメラを検出して前面・背面に分類する
//
// デバイスのプローブは1台ずつ順番に行う。同時に開くとカメラの排他ロックが
// 衝突する環境があるため並列化しない
func (m *Manager) Initialize(ctx context.Context) error {
	if m.devices == nil {
		return ErrUnsupportedPlatform
	}

	// 検出中の判定と設定は同じロック内で行い、他の操作の完了待ちの間も検出中とみなす
	m.mu.Lock()
	if m.isLoading {
		m.mu.Unlock()
		return ErrAlreadyLoading
	}
	m.isLoading = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.isLoading = false
		m.mu.Unlock()
	}()

	m.opMu.Lock()
	defer m.opMu.Unlock()

	// 表示中のストリームがあるとプローブが失敗するため先に解放する
	if err := m.release(); err != nil {
		m.logger.Warn("ストリームの解放に失敗", "error", err)
	}

	m.mu.Lock()
	m.allCameras = nil
	m.frontCameras = nil
	m.rearCameras = nil
	m.currFrontIndex = 0
	m.currRearIndex = 0
	m.currCamera = nil
	m.mu.Unlock()

	if err := m.requestPermission(ctx); err != nil {
		return err
	}

	inputs, err := m.enumerateVideoInputs(ctx)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return ErrNoDevicesFound
	}

	m.logger.Info("カメラのプローブを開始", "devices", len(inputs))
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.probeDevice(ctx, in)
	}

	m.completeLoading(ctx)

	m.mu.RLock()
	m.logger.Info("カメラの検出が完了",
		"front", len(m.frontCameras),
		"rear", len(m.rearCameras),
	)
	m.mu.RUnlock()
	return nil
}

// requestPermission は音声なしの映像取得で権限ダイアログを表示させる
// 権限がないとデバイスのラベルが空になる環境がある
func (m *Manager) requestPermission(ctx context.Context) error {
	stream, err := m.devices.GetUserMedia(ctx, Constraints{Audio: false})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: %w", ErrNoDevicesFound, err)
		}
		if errors.Is(err, ErrPermissionDenied) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	}

	if err := stream.Close(); err != nil {
		m.logger.Debug("権限確認用ストリームの解放に失敗", "error", err)
	}
	return nil
}

// enumerateVideoInputs は映像入力デバイスのみを列挙する
func (m *Manager) enumerateVideoInputs(ctx context.Context) ([]InputDevice, error) {
	all, err := m.devices.EnumerateDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("デバイスの列挙に失敗: %w", err)
	}

	inputs := make([]InputDevice, 0, len(all))
	for _, d := range all {
		if d.Kind == KindVideoInput {
			inputs = append(inputs, d)
		}
	}
	return inputs, nil
}

// probeDevice は希望解像度、デバイス指定のみの順に試し、成功した設定を記録する
func (m *Manager) probeDevice(ctx context.Context, in InputDevice) bool {
	attempts := []Constraints{{
		DeviceID: in.DeviceID,
		Width:    m.preferred.Width,
		Height:   m.preferred.Height,
	}}
	if !m.preferred.Width.IsZero() || !m.preferred.Height.IsZero() {
		attempts = append(attempts, Constraints{DeviceID: in.DeviceID})
	}

	for _, c := range attempts {
		if err := m.probe(ctx, c); err != nil {
			m.logger.Debug("プローブに失敗", "device_id", in.DeviceID, "error", err)
			continue
		}

		working := c
		m.addCamera(Descriptor{
			DeviceID:           in.DeviceID,
			Label:              in.Label,
			WorkingConstraints: &working,
		})
		return true
	}

	m.logger.Info("カメラを除外しました", "device_id", in.DeviceID, "label", in.Label)
	return false
}

// completeLoading は片方の向きが空の場合に向き指定で追加のプローブを行う
func (m *Manager) completeLoading(ctx context.Context) {
	for _, dir := range []Direction{DirectionFront, DirectionRear} {
		m.mu.RLock()
		found := len(m.listLocked(dir)) > 0
		m.mu.RUnlock()
		if found {
			continue
		}

		c := Constraints{FacingMode: facingModeFor(dir)}
		if err := m.probe(ctx, c); err != nil {
			m.logger.Debug("向き指定のプローブに失敗", "facing_mode", c.FacingMode, "error", err)
			continue
		}

		m.addCamera(Descriptor{
			DeviceID:           string(c.FacingMode),
			Label:              syntheticLabels[dir],
			WorkingConstraints: &c,
		})
	}
}

// probe は試験的にストリームを取得し、すぐに解放する
func (m *Manager) probe(ctx context.Context, c Constraints) error {
	stream, err := m.devices.GetUserMedia(ctx, c)
	m.recorder.ObserveProbe(err == nil)
	if err != nil {
		return err
	}
	if err := stream.Close(); err != nil {
		m.logger.Debug("プローブ用ストリームの解放に失敗", "error", err)
	}
	return nil
}

// addCamera はカメラを全体一覧と向きごとの一覧に追加する
func (m *Manager) addCamera(d Descriptor) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if indexOf(m.allCameras, d.DeviceID) >= 0 {
		return
	}

	m.allCameras = append(m.allCameras, d)
	if d.Direction() == DirectionRear {
		m.rearCameras = append(m.rearCameras, d)
	} else {
		m.frontCameras = append(m.frontCameras, d)
	}
}
