package camera

import "errors"

// 初期化の失敗
var (
	ErrUnsupportedPlatform = errors.New("キャプチャ機能が利用できません")
	ErrPermissionDenied    = errors.New("カメラへのアクセスが拒否されました")
	ErrNoDevicesFound      = errors.New("カメラデバイスが見つかりません")
	ErrAlreadyLoading      = errors.New("カメラの検出中です")
)

// キャプチャ機能が返す失敗
var (
	ErrNotFound        = errors.New("指定されたデバイスが見つかりません")
	ErrOverconstrained = errors.New("制約を満たすデバイスがありません")
)

// 操作時の失敗
var (
	ErrStreamAcquisition = errors.New("ストリームの取得に失敗")
	ErrNoCameras         = errors.New("利用可能なカメラがありません")
)
