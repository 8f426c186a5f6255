// Package camera カメラの検出・分類と表示カメラの切り替えを担う
//
// # 責務
// - 権限要求とカメラデバイスの列挙
// - デバイスごとの試験的なストリーム取得（プローブ）
// - 前面・背面カメラへの分類
// - 表示カメラの切り替えと描画先への割り当て
//
// # 使い分け
// このパッケージは以下の場合に使用する：
// - 端末のカメラから動作するものだけを選びたい
// - 前面・背面の切り替えや同じ向きのレンズ切り替えを行いたい
// - 選択したカメラの映像をMJPEGで配信したい
//
// # 仕様
// - Manager: カメラ一覧と選択状態の管理
// - MediaDevices: ホストのキャプチャ機能（本番はpion/mediadevices）
// - Renderer: ストリームの描画先（本番はMJPEGRenderer）
// - プローブは1台ずつ順番に行い、取得したストリームはすぐに解放する
// - 切り替え時は必ず描画先を切り離してから新しいストリームを取得する
// - 向きの判定はラベルに "back" を含むかどうかのみで行う
//
// # 前提要件
//   - pion/mediadevices のカメラドライバー（Linuxでは CGO_ENABLED=1 と V4L2）
//   - videoグループへの参加: デバイスアクセス権限
//     sudo usermod -a -G video $USER
package camera
