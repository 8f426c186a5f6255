// Package server は、カメラ選択を操作するHTTPサーバーを提供します。
//
// このパッケージは、HTTPサーバーの起動、ルーティング、
// カメラの検出・切り替えAPI、MJPEGストリームの配信を担当します。
//
// 責務:
//   - HTTPサーバーの起動と管理
//   - カメラの検出、表示、レンズ切り替え、前面/背面切り替えのAPI
//   - 描画先（MJPEGRenderer）のフレームをMJPEGとして配信
//   - ビューア（埋め込みHTML）の配信
//   - Prometheusメトリクスの公開
//
// 仕様:
//   - ルーティングにはginを使用
//   - カメラ操作のエラーはErrorResponseとしてJSONで返す
//   - グレースフルシャットダウン時に配信中のストリームを解放する
//   - 複数クライアントの同時視聴をサポート
package server
