package camera

import (
	"bytes"
	"context"
	"errors"
	"image/jpeg"
	"io"
	"log/slog"
	"sync"
	"time"
)

// ErrNoStream は描画先にストリームが割り当てられていないことを表す
var ErrNoStream = errors.New("ストリームが割り当てられていません")

// MJPEGRenderer は割り当てられたストリームをJPEGフレームとして配信する描画先
type MJPEGRenderer struct {
	quality  int
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	stream Stream
	cancel context.CancelFunc
	latest []byte
	subs   map[chan []byte]struct{}
	closed bool
}

// NewMJPEGRenderer は新しいMJPEGRendererを作成する
// interval はフレーム間の待ち時間（0で待たない）
func NewMJPEGRenderer(quality int, interval time.Duration, logger *slog.Logger) *MJPEGRenderer {
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &MJPEGRenderer{
		quality:  quality,
		interval: interval,
		logger:   logger,
		subs:     make(map[chan []byte]struct{}),
	}
}

// SetStream はストリームを割り当てる。nil で切り離し、再生中のフレームも破棄する
func (r *MJPEGRenderer) SetStream(s Stream) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// 読み取り中のReadFrameはストリームが閉じられるまで戻らないことがあるため待たない
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.stream = s
	r.latest = nil
}

// Play は割り当てたストリームの配信を開始する
func (r *MJPEGRenderer) Play(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stream == nil {
		return ErrNoStream
	}
	if r.cancel != nil {
		return nil // 既に再生中
	}

	// 再生は呼び出し元のリクエストより長く続く
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	go r.pump(ctx, r.stream)
	return nil
}

// Playing は再生中かどうかを返す
func (r *MJPEGRenderer) Playing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

// Latest は最新のJPEGフレームを返す
func (r *MJPEGRenderer) Latest() ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.latest == nil {
		return nil, false
	}
	frame := make([]byte, len(r.latest))
	copy(frame, r.latest)
	return frame, true
}

// Subscribe はフレームを受け取るチャンネルを登録する
// 返された関数で登録を解除する。Close 後は閉じたチャンネルを返す
func (r *MJPEGRenderer) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, 2)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		close(ch)
		return ch, func() {}
	}
	r.subs[ch] = struct{}{}

	return ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.subs[ch]; ok {
			delete(r.subs, ch)
			close(ch)
		}
	}
}

// Close は配信を止め、すべての購読チャンネルを閉じる
func (r *MJPEGRenderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.stream = nil
	r.latest = nil
	r.closed = true
	for ch := range r.subs {
		delete(r.subs, ch)
		close(ch)
	}
}

// pump はストリームからフレームを読み取りJPEGにエンコードして配信する
func (r *MJPEGRenderer) pump(ctx context.Context, s Stream) {
	for {
		if ctx.Err() != nil {
			return
		}

		img, release, err := s.ReadFrame()
		if err != nil {
			if ctx.Err() == nil {
				r.logger.Warn("フレームの読み取りに失敗", "stream_id", s.ID(), "error", err)
			}
			return
		}

		var buf bytes.Buffer
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.quality})
		release()
		if err != nil {
			r.logger.Warn("JPEGエンコードに失敗", "stream_id", s.ID(), "error", err)
			continue
		}

		r.publish(ctx, buf.Bytes())

		if r.interval > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.interval):
			}
		}
	}
}

// publish は購読者にフレームを送る。詰まっている購読者は古いフレームを捨てる
func (r *MJPEGRenderer) publish(ctx context.Context, frame []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// 切り離された後のフレームは配信しない
	if ctx.Err() != nil {
		return
	}

	r.latest = frame
	for ch := range r.subs {
		select {
		case ch <- frame:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- frame:
			default:
			}
		}
	}
}
