package camera

import (
	"bytes"
	"context"
	"errors"
	"image/jpeg"
	"testing"
	"time"
)

func newTestStream(t *testing.T, devices *MockMediaDevices) Stream {
	t.Helper()

	stream, err := devices.GetUserMedia(context.Background(), Constraints{})
	if err != nil {
		t.Fatalf("GetUserMedia failed: %v", err)
	}
	return stream
}

func TestMJPEGRenderer_PlayWithoutStream(t *testing.T) {
	renderer := NewMJPEGRenderer(80, time.Millisecond, nil)

	if err := renderer.Play(context.Background()); !errors.Is(err, ErrNoStream) {
		t.Errorf("Expected ErrNoStream, got %v", err)
	}
	if renderer.Playing() {
		t.Error("Renderer should not be playing")
	}
}

func TestMJPEGRenderer_DeliversJPEGFrames(t *testing.T) {
	devices := NewMockMediaDevices(VideoInput("cam0", "Front Camera"))
	stream := newTestStream(t, devices)
	defer func() { _ = stream.Close() }()

	renderer := NewMJPEGRenderer(80, time.Millisecond, nil)
	frames, unsubscribe := renderer.Subscribe()
	defer unsubscribe()

	renderer.SetStream(stream)
	if err := renderer.Play(context.Background()); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	defer renderer.SetStream(nil)

	select {
	case frame := <-frames:
		img, err := jpeg.Decode(bytes.NewReader(frame))
		if err != nil {
			t.Fatalf("Frame is not a valid JPEG: %v", err)
		}
		if img.Bounds().Dx() != 16 {
			t.Errorf("Expected width 16, got %d", img.Bounds().Dx())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for a frame")
	}

	if _, ok := renderer.Latest(); !ok {
		t.Error("Expected latest frame to be kept")
	}
}

func TestMJPEGRenderer_DetachClearsFrame(t *testing.T) {
	devices := NewMockMediaDevices(VideoInput("cam0", "Front Camera"))
	stream := newTestStream(t, devices)
	defer func() { _ = stream.Close() }()

	renderer := NewMJPEGRenderer(80, time.Millisecond, nil)
	frames, unsubscribe := renderer.Subscribe()
	defer unsubscribe()

	renderer.SetStream(stream)
	if err := renderer.Play(context.Background()); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	select {
	case <-frames:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for a frame")
	}

	renderer.SetStream(nil)

	if renderer.Playing() {
		t.Error("Expected playback to stop after detach")
	}
	if _, ok := renderer.Latest(); ok {
		t.Error("Expected stale frame to be dropped after detach")
	}
	if err := renderer.Play(context.Background()); !errors.Is(err, ErrNoStream) {
		t.Errorf("Expected ErrNoStream after detach, got %v", err)
	}
}

func TestMJPEGRenderer_StopsWhenStreamCloses(t *testing.T) {
	devices := NewMockMediaDevices(VideoInput("cam0", "Front Camera"))
	stream := newTestStream(t, devices)

	renderer := NewMJPEGRenderer(80, 5*time.Millisecond, nil)
	renderer.SetStream(stream)
	if err := renderer.Play(context.Background()); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	if err := stream.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// 閉じたストリームからは読めないので配信は止まる
	time.Sleep(50 * time.Millisecond)
	frames, unsubscribe := renderer.Subscribe()
	defer unsubscribe()

	select {
	case <-frames:
		t.Error("Did not expect frames from a closed stream")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMJPEGRenderer_UnsubscribeTwice(t *testing.T) {
	renderer := NewMJPEGRenderer(0, 0, nil)
	frames, unsubscribe := renderer.Subscribe()

	unsubscribe()
	unsubscribe()

	if _, ok := <-frames; ok {
		t.Error("Expected channel to be closed")
	}
}

func TestMJPEGRenderer_CloseEndsSubscribers(t *testing.T) {
	devices := NewMockMediaDevices(VideoInput("cam0", "Front Camera"))
	stream := newTestStream(t, devices)
	defer func() { _ = stream.Close() }()

	renderer := NewMJPEGRenderer(80, time.Millisecond, nil)
	frames, unsubscribe := renderer.Subscribe()

	renderer.SetStream(stream)
	if err := renderer.Play(context.Background()); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	renderer.Close()

	// 残っているフレームを読み切るとチャンネルは閉じている
	deadline := time.After(2 * time.Second)
	for closed := false; !closed; {
		select {
		case _, ok := <-frames:
			closed = !ok
		case <-deadline:
			t.Fatal("Expected subscriber channel to be closed")
		}
	}

	if renderer.Playing() {
		t.Error("Expected playback to stop after Close")
	}

	// Close 後の解除と購読は安全に行える
	unsubscribe()
	late, unsubscribeLate := renderer.Subscribe()
	defer unsubscribeLate()
	if _, ok := <-late; ok {
		t.Error("Expected a closed channel after Close")
	}
}
