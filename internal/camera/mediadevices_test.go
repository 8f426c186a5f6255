package camera

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/pion/mediadevices/pkg/prop"
)

func TestIntConstraint(t *testing.T) {
	testCases := []struct {
		name string
		in   Range
		want prop.IntConstraint
	}{
		{"unconstrained", Range{}, nil},
		{"exact", ExactRange(1280), prop.IntExact(1280)},
		{"ranged", Range{Min: 640, Max: 1920, Ideal: 1280}, prop.IntRanged{Min: 640, Max: 1920, Ideal: 1280}},
		{"ideal", Range{Ideal: 720}, prop.Int(720)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := intConstraint(tc.in); got != tc.want {
				t.Errorf("intConstraint(%+v) = %#v, want %#v", tc.in, got, tc.want)
			}
		})
	}
}

func TestHasVideoInput(t *testing.T) {
	devices := []InputDevice{
		{DeviceID: "mic", Kind: KindAudioInput},
		{DeviceID: "/dev/video0", Kind: KindVideoInput},
	}

	if !hasVideoInput(devices, "") {
		t.Error("Expected any video input to match")
	}
	if !hasVideoInput(devices, "/dev/video0") {
		t.Error("Expected /dev/video0 to match")
	}
	if hasVideoInput(devices, "mic") {
		t.Error("Audio input must not match")
	}
	if hasVideoInput(nil, "") {
		t.Error("Expected no match without devices")
	}
}

func TestClassifyError(t *testing.T) {
	permission := classifyError(fmt.Errorf("open /dev/video0: %w", fs.ErrPermission))
	if !errors.Is(permission, ErrPermissionDenied) {
		t.Errorf("Expected ErrPermissionDenied, got %v", permission)
	}

	other := classifyError(errors.New("failed to find the best driver that fits the constraints"))
	if !errors.Is(other, ErrOverconstrained) {
		t.Errorf("Expected ErrOverconstrained, got %v", other)
	}
}

func TestPionMediaDevices_FacingModeUnsupported(t *testing.T) {
	devices := NewPionMediaDevices()

	_, err := devices.GetUserMedia(context.Background(), Constraints{FacingMode: FacingUser})
	if !errors.Is(err, ErrOverconstrained) {
		t.Errorf("Expected ErrOverconstrained, got %v", err)
	}
}

func TestPionMediaDevices_CanceledContext(t *testing.T) {
	devices := NewPionMediaDevices()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := devices.EnumerateDevices(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if _, err := devices.GetUserMedia(ctx, Constraints{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
