package media

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrPermissionDenied  = errors.New("permission denied")
	ErrDeviceUnavailable = errors.New("device unavailable")
)

// DeviceError reports that a capture device could not be opened.
type DeviceError struct {
	Device string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Device, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// Devices is the platform capture capability a call session depends on.
type Devices interface {
	// CaptureCameraAndMicrophone returns one audio and one video track.
	CaptureCameraAndMicrophone(ctx context.Context) ([]*Track, error)
	// CaptureScreen returns a single video track of the shared screen.
	CaptureScreen(ctx context.Context) (*Track, error)
}

// TrackOf returns the first track of kind in tracks.
func TrackOf(tracks []*Track, kind Kind) *Track {
	for _, t := range tracks {
		if t.Kind() == kind {
			return t
		}
	}
	return nil
}

// StopAll stops every track.
func StopAll(tracks []*Track) {
	for _, t := range tracks {
		if t != nil {
			t.Stop()
		}
	}
}
