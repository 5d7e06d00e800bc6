package media

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/sirupsen/logrus"
)

func quietLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestTrackLifecycle(t *testing.T) {
	track, err := NewTrack(KindVideo, OriginCamera, "video", "stream")
	if err != nil {
		t.Fatal(err)
	}
	if !track.Enabled() {
		t.Fatal("new track should be enabled")
	}
	if track.Local().Kind().String() != "video" {
		t.Fatalf("local kind = %s", track.Local().Kind())
	}

	track.SetEnabled(false)
	if err := track.WriteSample(pionmedia.Sample{Data: []byte{1}, Duration: time.Millisecond}); err != nil {
		t.Fatalf("disabled write: %v", err)
	}

	track.Stop()
	track.Stop()
	track.End()
	if !track.Stopped() {
		t.Fatal("track not stopped")
	}
	if track.EndedExternally() {
		t.Fatal("stopped track reported an external end")
	}
	if err := track.WriteSample(pionmedia.Sample{Data: []byte{1}}); !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("write after stop = %v", err)
	}
}

func TestTrackEndedExternally(t *testing.T) {
	track, err := NewTrack(KindVideo, OriginScreen, "screen", "stream")
	if err != nil {
		t.Fatal(err)
	}
	track.End()
	select {
	case <-track.Done():
	default:
		t.Fatal("Done not closed after End")
	}
	if !track.EndedExternally() {
		t.Fatal("EndedExternally = false")
	}
}

func TestNewTrackRejectsUnknownKind(t *testing.T) {
	if _, err := NewTrack(Kind("data"), OriginCamera, "x", "y"); err == nil {
		t.Fatal("expected error")
	}
}

func TestSyntheticDevices(t *testing.T) {
	devices := NewSyntheticDevices(quietLogger())

	tracks, err := devices.CaptureCameraAndMicrophone(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer StopAll(tracks)

	audio, video := TrackOf(tracks, KindAudio), TrackOf(tracks, KindVideo)
	if audio == nil || video == nil {
		t.Fatalf("expected audio and video, got %d tracks", len(tracks))
	}
	if audio.Origin() != OriginMicrophone || video.Origin() != OriginCamera {
		t.Fatalf("unexpected origins %s/%s", audio.Origin(), video.Origin())
	}
	if audio.StreamID() != video.StreamID() {
		t.Fatal("camera and microphone should share a stream")
	}

	screen, err := devices.CaptureScreen(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	screen.Stop()
	if screen.Origin() != OriginScreen {
		t.Fatalf("screen origin = %s", screen.Origin())
	}
}

func TestSyntheticDevicesDeny(t *testing.T) {
	devices := NewSyntheticDevices(quietLogger())
	devices.Deny(OriginCamera, ErrPermissionDenied)

	_, err := devices.CaptureCameraAndMicrophone(context.Background())
	var deviceErr *DeviceError
	if !errors.As(err, &deviceErr) || deviceErr.Device != string(OriginCamera) {
		t.Fatalf("err = %v, want camera DeviceError", err)
	}
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}

	devices.Deny(OriginCamera, nil)
	tracks, err := devices.CaptureCameraAndMicrophone(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	StopAll(tracks)
}

func TestSyntheticDevicesCancelled(t *testing.T) {
	devices := NewSyntheticDevices(quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := devices.CaptureScreen(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
