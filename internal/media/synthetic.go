package media

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/sirupsen/logrus"
)

const (
	audioFrameInterval = 20 * time.Millisecond
	videoFrameInterval = 33 * time.Millisecond
)

var (
	opusSilenceFrame = []byte{0xf8, 0xff, 0xfe}
	// Minimal VP8 key frame header followed by a blank payload.
	vp8BlankFrame = append([]byte{0x10, 0x02, 0x00, 0x9d, 0x01, 0x2a, 0x40, 0x01, 0xf0, 0x00}, make([]byte, 64)...)
)

// SyntheticDevices is a software capture platform. Each captured track is
// fed with silence or blank frames at a real-time pace until it is stopped.
type SyntheticDevices struct {
	logger logrus.FieldLogger

	mu     sync.Mutex
	denied map[Origin]error
}

// NewSyntheticDevices creates a capture platform that grants every request.
func NewSyntheticDevices(logger logrus.FieldLogger) *SyntheticDevices {
	return &SyntheticDevices{
		logger: logger,
		denied: make(map[Origin]error),
	}
}

// Deny makes subsequent captures of origin fail with err. A nil err grants
// access again.
func (d *SyntheticDevices) Deny(origin Origin, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.denied, origin)
		return
	}
	d.denied[origin] = err
}

func (d *SyntheticDevices) check(ctx context.Context, origins ...Origin) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, origin := range origins {
		if err := ctx.Err(); err != nil {
			return &DeviceError{Device: string(origin), Err: err}
		}
		if err, denied := d.denied[origin]; denied {
			return &DeviceError{Device: string(origin), Err: err}
		}
	}
	return nil
}

func (d *SyntheticDevices) CaptureCameraAndMicrophone(ctx context.Context) ([]*Track, error) {
	if err := d.check(ctx, OriginMicrophone, OriginCamera); err != nil {
		return nil, err
	}

	streamID := uuid.New().String()
	audio, err := NewTrack(KindAudio, OriginMicrophone, "audio-"+uuid.New().String(), streamID)
	if err != nil {
		return nil, &DeviceError{Device: string(OriginMicrophone), Err: err}
	}
	video, err := NewTrack(KindVideo, OriginCamera, "video-"+uuid.New().String(), streamID)
	if err != nil {
		return nil, &DeviceError{Device: string(OriginCamera), Err: err}
	}

	go d.pump(audio, opusSilenceFrame, audioFrameInterval)
	go d.pump(video, vp8BlankFrame, videoFrameInterval)
	return []*Track{audio, video}, nil
}

func (d *SyntheticDevices) CaptureScreen(ctx context.Context) (*Track, error) {
	if err := d.check(ctx, OriginScreen); err != nil {
		return nil, err
	}

	screen, err := NewTrack(KindVideo, OriginScreen, "screen-"+uuid.New().String(), uuid.New().String())
	if err != nil {
		return nil, &DeviceError{Device: string(OriginScreen), Err: err}
	}
	go d.pump(screen, vp8BlankFrame, videoFrameInterval)
	return screen, nil
}

func (d *SyntheticDevices) pump(track *Track, frame []byte, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-track.Done():
			return
		case <-ticker.C:
			if err := track.WriteSample(pionmedia.Sample{Data: frame, Duration: interval}); err != nil {
				if errors.Is(err, io.ErrClosedPipe) && track.Stopped() {
					return
				}
				d.logger.WithError(err).WithField("track", track.ID()).Debugln("failed to write sample")
			}
		}
	}
}
