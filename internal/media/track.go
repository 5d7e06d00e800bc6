package media

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
)

// Kind is the media kind of a track.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// Origin is the source feeding a track.
type Origin string

const (
	OriginMicrophone Origin = "microphone"
	OriginCamera     Origin = "camera"
	OriginScreen     Origin = "screen"
)

// Track is one local audio or video source. Samples written while the track
// is disabled are dropped, so toggling never touches the negotiated session.
type Track struct {
	kind   Kind
	origin Origin
	local  *webrtc.TrackLocalStaticSample

	enabled  atomic.Bool
	external atomic.Bool
	done     chan struct{}
	once     sync.Once
}

// NewTrack creates an enabled track with the default codec for kind.
func NewTrack(kind Kind, origin Origin, id, streamID string) (*Track, error) {
	var capability webrtc.RTPCodecCapability
	switch kind {
	case KindAudio:
		capability = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
	case KindVideo:
		capability = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}
	default:
		return nil, fmt.Errorf("unsupported track kind %q", kind)
	}

	local, err := webrtc.NewTrackLocalStaticSample(capability, id, streamID)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s track: %w", kind, err)
	}

	t := &Track{
		kind:   kind,
		origin: origin,
		local:  local,
		done:   make(chan struct{}),
	}
	t.enabled.Store(true)
	return t, nil
}

func (t *Track) ID() string       { return t.local.ID() }
func (t *Track) StreamID() string { return t.local.StreamID() }
func (t *Track) Kind() Kind       { return t.kind }
func (t *Track) Origin() Origin   { return t.origin }

// Local returns the pion track to bind to an RTP sender.
func (t *Track) Local() webrtc.TrackLocal { return t.local }

func (t *Track) Enabled() bool { return t.enabled.Load() }

func (t *Track) SetEnabled(enabled bool) { t.enabled.Store(enabled) }

// WriteSample forwards a sample to every bound sender unless the track is
// disabled. It fails with io.ErrClosedPipe once the track has ended.
func (t *Track) WriteSample(sample pionmedia.Sample) error {
	select {
	case <-t.done:
		return io.ErrClosedPipe
	default:
	}
	if !t.enabled.Load() {
		return nil
	}
	return t.local.WriteSample(sample)
}

// Stop releases the track. It is idempotent.
func (t *Track) Stop() {
	t.once.Do(func() {
		close(t.done)
	})
}

// End marks the track as ended by its source, outside the application's
// control. A track that was already stopped stays stopped.
func (t *Track) End() {
	t.once.Do(func() {
		t.external.Store(true)
		close(t.done)
	})
}

// Done is closed once the track was stopped or ended.
func (t *Track) Done() <-chan struct{} { return t.done }

// EndedExternally reports whether the track finished through End.
func (t *Track) EndedExternally() bool { return t.external.Load() }

// Stopped reports whether the track has finished for any reason.
func (t *Track) Stopped() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}
