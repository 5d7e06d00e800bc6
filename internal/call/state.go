package call

import (
	"sync"

	"github.com/pion/webrtc/v4"
)

// State is the lifecycle state of a Session.
type State int

const (
	StateIdle State = iota
	StateAcquiringMedia
	StateConnecting
	StateActive
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiringMedia:
		return "acquiring-media"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

// CloseReason is passed to OnSessionClosed.
type CloseReason string

const (
	ReasonHangup             CloseReason = "hangup"
	ReasonMediaError         CloseReason = "media-error"
	ReasonNegotiationError   CloseReason = "negotiation-error"
	ReasonNegotiationTimeout CloseReason = "negotiation-timeout"
	ReasonPeerDisconnected   CloseReason = "peer-disconnected"
)

// LocalState is what the session is currently sending.
type LocalState struct {
	MicEnabled      bool `json:"micEnabled"`
	CameraEnabled   bool `json:"cameraEnabled"`
	IsScreenSharing bool `json:"isScreenSharing"`
}

type shareState int

const (
	shareIdle shareState = iota
	shareStarting
	shareActive
)

// RemoteStream groups the tracks received from the peer.
type RemoteStream struct {
	id string

	mu     sync.Mutex
	tracks []*webrtc.TrackRemote
}

func newRemoteStream(id string) *RemoteStream {
	return &RemoteStream{id: id}
}

func (r *RemoteStream) ID() string {
	return r.id
}

// Tracks returns the tracks received so far.
func (r *RemoteStream) Tracks() []*webrtc.TrackRemote {
	r.mu.Lock()
	defer r.mu.Unlock()
	tracks := make([]*webrtc.TrackRemote, len(r.tracks))
	copy(tracks, r.tracks)
	return tracks
}

func (r *RemoteStream) add(track *webrtc.TrackRemote) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracks = append(r.tracks, track)
}
