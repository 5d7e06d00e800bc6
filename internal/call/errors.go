package call

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyStarted     = errors.New("session already started")
	ErrSessionClosed      = errors.New("session closed")
	ErrNoSession          = errors.New("no connecting or active session")
	ErrAlreadySharing     = errors.New("screen share already active")
	ErrShareInProgress    = errors.New("screen share start in progress")
	ErrNegotiationTimeout = errors.New("negotiation timed out")
	ErrSignalingClosed    = errors.New("signaling connection closed")
)

// MediaAcquisitionError reports that local capture failed. The underlying
// error is usually a *media.DeviceError.
type MediaAcquisitionError struct {
	Err error
}

func (e *MediaAcquisitionError) Error() string {
	return fmt.Sprintf("media acquisition failed: %v", e.Err)
}

func (e *MediaAcquisitionError) Unwrap() error {
	return e.Err
}

// NegotiationError reports a failed negotiation step, a malformed or
// out-of-order setup message, or a transport failure before the session
// became active.
type NegotiationError struct {
	Op  string
	Err error
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("negotiation failed (%s): %v", e.Op, e.Err)
}

func (e *NegotiationError) Unwrap() error {
	return e.Err
}

// PeerDisconnectedError reports that the remote participant went away.
type PeerDisconnectedError struct {
	PeerID string
	Cause  string
}

func (e *PeerDisconnectedError) Error() string {
	if e.PeerID == "" {
		return "peer disconnected: " + e.Cause
	}
	return fmt.Sprintf("peer %s disconnected: %s", e.PeerID, e.Cause)
}
