package models

import (
	"encoding/json"
	"fmt"
)

// SignalType represents the type of WebRTC signaling message
type SignalType string

const (
	SignalTypeJoin      SignalType = "join"
	SignalTypeLeave     SignalType = "leave"
	SignalTypeOffer     SignalType = "offer"
	SignalTypeAnswer    SignalType = "answer"
	SignalTypeCandidate SignalType = "candidate"
	SignalTypeError     SignalType = "error"
)

// IsSetup reports whether the type is one of the session setup messages the
// relay forwards between participants.
func (t SignalType) IsSetup() bool {
	switch t {
	case SignalTypeOffer, SignalTypeAnswer, SignalTypeCandidate:
		return true
	}
	return false
}

// SessionDescription is the wire form of an SDP offer or answer.
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// ICECandidate is the wire form of a transport-address candidate.
type ICECandidate struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

// SignalMessage represents a WebRTC signaling message
type SignalMessage struct {
	Type      SignalType          `json:"type"`
	From      string              `json:"from,omitempty"`
	To        string              `json:"to,omitempty"`
	CallID    string              `json:"callId,omitempty"`
	SDP       *SessionDescription `json:"sdp,omitempty"`
	Candidate *ICECandidate       `json:"candidate,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// ParseSignalMessage decodes and validates a single message.
func ParseSignalMessage(data []byte) (SignalMessage, error) {
	var msg SignalMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return SignalMessage{}, fmt.Errorf("invalid message: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return SignalMessage{}, err
	}
	return msg, nil
}

// Validate checks that the message carries exactly the payload its type
// requires.
func (m SignalMessage) Validate() error {
	switch m.Type {
	case SignalTypeOffer, SignalTypeAnswer:
		if m.SDP == nil {
			return fmt.Errorf("%s message missing sdp", m.Type)
		}
		if m.SDP.Type != string(m.Type) {
			return fmt.Errorf("%s message has sdp.type=%q", m.Type, m.SDP.Type)
		}
		if m.SDP.SDP == "" {
			return fmt.Errorf("%s message has empty sdp", m.Type)
		}
		if m.Candidate != nil {
			return fmt.Errorf("%s message has unexpected candidate", m.Type)
		}
	case SignalTypeCandidate:
		if m.Candidate == nil {
			return fmt.Errorf("candidate message missing candidate")
		}
		if m.SDP != nil {
			return fmt.Errorf("candidate message has unexpected sdp")
		}
	case SignalTypeJoin, SignalTypeLeave:
		if m.SDP != nil || m.Candidate != nil {
			return fmt.Errorf("%s message has unexpected payload", m.Type)
		}
	case SignalTypeError:
		if m.Error == "" {
			return fmt.Errorf("error message missing error")
		}
	case "":
		return fmt.Errorf("message missing type")
	default:
		return fmt.Errorf("unsupported message type %q", m.Type)
	}
	return nil
}
