package call

import (
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/mossy-p/webrtc-call/internal/models"
)

func toWireDescription(d webrtc.SessionDescription) *models.SessionDescription {
	return &models.SessionDescription{
		Type: d.Type.String(),
		SDP:  d.SDP,
	}
}

func fromWireDescription(d *models.SessionDescription) (webrtc.SessionDescription, error) {
	if d == nil {
		return webrtc.SessionDescription{}, fmt.Errorf("missing session description")
	}
	t := webrtc.NewSDPType(d.Type)
	if t != webrtc.SDPTypeOffer && t != webrtc.SDPTypeAnswer {
		return webrtc.SessionDescription{}, fmt.Errorf("unsupported sdp type %q", d.Type)
	}
	return webrtc.SessionDescription{Type: t, SDP: d.SDP}, nil
}

func toWireCandidate(c webrtc.ICECandidateInit) *models.ICECandidate {
	return &models.ICECandidate{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}

func fromWireCandidate(c *models.ICECandidate) (webrtc.ICECandidateInit, error) {
	if c == nil || c.Candidate == "" {
		return webrtc.ICECandidateInit{}, fmt.Errorf("missing candidate")
	}
	return webrtc.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}, nil
}
