package call

import (
	"strings"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
)

func TestNewAPIGathersOnVirtualNet(t *testing.T) {
	nets := newVNet(t, "10.0.0.5")
	api, err := NewAPI(APIOptions{Logger: quietLogger(), Net: nets[0]})
	if err != nil {
		t.Fatal(err)
	}

	pc, err := api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatal(err)
	}
	defer pc.Close()

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio); err != nil {
		t.Fatal(err)
	}
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		t.Fatal(err)
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		t.Fatal(err)
	}
	select {
	case <-gathered:
	case <-time.After(10 * time.Second):
		t.Fatal("candidate gathering did not complete")
	}

	if sdp := pc.LocalDescription().SDP; !strings.Contains(sdp, "10.0.0.5") {
		t.Fatalf("no candidate on the virtual address in\n%s", sdp)
	}
}

func TestICEServersFromURLs(t *testing.T) {
	servers := ICEServersFromURLs([]string{"stun:a.example:3478", "turn:b.example"})
	if len(servers) != 2 || servers[0].URLs[0] != "stun:a.example:3478" || servers[1].URLs[0] != "turn:b.example" {
		t.Fatalf("servers = %+v", servers)
	}
}
