package call

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/pion/transport/v4/vnet"
	goredis "github.com/redis/go-redis/v9"

	"github.com/mossy-p/webrtc-call/internal/handlers"
	"github.com/mossy-p/webrtc-call/internal/media"
	"github.com/mossy-p/webrtc-call/internal/redis"
	"github.com/mossy-p/webrtc-call/internal/relay"
	"github.com/mossy-p/webrtc-call/internal/signalclient"
)

func newRelayURL(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	store := redis.NewStore(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { store.Close() })

	router := gin.New()
	handlers.New(store, relay.NewRegistry(quietLogger(), nil), quietLogger(), "secret", 64).Register(router)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func newVNet(t *testing.T, ips ...string) []*vnet.Net {
	t.Helper()
	router, err := vnet.NewRouter(&vnet.RouterConfig{
		CIDR:          "10.0.0.0/24",
		LoggerFactory: NewLoggerFactory(quietLogger()),
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}

	nets := make([]*vnet.Net, 0, len(ips))
	for _, ip := range ips {
		n, err := vnet.NewNet(&vnet.NetConfig{StaticIPs: []string{ip}})
		if err != nil {
			t.Fatalf("new net %s: %v", ip, err)
		}
		if err := router.AddNet(n); err != nil {
			t.Fatalf("add net %s: %v", ip, err)
		}
		nets = append(nets, n)
	}

	if err := router.Start(); err != nil {
		t.Fatalf("start router: %v", err)
	}
	t.Cleanup(func() { _ = router.Stop() })
	return nets
}

type peer struct {
	*Session
	remoteStreams atomic.Int32
	active        chan struct{}
	closed        chan CloseReason
}

func newPeer(t *testing.T, relayURL string, n *vnet.Net) *peer {
	t.Helper()
	logger := quietLogger()
	api, err := NewAPI(APIOptions{Logger: logger, Net: n})
	if err != nil {
		t.Fatal(err)
	}

	s, err := NewSession(Config{
		API:     api,
		Devices: media.NewSyntheticDevices(logger),
		Dial: func(ctx context.Context) (Signaler, error) {
			conn, err := signalclient.Dial(ctx, relayURL, logger)
			if err != nil {
				return nil, err
			}
			return conn, nil
		},
		Logger: logger,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Stop() })

	p := &peer{
		Session: s,
		active:  make(chan struct{}),
		closed:  make(chan CloseReason, 1),
	}
	s.OnRemoteStream(func(*RemoteStream) {
		if p.remoteStreams.Add(1) == 1 {
			close(p.active)
		}
	})
	s.OnSessionClosed(func(reason CloseReason, _ error) {
		p.closed <- reason
	})
	return p
}

func (p *peer) joined(t *testing.T) bool {
	var id string
	if err := p.do(context.Background(), func() error {
		id = p.selfID
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	return id != ""
}

func TestTwoSessionsNegotiateThroughRelay(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping end-to-end negotiation in short mode")
	}

	relayURL := newRelayURL(t)
	nets := newVNet(t, "10.0.0.1", "10.0.0.2")
	ctx := context.Background()

	first := newPeer(t, relayURL, nets[0])
	if err := first.Start(ctx); err != nil {
		t.Fatal(err)
	}
	eventually(t, "first peer to join the relay", func() bool { return first.joined(t) })

	second := newPeer(t, relayURL, nets[1])
	if err := second.Start(ctx); err != nil {
		t.Fatal(err)
	}

	for name, p := range map[string]*peer{"first": first, "second": second} {
		select {
		case <-p.active:
		case reason := <-p.closed:
			t.Fatalf("%s peer closed with %s before becoming active", name, reason)
		case <-time.After(20 * time.Second):
			t.Fatalf("%s peer never received remote media", name)
		}
		if state := p.State(); state != StateActive {
			t.Fatalf("%s peer state = %s", name, state)
		}
		if p.RemoteStream() == nil {
			t.Fatalf("%s peer has no remote stream", name)
		}
	}

	// Both media kinds arrive, still with a single remote stream event.
	eventually(t, "both remote tracks", func() bool {
		return len(first.RemoteStream().Tracks()) == 2 && len(second.RemoteStream().Tracks()) == 2
	})
	if first.remoteStreams.Load() != 1 || second.remoteStreams.Load() != 1 {
		t.Fatalf("remote stream events = %d/%d, want 1/1", first.remoteStreams.Load(), second.remoteStreams.Load())
	}

	// Screen share swaps the track in place while the call stays active.
	if err := first.Controller().StartScreenShare(ctx); err != nil {
		t.Fatal(err)
	}
	if err := first.Controller().StopScreenShare(ctx); err != nil {
		t.Fatal(err)
	}
	if first.State() != StateActive {
		t.Fatalf("state after screen share = %s", first.State())
	}

	// Hanging up on one side closes the other through the relay's leave.
	if err := first.Stop(); err != nil {
		t.Fatal(err)
	}
	select {
	case reason := <-second.closed:
		if reason != ReasonPeerDisconnected {
			t.Fatalf("second peer closed with %s", reason)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("second peer did not notice the hangup")
	}
	<-second.Done()
	if state := second.State(); state != StateClosed {
		t.Fatalf("second peer state = %s, want closed", state)
	}
}
