// Package call implements the client side of a two party call: the session
// negotiator that drives one pion PeerConnection through offer, answer and
// candidate exchange, and the track controller that mutes and swaps the
// outgoing tracks of a live session.
package call

import (
	"fmt"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/intervalpli"
	"github.com/pion/transport/v4"
	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"
)

const DefaultPLIInterval = 3 * time.Second

// APIOptions configures NewAPI.
type APIOptions struct {
	Logger logrus.FieldLogger
	// Net replaces the host network stack, e.g. with a vnet.Net in tests.
	Net         transport.Net
	PLIInterval time.Duration
}

// NewAPI builds a pion API with the default codecs and interceptors and a
// periodic keyframe request for received video.
func NewAPI(opts APIOptions) (*webrtc.API, error) {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.PLIInterval <= 0 {
		opts.PLIInterval = DefaultPLIInterval
	}

	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("failed to register codecs: %w", err)
	}

	i := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, i); err != nil {
		return nil, fmt.Errorf("failed to register interceptors: %w", err)
	}

	intervalPli, err := intervalpli.NewReceiverInterceptor(
		intervalpli.GeneratorInterval(opts.PLIInterval),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pli interceptor: %w", err)
	}
	i.Add(intervalPli)

	s := webrtc.SettingEngine{
		LoggerFactory: NewLoggerFactory(opts.Logger),
	}
	if opts.Net != nil {
		s.SetNet(opts.Net)
	}

	return webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(i),
		webrtc.WithSettingEngine(s),
	), nil
}

// ICEServersFromURLs turns a list of STUN/TURN urls into one ICE server
// entry per url.
func ICEServersFromURLs(urls []string) []webrtc.ICEServer {
	servers := make([]webrtc.ICEServer, 0, len(urls))
	for _, u := range urls {
		servers = append(servers, webrtc.ICEServer{URLs: []string{u}})
	}
	return servers
}
