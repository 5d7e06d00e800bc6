package call

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"

	"github.com/mossy-p/webrtc-call/internal/media"
	"github.com/mossy-p/webrtc-call/internal/models"
)

const DefaultNegotiationTimeout = 30 * time.Second

// Signaler is a connection to the signaling relay.
type Signaler interface {
	Send(msg models.SignalMessage) error
	// Messages delivers raw relay messages and is closed when the
	// connection ends.
	Messages() <-chan []byte
	Close() error
}

// Config configures a Session.
type Config struct {
	// API builds the PeerConnection. A default one is created when nil.
	API        *webrtc.API
	ICEServers []webrtc.ICEServer
	Devices    media.Devices
	// Dial opens the signaling connection. It is only called once local
	// media was acquired.
	Dial               func(ctx context.Context) (Signaler, error)
	NegotiationTimeout time.Duration
	Logger             logrus.FieldLogger
}

// Session drives one peer media session from media acquisition to hangup.
// All state is owned by a serial loop; pion callbacks, relay messages,
// timers and public calls are posted to it, so negotiation steps and
// track swaps never interleave. Events are delivered in order on a
// separate goroutine.
type Session struct {
	config Config
	logger logrus.FieldLogger

	loop   *serialLoop
	events *serialLoop

	mu              deadlock.Mutex
	state           State
	local           LocalState
	remote          *RemoteStream
	onRemoteStream  func(*RemoteStream)
	onLocalState    func(LocalState)
	onStateChange   func(State)
	onSessionClosed func(CloseReason, error)
	closeReason     CloseReason
	closeErr        error

	// Owned by the loop.
	cancelStart  context.CancelFunc
	pc           *webrtc.PeerConnection
	videoSender  *webrtc.RTPSender
	microphone   *media.Track
	camera       *media.Track
	screen       *media.Track
	share        shareState
	signaler     Signaler
	selfID       string
	peerID       string
	pending      []webrtc.ICECandidateInit
	addCandidate func(webrtc.ICECandidateInit) error
	timer        *time.Timer

	controller *Controller
}

// NewSession creates an idle session.
func NewSession(config Config) (*Session, error) {
	if config.Devices == nil {
		return nil, errors.New("devices are required")
	}
	if config.Dial == nil {
		return nil, errors.New("dial function is required")
	}
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}
	if config.NegotiationTimeout <= 0 {
		config.NegotiationTimeout = DefaultNegotiationTimeout
	}
	if config.API == nil {
		api, err := NewAPI(APIOptions{Logger: config.Logger})
		if err != nil {
			return nil, err
		}
		config.API = api
	}

	s := &Session{
		config: config,
		logger: config.Logger,
		loop:   newSerialLoop(),
		events: newSerialLoop(),
	}
	s.controller = &Controller{s: s}
	return s, nil
}

// OnRemoteStream sets the handler called once when the peer's media
// first arrives.
func (s *Session) OnRemoteStream(f func(*RemoteStream)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRemoteStream = f
}

// OnLocalStateChange sets the handler called whenever mute or screen share
// state changes.
func (s *Session) OnLocalStateChange(f func(LocalState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLocalState = f
}

// OnStateChange sets the handler called on every lifecycle transition.
func (s *Session) OnStateChange(f func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStateChange = f
}

// OnSessionClosed sets the handler called exactly once when the session
// reaches Closed or Failed.
func (s *Session) OnSessionClosed(f func(CloseReason, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSessionClosed = f
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) LocalState() LocalState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.local
}

// RemoteStream returns the peer's stream, or nil before it arrived.
func (s *Session) RemoteStream() *RemoteStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remote
}

// Err returns the reason and error the session ended with.
func (s *Session) Err() (CloseReason, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeReason, s.closeErr
}

func (s *Session) Controller() *Controller {
	return s.controller
}

// Done is closed once the session has ended and every queued step ran.
func (s *Session) Done() <-chan struct{} {
	return s.loop.done
}

// Start acquires local media, binds it to a new PeerConnection and connects
// to the relay. It returns once the session is Connecting; reaching Active
// is reported through OnRemoteStream.
func (s *Session) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := s.do(ctx, func() error {
		if s.state.Terminal() {
			return ErrSessionClosed
		}
		if s.state != StateIdle {
			return ErrAlreadyStarted
		}
		s.cancelStart = cancel
		s.setState(StateAcquiringMedia)
		return nil
	}); err != nil {
		return err
	}

	tracks, err := s.config.Devices.CaptureCameraAndMicrophone(ctx)
	if err != nil {
		err = &MediaAcquisitionError{Err: err}
		s.post(func() {
			if s.state == StateAcquiringMedia {
				s.fail(ReasonMediaError, err)
			}
		})
		return err
	}

	if err := s.do(ctx, func() error {
		return s.bindTracks(tracks)
	}); err != nil {
		media.StopAll(tracks)
		return err
	}

	signaler, err := s.config.Dial(ctx)
	if err != nil {
		err = &NegotiationError{Op: "dial", Err: err}
		s.post(func() {
			if s.state == StateConnecting {
				s.fail(ReasonNegotiationError, err)
			}
		})
		return err
	}

	err = s.do(ctx, func() error {
		if s.state != StateConnecting {
			return ErrSessionClosed
		}
		s.attachSignaler(signaler)
		return nil
	})
	if err != nil {
		signaler.Close()
	}
	return err
}

// Stop hangs up. It cancels a pending media acquisition, releases every
// local track and closes the PeerConnection and the relay connection. It
// is safe to call at any point and more than once.
func (s *Session) Stop() error {
	err := s.do(context.Background(), func() error {
		s.terminate(StateClosed, ReasonHangup, nil)
		return nil
	})
	if errors.Is(err, ErrSessionClosed) {
		return nil
	}
	return err
}

// post queues fn on the session loop. It is dropped once the session has
// ended.
func (s *Session) post(fn func()) {
	s.loop.post(fn)
}

// do runs fn on the session loop and waits for its result.
func (s *Session) do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	if !s.loop.post(func() { result <- fn() }) {
		return ErrSessionClosed
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) emit(fn func()) {
	s.events.post(fn)
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()

	s.logger.WithField("state", state).Debugln("session state changed")
	s.emit(func() {
		s.mu.Lock()
		f := s.onStateChange
		s.mu.Unlock()
		if f != nil {
			f(state)
		}
	})
}

func (s *Session) emitLocalState() {
	local := LocalState{
		IsScreenSharing: s.share == shareActive,
	}
	if s.microphone != nil {
		local.MicEnabled = s.microphone.Enabled()
	}
	if s.camera != nil {
		local.CameraEnabled = s.camera.Enabled()
	}

	s.mu.Lock()
	s.local = local
	s.mu.Unlock()

	s.emit(func() {
		s.mu.Lock()
		f := s.onLocalState
		s.mu.Unlock()
		if f != nil {
			f(local)
		}
	})
}

// live reports whether tracks are bound to a PeerConnection.
func (s *Session) live() bool {
	return s.state == StateConnecting || s.state == StateActive
}

func (s *Session) bindTracks(tracks []*media.Track) error {
	if s.state != StateAcquiringMedia {
		return ErrSessionClosed
	}

	audio := media.TrackOf(tracks, media.KindAudio)
	video := media.TrackOf(tracks, media.KindVideo)
	if audio == nil || video == nil {
		err := &MediaAcquisitionError{Err: fmt.Errorf("capture returned %d tracks without audio and video", len(tracks))}
		s.fail(ReasonMediaError, err)
		return err
	}

	pc, err := s.config.API.NewPeerConnection(webrtc.Configuration{
		ICEServers: s.config.ICEServers,
	})
	if err != nil {
		err = &NegotiationError{Op: "create peer connection", Err: err}
		s.fail(ReasonNegotiationError, err)
		return err
	}
	s.pc = pc
	s.microphone = audio
	s.camera = video
	if s.addCandidate == nil {
		s.addCandidate = pc.AddICECandidate
	}

	for _, track := range []*media.Track{audio, video} {
		sender, err := pc.AddTrack(track.Local())
		if err != nil {
			err = &NegotiationError{Op: "add track", Err: err}
			s.fail(ReasonNegotiationError, err)
			return err
		}
		if track == video {
			s.videoSender = sender
		}
		go drainRTCP(sender)
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		s.post(func() { s.sendCandidate(c.ToJSON()) })
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		s.post(func() { s.handleRemoteTrack(track) })
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.post(func() { s.handleConnectionState(state) })
	})

	s.setState(StateConnecting)
	s.timer = time.AfterFunc(s.config.NegotiationTimeout, func() {
		s.post(func() {
			if s.state == StateConnecting {
				s.fail(ReasonNegotiationTimeout, &NegotiationError{Op: "timeout", Err: ErrNegotiationTimeout})
			}
		})
	})
	s.emitLocalState()
	return nil
}

// drainRTCP reads incoming RTCP so that interceptors such as NACK keep
// working. It returns when the sender is closed.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

func (s *Session) attachSignaler(signaler Signaler) {
	s.signaler = signaler
	go func() {
		for data := range signaler.Messages() {
			s.post(func() { s.handleSignal(data) })
		}
		s.post(s.handleSignalingClosed)
	}()
}

func (s *Session) send(msg models.SignalMessage) error {
	if s.signaler == nil {
		return ErrSignalingClosed
	}
	msg.To = s.peerID
	return s.signaler.Send(msg)
}

func (s *Session) sendCandidate(c webrtc.ICECandidateInit) {
	if s.state.Terminal() {
		return
	}
	if err := s.send(models.SignalMessage{
		Type:      models.SignalTypeCandidate,
		Candidate: toWireCandidate(c),
	}); err != nil {
		s.logger.WithError(err).Debugln("failed to send candidate")
	}
}

func (s *Session) handleSignal(data []byte) {
	if !s.live() {
		return
	}

	msg, err := models.ParseSignalMessage(data)
	if err != nil {
		s.fail(ReasonNegotiationError, &NegotiationError{Op: "parse", Err: err})
		return
	}

	logger := s.logger.WithFields(logrus.Fields{
		"type": msg.Type,
		"from": msg.From,
	})

	switch msg.Type {
	case models.SignalTypeJoin:
		s.handleJoin(msg)
		return
	case models.SignalTypeLeave:
		if msg.From != "" && msg.From == s.peerID {
			s.disconnected("peer left the call")
		}
		return
	case models.SignalTypeError:
		logger.WithField("error", msg.Error).Warnln("relay rejected a message")
		if s.state == StateConnecting {
			s.fail(ReasonNegotiationError, &NegotiationError{Op: "relay", Err: errors.New(msg.Error)})
		}
		return
	}

	if msg.From == s.selfID {
		return
	}
	if s.peerID == "" {
		s.peerID = msg.From
	} else if msg.From != s.peerID {
		logger.Debugln("ignoring message from a third participant")
		return
	}

	switch msg.Type {
	case models.SignalTypeOffer:
		err = s.handleOffer(msg)
	case models.SignalTypeAnswer:
		err = s.handleAnswer(msg)
	case models.SignalTypeCandidate:
		err = s.handleCandidate(msg)
	}
	if err != nil {
		logger.WithError(err).Warnln("negotiation step failed")
		s.fail(ReasonNegotiationError, err)
	}
}

// handleJoin learns the own participant id from the relay's confirmation,
// which is always the first message, and answers any later join by
// offering. The participant already present offers, the newcomer answers.
func (s *Session) handleJoin(msg models.SignalMessage) {
	if s.selfID == "" {
		s.selfID = msg.From
		s.logger.WithField("id", s.selfID).Debugln("joined relay")
		return
	}
	if msg.From == s.selfID {
		return
	}
	if s.peerID != "" || s.pc.SignalingState() != webrtc.SignalingStateStable || s.pc.RemoteDescription() != nil {
		s.logger.WithField("from", msg.From).Debugln("ignoring join while already negotiating")
		return
	}

	s.peerID = msg.From
	if err := s.offer(); err != nil {
		s.fail(ReasonNegotiationError, err)
	}
}

func (s *Session) offer() error {
	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return &NegotiationError{Op: "create offer", Err: err}
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return &NegotiationError{Op: "set local offer", Err: err}
	}
	if err := s.send(models.SignalMessage{
		Type: models.SignalTypeOffer,
		SDP:  toWireDescription(offer),
	}); err != nil {
		return &NegotiationError{Op: "send offer", Err: err}
	}
	s.logger.WithField("peer", s.peerID).Debugln("sent offer")
	return nil
}

func (s *Session) handleOffer(msg models.SignalMessage) error {
	if s.pc.SignalingState() != webrtc.SignalingStateStable {
		return &NegotiationError{Op: "offer", Err: fmt.Errorf("unexpected offer in signaling state %s", s.pc.SignalingState())}
	}
	if err := s.setRemoteDescription(msg.SDP); err != nil {
		return err
	}

	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return &NegotiationError{Op: "create answer", Err: err}
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		return &NegotiationError{Op: "set local answer", Err: err}
	}
	if err := s.send(models.SignalMessage{
		Type: models.SignalTypeAnswer,
		SDP:  toWireDescription(answer),
	}); err != nil {
		return &NegotiationError{Op: "send answer", Err: err}
	}
	s.logger.WithField("peer", s.peerID).Debugln("sent answer")
	return nil
}

func (s *Session) handleAnswer(msg models.SignalMessage) error {
	if s.pc.SignalingState() != webrtc.SignalingStateHaveLocalOffer {
		return &NegotiationError{Op: "answer", Err: errors.New("answer without a local offer")}
	}
	return s.setRemoteDescription(msg.SDP)
}

// setRemoteDescription applies d and then replays the candidates that
// arrived before it, in arrival order.
func (s *Session) setRemoteDescription(d *models.SessionDescription) error {
	description, err := fromWireDescription(d)
	if err != nil {
		return &NegotiationError{Op: "decode description", Err: err}
	}
	if err := s.pc.SetRemoteDescription(description); err != nil {
		return &NegotiationError{Op: "set remote " + description.Type.String(), Err: err}
	}

	pending := s.pending
	s.pending = nil
	for _, candidate := range pending {
		if err := s.addCandidate(candidate); err != nil {
			return &NegotiationError{Op: "add queued candidate", Err: err}
		}
	}
	if len(pending) > 0 {
		s.logger.WithField("count", len(pending)).Debugln("applied queued candidates")
	}
	return nil
}

func (s *Session) handleCandidate(msg models.SignalMessage) error {
	candidate, err := fromWireCandidate(msg.Candidate)
	if err != nil {
		return &NegotiationError{Op: "decode candidate", Err: err}
	}
	if s.pc.RemoteDescription() == nil {
		s.pending = append(s.pending, candidate)
		return nil
	}
	if err := s.addCandidate(candidate); err != nil {
		return &NegotiationError{Op: "add candidate", Err: err}
	}
	return nil
}

func (s *Session) handleRemoteTrack(track *webrtc.TrackRemote) {
	if !s.live() {
		return
	}

	s.logger.WithFields(logrus.Fields{
		"kind":   track.Kind(),
		"stream": track.StreamID(),
	}).Debugln("remote track arrived")

	s.mu.Lock()
	first := s.remote == nil
	if first {
		s.remote = newRemoteStream(track.StreamID())
	}
	remote := s.remote
	s.mu.Unlock()
	remote.add(track)

	if !first {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.setState(StateActive)
	s.emit(func() {
		s.mu.Lock()
		f := s.onRemoteStream
		s.mu.Unlock()
		if f != nil {
			f(remote)
		}
	})
}

func (s *Session) handleConnectionState(state webrtc.PeerConnectionState) {
	if !s.live() {
		return
	}
	s.logger.WithField("connection", state).Debugln("peer connection state changed")

	switch state {
	case webrtc.PeerConnectionStateFailed:
		if s.state == StateConnecting {
			s.fail(ReasonNegotiationError, &NegotiationError{Op: "connect", Err: errors.New("peer connection failed")})
			return
		}
		s.disconnected("peer connection failed")
	case webrtc.PeerConnectionStateDisconnected:
		if s.state == StateActive {
			s.disconnected("peer connection lost")
		}
	}
}

func (s *Session) handleSignalingClosed() {
	if s.state != StateConnecting {
		return
	}
	s.fail(ReasonNegotiationError, &NegotiationError{Op: "signaling", Err: ErrSignalingClosed})
}

func (s *Session) disconnected(cause string) {
	s.fail(ReasonPeerDisconnected, &PeerDisconnectedError{PeerID: s.peerID, Cause: cause})
}

// fail ends the session after an error. Errors before the session became
// active leave it Failed; later ones close it.
func (s *Session) fail(reason CloseReason, err error) {
	state := StateFailed
	if s.state == StateActive {
		state = StateClosed
	}
	s.logger.WithError(err).WithField("reason", reason).Warnln("session ended")
	s.terminate(state, reason, err)
}

func (s *Session) terminate(state State, reason CloseReason, err error) {
	if s.state.Terminal() {
		return
	}

	if s.timer != nil {
		s.timer.Stop()
	}
	if s.cancelStart != nil {
		s.cancelStart()
	}
	media.StopAll([]*media.Track{s.microphone, s.camera, s.screen})
	s.screen = nil
	s.share = shareIdle

	if s.pc != nil {
		if closeErr := s.pc.Close(); closeErr != nil {
			s.logger.WithError(closeErr).Debugln("failed to close peer connection")
		}
	}
	if s.signaler != nil {
		s.signaler.Close()
	}

	s.mu.Lock()
	s.closeReason = reason
	s.closeErr = err
	s.mu.Unlock()

	s.setState(state)
	s.emit(func() {
		s.mu.Lock()
		f := s.onSessionClosed
		s.mu.Unlock()
		if f != nil {
			f(reason, err)
		}
	})

	s.loop.stop()
	s.events.stop()
}
