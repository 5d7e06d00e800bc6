package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	cli "github.com/mossy-p/webrtc-call/cmd"
	"github.com/mossy-p/webrtc-call/config"
	"github.com/mossy-p/webrtc-call/internal/call"
	"github.com/mossy-p/webrtc-call/internal/media"
	"github.com/mossy-p/webrtc-call/internal/signalclient"
)

func commandCall() *cobra.Command {
	callCmd := &cobra.Command{
		Use:   "call [call-code]",
		Short: "Join a call with synthetic media and stay until hangup",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := runCall(cmd, args); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		},
	}
	callCmd.Flags().String("relay-url", "", "Relay websocket URL (default $RELAY_URL)")
	callCmd.Flags().StringSlice("ice-server", nil, "STUN/TURN server URL (default $ICE_SERVERS)")
	callCmd.Flags().Duration("negotiation-timeout", 0, "Give up when no remote media arrived in time (default $NEGOTIATION_TIMEOUT)")
	callCmd.Flags().Duration("duration", 0, "Hang up after this long, 0 stays until interrupted")
	callCmd.Flags().Duration("share-screen-after", 0, "Start a synthetic screen share this long after the call became active")
	callCmd.Flags().Bool("log-timestamp", true, "Prefix each log line with timestamp")
	callCmd.Flags().String("log-level", "", "Log level (one of panic, fatal, error, warn, info or debug)")
	callCmd.Flags().Bool("with-deadlock-detector", false, "Enable deadlock detection (default $DEADLOCK_DETECTION)")

	return callCmd
}

// relayURL returns the websocket URL for a call code, or the lobby URL when
// no code is given.
func relayURL(base, code string) string {
	if code == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/signal/" + code
}

func runCall(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	flags := cmd.Flags()

	if u, _ := flags.GetString("relay-url"); u != "" {
		cfg.Call.RelayURL = u
	}
	if flags.Changed("ice-server") {
		cfg.Call.ICEServers, _ = flags.GetStringSlice("ice-server")
	}
	if d, _ := flags.GetDuration("negotiation-timeout"); d > 0 {
		cfg.Call.NegotiationTimeout = d
	}
	if level, _ := flags.GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	if flags.Changed("with-deadlock-detector") {
		cfg.DeadlockDetection, _ = flags.GetBool("with-deadlock-detector")
	}

	logTimestamp, _ := flags.GetBool("log-timestamp")
	logger, err := cli.NewLogger(!logTimestamp, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	cli.ConfigureDeadlockDetector(cfg.DeadlockDetection, logger)

	var code string
	if len(args) > 0 {
		code = args[0]
	}
	url := relayURL(cfg.Call.RelayURL, code)

	api, err := call.NewAPI(call.APIOptions{Logger: logger})
	if err != nil {
		return err
	}
	devices := media.NewSyntheticDevices(logger)

	session, err := call.NewSession(call.Config{
		API:        api,
		ICEServers: call.ICEServersFromURLs(cfg.Call.ICEServers),
		Devices:    devices,
		Dial: func(ctx context.Context) (call.Signaler, error) {
			conn, dialErr := signalclient.Dial(ctx, url, logger)
			if dialErr != nil {
				return nil, dialErr
			}
			return conn, nil
		},
		NegotiationTimeout: cfg.Call.NegotiationTimeout,
		Logger:             logger,
	})
	if err != nil {
		return err
	}

	shareAfter, _ := flags.GetDuration("share-screen-after")
	active := make(chan struct{})

	session.OnStateChange(func(state call.State) {
		logger.WithField("state", state).Infoln("call state")
	})
	session.OnLocalStateChange(func(local call.LocalState) {
		logger.WithFields(logrus.Fields{
			"mic":     local.MicEnabled,
			"camera":  local.CameraEnabled,
			"sharing": local.IsScreenSharing,
		}).Infoln("local media")
	})
	session.OnRemoteStream(func(stream *call.RemoteStream) {
		logger.WithField("stream", stream.ID()).Infoln("remote media arrived")
		close(active)
	})

	closed := make(chan error, 1)
	session.OnSessionClosed(func(reason call.CloseReason, err error) {
		logger.WithError(err).WithField("reason", reason).Infoln("call ended")
		closed <- err
	})

	ctx := context.Background()
	logger.WithField("relay", url).Infoln("starting call")
	if err := session.Start(ctx); err != nil {
		return err
	}

	var hangup <-chan time.Time
	if d, _ := flags.GetDuration("duration"); d > 0 {
		hangup = time.After(d)
	}
	var share <-chan time.Time
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-active:
			active = nil
			if shareAfter > 0 {
				share = time.After(shareAfter)
			}
			go consumeRemoteTracks(logger, session)
		case <-share:
			share = nil
			if err := session.Controller().StartScreenShare(ctx); err != nil {
				logger.WithError(err).Warnln("failed to start screen share")
			}
		case <-hangup:
			return session.Stop()
		case reason := <-signalCh:
			logger.WithField("signal", reason).Warnln("received signal, hanging up")
			return session.Stop()
		case err := <-closed:
			var disconnected *call.PeerDisconnectedError
			if err == nil || errors.As(err, &disconnected) {
				return nil
			}
			return err
		}
	}
}

// consumeRemoteTracks picks up every remote track, including ones arriving
// after the stream was announced.
func consumeRemoteTracks(logger logrus.FieldLogger, session *call.Session) {
	seen := 0
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		tracks := session.RemoteStream().Tracks()
		for _, track := range tracks[seen:] {
			go consumeRemoteTrack(logger, track)
		}
		seen = len(tracks)

		select {
		case <-session.Done():
			return
		case <-ticker.C:
		}
	}
}

// consumeRemoteTrack reads and discards RTP so receiver reports keep
// flowing, and logs the packet rate every few seconds.
func consumeRemoteTrack(logger logrus.FieldLogger, track *webrtc.TrackRemote) {
	logger = logger.WithFields(logrus.Fields{
		"kind":  track.Kind(),
		"codec": track.Codec().MimeType,
	})
	logger.Infoln("receiving remote track")

	packets := 0
	last := time.Now()
	for {
		if _, _, err := track.ReadRTP(); err != nil {
			logger.WithError(err).Debugln("remote track ended")
			return
		}
		packets++
		if since := time.Since(last); since >= 5*time.Second {
			logger.WithField("pps", float64(packets)/since.Seconds()).Debugln("remote track stats")
			packets = 0
			last = time.Now()
		}
	}
}
