package call

import (
	"context"
	"errors"
	"fmt"

	"github.com/mossy-p/webrtc-call/internal/media"
)

// Controller changes what a live session sends without renegotiating.
// Its operations run on the session loop and so never interleave with
// each other or with negotiation.
type Controller struct {
	s *Session
}

// ToggleMicrophone flips whether microphone audio flows and returns the
// new enabled state.
func (c *Controller) ToggleMicrophone() (bool, error) {
	return c.toggle(media.OriginMicrophone)
}

// ToggleCamera flips whether camera video flows and returns the new
// enabled state. While sharing the screen this only affects the parked
// camera track.
func (c *Controller) ToggleCamera() (bool, error) {
	return c.toggle(media.OriginCamera)
}

func (c *Controller) toggle(origin media.Origin) (bool, error) {
	s := c.s
	var enabled bool
	err := s.do(context.Background(), func() error {
		if !s.live() {
			return ErrNoSession
		}
		track := s.microphone
		if origin == media.OriginCamera {
			track = s.camera
		}
		enabled = !track.Enabled()
		track.SetEnabled(enabled)
		s.emitLocalState()
		return nil
	})
	if errors.Is(err, ErrSessionClosed) {
		err = ErrNoSession
	}
	return enabled, err
}

// StartScreenShare captures the screen and sends it in place of the camera.
// The camera track stays alive so that StopScreenShare can restore it. If
// the screen capture ends on its own the camera is restored automatically.
func (c *Controller) StartScreenShare(ctx context.Context) error {
	s := c.s
	if err := s.do(ctx, func() error {
		if !s.live() {
			return ErrNoSession
		}
		if s.share != shareIdle {
			return ErrAlreadySharing
		}
		s.share = shareStarting
		return nil
	}); err != nil {
		if errors.Is(err, ErrSessionClosed) {
			err = ErrNoSession
		}
		return err
	}

	screen, err := s.config.Devices.CaptureScreen(ctx)
	if err != nil {
		s.post(func() {
			if s.share == shareStarting {
				s.share = shareIdle
			}
		})
		return &MediaAcquisitionError{Err: err}
	}

	err = s.do(ctx, func() error {
		return s.activateScreen(screen)
	})
	if err != nil {
		screen.Stop()
	}
	return err
}

// StopScreenShare restores the camera and releases the screen track. It
// does nothing when no share is active.
func (c *Controller) StopScreenShare(ctx context.Context) error {
	s := c.s
	err := s.do(ctx, func() error {
		switch s.share {
		case shareStarting:
			return ErrShareInProgress
		case shareActive:
			return s.revertToCamera()
		}
		return nil
	})
	if errors.Is(err, ErrSessionClosed) {
		return nil
	}
	return err
}

func (s *Session) activateScreen(screen *media.Track) error {
	if s.share != shareStarting || !s.live() {
		return ErrNoSession
	}
	if err := s.videoSender.ReplaceTrack(screen.Local()); err != nil {
		s.share = shareIdle
		return fmt.Errorf("failed to send screen track: %w", err)
	}
	s.screen = screen
	s.share = shareActive
	s.logger.WithField("track", screen.ID()).Infoln("screen share started")

	go func() {
		<-screen.Done()
		s.post(func() { s.screenEnded(screen) })
	}()

	s.emitLocalState()
	return nil
}

// screenEnded reverts to the camera when the active screen track was ended
// by its source. Tracks released by the application are ignored.
func (s *Session) screenEnded(screen *media.Track) {
	if s.share != shareActive || s.screen != screen || !screen.EndedExternally() {
		return
	}
	s.logger.Infoln("screen capture ended, restoring camera")
	if err := s.revertToCamera(); err != nil {
		s.logger.WithError(err).Warnln("failed to restore camera")
	}
}

func (s *Session) revertToCamera() error {
	screen := s.screen
	s.screen = nil
	s.share = shareIdle

	var err error
	if replaceErr := s.videoSender.ReplaceTrack(s.camera.Local()); replaceErr != nil {
		err = fmt.Errorf("failed to restore camera track: %w", replaceErr)
	}
	screen.Stop()
	s.logger.Infoln("screen share stopped")

	s.emitLocalState()
	return err
}
