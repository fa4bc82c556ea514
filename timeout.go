package seal

import (
	"time"

	"github.com/brickingsoft/errors"
)

func (s *Session) armTimer() {
	if s.handshakeTimeout <= 0 {
		return
	}
	s.timer = time.AfterFunc(s.handshakeTimeout, func() {
		s.loop.Submit(s.handshakeTimedOut)
	})
}

func (s *Session) cancelTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) handshakeTimedOut() {
	// cancellation can race expiry; the state check on the loop settles it
	if s.tearingDown || s.State() != Handshaking {
		return
	}
	cause := errors.From(ErrHandshakeTimeout)
	s.log.Debug().Dur("timeout", s.handshakeTimeout).Msg("seal: handshake timed out")
	s.teardown(cause, true)
}
