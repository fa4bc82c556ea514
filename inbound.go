package seal

import (
	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/seal/pkg/bytebuffers"
)

// Feed hands inbound ciphertext to the session. The bytes are copied before
// crossing onto the session loop; the caller keeps ownership of p.
func (s *Session) Feed(p []byte) {
	if len(p) == 0 {
		return
	}
	cp := make([]byte, len(p))
	copy(cp, p)
	s.loop.Submit(func() { s.feed(cp) })
}

func (s *Session) feed(p []byte) {
	if s.tearingDown {
		return
	}
	// a retention buffer failure is a session fault, not a malformed record
	if _, err := s.inbound.Write(p); err != nil {
		s.fault(errors.From(ErrProtocol, errors.WithWrap(err)))
		return
	}
	s.unwrap()
}

// unwrap drains retained ciphertext through the engine. An underflow is not an
// error: the partial record stays retained and more input is requested.
func (s *Session) unwrap() {
	for !s.taskPending && !s.tearingDown {
		src := s.inbound.Peek(s.inbound.Len())
		if len(src) == 0 && s.State() != Handshaking {
			return
		}
		dst := bytebuffers.Get()
		res, unwrapErr := s.engine.Unwrap(src, dst)
		if unwrapErr != nil {
			bytebuffers.Put(dst)
			s.fault(errors.From(ErrDecode, errors.WithWrap(unwrapErr)))
			return
		}
		if res.Consumed > 0 {
			_ = s.inbound.Discard(res.Consumed)
		}
		if res.Produced > 0 {
			pt, _ := dst.Next(dst.Len())
			s.upstream.Receive(pt)
		}
		bytebuffers.Put(dst)
		if res.Status == StatusClosed {
			s.peerClosed()
			return
		}
		switch res.Handshake {
		case HandshakeNeedsTask:
			s.runDelegatedTasks()
			return
		case HandshakeNeedsWrap:
			s.pumpHandshake()
			if s.tearingDown || s.taskPending {
				return
			}
		case HandshakeFinished:
			s.establish()
			if s.tearingDown || s.taskPending {
				return
			}
		case HandshakeNeedsUnwrap:
			if res.Status == StatusUnderflow || (res.Consumed == 0 && res.Produced == 0) {
				s.requestRead()
				return
			}
		default:
			if res.Status == StatusUnderflow {
				if s.State() == Handshaking {
					s.requestRead()
				}
				return
			}
			if res.Consumed == 0 && res.Produced == 0 {
				return
			}
		}
	}
}

// peerClosed handles a clean close record from the peer.
func (s *Session) peerClosed() {
	s.log.Debug().Msg("seal: peer closed")
	if err := s.engine.CloseInbound(); err != nil {
		s.log.Debug().Err(err).Msg("seal: close inbound failed")
	}
	s.teardown(nil, true)
}

func (s *Session) requestRead() {
	s.downstream.Read()
}
