package seal

import (
	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/seal/async"
	"github.com/brickingsoft/seal/pkg/bytebuffers"
)

// Close tears the session down locally: emit the engine close record
// best-effort, settle every outstanding completion, close the transport.
// Safe to call at any point in the lifecycle, including before a handshake.
func (s *Session) Close() (future async.Future[async.Void]) {
	s.loop.Submit(s.beginClose)
	future = s.closePromise.Future()
	return
}

// Detach unbinds the session from its pipeline without closing the transport,
// e.g. when the adapter is removed mid-stream. Every outstanding completion
// still resolves.
func (s *Session) Detach() {
	s.loop.Submit(func() {
		if s.tearingDown {
			return
		}
		s.teardown(errors.From(ErrClosed), false)
	})
}

func (s *Session) beginClose() {
	if s.tearingDown {
		return
	}
	s.log.Debug().Msg("seal: close requested")
	if s.established {
		s.setState(Closing)
	}
	s.teardown(nil, true)
}

// teardown is the single exit path of a session. It runs at most once; a nil
// cause means a locally requested or peer-clean close. Order matters: the
// handshake completion settles before the close completion, and both before
// the transport is closed.
func (s *Session) teardown(cause error, closeTransport bool) {
	if s.tearingDown {
		return
	}
	s.tearingDown = true
	s.cancelTimer()
	if cause != nil {
		s.log.Debug().Err(cause).Msg("seal: teardown")
	}
	if !s.outboundClosed {
		s.engine.CloseOutbound()
		s.flushPendingRecords()
		s.outboundClosed = true
	}
	hsCause := cause
	if hsCause == nil {
		hsCause = errors.From(ErrClosed)
	}
	if !s.handshakePromise.Completed() {
		s.upstream.Event(HandshakeCompletion{cause: hsCause})
		s.handshakePromise.Fail(hsCause)
	}
	if !s.closePromise.Completed() {
		if cause == nil && s.established {
			s.upstream.Event(CloseCompletion{})
			s.closePromise.Succeed(async.Void{})
		} else {
			closeCause := cause
			if closeCause == nil {
				closeCause = errors.From(ErrClosed)
			}
			s.upstream.Event(CloseCompletion{cause: closeCause})
			s.closePromise.Fail(closeCause)
		}
	}
	pendErr := errors.From(ErrClosed)
	if cause != nil {
		pendErr = errors.From(ErrClosed, errors.WithWrap(cause))
	}
	for _, pw := range s.pendings {
		pw.fail(pendErr)
		pw.release()
	}
	s.pendings = nil
	for _, entry := range s.deferred {
		entry.promise.Fail(pendErr)
	}
	s.deferred = nil
	for _, h := range s.inflight {
		h.fail(pendErr)
	}
	s.inflight = nil
	if cause != nil && !s.established {
		s.setState(Failed)
	} else {
		s.setState(Closed)
	}
	if closeTransport {
		s.downstream.Close()
	}
	if !s.released {
		s.released = true
		if releaseErr := s.engineRef.Release(); releaseErr != nil {
			s.log.Debug().Err(releaseErr).Msg("seal: engine release failed")
		}
	}
	s.loop.Close()
}

// flushPendingRecords drains the engine's close or alert records to the
// transport best-effort. Bounded; a failure here never blocks teardown.
func (s *Session) flushPendingRecords() {
	for i := 0; i < 4; i++ {
		dst := bytebuffers.Get()
		res, wrapErr := s.engine.Wrap(nil, dst)
		if wrapErr != nil {
			bytebuffers.Put(dst)
			return
		}
		if res.Produced > 0 {
			ct, _ := dst.Next(dst.Len())
			s.downstream.Write(ct)
		}
		bytebuffers.Put(dst)
		if res.Status == StatusClosed || res.Produced == 0 {
			return
		}
	}
}
