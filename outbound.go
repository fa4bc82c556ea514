package seal

import (
	"io"

	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/seal/async"
	"github.com/brickingsoft/seal/pkg/bytebuffers"
)

type promiseEntry struct {
	promise async.Promise[int]
	n       int
}

// pendingWrite is one queued plaintext unit. Owned buffers may absorb later
// small writes until first handed to the engine; read-only slices are never
// merged into and never mutated.
type pendingWrite struct {
	buf     bytebuffers.Buffer
	ro      []byte
	entries []promiseEntry
	flushed bool
}

func (pw *pendingWrite) remaining() (p []byte) {
	if pw.buf != nil {
		p = pw.buf.Peek(pw.buf.Len())
		return
	}
	p = pw.ro
	return
}

func (pw *pendingWrite) consume(n int) {
	if pw.buf != nil {
		_ = pw.buf.Discard(n)
		return
	}
	pw.ro = pw.ro[n:]
}

func (pw *pendingWrite) fail(cause error) {
	for _, entry := range pw.entries {
		entry.promise.Fail(cause)
	}
}

func (pw *pendingWrite) release() {
	if pw.buf != nil {
		bytebuffers.Put(pw.buf)
		pw.buf = nil
	}
	pw.ro = nil
}

// Write queues one plaintext payload. Accepted payloads are bytebuffers.Buffer
// (ownership transfers to the session) and []byte (borrowed, never mutated).
// Anything else is rejected without touching the queue or the handshake, and
// closed first when it is an io.Closer. The future resolves with the payload
// length once the plaintext was fully wrapped and the transport accepted every
// carrying record.
func (s *Session) Write(msg any) (future async.Future[int]) {
	switch msg.(type) {
	case bytebuffers.Buffer, []byte:
	default:
		if closer, ok := msg.(io.Closer); ok {
			_ = closer.Close()
		}
		future = async.FailedImmediately[int](errors.From(ErrUnsupportedPayload))
		return
	}
	promise := async.New[int]()
	if !s.loop.Submit(func() { s.write(msg, promise) }) {
		releasePayload(msg)
		promise.Fail(errors.From(ErrClosed))
	}
	future = promise.Future()
	return
}

func releasePayload(msg any) {
	if buf, ok := msg.(bytebuffers.Buffer); ok {
		bytebuffers.Put(buf)
	}
}

func (s *Session) write(msg any, promise async.Promise[int]) {
	if s.tearingDown {
		releasePayload(msg)
		promise.Fail(errors.From(ErrClosed))
		return
	}
	switch m := msg.(type) {
	case bytebuffers.Buffer:
		n := m.Len()
		if n == 0 {
			bytebuffers.Put(m)
			promise.Succeed(0)
			return
		}
		if tail := s.aggregationCandidate(); tail != nil && tail.buf.Len()+n <= s.aggregationThreshold {
			if _, mergeErr := tail.buf.Write(m.Peek(n)); mergeErr == nil {
				tail.entries = append(tail.entries, promiseEntry{promise: promise, n: n})
				bytebuffers.Put(m)
				s.flush()
				return
			}
		}
		s.pendings = append(s.pendings, &pendingWrite{buf: m, entries: []promiseEntry{{promise: promise, n: n}}})
	case []byte:
		if len(m) == 0 {
			promise.Succeed(0)
			return
		}
		s.pendings = append(s.pendings, &pendingWrite{ro: m, entries: []promiseEntry{{promise: promise, n: len(m)}}})
	}
	if s.State() == Initial {
		s.startHandshake()
	}
	s.flush()
}

// aggregationCandidate returns the queue tail when later bytes may still be
// appended to it: owned and not yet shown to the engine.
func (s *Session) aggregationCandidate() (tail *pendingWrite) {
	if n := len(s.pendings); n > 0 {
		if last := s.pendings[n-1]; last.buf != nil && !last.flushed {
			tail = last
		}
	}
	return
}

// flush drains the pending queue through the engine. Completion entries attach
// to the record future carrying the final byte of their payload; a payload the
// engine consumed without producing output defers to the next produced record.
func (s *Session) flush() {
	if s.flushing {
		return
	}
	s.flushing = true
	defer func() {
		s.flushing = false
	}()
	for {
		if s.tearingDown || s.taskPending || s.outboundClosed {
			return
		}
		switch s.State() {
		case Handshaking:
			s.pumpHandshake()
			if s.State() != Established || s.taskPending || s.tearingDown {
				return
			}
		case Established, Closing:
		default:
			return
		}
		if len(s.pendings) == 0 {
			return
		}
		pw := s.pendings[0]
		pw.flushed = true
		src := pw.remaining()
		dst := bytebuffers.Get()
		res, wrapErr := s.engine.Wrap(src, dst)
		if wrapErr != nil {
			bytebuffers.Put(dst)
			s.fault(errors.From(ErrProtocol, errors.WithWrap(wrapErr)))
			return
		}
		if res.Consumed > 0 {
			pw.consume(res.Consumed)
		}
		done := len(pw.remaining()) == 0
		if done {
			s.pendings = s.pendings[1:]
		}
		if res.Produced > 0 {
			ct, _ := dst.Next(dst.Len())
			entries := s.deferred
			s.deferred = nil
			if done {
				entries = append(entries, pw.entries...)
				pw.release()
			}
			s.transmit(ct, entries)
		} else if done {
			s.deferred = append(s.deferred, pw.entries...)
			pw.release()
		}
		bytebuffers.Put(dst)
		if res.Handshake == HandshakeNeedsTask {
			s.runDelegatedTasks()
			return
		}
		if res.Status == StatusClosed {
			s.outboundClosed = true
			return
		}
		if !done && res.Consumed == 0 && res.Produced == 0 {
			// no progress; wait for an external trigger
			return
		}
	}
}

// transmitHandle tracks one ciphertext record handed to the transport, so
// teardown can settle its completions when the transport never reports back
// through a live loop.
type transmitHandle struct {
	entries []promiseEntry
}

func (h *transmitHandle) succeed() {
	for _, entry := range h.entries {
		entry.promise.Succeed(entry.n)
	}
}

func (h *transmitHandle) fail(cause error) {
	for _, entry := range h.entries {
		entry.promise.Fail(cause)
	}
}

func (s *Session) transmit(ct []byte, entries []promiseEntry) {
	h := &transmitHandle{entries: entries}
	if len(entries) > 0 {
		s.inflight = append(s.inflight, h)
	}
	future := s.downstream.Write(ct)
	future.OnComplete(func(_ int, cause error) {
		if s.loop.Submit(func() { s.transmitted(h, cause) }) {
			return
		}
		if cause != nil {
			h.fail(errors.From(ErrProtocol, errors.WithWrap(cause)))
			return
		}
		h.succeed()
	})
}

func (s *Session) transmitted(h *transmitHandle, cause error) {
	s.removeInflight(h)
	if cause != nil {
		err := errors.From(ErrProtocol, errors.WithWrap(cause))
		h.fail(err)
		if !s.tearingDown {
			s.upstream.Fault(err)
			s.teardown(err, true)
		}
		return
	}
	h.succeed()
}

func (s *Session) removeInflight(h *transmitHandle) {
	for i, candidate := range s.inflight {
		if candidate == h {
			s.inflight = append(s.inflight[:i], s.inflight[i+1:]...)
			return
		}
	}
}

// transmitControl sends a handshake or alert record. Control records carry no
// application completions, but a refused one is fatal and poisons every write
// queued behind the handshake.
func (s *Session) transmitControl(ct []byte) {
	future := s.downstream.Write(ct)
	future.OnComplete(func(_ int, cause error) {
		if cause == nil {
			return
		}
		s.loop.Submit(func() { s.controlWriteFailed(cause) })
	})
}

func (s *Session) controlWriteFailed(cause error) {
	if s.tearingDown {
		return
	}
	err := errors.From(ErrProtocol, errors.WithWrap(cause))
	for _, pw := range s.pendings {
		pw.fail(err)
		pw.release()
	}
	s.pendings = nil
	for _, entry := range s.deferred {
		entry.promise.Fail(err)
	}
	s.deferred = nil
	s.upstream.Fault(err)
	s.teardown(err, true)
}
