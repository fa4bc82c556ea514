package seal

import (
	"sync/atomic"
	"time"

	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/seal/async"
	"github.com/brickingsoft/seal/pkg/bytebuffers"
	"github.com/brickingsoft/seal/pkg/eventloop"
	"github.com/brickingsoft/seal/pkg/reference"
	"github.com/rs/zerolog"
)

type State int32

const (
	Initial State = iota
	Handshaking
	Established
	Closing
	Closed
	Failed
)

func (state State) String() string {
	switch state {
	case Initial:
		return "initial"
	case Handshaking:
		return "handshaking"
	case Established:
		return "established"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// New attaches a session around engine. The session takes the only ownership
// reference; the engine is closed at teardown.
func New(engine Engine, downstream Downstream, upstream Upstream, options ...Option) (session *Session, err error) {
	if engine == nil {
		err = errors.New("seal: engine is required")
		return
	}
	opts, optsErr := buildOptions(options)
	if optsErr != nil {
		err = optsErr
		return
	}
	if downstream == nil || upstream == nil {
		err = errors.New("seal: downstream and upstream are required")
		return
	}
	session = newSession(reference.Make[Engine](engine), downstream, upstream, opts)
	return
}

// NewShared attaches a session around a shared engine. The session retains one
// reference at attach and releases it exactly once at teardown; the engine is
// closed when the last holder releases.
func NewShared(engineRef *reference.Pointer[Engine], downstream Downstream, upstream Upstream, options ...Option) (session *Session, err error) {
	if engineRef == nil {
		err = errors.New("seal: engine reference is required")
		return
	}
	opts, optsErr := buildOptions(options)
	if optsErr != nil {
		err = optsErr
		return
	}
	if downstream == nil || upstream == nil {
		err = errors.New("seal: downstream and upstream are required")
		return
	}
	if retainErr := engineRef.Retain(); retainErr != nil {
		err = errors.New("seal: engine was already released", errors.WithWrap(retainErr))
		return
	}
	session = newSession(engineRef, downstream, upstream, opts)
	return
}

func buildOptions(options []Option) (opts Options, err error) {
	opts = defaultOptions()
	for _, option := range options {
		if err = option(&opts); err != nil {
			return
		}
	}
	return
}

func newSession(engineRef *reference.Pointer[Engine], downstream Downstream, upstream Upstream, opts Options) *Session {
	s := &Session{
		loop:                 eventloop.New(),
		engineRef:            engineRef,
		engine:               engineRef.Value(),
		downstream:           downstream,
		upstream:             upstream,
		log:                  opts.Logger,
		handshakeTimeout:     opts.HandshakeTimeout,
		aggregationThreshold: opts.AggregationThreshold,
		executor:             opts.Executor,
		handshakePromise:     async.New[async.Void](),
		closePromise:         async.New[async.Void](),
		inbound:              bytebuffers.NewBuffer(),
	}
	s.state.Store(int32(Initial))
	return s
}

// Session drives one Engine inside a byte-stream pipeline. All protocol state
// lives on a single task loop; the exported methods only schedule work there
// and are safe to call from any goroutine.
type Session struct {
	loop       *eventloop.Loop
	engineRef  *reference.Pointer[Engine]
	engine     Engine
	downstream Downstream
	upstream   Upstream
	log        zerolog.Logger

	handshakeTimeout     time.Duration
	aggregationThreshold int
	executor             TaskExecutor

	state atomic.Int32

	handshakePromise async.Promise[async.Void]
	closePromise     async.Promise[async.Void]

	// everything below is loop confined
	inbound        bytebuffers.Buffer
	pendings       []*pendingWrite
	deferred       []promiseEntry
	inflight       []*transmitHandle
	timer          *time.Timer
	taskPending    bool
	flushing       bool
	established    bool
	outboundClosed bool
	tearingDown    bool
	released       bool
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(state State) {
	s.state.Store(int32(state))
}

// Handshake returns the handshake completion. It resolves exactly once, even
// when the session is torn down before a handshake ever started.
func (s *Session) Handshake() (future async.Future[async.Void]) {
	future = s.handshakePromise.Future()
	return
}

// Closed returns the close completion. When a single teardown resolves both,
// the handshake completion resolves first.
func (s *Session) Closed() (future async.Future[async.Void]) {
	future = s.closePromise.Future()
	return
}

// TransportActive tells the session the underlying transport became usable
// and starts the handshake if it has not started yet.
func (s *Session) TransportActive() {
	s.loop.Submit(s.startHandshake)
}

// StartHandshake starts the handshake explicitly, for start-TLS style flows
// where plaintext traffic preceded the session. Idempotent.
func (s *Session) StartHandshake() {
	s.loop.Submit(s.startHandshake)
}

// TransportInactive tells the session the transport closed without a clean
// close record.
func (s *Session) TransportInactive() {
	s.loop.Submit(func() {
		if s.tearingDown {
			return
		}
		s.teardown(errors.From(ErrClosed), false)
	})
}

func (s *Session) startHandshake() {
	if s.tearingDown || s.State() != Initial {
		return
	}
	s.setState(Handshaking)
	s.log.Debug().Msg("seal: handshake started")
	if err := s.engine.BeginHandshake(); err != nil {
		s.fault(errors.From(ErrProtocol, errors.WithWrap(err)))
		return
	}
	s.armTimer()
	if s.engine.HandshakeFinished() {
		s.establish()
		return
	}
	s.runDelegatedTasks()
	if s.taskPending {
		return
	}
	s.pumpHandshake()
}

// pumpHandshake lets the engine emit pending handshake records until it needs
// something it does not have yet: input, a task result, or nothing.
func (s *Session) pumpHandshake() {
	for !s.taskPending && !s.tearingDown {
		dst := bytebuffers.Get()
		res, wrapErr := s.engine.Wrap(nil, dst)
		if wrapErr != nil {
			bytebuffers.Put(dst)
			s.fault(errors.From(ErrProtocol, errors.WithWrap(wrapErr)))
			return
		}
		if res.Produced > 0 {
			ct, _ := dst.Next(dst.Len())
			s.transmitControl(ct)
		}
		bytebuffers.Put(dst)
		switch res.Handshake {
		case HandshakeNeedsWrap:
			continue
		case HandshakeNeedsTask:
			s.runDelegatedTasks()
			return
		case HandshakeNeedsUnwrap:
			s.requestRead()
			return
		case HandshakeFinished:
			s.establish()
			return
		default:
			if s.State() == Handshaking && res.Produced == 0 {
				s.requestRead()
			}
			return
		}
	}
}

func (s *Session) establish() {
	if s.established || s.tearingDown {
		return
	}
	s.established = true
	s.setState(Established)
	s.cancelTimer()
	s.log.Debug().Msg("seal: handshake finished")
	// event first, then the promise: by the time an awaiting caller resumes,
	// the upstream has already observed the completion
	if !s.handshakePromise.Completed() {
		s.upstream.Event(HandshakeCompletion{})
		s.handshakePromise.Succeed(async.Void{})
	}
	// drain whatever queued up behind the handshake, no matter which side
	// of the engine finished it
	s.flush()
}

// fault handles a fatal session error: surface it upstream, then tear down.
func (s *Session) fault(cause error) {
	if s.tearingDown {
		return
	}
	s.upstream.Fault(cause)
	s.teardown(cause, true)
}

func (s *Session) runDelegatedTasks() {
	if s.taskPending || s.tearingDown {
		return
	}
	task, has := s.engine.DelegatedTask()
	if !has {
		return
	}
	s.submitTask(task)
}

func (s *Session) submitTask(task func()) {
	s.taskPending = true
	submitted := s.executor.Execute(func() {
		task()
		s.loop.Submit(s.taskDone)
	})
	if !submitted {
		// progress stalls here; the handshake deadline settles it
		s.log.Debug().Msg("seal: delegated task rejected by executor")
	}
}

func (s *Session) taskDone() {
	s.taskPending = false
	if s.tearingDown {
		return
	}
	if task, has := s.engine.DelegatedTask(); has {
		s.submitTask(task)
		return
	}
	if s.State() == Handshaking {
		s.pumpHandshake()
	}
	if !s.taskPending && !s.tearingDown {
		s.unwrap()
	}
	if !s.taskPending && !s.tearingDown {
		s.flush()
	}
}
