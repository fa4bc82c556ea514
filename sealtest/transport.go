package sealtest

import (
	"sync"

	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/seal"
	"github.com/brickingsoft/seal/async"
)

// Transport is a capturing downstream. It records every ciphertext record and
// read request; writes either complete immediately or wait for the test to
// settle them through their TransportWrite.
type Transport struct {
	mu      sync.Mutex
	auto    bool
	writes  []*TransportWrite
	reads   int
	closed  bool
	written int
}

// NewTransport returns a transport that accepts every write immediately.
func NewTransport() *Transport {
	return &Transport{auto: true}
}

// NewManualTransport returns a transport whose writes stay pending until the
// test resolves them.
func NewManualTransport() *Transport {
	return &Transport{}
}

type TransportWrite struct {
	P       []byte
	promise async.Promise[int]
}

func (w *TransportWrite) Succeed() {
	w.promise.Succeed(len(w.P))
}

func (w *TransportWrite) Fail(cause error) {
	w.promise.Fail(cause)
}

func (t *Transport) Write(p []byte) (future async.Future[int]) {
	cp := make([]byte, len(p))
	copy(cp, p)
	w := &TransportWrite{P: cp, promise: async.New[int]()}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		w.Fail(errors.New("sealtest: transport closed"))
		future = w.promise.Future()
		return
	}
	t.writes = append(t.writes, w)
	t.written += len(cp)
	auto := t.auto
	t.mu.Unlock()
	if auto {
		w.Succeed()
	}
	future = w.promise.Future()
	return
}

func (t *Transport) Read() {
	t.mu.Lock()
	t.reads++
	t.mu.Unlock()
}

func (t *Transport) Close() (future async.Future[async.Void]) {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	future = async.SucceedImmediately[async.Void](async.Void{})
	return
}

func (t *Transport) Writes() (writes []*TransportWrite) {
	t.mu.Lock()
	writes = append(writes, t.writes...)
	t.mu.Unlock()
	return
}

func (t *Transport) ReadRequests() (n int) {
	t.mu.Lock()
	n = t.reads
	t.mu.Unlock()
	return
}

func (t *Transport) Closed() (closed bool) {
	t.mu.Lock()
	closed = t.closed
	t.mu.Unlock()
	return
}

// Sink is a recording upstream.
type Sink struct {
	mu       sync.Mutex
	received [][]byte
	events   []seal.Event
	faults   []error
}

func NewSink() *Sink {
	return &Sink{}
}

func (s *Sink) Receive(p []byte) {
	cp := make([]byte, len(p))
	copy(cp, p)
	s.mu.Lock()
	s.received = append(s.received, cp)
	s.mu.Unlock()
}

func (s *Sink) Event(event seal.Event) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
}

func (s *Sink) Fault(cause error) {
	s.mu.Lock()
	s.faults = append(s.faults, cause)
	s.mu.Unlock()
}

func (s *Sink) Received() (received [][]byte) {
	s.mu.Lock()
	received = append(received, s.received...)
	s.mu.Unlock()
	return
}

// Bytes concatenates everything received, for stream-oriented assertions.
func (s *Sink) Bytes() (p []byte) {
	s.mu.Lock()
	for _, chunk := range s.received {
		p = append(p, chunk...)
	}
	s.mu.Unlock()
	return
}

func (s *Sink) Events() (events []seal.Event) {
	s.mu.Lock()
	events = append(events, s.events...)
	s.mu.Unlock()
	return
}

func (s *Sink) Faults() (faults []error) {
	s.mu.Lock()
	faults = append(faults, s.faults...)
	s.mu.Unlock()
	return
}
