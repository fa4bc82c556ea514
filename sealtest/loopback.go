package sealtest

import (
	"sync"

	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/seal"
	"github.com/brickingsoft/seal/async"
)

// link is a downstream that feeds whatever is written straight into the peer
// session, like two pipeline tails glued together.
type link struct {
	mu     sync.Mutex
	peer   *seal.Session
	closed bool
}

func (l *link) Write(p []byte) (future async.Future[int]) {
	l.mu.Lock()
	peer := l.peer
	closed := l.closed
	l.mu.Unlock()
	if closed || peer == nil {
		future = async.FailedImmediately[int](errors.New("sealtest: link closed"))
		return
	}
	peer.Feed(p)
	future = async.SucceedImmediately[int](len(p))
	return
}

func (l *link) Read() {
	// the peer pushes eagerly; nothing to request
}

func (l *link) Close() (future async.Future[async.Void]) {
	l.mu.Lock()
	peer := l.peer
	closed := l.closed
	l.closed = true
	l.mu.Unlock()
	if peer != nil && !closed {
		peer.TransportInactive()
	}
	future = async.SucceedImmediately[async.Void](async.Void{})
	return
}

// Loopback wires a client and a server session over in-memory links and
// starts both handshakes, server side first so the HELLO finds it listening.
func Loopback(psk []byte, clientSink, serverSink *Sink, options ...seal.Option) (client *seal.Session, server *seal.Session, err error) {
	clientLink := &link{}
	serverLink := &link{}
	client, err = seal.New(NewClientEngine(psk), clientLink, clientSink, options...)
	if err != nil {
		return
	}
	server, err = seal.New(NewServerEngine(psk), serverLink, serverSink, options...)
	if err != nil {
		client.Detach()
		return
	}
	clientLink.mu.Lock()
	clientLink.peer = server
	clientLink.mu.Unlock()
	serverLink.mu.Lock()
	serverLink.peer = client
	serverLink.mu.Unlock()
	server.TransportActive()
	client.TransportActive()
	return
}
