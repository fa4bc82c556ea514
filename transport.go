package seal

import (
	"github.com/brickingsoft/seal/async"
)

// Downstream is the transport beneath a session. Write queues one ciphertext
// buffer and resolves its future once the transport accepted or refused it;
// buffers written in order must be transmitted in order. Read signals that
// the session needs more inbound ciphertext to make progress, regardless of
// whether the application currently reads.
type Downstream interface {
	Write(p []byte) (future async.Future[int])
	Read()
	Close() (future async.Future[async.Void])
}

// Upstream receives what the session produces for the application side:
// decrypted plaintext in order, exactly-once completion events, and fatal
// session faults.
type Upstream interface {
	Receive(p []byte)
	Event(event Event)
	Fault(cause error)
}

// Event is an exactly-once session notification. A HandshakeCompletion is
// always delivered before the CloseCompletion of the same teardown.
type Event interface {
	Cause() (err error)
}

type HandshakeCompletion struct {
	cause error
}

func (e HandshakeCompletion) Cause() (err error) {
	err = e.cause
	return
}

func (e HandshakeCompletion) Succeed() bool {
	return e.cause == nil
}

type CloseCompletion struct {
	cause error
}

func (e CloseCompletion) Cause() (err error) {
	err = e.cause
	return
}

func (e CloseCompletion) Succeed() bool {
	return e.cause == nil
}
