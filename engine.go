package seal

import (
	"github.com/brickingsoft/seal/pkg/bytebuffers"
)

// Status reports the record-level outcome of a Wrap or Unwrap call.
type Status int

const (
	// StatusOK means the call made normal progress.
	StatusOK Status = iota
	// StatusUnderflow means the source did not hold a complete record.
	// Not an error: the session retains the bytes and waits for more input.
	StatusUnderflow
	// StatusClosed means the engine processed or produced a close record;
	// no further records will follow in that direction.
	StatusClosed
)

// HandshakeStatus reports what the engine needs next to make handshake progress.
type HandshakeStatus int

const (
	HandshakeNone HandshakeStatus = iota
	HandshakeNeedsWrap
	HandshakeNeedsUnwrap
	HandshakeNeedsTask
	HandshakeFinished
)

type Result struct {
	Consumed  int
	Produced  int
	Status    Status
	Handshake HandshakeStatus
}

// Engine performs the cryptographic wrap and unwrap steps of a secure
// transport protocol. Implementations are not reentrant and not goroutine
// safe; a Session drives its engine from a single execution context only.
//
// Close releases the engine's resources. Sessions hold the engine through a
// reference.Pointer and release it exactly once at teardown.
type Engine interface {
	BeginHandshake() (err error)
	// Wrap encrypts plaintext from src into records appended to dst. A nil or
	// empty src is valid and lets the engine emit pending handshake, alert or
	// close records.
	Wrap(src []byte, dst bytebuffers.Buffer) (result Result, err error)
	// Unwrap decrypts records from src, appending plaintext to dst. Partial
	// trailing records yield StatusUnderflow with the partial bytes unconsumed.
	Unwrap(src []byte, dst bytebuffers.Buffer) (result Result, err error)
	// DelegatedTask pops one deferred expensive operation, if any.
	DelegatedTask() (task func(), has bool)
	HandshakeFinished() bool
	CloseOutbound()
	CloseInbound() (err error)
	Close() (err error)
}
