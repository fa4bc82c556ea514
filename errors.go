package seal

import (
	"github.com/brickingsoft/errors"
)

var (
	// ErrProtocol marks a handshake or record failure reported by the engine,
	// or a transport failure of a handshake record.
	ErrProtocol = errors.Define("seal: protocol failure")
	// ErrDecode marks a malformed inbound record. It always wraps the
	// underlying protocol cause.
	ErrDecode = errors.Define("seal: decode failed")
	// ErrUnsupportedPayload marks an outbound payload of a type the session
	// does not accept.
	ErrUnsupportedPayload = errors.Define("seal: unsupported payload type")
	// ErrHandshakeTimeout marks a handshake that missed its deadline.
	ErrHandshakeTimeout = errors.Define("seal: handshake timed out")
	// ErrClosed fails whatever was still pending when the session was torn down.
	ErrClosed = errors.Define("seal: closed")
)

func IsProtocolError(err error) bool {
	return errors.Is(err, ErrProtocol)
}

func IsDecodeError(err error) bool {
	return errors.Is(err, ErrDecode)
}

func IsUnsupportedPayloadError(err error) bool {
	return errors.Is(err, ErrUnsupportedPayload)
}

func IsHandshakeTimeoutError(err error) bool {
	return errors.Is(err, ErrHandshakeTimeout)
}

func IsClosedError(err error) bool {
	return errors.Is(err, ErrClosed)
}
