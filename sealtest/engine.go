// Package sealtest provides a small keyed engine and pipeline doubles for
// exercising sessions without a real secure transport.
package sealtest

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"io"
	"strconv"
	"sync/atomic"

	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/seal"
	"github.com/brickingsoft/seal/pkg/bytebuffers"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

var (
	ErrRecord = errors.Define("sealtest: malformed record")
	ErrState  = errors.Define("sealtest: unexpected record for state")
	ErrClosed = errors.Define("sealtest: engine closed")
)

const (
	recHello byte = 1 + iota
	recAccept
	recData
	recClose
)

const (
	headerSize   = 5
	nonceSize    = 16
	maxPlaintext = 16 * 1024
	maxRecord    = 1 << 20
)

const (
	hsIdle = iota
	hsHelloPending
	hsAwaitHello
	hsAwaitAccept
	hsDerive
	hsDone
)

type Role int

const (
	ClientRole Role = iota
	ServerRole
)

// Engine is a toy record protocol over a pre-shared key: the client sends a
// HELLO nonce, the server answers with an ACCEPT nonce, both sides derive
// directional chacha20poly1305 keys from the pair in a delegated task, then
// exchange sealed DATA records until a CLOSE record. Records are framed as a
// type byte plus a big-endian length. It exists to drive sessions in tests;
// it is not a real secure transport.
type Engine struct {
	role Role
	psk  []byte

	state      int
	localNonce [nonceSize]byte
	peerNonce  [nonceSize]byte

	task      func()
	deriveErr error
	send      cipher.AEAD
	recv      cipher.AEAD
	sendSeq   uint64
	recvSeq   uint64

	outboundClosed bool
	closeSent      bool
	inboundClosed  bool
	closed         atomic.Bool
}

func NewClientEngine(psk []byte) *Engine {
	return &Engine{role: ClientRole, psk: psk}
}

func NewServerEngine(psk []byte) *Engine {
	return &Engine{role: ServerRole, psk: psk}
}

func (e *Engine) BeginHandshake() (err error) {
	if e.closed.Load() {
		err = errors.From(ErrClosed)
		return
	}
	if e.state != hsIdle {
		return
	}
	if _, err = rand.Read(e.localNonce[:]); err != nil {
		err = errors.New("sealtest: nonce generation failed", errors.WithWrap(err))
		return
	}
	if e.role == ClientRole {
		e.state = hsHelloPending
	} else {
		e.state = hsAwaitHello
	}
	return
}

func (e *Engine) HandshakeFinished() bool {
	return e.state == hsDone
}

func (e *Engine) Wrap(src []byte, dst bytebuffers.Buffer) (res seal.Result, err error) {
	if e.closed.Load() {
		err = errors.From(ErrClosed)
		return
	}
	if e.outboundClosed {
		res = e.wrapClose(dst)
		return
	}
	switch e.state {
	case hsHelloPending:
		if err = writeRecord(dst, recHello, e.localNonce[:]); err != nil {
			return
		}
		e.state = hsAwaitAccept
		res = seal.Result{Produced: headerSize + nonceSize, Handshake: seal.HandshakeNeedsUnwrap}
		return
	case hsAwaitHello, hsAwaitAccept:
		res = seal.Result{Handshake: seal.HandshakeNeedsUnwrap}
		return
	case hsDerive:
		if e.task != nil {
			res = seal.Result{Handshake: seal.HandshakeNeedsTask}
			return
		}
		if e.deriveErr != nil {
			err = e.deriveErr
			return
		}
		if e.role == ServerRole {
			if err = writeRecord(dst, recAccept, e.localNonce[:]); err != nil {
				return
			}
			e.state = hsDone
			res = seal.Result{Produced: headerSize + nonceSize, Handshake: seal.HandshakeFinished}
			return
		}
		e.state = hsDone
		res = seal.Result{Handshake: seal.HandshakeFinished}
		return
	case hsDone:
	default:
		err = errors.From(ErrState)
		return
	}
	if len(src) == 0 {
		return
	}
	n := len(src)
	if n > maxPlaintext {
		n = maxPlaintext
	}
	body := e.seal(recData, src[:n])
	if err = writeRecord(dst, recData, body); err != nil {
		return
	}
	res = seal.Result{Consumed: n, Produced: headerSize + len(body)}
	return
}

func (e *Engine) wrapClose(dst bytebuffers.Buffer) (res seal.Result) {
	res = seal.Result{Status: seal.StatusClosed}
	if e.closeSent || e.state != hsDone {
		return
	}
	body := e.seal(recClose, nil)
	if writeErr := writeRecord(dst, recClose, body); writeErr != nil {
		return
	}
	e.closeSent = true
	res.Produced = headerSize + len(body)
	return
}

func (e *Engine) Unwrap(src []byte, dst bytebuffers.Buffer) (res seal.Result, err error) {
	if e.closed.Load() {
		err = errors.From(ErrClosed)
		return
	}
	if e.inboundClosed {
		res = seal.Result{Status: seal.StatusClosed}
		return
	}
	if len(src) < headerSize {
		res = e.underflow()
		return
	}
	typ := src[0]
	length := int(binary.BigEndian.Uint32(src[1:headerSize]))
	if length > maxRecord {
		err = errors.From(ErrRecord, errors.WithMeta("length", strconv.Itoa(length)))
		return
	}
	if len(src) < headerSize+length {
		res = e.underflow()
		return
	}
	body := src[headerSize : headerSize+length]
	consumed := headerSize + length
	switch typ {
	case recHello:
		if e.role != ServerRole || e.state != hsAwaitHello {
			err = errors.From(ErrState)
			return
		}
		if length != nonceSize {
			err = errors.From(ErrRecord)
			return
		}
		copy(e.peerNonce[:], body)
		e.scheduleDerive()
		res = seal.Result{Consumed: consumed, Handshake: seal.HandshakeNeedsTask}
		return
	case recAccept:
		if e.role != ClientRole || e.state != hsAwaitAccept {
			err = errors.From(ErrState)
			return
		}
		if length != nonceSize {
			err = errors.From(ErrRecord)
			return
		}
		copy(e.peerNonce[:], body)
		e.scheduleDerive()
		res = seal.Result{Consumed: consumed, Handshake: seal.HandshakeNeedsTask}
		return
	case recData:
		if e.state != hsDone {
			err = errors.From(ErrState)
			return
		}
		pt, openErr := e.open(recData, body)
		if openErr != nil {
			err = openErr
			return
		}
		if _, err = dst.Write(pt); err != nil {
			return
		}
		res = seal.Result{Consumed: consumed, Produced: len(pt)}
		return
	case recClose:
		if e.state == hsDone {
			if _, openErr := e.open(recClose, body); openErr != nil {
				err = openErr
				return
			}
		}
		e.inboundClosed = true
		res = seal.Result{Consumed: consumed, Status: seal.StatusClosed}
		return
	default:
		err = errors.From(ErrRecord, errors.WithMeta("type", strconv.Itoa(int(typ))))
		return
	}
}

func (e *Engine) underflow() (res seal.Result) {
	res = seal.Result{Status: seal.StatusUnderflow}
	if e.state != hsDone && e.state != hsIdle {
		res.Handshake = seal.HandshakeNeedsUnwrap
	}
	return
}

// scheduleDerive queues the key derivation as a delegated task. The session
// never touches the engine while the task is outstanding, so the task may
// write the fields directly.
func (e *Engine) scheduleDerive() {
	e.state = hsDerive
	e.task = func() {
		var clientNonce, serverNonce [nonceSize]byte
		if e.role == ClientRole {
			clientNonce, serverNonce = e.localNonce, e.peerNonce
		} else {
			clientNonce, serverNonce = e.peerNonce, e.localNonce
		}
		salt := append(clientNonce[:], serverNonce[:]...)
		r := hkdf.New(sha256.New, e.psk, salt, []byte("sealtest v1"))
		clientKey := make([]byte, chacha20poly1305.KeySize)
		serverKey := make([]byte, chacha20poly1305.KeySize)
		if _, readErr := io.ReadFull(r, clientKey); readErr != nil {
			e.deriveErr = errors.New("sealtest: key derivation failed", errors.WithWrap(readErr))
			return
		}
		if _, readErr := io.ReadFull(r, serverKey); readErr != nil {
			e.deriveErr = errors.New("sealtest: key derivation failed", errors.WithWrap(readErr))
			return
		}
		clientAEAD, clientErr := chacha20poly1305.New(clientKey)
		serverAEAD, serverErr := chacha20poly1305.New(serverKey)
		if clientErr != nil || serverErr != nil {
			e.deriveErr = errors.New("sealtest: key derivation failed")
			return
		}
		if e.role == ClientRole {
			e.send, e.recv = clientAEAD, serverAEAD
		} else {
			e.send, e.recv = serverAEAD, clientAEAD
		}
	}
}

func (e *Engine) DelegatedTask() (task func(), has bool) {
	if e.task == nil {
		return
	}
	task = e.task
	e.task = nil
	has = true
	return
}

func (e *Engine) seal(typ byte, plaintext []byte) (body []byte) {
	var nonce [chacha20poly1305.NonceSize]byte
	binary.BigEndian.PutUint64(nonce[4:], e.sendSeq)
	e.sendSeq++
	body = e.send.Seal(nil, nonce[:], plaintext, []byte{typ})
	return
}

func (e *Engine) open(typ byte, body []byte) (plaintext []byte, err error) {
	var nonce [chacha20poly1305.NonceSize]byte
	binary.BigEndian.PutUint64(nonce[4:], e.recvSeq)
	plaintext, err = e.recv.Open(nil, nonce[:], body, []byte{typ})
	if err != nil {
		err = errors.From(ErrRecord, errors.WithWrap(err))
		return
	}
	e.recvSeq++
	return
}

func (e *Engine) CloseOutbound() {
	e.outboundClosed = true
}

func (e *Engine) CloseInbound() (err error) {
	e.inboundClosed = true
	return
}

// Close releases the engine. Sessions call it through their ownership
// reference, so tests can assert it ran exactly once.
func (e *Engine) Close() (err error) {
	if e.closed.Swap(true) {
		err = errors.From(ErrClosed)
		return
	}
	e.send = nil
	e.recv = nil
	return
}

func (e *Engine) Closed() bool {
	return e.closed.Load()
}

func writeRecord(dst bytebuffers.Buffer, typ byte, body []byte) (err error) {
	var header [headerSize]byte
	header[0] = typ
	binary.BigEndian.PutUint32(header[1:], uint32(len(body)))
	if _, err = dst.Write(header[:]); err != nil {
		return
	}
	if len(body) > 0 {
		_, err = dst.Write(body)
	}
	return
}
