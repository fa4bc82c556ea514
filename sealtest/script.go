package sealtest

import (
	"sync/atomic"

	"github.com/brickingsoft/seal"
	"github.com/brickingsoft/seal/pkg/bytebuffers"
)

// ScriptEngine is a programmable engine double. Every behavior is a function
// field; nil fields fall back to a do-nothing engine that never finishes its
// handshake, which is exactly what deadline and teardown tests want.
type ScriptEngine struct {
	BeginHandshakeFunc    func() (err error)
	WrapFunc              func(src []byte, dst bytebuffers.Buffer) (res seal.Result, err error)
	UnwrapFunc            func(src []byte, dst bytebuffers.Buffer) (res seal.Result, err error)
	DelegatedTaskFunc     func() (task func(), has bool)
	HandshakeFinishedFunc func() (finished bool)
	CloseInboundFunc      func() (err error)

	outboundClosed atomic.Bool
	closed         atomic.Int32
}

func (e *ScriptEngine) BeginHandshake() (err error) {
	if e.BeginHandshakeFunc != nil {
		err = e.BeginHandshakeFunc()
	}
	return
}

func (e *ScriptEngine) Wrap(src []byte, dst bytebuffers.Buffer) (res seal.Result, err error) {
	if e.WrapFunc != nil {
		res, err = e.WrapFunc(src, dst)
		return
	}
	if e.outboundClosed.Load() {
		res = seal.Result{Status: seal.StatusClosed}
		return
	}
	res = seal.Result{Handshake: seal.HandshakeNeedsUnwrap}
	return
}

func (e *ScriptEngine) Unwrap(src []byte, dst bytebuffers.Buffer) (res seal.Result, err error) {
	if e.UnwrapFunc != nil {
		res, err = e.UnwrapFunc(src, dst)
		return
	}
	res = seal.Result{Status: seal.StatusUnderflow, Handshake: seal.HandshakeNeedsUnwrap}
	return
}

func (e *ScriptEngine) DelegatedTask() (task func(), has bool) {
	if e.DelegatedTaskFunc != nil {
		task, has = e.DelegatedTaskFunc()
	}
	return
}

func (e *ScriptEngine) HandshakeFinished() (finished bool) {
	if e.HandshakeFinishedFunc != nil {
		finished = e.HandshakeFinishedFunc()
	}
	return
}

func (e *ScriptEngine) CloseOutbound() {
	e.outboundClosed.Store(true)
}

func (e *ScriptEngine) OutboundClosed() bool {
	return e.outboundClosed.Load()
}

func (e *ScriptEngine) CloseInbound() (err error) {
	if e.CloseInboundFunc != nil {
		err = e.CloseInboundFunc()
	}
	return
}

func (e *ScriptEngine) Close() (err error) {
	e.closed.Add(1)
	return
}

// CloseCalls reports how many times Close ran; the ownership reference must
// keep it at one.
func (e *ScriptEngine) CloseCalls() int {
	return int(e.closed.Load())
}
