package seal_test

import (
	"testing"
	"time"

	"github.com/brickingsoft/seal"
	"github.com/brickingsoft/seal/async"
	"github.com/brickingsoft/seal/sealtest"
)

func TestHandshakeTimeout(t *testing.T) {
	sink := sealtest.NewSink()
	transport := sealtest.NewTransport()
	session, err := seal.New(&sealtest.ScriptEngine{}, transport, sink,
		seal.WithHandshakeTimeout(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	session.TransportActive()
	_, cause := async.Await(session.Handshake())
	if !seal.IsHandshakeTimeoutError(cause) {
		t.Fatal("handshake cause:", cause)
	}
	if _, closeCause := async.Await(session.Closed()); !seal.IsHandshakeTimeoutError(closeCause) {
		t.Fatal("close cause:", closeCause)
	}
	waitFor(t, "teardown", func() bool {
		return session.State() == seal.Failed && transport.Closed()
	})
	events := sink.Events()
	if len(events) != 2 {
		t.Fatal("events:", events)
	}
	if completion, ok := events[0].(seal.HandshakeCompletion); !ok || completion.Succeed() {
		t.Fatal("first event:", events[0])
	}
	if completion, ok := events[1].(seal.CloseCompletion); !ok || completion.Succeed() {
		t.Fatal("second event:", events[1])
	}
}

// rejectingExecutor refuses every task, like a saturated pool that never
// drains.
type rejectingExecutor struct{}

func (rejectingExecutor) Execute(func()) bool { return false }

func TestHandshakeTimeout_StalledTask(t *testing.T) {
	engine := &sealtest.ScriptEngine{}
	handedOut := false
	engine.DelegatedTaskFunc = func() (task func(), has bool) {
		if handedOut {
			return
		}
		handedOut = true
		task = func() {}
		has = true
		return
	}
	session, err := seal.New(engine, sealtest.NewTransport(), sealtest.NewSink(),
		seal.WithHandshakeTimeout(20*time.Millisecond),
		seal.WithExecutor(rejectingExecutor{}))
	if err != nil {
		t.Fatal(err)
	}
	session.TransportActive()
	// the task result never arrives; the deadline must still settle things
	_, cause := async.Await(session.Handshake())
	if !seal.IsHandshakeTimeoutError(cause) {
		t.Fatal("handshake cause:", cause)
	}
}

func TestHandshakeTimeout_Disabled(t *testing.T) {
	session, err := seal.New(&sealtest.ScriptEngine{}, sealtest.NewTransport(), sealtest.NewSink(),
		seal.WithHandshakeTimeout(0))
	if err != nil {
		t.Fatal(err)
	}
	session.TransportActive()
	time.Sleep(50 * time.Millisecond)
	if session.Handshake().Completed() {
		t.Fatal("handshake settled without a deadline")
	}
	if state := session.State(); state != seal.Handshaking {
		t.Fatal("state:", state)
	}
	session.Close()
}
