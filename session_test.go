package seal_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/brickingsoft/seal"
	"github.com/brickingsoft/seal/async"
	"github.com/brickingsoft/seal/sealtest"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSession_Handshake(t *testing.T) {
	clientSink, serverSink := sealtest.NewSink(), sealtest.NewSink()
	client, server, err := sealtest.Loopback([]byte("secret"), clientSink, serverSink)
	if err != nil {
		t.Fatal(err)
	}
	if _, cause := async.Await(client.Handshake()); cause != nil {
		t.Fatal("client handshake failed:", cause)
	}
	if _, cause := async.Await(server.Handshake()); cause != nil {
		t.Fatal("server handshake failed:", cause)
	}
	if state := client.State(); state != seal.Established {
		t.Fatal("client state:", state)
	}
	if state := server.State(); state != seal.Established {
		t.Fatal("server state:", state)
	}
	for _, sink := range []*sealtest.Sink{clientSink, serverSink} {
		events := sink.Events()
		if len(events) != 1 {
			t.Fatal("events:", events)
		}
		completion, ok := events[0].(seal.HandshakeCompletion)
		if !ok || !completion.Succeed() {
			t.Fatal("unexpected event:", events[0])
		}
	}
	client.Close()
}

func TestSession_Exchange(t *testing.T) {
	clientSink, serverSink := sealtest.NewSink(), sealtest.NewSink()
	client, server, err := sealtest.Loopback([]byte("secret"), clientSink, serverSink)
	if err != nil {
		t.Fatal(err)
	}
	n, cause := async.Await(client.Write([]byte("hello")))
	if cause != nil {
		t.Fatal("write failed:", cause)
	}
	if n != 5 {
		t.Fatal("written:", n)
	}
	waitFor(t, "server plaintext", func() bool {
		return bytes.Equal(serverSink.Bytes(), []byte("hello"))
	})
	if _, cause = async.Await(server.Write([]byte("world"))); cause != nil {
		t.Fatal("write failed:", cause)
	}
	waitFor(t, "client plaintext", func() bool {
		return bytes.Equal(clientSink.Bytes(), []byte("world"))
	})
	if faults := clientSink.Faults(); len(faults) != 0 {
		t.Fatal("client faults:", faults)
	}
	if faults := serverSink.Faults(); len(faults) != 0 {
		t.Fatal("server faults:", faults)
	}
	client.Close()
}

func TestSession_LargeWrite(t *testing.T) {
	clientSink, serverSink := sealtest.NewSink(), sealtest.NewSink()
	client, _, err := sealtest.Loopback([]byte("secret"), clientSink, serverSink)
	if err != nil {
		t.Fatal(err)
	}
	payload := bytes.Repeat([]byte("0123456789abcdef"), 8*1024)
	n, cause := async.Await(client.Write(payload))
	if cause != nil {
		t.Fatal("write failed:", cause)
	}
	if n != len(payload) {
		t.Fatal("written:", n)
	}
	waitFor(t, "reassembled plaintext", func() bool {
		return bytes.Equal(serverSink.Bytes(), payload)
	})
	client.Close()
}

func TestSession_CleanClose(t *testing.T) {
	clientSink, serverSink := sealtest.NewSink(), sealtest.NewSink()
	client, server, err := sealtest.Loopback([]byte("secret"), clientSink, serverSink)
	if err != nil {
		t.Fatal(err)
	}
	if _, cause := async.Await(client.Handshake()); cause != nil {
		t.Fatal(cause)
	}
	if _, cause := async.Await(client.Close()); cause != nil {
		t.Fatal("client close failed:", cause)
	}
	if _, cause := async.Await(server.Closed()); cause != nil {
		t.Fatal("server close failed:", cause)
	}
	waitFor(t, "both sides settled", func() bool {
		return client.State() == seal.Closed && server.State() == seal.Closed
	})
	for _, sink := range []*sealtest.Sink{clientSink, serverSink} {
		events := sink.Events()
		if len(events) != 2 {
			t.Fatal("events:", events)
		}
		if _, ok := events[0].(seal.HandshakeCompletion); !ok {
			t.Fatal("first event:", events[0])
		}
		closeCompletion, ok := events[1].(seal.CloseCompletion)
		if !ok || !closeCompletion.Succeed() {
			t.Fatal("second event:", events[1])
		}
	}
}

func TestSession_UnexpectedRecord(t *testing.T) {
	sink := sealtest.NewSink()
	transport := sealtest.NewTransport()
	session, err := seal.New(sealtest.NewServerEngine([]byte("secret")), transport, sink)
	if err != nil {
		t.Fatal(err)
	}
	session.TransportActive()
	// a data record before any handshake record
	session.Feed([]byte{3, 0, 0, 0, 4, 'j', 'u', 'n', 'k'})
	_, cause := async.Await(session.Handshake())
	if !seal.IsDecodeError(cause) {
		t.Fatal("handshake cause:", cause)
	}
	waitFor(t, "fault surfaced", func() bool { return len(sink.Faults()) == 1 })
	if !seal.IsDecodeError(sink.Faults()[0]) {
		t.Fatal("fault:", sink.Faults()[0])
	}
	waitFor(t, "teardown", func() bool {
		return transport.Closed() && session.State() == seal.Failed
	})
}
