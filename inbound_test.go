package seal_test

import (
	"crypto/rand"
	"encoding/binary"
	"testing"
	"time"

	"github.com/brickingsoft/seal"
	"github.com/brickingsoft/seal/async"
	"github.com/brickingsoft/seal/sealtest"
)

func helloRecord(t *testing.T) (record []byte) {
	t.Helper()
	record = make([]byte, 5+16)
	record[0] = 1
	binary.BigEndian.PutUint32(record[1:5], 16)
	if _, err := rand.Read(record[5:]); err != nil {
		t.Fatal(err)
	}
	return
}

func TestFeed_TruncatedRecord(t *testing.T) {
	sink := sealtest.NewSink()
	transport := sealtest.NewTransport()
	session, err := seal.New(sealtest.NewServerEngine([]byte("secret")), transport, sink)
	if err != nil {
		t.Fatal(err)
	}
	session.TransportActive()
	record := helloRecord(t)
	// a partial record is retained silently, not an error
	session.Feed(record[:3])
	waitFor(t, "read request", func() bool { return transport.ReadRequests() > 0 })
	if faults := sink.Faults(); len(faults) != 0 {
		t.Fatal("faults:", faults)
	}
	if session.Handshake().Completed() {
		t.Fatal("handshake settled on a partial record")
	}
	session.Feed(record[3:])
	if _, cause := async.Await(session.Handshake()); cause != nil {
		t.Fatal("handshake failed:", cause)
	}
	writes := transport.Writes()
	if len(writes) != 1 || writes[0].P[0] != 2 {
		t.Fatal("expected a single accept record, got:", writes)
	}
	session.Close()
}

func TestFeed_ByteAtATime(t *testing.T) {
	sink := sealtest.NewSink()
	transport := sealtest.NewTransport()
	session, err := seal.New(sealtest.NewServerEngine([]byte("secret")), transport, sink)
	if err != nil {
		t.Fatal(err)
	}
	session.TransportActive()
	for _, b := range helloRecord(t) {
		session.Feed([]byte{b})
	}
	if _, cause := async.Await(session.Handshake()); cause != nil {
		t.Fatal("handshake failed:", cause)
	}
	if faults := sink.Faults(); len(faults) != 0 {
		t.Fatal("faults:", faults)
	}
	session.Close()
}

func TestFeed_MalformedRecord(t *testing.T) {
	sink := sealtest.NewSink()
	transport := sealtest.NewTransport()
	session, err := seal.New(sealtest.NewServerEngine([]byte("secret")), transport, sink)
	if err != nil {
		t.Fatal(err)
	}
	session.TransportActive()
	// an absurd length marks the stream as garbage rather than incomplete
	session.Feed([]byte{1, 0xFF, 0xFF, 0xFF, 0xFF})
	_, cause := async.Await(session.Handshake())
	if !seal.IsDecodeError(cause) {
		t.Fatal("handshake cause:", cause)
	}
	waitFor(t, "decode fault", func() bool { return len(sink.Faults()) == 1 })
	if !seal.IsDecodeError(sink.Faults()[0]) {
		t.Fatal("fault:", sink.Faults()[0])
	}
	waitFor(t, "transport closed", func() bool { return transport.Closed() })
}

func TestFeed_AfterTeardown(t *testing.T) {
	sink := sealtest.NewSink()
	session, err := seal.New(sealtest.NewServerEngine([]byte("secret")), sealtest.NewTransport(), sink)
	if err != nil {
		t.Fatal(err)
	}
	if _, cause := async.Await(session.Close()); !seal.IsClosedError(cause) {
		t.Fatal(cause)
	}
	// must be ignored, not panic or fault
	session.Feed(helloRecord(t))
	time.Sleep(20 * time.Millisecond)
	if faults := sink.Faults(); len(faults) != 0 {
		t.Fatal("faults:", faults)
	}
}
