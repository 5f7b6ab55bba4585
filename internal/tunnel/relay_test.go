package tunnel

import (
	"bytes"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"qpiped/internal/status"
	"qpiped/internal/wire"
)

func TestPlainToFramedEmitsDataThenFini(t *testing.T) {
	plain := bytes.NewBufferString("hello world")
	var framed bytes.Buffer

	if err := plainToFramed(plain, &framed); err != nil {
		t.Fatalf("plainToFramed: %v", err)
	}

	hdr, err := wire.ReadHeader(&framed)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if hdr.Tag != wire.TagData {
		t.Fatalf("expected data frame, got %s", hdr.Tag)
	}
	body := make([]byte, hdr.DataLen)
	if _, err := io.ReadFull(&framed, body); err != nil {
		t.Fatal(err)
	}
	if string(body) != "hello world" {
		t.Errorf("expected 'hello world', got %q", body)
	}

	hdr, err = wire.ReadHeader(&framed)
	if err != nil {
		t.Fatalf("ReadHeader (fini): %v", err)
	}
	if hdr.Tag != wire.TagFini {
		t.Fatalf("expected fini frame, got %s", hdr.Tag)
	}
}

// pipeConn adapts net.Pipe's net.Conn so CloseWrite can be observed by tests
// without a real TCP socket.
type pipeConn struct {
	net.Conn
	closedWrite chan struct{}
}

func (p *pipeConn) CloseWrite() error {
	close(p.closedWrite)
	return p.Conn.Close()
}

func TestFramedToPlainWritesDataAndClosesOnFini(t *testing.T) {
	var framed bytes.Buffer
	if err := wire.WriteData(&framed, []byte("payload")); err != nil {
		t.Fatal(err)
	}
	if err := wire.WriteFini(&framed); err != nil {
		t.Fatal(err)
	}

	server, client := net.Pipe()
	pc := &pipeConn{Conn: server, closedWrite: make(chan struct{})}

	done := make(chan error, 1)
	go func() { done <- framedToPlain(&framed, pc) }()

	buf := make([]byte, len("payload"))
	if _, err := io.ReadFull(client, buf); err != nil {
		t.Fatalf("read from plain peer: %v", err)
	}
	if string(buf) != "payload" {
		t.Errorf("expected 'payload', got %q", buf)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("framedToPlain: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("framedToPlain did not return after fini")
	}

	select {
	case <-pc.closedWrite:
	default:
		t.Error("expected CloseWrite to have been called on fini")
	}
}

func TestRelayReportsBytesToMonitor(t *testing.T) {
	monitor := &status.Monitor{}

	nearPlain, farPlain := net.Pipe()
	toFarR, toFarW := io.Pipe()
	toNearR, toNearW := io.Pipe()
	nearFramed := &fakeStream{r: toNearR, w: toFarW}

	relayDone := make(chan error, 1)
	go func() { relayDone <- Relay(nearPlain, nearFramed, monitor) }()

	go func() {
		for {
			hdr, err := wire.ReadHeader(toFarR)
			if err != nil {
				return
			}
			switch hdr.Tag {
			case wire.TagData:
				body := make([]byte, hdr.DataLen)
				io.ReadFull(toFarR, body)
				wire.WriteData(toNearW, body)
			case wire.TagFini:
				wire.WriteFini(toNearW)
				return
			}
		}
	}()

	msg := []byte("count these bytes")
	go farPlain.Write(msg)

	echo := make([]byte, len(msg))
	if _, err := io.ReadFull(farPlain, echo); err != nil {
		t.Fatalf("read echo: %v", err)
	}
	farPlain.Close()

	select {
	case <-relayDone:
	case <-time.After(3 * time.Second):
		t.Fatal("Relay did not complete")
	}

	if got := monitor.Snapshot().BytesRelayed; got <= 0 {
		t.Errorf("expected BytesRelayed to reflect relayed traffic, got %d", got)
	}
}

func TestFramedToPlainRejectsOverlongData(t *testing.T) {
	var framed bytes.Buffer
	hdr := wire.Header{Tag: wire.TagData, DataLen: overlongLimit + 1}
	if err := wire.WriteHeader(&framed, hdr); err != nil {
		t.Fatal(err)
	}
	framed.Write(make([]byte, overlongLimit+1))

	server, _ := net.Pipe()
	defer server.Close()

	err := framedToPlain(&framed, server)
	if !errors.Is(err, wire.ErrOverlongData) {
		t.Fatalf("expected ErrOverlongData, got %v", err)
	}
}

func TestFramedToPlainRejectsUnexpectedTag(t *testing.T) {
	var framed bytes.Buffer
	if err := wire.WriteHeader(&framed, wire.EmptyHeader(wire.TagOkay)); err != nil {
		t.Fatal(err)
	}

	server, _ := net.Pipe()
	defer server.Close()

	err := framedToPlain(&framed, server)
	if !errors.Is(err, wire.ErrUnexpectedFrame) {
		t.Fatalf("expected ErrUnexpectedFrame, got %v", err)
	}
}

// fakeStream lets the relay test drive both ends of a pipe with an
// independent read buffer and write buffer, since net.Pipe alone couples
// reads and writes synchronously.
type fakeStream struct {
	r io.Reader
	w io.Writer
}

func (f *fakeStream) Read(p []byte) (int, error)  { return f.r.Read(p) }
func (f *fakeStream) Write(p []byte) (int, error) { return f.w.Write(p) }
func (f *fakeStream) Close() error                { return nil }

func TestRelayIsTransparentBothDirections(t *testing.T) {
	nearPlain, farPlain := net.Pipe()

	// toFar carries frames near->far; toNear carries the far side's echo
	// back. io.Pipe gives each direction its own synchronous channel.
	toFarR, toFarW := io.Pipe()
	toNearR, toNearW := io.Pipe()

	nearFramed := &fakeStream{r: toNearR, w: toFarW}

	relayDone := make(chan error, 1)
	go func() {
		relayDone <- Relay(nearPlain, nearFramed, nil)
	}()

	// Simulate the far side: read frames from toFarR, collect data, echo
	// them back as data frames on toNearW, and propagate fini.
	farDone := make(chan string, 1)
	go func() {
		var received bytes.Buffer
		for {
			hdr, err := wire.ReadHeader(toFarR)
			if err != nil {
				farDone <- received.String()
				return
			}
			switch hdr.Tag {
			case wire.TagData:
				body := make([]byte, hdr.DataLen)
				io.ReadFull(toFarR, body)
				received.Write(body)
				wire.WriteData(toNearW, body)
			case wire.TagFini:
				wire.WriteFini(toNearW)
				farDone <- received.String()
				return
			}
		}
	}()

	msg := []byte("the quick brown fox")
	writeErr := make(chan error, 1)
	go func() {
		_, err := farPlain.Write(msg)
		writeErr <- err
	}()

	echo := make([]byte, len(msg))
	if _, err := io.ReadFull(farPlain, echo); err != nil {
		t.Fatalf("read echo from far plain: %v", err)
	}
	if string(echo) != string(msg) {
		t.Errorf("far side echo mismatch: got %q, want %q", echo, msg)
	}
	if err := <-writeErr; err != nil {
		t.Fatalf("write to far plain: %v", err)
	}

	farPlain.Close()

	select {
	case got := <-farDone:
		if got != string(msg) {
			t.Errorf("far side received %q, want %q", got, msg)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("far side never observed the full message")
	}

	select {
	case err := <-relayDone:
		if err != nil {
			t.Fatalf("Relay: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Relay did not complete")
	}
}
