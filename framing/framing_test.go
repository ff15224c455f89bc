package framing

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/spokewise/spokewise-go/wire"
)

func TestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	in := &wire.Message{MessageID: "m1", SenderGUID: "c1", RecipientGUID: "c2", Data: []byte("hi")}
	if err := WriteFrame(&buf, in); err != nil {
		t.Fatalf("WriteFrame() failed: %v", err)
	}
	out, err := ReadFrame(&buf, DefaultMaxFrameBytes)
	if err != nil {
		t.Fatalf("ReadFrame() failed: %v", err)
	}
	if out.MessageID != "m1" || out.SenderGUID != "c1" || string(out.Data) != "hi" {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestReadFrameEOFOnBoundary(t *testing.T) {
	var buf bytes.Buffer
	if _, err := ReadFrame(&buf, DefaultMaxFrameBytes); err != io.EOF {
		t.Fatalf("expected io.EOF on empty stream, got %v", err)
	}
}

func TestReadFrameTruncatedBody(t *testing.T) {
	var buf bytes.Buffer
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], 10)
	buf.Write(hdr[:])
	buf.WriteString("shor")
	if _, err := ReadFrame(&buf, DefaultMaxFrameBytes); err != io.ErrUnexpectedEOF {
		t.Fatalf("expected io.ErrUnexpectedEOF for truncated body, got %v", err)
	}
}

func TestReadFrameTooLarge(t *testing.T) {
	var buf bytes.Buffer
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], 1<<30)
	buf.Write(hdr[:])
	if _, err := ReadFrame(&buf, 1024); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestMalformedBodyKeepsStreamSynchronized(t *testing.T) {
	var buf bytes.Buffer
	bad := []byte("{not json")
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(bad)))
	buf.Write(hdr[:])
	buf.Write(bad)
	if err := WriteFrame(&buf, &wire.Message{MessageID: "m2", Command: wire.CommandEcho}); err != nil {
		t.Fatalf("WriteFrame() failed: %v", err)
	}

	if _, err := ReadFrame(&buf, DefaultMaxFrameBytes); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	// The next frame must still decode because the bad body was consumed.
	m, err := ReadFrame(&buf, DefaultMaxFrameBytes)
	if err != nil {
		t.Fatalf("ReadFrame() after malformed frame failed: %v", err)
	}
	if m.MessageID != "m2" {
		t.Fatalf("expected next frame, got %+v", m)
	}
}

func TestPeerAliveTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- c
	}()

	dialer, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { dialer.Close() })

	var server net.Conn
	select {
	case server = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatalf("accept timed out")
	}
	t.Cleanup(func() { server.Close() })

	if !PeerAlive(server) {
		t.Fatalf("expected live peer to probe alive")
	}

	dialer.Close()
	deadline := time.Now().Add(2 * time.Second)
	for PeerAlive(server) {
		if time.Now().After(deadline) {
			t.Fatalf("expected closed peer to probe dead")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
