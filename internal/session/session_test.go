package session

import (
	"context"
	"encoding/binary"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nathanodle/relaysh/internal/transport"
	"github.com/nathanodle/relaysh/internal/wire"
)

// peer is a minimal raw-frame driver standing in for the relay side of the
// connection, used to exercise Session without a second Session instance.
type peer struct {
	conn net.Conn
}

func (p *peer) writePacket(t *testing.T, typ byte, payload []byte) {
	t.Helper()
	buf := make([]byte, wire.HeaderSize+len(payload))
	wire.EncodeHeader(buf, typ, len(payload))
	copy(buf[wire.HeaderSize:], payload)
	if _, err := p.conn.Write(buf); err != nil {
		t.Fatalf("peer write: %v", err)
	}
}

func (p *peer) readPacket(t *testing.T) wire.Packet {
	t.Helper()
	hdr := make([]byte, wire.HeaderSize)
	if _, err := readFull(p.conn, hdr); err != nil {
		t.Fatalf("peer read header: %v", err)
	}
	length := wire.DecodeLength(hdr)
	payload := make([]byte, length)
	if _, err := readFull(p.conn, payload); err != nil {
		t.Fatalf("peer read payload: %v", err)
	}
	return wire.Packet{Type: hdr[0], Payload: payload}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// handshakeOverPipe starts Handshake on one end of a net.Pipe and drives
// the HELLO/HELLO_ACK exchange from the other end, returning both the
// Session and a peer handle for the rest of the test.
func handshakeOverPipe(t *testing.T) (*Session, *peer, func()) {
	t.Helper()
	clientConn, peerConn := net.Pipe()
	p := &peer{conn: peerConn}

	type result struct {
		sess *Session
		err  error
	}
	resultCh := make(chan result, 1)
	go func() {
		sess, err := Handshake(transport.New(clientConn), 0, "/tmp", wire.DefaultWindow)
		resultCh <- result{sess, err}
	}()

	hello := p.readPacket(t)
	if hello.Type != wire.TypeHello {
		t.Fatalf("expected HELLO, got type 0x%02x", hello.Type)
	}

	ack := make([]byte, 6)
	ack[0] = wire.ProtoVersion
	ack[1] = 0
	binary.BigEndian.PutUint32(ack[2:6], wire.DefaultWindow)
	p.writePacket(t, wire.TypeHelloAck, ack)

	res := <-resultCh
	if res.err != nil {
		t.Fatalf("handshake: %v", res.err)
	}
	return res.sess, p, func() {
		clientConn.Close()
		peerConn.Close()
	}
}

// TestPingRoundTrip: a PING's payload must come straight back in a PONG.
func TestPingRoundTrip(t *testing.T) {
	sess, p, cleanup := handshakeOverPipe(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sess.Run(ctx)

	p.writePacket(t, wire.TypePing, []byte("abc"))
	pong := p.readPacket(t)
	if pong.Type != wire.TypePong || string(pong.Payload) != "abc" {
		t.Fatalf("got %v %q, want PONG %q", pong.Type, pong.Payload, "abc")
	}
}

// TestFileExistsOnPresentFile drives a FILE_EXISTS stream end to end over
// real wire traffic.
func TestFileExistsOnPresentFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x")
	if err := os.WriteFile(path, []byte("hi"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	sess, p, cleanup := handshakeOverPipe(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sess.Run(ctx)

	const id = 5
	payload := make([]byte, 4, 4+1+len(path)+1)
	binary.BigEndian.PutUint32(payload, id)
	payload = append(payload, wire.StreamFileExists)
	payload = append(payload, path...)
	payload = append(payload, 0)
	p.writePacket(t, wire.TypeStreamOpen, payload)

	data := p.readPacket(t)
	if data.Type != wire.TypeStreamData {
		t.Fatalf("expected STREAM_DATA, got 0x%02x", data.Type)
	}
	gotID := binary.BigEndian.Uint32(data.Payload[:4])
	if gotID != id || data.Payload[4] != 1 {
		t.Fatalf("STREAM_DATA = id=%d exists=%d, want id=%d exists=1", gotID, data.Payload[4], id)
	}

	end := p.readPacket(t)
	if end.Type != wire.TypeStreamEnd {
		t.Fatalf("expected STREAM_END, got 0x%02x", end.Type)
	}
	if binary.BigEndian.Uint32(end.Payload[:4]) != id || end.Payload[4] != wire.StatusOK {
		t.Fatalf("STREAM_END payload = %v, want id=%d status=OK", end.Payload, id)
	}
}

// TestDuplicateStreamIDRejected: reusing a currently-open stream id must
// draw a STREAM_ERROR(INVALID) without allocating a second slot.
func TestDuplicateStreamIDRejected(t *testing.T) {
	dir := t.TempDir()

	sess, p, cleanup := handshakeOverPipe(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sess.Run(ctx)

	open := func(id uint32, path string) {
		payload := make([]byte, 4, 4+1+len(path)+1)
		binary.BigEndian.PutUint32(payload, id)
		payload = append(payload, wire.StreamFileExists)
		payload = append(payload, path...)
		payload = append(payload, 0)
		p.writePacket(t, wire.TypeStreamOpen, payload)
	}

	open(9, dir)
	// Drain the first stream's terminal sequence before reusing its id, so
	// this test only exercises the duplicate-while-open path.
	_ = p.readPacket(t) // STREAM_DATA
	_ = p.readPacket(t) // STREAM_END

	// Open two overlapping streams with the same id back-to-back: the
	// second must be rejected even though the first hasn't been read yet.
	open(42, dir)
	open(42, dir)

	// Three packets are owed in total: the legitimate stream's STREAM_DATA
	// and STREAM_END, plus the STREAM_ERROR(INVALID) for the duplicate.
	// Their relative order depends on handler scheduling, so read all
	// three and scan.
	sawDuplicateError := false
	for i := 0; i < 3; i++ {
		pkt := p.readPacket(t)
		if pkt.Type == wire.TypeStreamError && pkt.Payload[4] == wire.ErrInvalid {
			sawDuplicateError = true
		}
	}
	if !sawDuplicateError {
		t.Fatal("expected a STREAM_ERROR(INVALID) among the three responses")
	}
}

// TestWindowBlock: the send window is a fixed
// ceiling on unacknowledged outbound bytes, and a handler's Emit blocks
// until a WINDOW_UPDATE frees enough of it, regardless of which stream
// originally consumed the credit.
func TestWindowBlock(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a")
	pathB := filepath.Join(dir, "b")
	if err := os.WriteFile(pathA, make([]byte, 50), 0o644); err != nil {
		t.Fatalf("seed file a: %v", err)
	}
	if err := os.WriteFile(pathB, make([]byte, 50), 0o644); err != nil {
		t.Fatalf("seed file b: %v", err)
	}

	clientConn, peerConn := net.Pipe()
	p := &peer{conn: peerConn}

	type result struct {
		sess *Session
		err  error
	}
	resultCh := make(chan result, 1)
	go func() {
		sess, err := Handshake(transport.New(clientConn), 0, "/tmp", wire.DefaultWindow)
		resultCh <- result{sess, err}
	}()
	hello := p.readPacket(t)
	if hello.Type != wire.TypeHello {
		t.Fatalf("expected HELLO, got 0x%02x", hello.Type)
	}
	ack := make([]byte, 6)
	ack[0] = wire.ProtoVersion
	binary.BigEndian.PutUint32(ack[2:6], 60) // send window = 60 bytes
	p.writePacket(t, wire.TypeHelloAck, ack)
	res := <-resultCh
	if res.err != nil {
		t.Fatalf("handshake: %v", res.err)
	}
	sess := res.sess
	defer clientConn.Close()
	defer peerConn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sess.Run(ctx)

	open := func(id uint32, path string) {
		payload := make([]byte, 4, 4+1+len(path)+1)
		binary.BigEndian.PutUint32(payload, id)
		payload = append(payload, wire.StreamFileRead)
		payload = append(payload, path...)
		payload = append(payload, 0)
		p.writePacket(t, wire.TypeStreamOpen, payload)
	}

	// Stream 1 consumes most of the 60-byte window (its 50-byte chunk fits,
	// leaving 10 bytes of headroom) and completes without ever being acked.
	open(1, pathA)
	if pkt := p.readPacket(t); pkt.Type != wire.TypeStreamData {
		t.Fatalf("expected STREAM_DATA for stream 1, got 0x%02x", pkt.Type)
	}
	if pkt := p.readPacket(t); pkt.Type != wire.TypeStreamEnd {
		t.Fatalf("expected STREAM_END for stream 1, got 0x%02x", pkt.Type)
	}

	// Stream 2's 50-byte chunk no longer fits (50 in flight + 50 > 60), so
	// its handler must block in Reserve until a WINDOW_UPDATE arrives.
	open(2, pathB)
	time.Sleep(50 * time.Millisecond)

	inc := make([]byte, 4)
	binary.BigEndian.PutUint32(inc, 50)
	p.writePacket(t, wire.TypeWindowUpdate, inc)

	if pkt := p.readPacket(t); pkt.Type != wire.TypeStreamData {
		t.Fatalf("expected STREAM_DATA for stream 2 after window update, got 0x%02x", pkt.Type)
	}
	if pkt := p.readPacket(t); pkt.Type != wire.TypeStreamEnd {
		t.Fatalf("expected STREAM_END for stream 2, got 0x%02x", pkt.Type)
	}
}
