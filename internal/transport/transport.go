// Package transport implements the framed transport: reading whole
// packets out of a growable reassembly buffer and writing complete frames
// to the underlying connection.
//
// ReadPacket reads whatever the connection delivers into a single growable
// reassembly buffer and decodes complete packets out of it (header first,
// then the declared payload length). The buffer grows by doubling, capped
// at one maximum packet plus header, rather than using a per-frame pool.
package transport

import (
	"io"
	"net"

	"github.com/pkg/errors"

	"github.com/nathanodle/relaysh/internal/wire"
)

// initialBufSize is the starting capacity of the reassembly buffer.
const initialBufSize = 4096

// maxBufSize caps reassembly-buffer growth at one maximum packet plus its
// header.
const maxBufSize = wire.MaxPacketSize + wire.HeaderSize

// Transport wraps a net.Conn with packet framing in both directions.
type Transport struct {
	conn net.Conn
	buf  []byte // buf[pos:] is buffered, not-yet-decoded bytes
	pos  int
}

// New wraps conn, enabling TCP_NODELAY when the connection supports it.
func New(conn net.Conn) *Transport {
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return &Transport{
		conn: conn,
		buf:  make([]byte, 0, initialBufSize),
	}
}

// Conn returns the underlying connection, e.g. for SetReadDeadline.
func (t *Transport) Conn() net.Conn { return t.conn }

// Close closes the underlying connection.
func (t *Transport) Close() error { return t.conn.Close() }

// ReadPacket blocks until one complete packet is available and returns it.
// The returned Packet.Payload aliases the transport's internal buffer and
// is only valid until the next call to ReadPacket; callers that need to
// retain the bytes past that point must copy them.
//
// A read that returns 0 bytes with no error (peer performed an orderly
// close) is reported as io.EOF so the session loop terminates.
func (t *Transport) ReadPacket() (wire.Packet, error) {
	for {
		if pkt, ok, err := t.decodeOne(); err != nil {
			return wire.Packet{}, err
		} else if ok {
			return pkt, nil
		}

		t.compact()
		if err := t.growIfFull(); err != nil {
			return wire.Packet{}, err
		}

		n, err := t.conn.Read(t.buf[len(t.buf):cap(t.buf)])
		if n == 0 && err == nil {
			return wire.Packet{}, io.EOF
		}
		if n > 0 {
			t.buf = t.buf[:len(t.buf)+n]
		}
		if err != nil {
			return wire.Packet{}, err
		}
	}
}

// decodeOne attempts to decode a single packet from the buffered bytes
// without blocking. ok is false when more bytes are needed.
func (t *Transport) decodeOne() (wire.Packet, bool, error) {
	avail := t.buf[t.pos:]
	if len(avail) < wire.HeaderSize {
		return wire.Packet{}, false, nil
	}
	length := wire.DecodeLength(avail)
	if length > wire.MaxPacketSize {
		return wire.Packet{}, false, &wire.ErrOversizedPacket{Length: length}
	}
	total := wire.HeaderSize + int(length)
	if len(avail) < total {
		return wire.Packet{}, false, nil
	}
	pkt := wire.Packet{
		Type:    avail[0],
		Payload: avail[wire.HeaderSize:total],
	}
	t.pos += total
	return pkt, true, nil
}

// compact slides any unconsumed bytes to the front of buf, discarding the
// already-decoded prefix.
func (t *Transport) compact() {
	if t.pos == 0 {
		return
	}
	n := copy(t.buf, t.buf[t.pos:])
	t.buf = t.buf[:n]
	t.pos = 0
}

// growIfFull doubles the buffer's capacity when it has no room left for
// another read, capped at maxBufSize.
func (t *Transport) growIfFull() error {
	if len(t.buf) < cap(t.buf) {
		return nil
	}
	newCap := cap(t.buf) * 2
	if newCap > maxBufSize {
		newCap = maxBufSize
	}
	if newCap <= cap(t.buf) {
		return errors.New("transport: reassembly buffer exhausted without a complete packet")
	}
	grown := make([]byte, len(t.buf), newCap)
	copy(grown, t.buf)
	t.buf = grown
	return nil
}

// WritePacket writes one complete frame: the 5-byte header followed by
// payload, looping on short writes until the whole frame is out.
func (t *Transport) WritePacket(typ byte, payload []byte) error {
	out := make([]byte, wire.HeaderSize+len(payload))
	wire.EncodeHeader(out, typ, len(payload))
	copy(out[wire.HeaderSize:], payload)
	return t.writeFull(out)
}

func (t *Transport) writeFull(buf []byte) error {
	for len(buf) > 0 {
		n, err := t.conn.Write(buf)
		if err != nil {
			return errors.Wrap(err, "transport: write")
		}
		buf = buf[n:]
	}
	return nil
}
