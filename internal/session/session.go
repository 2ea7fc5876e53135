package session

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/nathanodle/relaysh/internal/flowctl"
	"github.com/nathanodle/relaysh/internal/ops"
	"github.com/nathanodle/relaysh/internal/transport"
	"github.com/nathanodle/relaysh/internal/wire"
)

// HandshakeTimeout bounds the HELLO_ACK wait.
const HandshakeTimeout = 10 * time.Second

// Session ties together the negotiated window, the stream table, and the
// transport. internal/client's event loop owns one of these per
// connection.
type Session struct {
	tr   *transport.Transport
	flow *flowctl.Controller
	tbl  *table

	writeMu sync.Mutex
	wg      sync.WaitGroup

	onTermOutput func([]byte)
}

// Handshake performs the HELLO/HELLO_ACK exchange and returns a Session
// ready to Run. flags carries FlagResume/FlagSimple; cwd is sent verbatim.
func Handshake(tr *transport.Transport, flags byte, cwd string, recvWindow uint32) (*Session, error) {
	hello := []byte{wire.ProtoVersion, flags}
	hello = appendU32(hello, recvWindow)
	hello = append(hello, cwd...)
	hello = append(hello, 0)
	if err := tr.WritePacket(wire.TypeHello, hello); err != nil {
		return nil, errors.Wrap(err, "session: send HELLO")
	}

	deadline := time.Now().Add(HandshakeTimeout)
	_ = tr.Conn().SetReadDeadline(deadline)
	defer tr.Conn().SetReadDeadline(time.Time{})

	for {
		pkt, err := tr.ReadPacket()
		if err != nil {
			return nil, errors.Wrap(err, "session: awaiting HELLO_ACK")
		}
		if pkt.Type != wire.TypeHelloAck {
			log.Printf("session: discarding packet type 0x%02x before HELLO_ACK", pkt.Type)
			continue
		}
		if len(pkt.Payload) < 6 {
			return nil, errors.New("session: malformed HELLO_ACK")
		}
		version := pkt.Payload[0]
		if version != wire.ProtoVersion {
			return nil, fmt.Errorf("session: protocol version mismatch (peer=%d, want=%d)", version, wire.ProtoVersion)
		}
		window := binary.BigEndian.Uint32(pkt.Payload[2:6])

		flow := flowctl.New(recvWindow)
		flow.SetSendWindow(window)

		return &Session{
			tr:   tr,
			flow: flow,
			tbl:  newTable(),
		}, nil
	}
}

// OnTermOutput registers the callback invoked with every inbound
// TERM_OUTPUT payload (a copy, safe to retain). internal/client wires this
// to the terminal filter and stdout.
func (s *Session) OnTermOutput(fn func([]byte)) { s.onTermOutput = fn }

// SendTermInput writes a TERM_INPUT packet carrying raw keystrokes.
func (s *Session) SendTermInput(b []byte) error { return s.WritePacket(wire.TypeTermInput, b) }

// SendTermResize writes a TERM_RESIZE(rows, cols) packet.
func (s *Session) SendTermResize(rows, cols uint16) error {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint16(buf[0:2], rows)
	binary.BigEndian.PutUint16(buf[2:4], cols)
	return s.WritePacket(wire.TypeTermResize, buf)
}

// Flow exposes the flow controller for the event loop's PING/backpressure
// bookkeeping and for the stats logger.
func (s *Session) Flow() *flowctl.Controller { return s.flow }

// Snapshot is a point-in-time read of session counters for the stats
// logger (internal/stats).
type Snapshot struct {
	BytesInFlight int64
	BytesToAck    int64
	SendWindow    int64
	StreamsOpen   int
}

// Snapshot reports the current counters.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		BytesInFlight: s.flow.BytesInFlight(),
		BytesToAck:    s.flow.BytesToAck(),
		SendWindow:    s.flow.SendWindow(),
		StreamsOpen:   s.tbl.count(),
	}
}

// Close shuts down the flow controller, unblocking any in-flight Reserve
// calls, and waits for every outstanding stream handler to finish.
func (s *Session) Close() {
	s.flow.Close()
	s.wg.Wait()
}

// Run reads and dispatches packets until GOODBYE, a transport error, or ctx
// is cancelled. It returns nil on a clean GOODBYE.
func (s *Session) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		pkt, err := s.tr.ReadPacket()
		if err != nil {
			return err
		}
		if done, err := s.dispatch(pkt); done {
			return err
		}
	}
}

// dispatch handles one packet. done is true once the loop should stop
// (GOODBYE or a transport-fatal condition).
func (s *Session) dispatch(pkt wire.Packet) (done bool, err error) {
	switch pkt.Type {
	case wire.TypePing:
		payload := append([]byte(nil), pkt.Payload...)
		if werr := s.WritePacket(wire.TypePong, payload); werr != nil {
			return true, werr
		}
	case wire.TypePong:
		// No action: relaysh never sends PING itself.
	case wire.TypeWindowUpdate:
		if len(pkt.Payload) < 4 {
			log.Printf("session: malformed WINDOW_UPDATE, dropping")
			return false, nil
		}
		s.flow.ApplyWindowUpdate(binary.BigEndian.Uint32(pkt.Payload))
	case wire.TypeGoodbye:
		return true, nil
	case wire.TypeTermOutput:
		s.accountInbound(len(pkt.Payload))
		if s.onTermOutput != nil {
			s.onTermOutput(append([]byte(nil), pkt.Payload...))
		}
	case wire.TypeStreamOpen:
		s.handleStreamOpen(pkt.Payload)
	case wire.TypeStreamData:
		s.accountInbound(len(pkt.Payload))
		s.handleStreamData(pkt.Payload)
	case wire.TypeStreamEnd:
		s.handleStreamEnd(pkt.Payload)
	case wire.TypeStreamCancel:
		s.handleStreamCancel(pkt.Payload)
	default:
		log.Printf("session: dropping unknown packet type 0x%02x", pkt.Type)
	}
	return false, nil
}

// accountInbound feeds the flow controller and emits WINDOW_UPDATE when it
// crosses the threshold.
func (s *Session) accountInbound(n int) {
	if inc, ok := s.flow.AccountInbound(n); ok {
		if err := s.WritePacket(wire.TypeWindowUpdate, appendU32(nil, inc)); err != nil {
			log.Printf("session: failed to send WINDOW_UPDATE: %v", err)
		}
	}
}

func (s *Session) handleStreamOpen(payload []byte) {
	if len(payload) < 5 {
		log.Printf("session: STREAM_OPEN too short, dropping")
		return
	}
	id := binary.BigEndian.Uint32(payload[0:4])
	typ := payload[4]
	rest := payload[5:]

	args, err := parseArgs(typ, rest)
	if err != nil {
		_ = s.writeStreamError(id, wire.ErrInvalid, err.Error())
		return
	}

	slot, err := s.tbl.alloc(id, typ)
	if err != nil {
		ae := err.(*allocErr)
		_ = s.writeStreamError(id, ae.code(), ae.Error())
		return
	}

	handle := &streamHandle{sess: s, slot: slot}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ops.Handle(context.Background(), typ, args, handle)
	}()
}

func (s *Session) handleStreamData(payload []byte) {
	if len(payload) < 4 {
		return
	}
	id := binary.BigEndian.Uint32(payload[0:4])
	slot := s.tbl.find(id)
	if slot == nil {
		log.Printf("session: STREAM_DATA for unknown id %d, dropping", id)
		return
	}
	data := append([]byte(nil), payload[4:]...)
	slot.deliverData(data)
}

func (s *Session) handleStreamEnd(payload []byte) {
	if len(payload) < 4 {
		return
	}
	id := binary.BigEndian.Uint32(payload[0:4])
	slot := s.tbl.find(id)
	if slot == nil {
		return // unknown id is ignored
	}
	slot.endInbound()
}

func (s *Session) handleStreamCancel(payload []byte) {
	if len(payload) < 4 {
		return
	}
	id := binary.BigEndian.Uint32(payload[0:4])
	slot := s.tbl.find(id)
	if slot == nil {
		return
	}
	slot.cancel()
}

func (s *Session) writeStreamError(id uint32, code byte, message string) error {
	payload := appendU32(nil, id)
	payload = append(payload, code)
	payload = append(payload, message...)
	return s.WritePacket(wire.TypeStreamError, payload)
}
