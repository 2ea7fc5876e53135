package session

import (
	"context"

	"github.com/nathanodle/relaysh/internal/ops"
	"github.com/nathanodle/relaysh/internal/wire"
)

// streamHandle is the Session's implementation of ops.Stream: every
// operation handler in internal/ops talks to its peer exclusively through
// one of these, never touching the transport or flow controller directly.
type streamHandle struct {
	sess *Session
	slot *slot
}

var _ ops.Stream = (*streamHandle)(nil)

func (h *streamHandle) ID() uint32 { return h.slot.id }

func (h *streamHandle) Emit(payload []byte) error {
	if err := h.sess.flow.Reserve(context.Background(), len(payload)); err != nil {
		return err
	}
	return h.sess.writeStreamPacket(wire.TypeStreamData, h.slot.id, payload)
}

func (h *streamHandle) End(status byte) error {
	defer h.sess.tbl.free(h.slot)
	return h.sess.writeStreamPacket(wire.TypeStreamEnd, h.slot.id, []byte{status})
}

func (h *streamHandle) EndExec(exitKind byte, value uint32) error {
	defer h.sess.tbl.free(h.slot)
	payload := []byte{exitKind}
	payload = appendU32(payload, value)
	return h.sess.writeStreamPacket(wire.TypeStreamEnd, h.slot.id, payload)
}

func (h *streamHandle) Fail(code byte, message string) error {
	defer h.sess.tbl.free(h.slot)
	payload := append([]byte{code}, message...)
	return h.sess.writeStreamPacket(wire.TypeStreamError, h.slot.id, payload)
}

func (h *streamHandle) Inbound() <-chan []byte { return h.slot.inbound }

func (h *streamHandle) Cancelled() <-chan struct{} { return h.slot.cancelled }

// writeStreamPacket prefixes payload with the big-endian stream id and
// writes the framed packet, serialized against every other concurrent
// writer so frames from different streams never interleave mid-packet.
func (s *Session) writeStreamPacket(typ byte, id uint32, payload []byte) error {
	buf := appendU32(nil, id)
	buf = append(buf, payload...)
	return s.WritePacket(typ, buf)
}

// WritePacket writes one frame, safe for concurrent use by every stream
// handler goroutine plus the session's own control-packet replies.
func (s *Session) WritePacket(typ byte, payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.tr.WritePacket(typ, payload)
}
