// Package session implements the session handshake, stream table,
// and stream dispatcher: everything between the framed transport and the
// operation handlers in internal/ops. The stream table and flow-control
// counters are guarded by a mutex because relaysh runs one goroutine per
// open stream rather than one cooperative loop; see internal/client's
// package doc.
package session

import (
	"sync"

	"github.com/nathanodle/relaysh/internal/wire"
)

// MaxStreams bounds the stream table; allocation past it fails with
// NO_MEMORY.
const MaxStreams = 256

type slotState int

const (
	slotIdle slotState = iota
	slotOpen
)

// slot is one stream table entry. Type-specific resources (file handles,
// directory iterators, child processes) live inside the ops handler
// goroutine rather than here; the slot only tracks what the dispatcher
// needs to route packets to that goroutine.
type slot struct {
	id        uint32
	typ       byte
	state     slotState
	inbound   chan []byte
	cancelled chan struct{}

	closeInboundOnce sync.Once
	cancelOnce       sync.Once
}

// table is the fixed-size stream table.
type table struct {
	mu    sync.Mutex
	slots [MaxStreams]*slot
}

func newTable() *table {
	return &table{}
}

// allocErr distinguishes the two failure shapes STREAM_OPEN validation can
// produce, so the dispatcher can map them to the right wire error code.
type allocErr struct {
	duplicate bool
}

func (e *allocErr) Error() string {
	if e.duplicate {
		return "id in use"
	}
	return "stream table full"
}

// alloc finds an idle slot and initializes it to open for id/typ. A
// duplicate, currently-active id is rejected
// without allocating; a full table is rejected with the NO_MEMORY case.
func (t *table) alloc(id uint32, typ byte) (*slot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var free int = -1
	for i, s := range t.slots {
		if s == nil {
			if free < 0 {
				free = i
			}
			continue
		}
		if s.id == id {
			return nil, &allocErr{duplicate: true}
		}
	}
	if free < 0 {
		return nil, &allocErr{duplicate: false}
	}

	s := &slot{
		id:        id,
		typ:       typ,
		state:     slotOpen,
		inbound:   make(chan []byte, 8),
		cancelled: make(chan struct{}),
	}
	t.slots[free] = s
	return s, nil
}

// count reports how many slots are currently occupied, for the stats
// logger.
func (t *table) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, s := range t.slots {
		if s != nil {
			n++
		}
	}
	return n
}

// find scans for an occupied slot with the given id.
func (t *table) find(id uint32) *slot {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.slots {
		if s != nil && s.id == id {
			return s
		}
	}
	return nil
}

// free releases the slot back to the table. Safe to call more than once
// for the same slot.
func (t *table) free(s *slot) {
	t.mu.Lock()
	for i, cur := range t.slots {
		if cur == s {
			t.slots[i] = nil
			break
		}
	}
	t.mu.Unlock()
	s.closeInboundOnce.Do(func() { close(s.inbound) })
}

// cancel marks a slot cancelled, the dispatcher side of STREAM_CANCEL.
// The handler goroutine observes this through Stream.Cancelled and is
// responsible for emitting STREAM_END(CANCELLED) and triggering free.
func (s *slot) cancel() {
	s.cancelOnce.Do(func() { close(s.cancelled) })
}

// deliverData forwards an inbound STREAM_DATA payload to the handler
// goroutine, used only by FILE_WRITE. If the handler isn't reading (any
// other stream type, or it already finished), the payload is dropped
// rather than blocking the dispatcher.
func (s *slot) deliverData(payload []byte) {
	select {
	case s.inbound <- payload:
	default:
	}
}

// endInbound signals that the peer sent STREAM_END: no more STREAM_DATA
// will arrive on this id. Safe to call more than once.
func (s *slot) endInbound() {
	s.closeInboundOnce.Do(func() { close(s.inbound) })
}

// code maps an allocErr to the wire STREAM_ERROR code the dispatcher
// should send.
func (e *allocErr) code() byte {
	if e.duplicate {
		return wire.ErrInvalid
	}
	return wire.ErrNoMemory
}
