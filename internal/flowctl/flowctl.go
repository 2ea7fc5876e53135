// Package flowctl implements the session's flow control: a sliding credit
// window in each direction of the session, using a broadcast condition
// variable rather than a single-slot notify channel because relaysh
// allows several operation handlers to send concurrently.
package flowctl

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/nathanodle/relaysh/internal/wire"
)

// WindowBlockTimeout is how long a sender waits for credit before the
// session is considered broken.
const WindowBlockTimeout = 30 * time.Second

// ErrWindowBlockTimeout is returned by Reserve when no WINDOW_UPDATE
// arrives before WindowBlockTimeout elapses.
var ErrWindowBlockTimeout = errors.New("flowctl: timed out waiting for window update")

// Controller tracks the outbound bytes-in-flight against the peer's
// advertised window, and the inbound bytes-to-ack accumulator.
type Controller struct {
	mu   sync.Mutex
	cond *sync.Cond

	sendWindow    int64 // peer's credit to us, from HELLO_ACK
	bytesInFlight int64

	recvWindow uint32 // our advertised credit, sent in HELLO
	bytesToAck int64

	closed bool
}

// New creates a controller with our advertised receive window. The send
// window is unknown until the handshake completes; it defaults to the
// protocol's minimum usable window so no sender can run ahead of
// SetSendWindow.
func New(recvWindow uint32) *Controller {
	c := &Controller{recvWindow: recvWindow, sendWindow: wire.MinWindow}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// SetSendWindow adopts the window advertised by HELLO_ACK.
func (c *Controller) SetSendWindow(w uint32) {
	c.mu.Lock()
	c.sendWindow = int64(w)
	c.mu.Unlock()
	c.cond.Broadcast()
}

// RecvWindow returns the window this client advertises in HELLO.
func (c *Controller) RecvWindow() uint32 { return c.recvWindow }

// Close unblocks every waiter in Reserve with a closed-session signal.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cond.Broadcast()
}

// Reserve blocks until n bytes of outbound credit are available, the
// controller is closed, the context is cancelled, or WindowBlockTimeout
// elapses. On success it increments bytes_in_flight by n.
func (c *Controller) Reserve(ctx context.Context, n int) error {
	// Both wakeup callbacks take the mutex before broadcasting: a broadcast
	// racing the gap between a waiter's last check and its cond.Wait would
	// otherwise be lost.
	done := make(chan struct{})
	timer := time.AfterFunc(WindowBlockTimeout, func() {
		c.mu.Lock()
		close(done)
		c.cond.Broadcast()
		c.mu.Unlock()
	})
	defer timer.Stop()

	stop := context.AfterFunc(ctx, func() {
		c.mu.Lock()
		c.cond.Broadcast()
		c.mu.Unlock()
	})
	defer stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		if c.closed {
			return errors.New("flowctl: session closed")
		}
		select {
		case <-done:
			return ErrWindowBlockTimeout
		default:
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.bytesInFlight+int64(n) <= c.sendWindow {
			c.bytesInFlight += int64(n)
			return nil
		}
		c.cond.Wait()
	}
}

// ApplyWindowUpdate consumes a WINDOW_UPDATE(increment) from the peer,
// saturating bytes_in_flight at 0 so a stale increment can't drive it
// negative.
func (c *Controller) ApplyWindowUpdate(increment uint32) {
	c.mu.Lock()
	c.bytesInFlight -= int64(increment)
	if c.bytesInFlight < 0 {
		c.bytesInFlight = 0
	}
	c.mu.Unlock()
	c.cond.Broadcast()
}

// BytesInFlight reports the current outbound credit usage (for tests and
// the stats logger).
func (c *Controller) BytesInFlight() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytesInFlight
}

// SendWindow reports the current negotiated outbound window.
func (c *Controller) SendWindow() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendWindow
}

// AccountInbound records n freshly-received bytes (from STREAM_DATA or
// TERM_OUTPUT alike) against the inbound accumulator. When the
// accumulator crosses WindowUpdateThreshold it returns the increment to
// emit as a single WINDOW_UPDATE and resets the accumulator; otherwise ok
// is false and no packet should be sent.
func (c *Controller) AccountInbound(n int) (increment uint32, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bytesToAck += int64(n)
	if c.bytesToAck >= wire.WindowUpdateThreshold {
		increment = uint32(c.bytesToAck)
		c.bytesToAck = 0
		return increment, true
	}
	return 0, false
}

// BytesToAck reports the current unacknowledged inbound total (tests,
// stats logger).
func (c *Controller) BytesToAck() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytesToAck
}
