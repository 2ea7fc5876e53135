// Package client implements the event loop: the single place that
// multiplexes the socket, stdin, and the window-resize signal.
//
// A single-threaded cooperative poll loop built on select(2) (one thread
// polling socket/stdin/exec-pipe readiness each tick) has no direct Go
// equivalent without cgo, so this package multiplexes the same sources a
// different way: a goroutine per input source (stdin, the resize signal,
// the session's own packet loop) each feeding a channel, with one central
// select doing the dispatch a single poll thread would otherwise do. The
// consequence is that shared state (the stream table, the flow-control
// counters) needs its own mutex instead of being implicitly
// single-threaded — see internal/session's package doc.
package client

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nathanodle/relaysh/internal/session"
	"github.com/nathanodle/relaysh/internal/termfilter"
	"github.com/nathanodle/relaysh/internal/termio"
)

// stdinChunkSize bounds a single stdin read; keystrokes are sent in small
// TERM_INPUT packets rather than coalesced.
const stdinChunkSize = 256

// Client drives one connected session end to end: handshake is the
// caller's job (internal/session.Handshake); Run owns everything after.
type Client struct {
	sess   *session.Session
	term   termio.Terminal
	simple bool
	filter termfilter.Filter
}

// New wires a handshaken Session to a Terminal. simple selects whether
// inbound TERM_OUTPUT is passed through the transliteration filter before reaching
// stdout (HELLO's FlagSimple).
func New(sess *session.Session, term termio.Terminal, simple bool) *Client {
	c := &Client{sess: sess, term: term, simple: simple}
	sess.OnTermOutput(c.onTermOutput)
	return c
}

// Run sets up raw mode, starts the input-source goroutines, and blocks
// until the session ends (GOODBYE, transport error, or ctx cancellation).
// Raw mode is restored on every exit path.
func (c *Client) Run(ctx context.Context) error {
	if err := c.term.SetRaw(); err != nil {
		return err
	}
	defer c.term.Restore()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stdinCh := make(chan []byte, 4)
	go c.readStdin(ctx, stdinCh)

	resizeCh := make(chan os.Signal, 1)
	signal.Notify(resizeCh, syscall.SIGWINCH)
	defer signal.Stop(resizeCh)

	if err := c.emitResize(); err != nil {
		log.Printf("client: initial resize report failed: %v", err)
	}

	sessErr := make(chan error, 1)
	go func() { sessErr <- c.sess.Run(ctx) }()

	for {
		select {
		case chunk, ok := <-stdinCh:
			if !ok {
				stdinCh = nil
				continue
			}
			if err := c.sess.SendTermInput(chunk); err != nil {
				return err
			}
		case <-resizeCh:
			if err := c.emitResize(); err != nil {
				log.Printf("client: resize report failed: %v", err)
			}
		case err := <-sessErr:
			c.sess.Close()
			return err
		case <-ctx.Done():
			c.sess.Close()
			return ctx.Err()
		}
	}
}

// readStdin feeds stdinCh with up to stdinChunkSize bytes per read until
// EOF, an error, or ctx is cancelled.
func (c *Client) readStdin(ctx context.Context, out chan<- []byte) {
	defer close(out)
	buf := make([]byte, stdinChunkSize)
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := c.term.Stdin().Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (c *Client) emitResize() error {
	rows, cols, err := c.term.Size()
	if err != nil {
		return err
	}
	return c.sess.SendTermResize(rows, cols)
}

// onTermOutput is the Session callback: filter (if simple mode) then write
// to stdout.
func (c *Client) onTermOutput(payload []byte) {
	out := payload
	if c.simple {
		out = c.filter.Apply(payload)
	}
	if _, err := c.term.Stdout().Write(out); err != nil {
		log.Printf("client: stdout write failed: %v", err)
	}
}
