// Package termio wraps the local terminal behind a small capability
// interface: raw mode on/off, size queries, and the stdin/stdout handles.
// golang.org/x/term supplies the raw-mode and size primitives; this
// package is the thin adapter the event loop (internal/client) depends on
// instead of the syscalls directly, so tests can substitute a fake.
package termio

import (
	"os"

	"golang.org/x/term"
)

// Terminal is the capability surface the event loop depends on. A
// concrete Local implementation wraps the process's actual stdin.
type Terminal interface {
	SetRaw() error
	Restore() error
	Size() (rows, cols uint16, err error)
	Stdin() *os.File
	Stdout() *os.File
}

// Local drives the process's own stdin/stdout.
type Local struct {
	fd       int
	oldState *term.State
}

// NewLocal returns a Terminal bound to os.Stdin/os.Stdout.
func NewLocal() *Local {
	return &Local{fd: int(os.Stdin.Fd())}
}

// SetRaw puts stdin into raw mode, remembering the prior state for Restore.
func (l *Local) SetRaw() error {
	state, err := term.MakeRaw(l.fd)
	if err != nil {
		return err
	}
	l.oldState = state
	return nil
}

// Restore undoes SetRaw; safe to call even if SetRaw was never called or
// already undone.
func (l *Local) Restore() error {
	if l.oldState == nil {
		return nil
	}
	err := term.Restore(l.fd, l.oldState)
	l.oldState = nil
	return err
}

// Size reports the current terminal window size.
func (l *Local) Size() (rows, cols uint16, err error) {
	w, h, err := term.GetSize(l.fd)
	if err != nil {
		return 0, 0, err
	}
	return uint16(h), uint16(w), nil
}

func (l *Local) Stdin() *os.File  { return os.Stdin }
func (l *Local) Stdout() *os.File { return os.Stdout }
