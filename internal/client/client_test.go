package client

import (
	"io"
	"os"
	"testing"

	"github.com/nathanodle/relaysh/internal/termfilter"
)

// fakeTerminal is a termio.Terminal test double. Stdin/Stdout must be real
// *os.File values per the interface's signature, so an os.Pipe backs each
// direction.
type fakeTerminal struct {
	stdinR, stdinW   *os.File
	stdoutR, stdoutW *os.File
	rows, cols       uint16
}

func newFakeTerminal(t *testing.T) *fakeTerminal {
	t.Helper()
	inR, inW, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	outR, outW, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	ft := &fakeTerminal{stdinR: inR, stdinW: inW, stdoutR: outR, stdoutW: outW, rows: 24, cols: 80}
	t.Cleanup(func() {
		inR.Close()
		inW.Close()
		outR.Close()
		outW.Close()
	})
	return ft
}

func (f *fakeTerminal) SetRaw() error  { return nil }
func (f *fakeTerminal) Restore() error { return nil }
func (f *fakeTerminal) Size() (rows, cols uint16, err error) {
	return f.rows, f.cols, nil
}
func (f *fakeTerminal) Stdin() *os.File  { return f.stdinR }
func (f *fakeTerminal) Stdout() *os.File { return f.stdoutW }

func TestOnTermOutputPassesThroughWhenNotSimple(t *testing.T) {
	ft := newFakeTerminal(t)
	c := &Client{term: ft, simple: false}

	c.onTermOutput([]byte("\x1b[31mred\x1b[0m"))
	ft.stdoutW.Close()

	got, err := io.ReadAll(ft.stdoutR)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "\x1b[31mred\x1b[0m" {
		t.Fatalf("stdout = %q, want the raw bytes unfiltered", got)
	}
}

func TestOnTermOutputFiltersWhenSimple(t *testing.T) {
	ft := newFakeTerminal(t)
	c := &Client{term: ft, simple: true, filter: termfilter.Filter{}}

	c.onTermOutput([]byte("\x1b[31mred\x1b[0m"))
	ft.stdoutW.Close()

	got, err := io.ReadAll(ft.stdoutR)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) == "\x1b[31mred\x1b[0m" {
		t.Fatalf("expected simple mode to strip CSI sequences, got raw bytes back")
	}
}
