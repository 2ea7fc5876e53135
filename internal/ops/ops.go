// Package ops implements the per-operation execution logic: the
// twelve remote filesystem/process operations a STREAM_OPEN can request,
// each streaming results back through a Stream until it emits exactly one
// terminal packet.
package ops

import (
	"context"

	"github.com/nathanodle/relaysh/internal/wire"
)

// Stream is the sink/source a handler uses to talk to its peer stream.
// internal/session implements this over the transport + flow controller;
// handlers in this package only depend on the interface, keeping ops free
// of any dependency on session/transport wiring.
type Stream interface {
	// ID returns the stream id this handler was opened for.
	ID() uint32

	// Emit sends one STREAM_DATA(id, payload) packet, blocking on flow
	// control as needed. payload is copied by the implementation; the
	// caller may reuse its buffer immediately after Emit returns.
	Emit(payload []byte) error

	// End sends the terminal STREAM_END(status) for this stream.
	End(status byte) error

	// EndExec sends the EXEC stream's terminal STREAM_END, whose payload is
	// [exit_kind:1][value:u32 BE] rather than a plain status byte.
	EndExec(exitKind byte, value uint32) error

	// Fail sends the terminal STREAM_ERROR(code, message) for this stream.
	Fail(code byte, message string) error

	// Inbound yields payloads from STREAM_DATA packets the peer sends on
	// this stream id (used only by FILE_WRITE). It is closed when the
	// peer sends STREAM_END.
	Inbound() <-chan []byte

	// Cancelled is closed when the peer sends STREAM_CANCEL for this id.
	Cancelled() <-chan struct{}
}

// Args is the parsed STREAM_OPEN payload, shaped differently per stream
// type.
type Args struct {
	Path  string // FILE_READ/WRITE, DIR_LIST, STAT, EXISTS, MKDIR, REMOVE, REALPATH, FILE_FIND root, FILE_SEARCH root
	Path2 string // MOVE new path, FILE_FIND glob, FILE_SEARCH needle
	Mode  uint16 // FILE_WRITE mode (0 => 0644)
	Shell string // EXEC command line
}

// errCancelled unwinds a streaming loop once the peer sends STREAM_CANCEL;
// handlers translate it to a STREAM_END(StatusCancelled) rather than
// surfacing it as an I/O failure.
type cancelError struct{}

func (*cancelError) Error() string { return "ops: cancelled" }

var errCancelled = &cancelError{}

// Handle dispatches a single accepted STREAM_OPEN to its operation
// handler. It always returns after the handler has sent its terminal
// packet (End or Fail); callers run it in its own goroutine per stream.
func Handle(ctx context.Context, typ byte, args Args, s Stream) {
	switch typ {
	case wire.StreamFileRead:
		FileRead(ctx, args, s)
	case wire.StreamFileWrite:
		FileWrite(ctx, args, s)
	case wire.StreamExec:
		Exec(ctx, args, s)
	case wire.StreamDirList:
		DirList(ctx, args, s)
	case wire.StreamFileStat:
		FileStat(ctx, args, s)
	case wire.StreamFileExists:
		FileExists(ctx, args, s)
	case wire.StreamMkdir:
		Mkdir(ctx, args, s)
	case wire.StreamRemove:
		Remove(ctx, args, s)
	case wire.StreamMove:
		Move(ctx, args, s)
	case wire.StreamRealpath:
		Realpath(ctx, args, s)
	case wire.StreamFileFind:
		FileFind(ctx, args, s)
	case wire.StreamFileSearch:
		FileSearch(ctx, args, s)
	default:
		_ = s.Fail(wire.ErrInvalid, "unknown stream type")
	}
}
