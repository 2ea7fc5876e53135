package ops

import (
	"context"
	"os"

	"github.com/nathanodle/relaysh/internal/wire"
)

// FileWrite receives STREAM_DATA chunks from the peer and writes them to
// args.Path, truncating/creating with args.Mode (default 0644), until the
// peer sends STREAM_END or STREAM_CANCEL.
func FileWrite(ctx context.Context, args Args, s Stream) {
	mode := os.FileMode(0o644)
	if args.Mode != 0 {
		mode = os.FileMode(args.Mode)
	}

	f, err := os.OpenFile(args.Path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		_ = s.Fail(wire.ErrnoToCode(err), err.Error())
		return
	}

	for {
		select {
		case chunk, ok := <-s.Inbound():
			if !ok {
				f.Close()
				_ = s.End(wire.StatusOK)
				return
			}
			if _, err := f.Write(chunk); err != nil {
				f.Close()
				_ = s.Fail(wire.ErrnoToCode(err), err.Error())
				return
			}
		case <-s.Cancelled():
			f.Close()
			os.Remove(args.Path)
			_ = s.End(wire.StatusCancelled)
			return
		case <-ctx.Done():
			f.Close()
			_ = s.Fail(wire.ErrIO, ctx.Err().Error())
			return
		}
	}
}
