package ops

import (
	"context"
	"os"

	"github.com/nathanodle/relaysh/internal/ioutil"
	"github.com/nathanodle/relaysh/internal/wire"
)

// FileRead streams a file's contents as a sequence of STREAM_DATA chunks
// followed by STREAM_END(normal), or a single STREAM_ERROR on failure.
func FileRead(ctx context.Context, args Args, s Stream) {
	f, err := os.Open(args.Path)
	if err != nil {
		_ = s.Fail(wire.ErrnoToCode(err), err.Error())
		return
	}
	defer f.Close()

	if fi, err := f.Stat(); err == nil && fi.IsDir() {
		_ = s.Fail(wire.ErrIsDir, "is a directory")
		return
	}

	cancelled := false
	err = ioutil.CopyChunks(f, func(chunk []byte) error {
		select {
		case <-s.Cancelled():
			cancelled = true
			return errCancelled
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		return s.Emit(chunk)
	})

	switch {
	case cancelled:
		_ = s.End(wire.StatusCancelled)
	case err != nil:
		_ = s.Fail(wire.ErrnoToCode(err), err.Error())
	default:
		_ = s.End(wire.StatusOK)
	}
}
