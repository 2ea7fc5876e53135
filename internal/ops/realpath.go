package ops

import (
	"context"
	"path/filepath"

	"github.com/nathanodle/relaysh/internal/wire"
)

// Realpath replies with one STREAM_DATA carrying the resolved, NUL
// terminated absolute path, then STREAM_END.
func Realpath(_ context.Context, args Args, s Stream) {
	resolved, err := filepath.Abs(args.Path)
	if err == nil {
		resolved, err = filepath.EvalSymlinks(resolved)
	}
	if err != nil {
		_ = s.Fail(wire.ErrnoToCode(err), err.Error())
		return
	}
	if err := s.Emit(appendNULString(nil, resolved)); err != nil {
		_ = s.Fail(wire.ErrIO, err.Error())
		return
	}
	_ = s.End(wire.StatusOK)
}
