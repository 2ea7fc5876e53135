package ops

import (
	"context"
	"os"

	"github.com/nathanodle/relaysh/internal/wire"
)

// Move renames args.Path to args.Path2 in a single rename call.
func Move(_ context.Context, args Args, s Stream) {
	if err := os.Rename(args.Path, args.Path2); err != nil {
		_ = s.Fail(wire.ErrnoToCode(err), err.Error())
		return
	}
	_ = s.End(wire.StatusOK)
}
