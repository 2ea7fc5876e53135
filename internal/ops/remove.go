package ops

import (
	"context"
	"os"

	"github.com/nathanodle/relaysh/internal/wire"
)

// Remove unlinks args.Path. Directories are not recursed into; this is a
// plain unlink.
func Remove(_ context.Context, args Args, s Stream) {
	if err := os.Remove(args.Path); err != nil {
		_ = s.Fail(wire.ErrnoToCode(err), err.Error())
		return
	}
	_ = s.End(wire.StatusOK)
}
