package ops

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/nathanodle/relaysh/internal/wire"
)

// Mkdir creates args.Path, treating an already-existing directory as
// success.
func Mkdir(_ context.Context, args Args, s Stream) {
	err := os.Mkdir(args.Path, 0o755)
	if err != nil && !errors.Is(err, fs.ErrExist) {
		_ = s.Fail(wire.ErrnoToCode(err), err.Error())
		return
	}
	_ = s.End(wire.StatusOK)
}
