package ops

import (
	"context"
	"os"

	"github.com/nathanodle/relaysh/internal/wire"
)

// FileExists replies with one STREAM_DATA carrying [exists:1], then
// STREAM_END. Any stat error other than not-exist is still reported as
// exists=0, since the caller only asked a yes/no question.
func FileExists(_ context.Context, args Args, s Stream) {
	exists := byte(0)
	if _, err := os.Stat(args.Path); err == nil {
		exists = 1
	}
	if err := s.Emit([]byte{exists}); err != nil {
		_ = s.Fail(wire.ErrIO, err.Error())
		return
	}
	_ = s.End(wire.StatusOK)
}
