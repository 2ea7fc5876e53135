package ops

import (
	"context"

	"github.com/nathanodle/relaysh/internal/procexec"
	"github.com/nathanodle/relaysh/internal/wire"
)

// Exec runs args.Shell under /bin/sh -c, streaming merged stdout/stderr as
// [channel:1][bytes] STREAM_DATA records, then a 9-byte
// [exit_kind:1][value:u32 BE] STREAM_END payload (the id prefix is added
// by the Stream implementation).
func Exec(ctx context.Context, args Args, s Stream) {
	proc, err := procexec.Start(ctx, args.Shell)
	if err != nil {
		_ = s.Fail(wire.ErrIO, err.Error())
		return
	}

	// The cancel channels are nilled after firing once: a closed channel
	// stays ready forever, and the loop must keep draining proc.Output
	// until the terminal chunk arrives.
	cancelled := s.Cancelled()
	done := ctx.Done()
	for {
		select {
		case chunk, ok := <-proc.Output():
			if !ok {
				return
			}
			if chunk.Done {
				_ = s.EndExec(chunk.ExitKind, chunk.Value)
				return
			}
			payload := append([]byte{wire.ExecChannelOutput}, chunk.Data...)
			if err := s.Emit(payload); err != nil {
				proc.Cancel()
			}
		case <-cancelled:
			proc.Cancel()
			cancelled = nil
		case <-done:
			proc.Cancel()
			done = nil
		}
	}
}
