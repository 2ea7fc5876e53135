package ops

import (
	"context"
	"os"

	"github.com/nathanodle/relaysh/internal/wire"
)

// DirList streams one [type:1][size:u64 BE][mtime:u64 BE][name NUL] record
// per directory entry, skipping "." and "..", then STREAM_END.
func DirList(_ context.Context, args Args, s Stream) {
	entries, err := os.ReadDir(args.Path)
	if err != nil {
		_ = s.Fail(wire.ErrnoToCode(err), err.Error())
		return
	}

	for _, entry := range entries {
		name := entry.Name()
		if name == "." || name == ".." {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			// Entry vanished between readdir and stat; skip rather than
			// fail the whole listing.
			continue
		}

		payload := []byte{fileType(fi)}
		payload = appendU64(payload, uint64(fi.Size()))
		payload = appendU64(payload, uint64(fi.ModTime().Unix()))
		payload = appendNULString(payload, name)

		select {
		case <-s.Cancelled():
			_ = s.End(wire.StatusCancelled)
			return
		default:
		}
		if err := s.Emit(payload); err != nil {
			_ = s.Fail(wire.ErrIO, err.Error())
			return
		}
	}
	_ = s.End(wire.StatusOK)
}
