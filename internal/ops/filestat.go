package ops

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/nathanodle/relaysh/internal/wire"
)

// FileStat replies with one STREAM_DATA carrying
// [exists:1][type:1][mode:u32 BE][size:u64 BE][mtime:u64 BE], all zero
// numeric fields when the path doesn't exist, then STREAM_END.
func FileStat(_ context.Context, args Args, s Stream) {
	fi, err := os.Stat(args.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			payload := []byte{0, 0}
			payload = appendU32(payload, 0)
			payload = appendU64(payload, 0)
			payload = appendU64(payload, 0)
			if err := s.Emit(payload); err != nil {
				_ = s.Fail(wire.ErrIO, err.Error())
				return
			}
			_ = s.End(wire.StatusOK)
			return
		}
		_ = s.Fail(wire.ErrnoToCode(err), err.Error())
		return
	}

	payload := []byte{1, fileType(fi)}
	payload = appendU32(payload, uint32(fi.Mode().Perm())|modeTypeBits(fi))
	payload = appendU64(payload, uint64(fi.Size()))
	payload = appendU64(payload, uint64(fi.ModTime().Unix()))
	if err := s.Emit(payload); err != nil {
		_ = s.Fail(wire.ErrIO, err.Error())
		return
	}
	_ = s.End(wire.StatusOK)
}

// modeTypeBits folds the directory bit into the reported mode, mirroring a
// traditional st_mode layout closely enough for a remote client to tell
// files and directories apart from the numeric field alone.
func modeTypeBits(fi fs.FileInfo) uint32 {
	if fi.IsDir() {
		return 1 << 31
	}
	return 0
}
