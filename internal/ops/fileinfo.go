package ops

import (
	"encoding/binary"
	"io/fs"

	"github.com/nathanodle/relaysh/internal/wire"
)

// fileType maps an fs.FileInfo to the wire file-type tag used by DIR_LIST
// and FILE_STAT. Symlinks and other non-regular, non-directory entries are
// reported as FileTypeOther.
func fileType(fi fs.FileInfo) byte {
	switch {
	case fi.IsDir():
		return wire.FileTypeDir
	case fi.Mode().IsRegular():
		return wire.FileTypeRegular
	default:
		return wire.FileTypeOther
	}
}

// appendU32 and appendU64 append a big-endian integer, matching the wire
// codec's big-endian convention for every multi-byte field.
func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendU64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

// appendNULString appends s followed by a single NUL terminator.
func appendNULString(buf []byte, s string) []byte {
	buf = append(buf, s...)
	return append(buf, 0)
}
