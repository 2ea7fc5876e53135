package wire

import (
	"errors"
	"io/fs"
	"os"
	"syscall"
)

// ErrnoToCode maps a local OS error to the wire error code used in
// STREAM_ERROR payloads. It is total: anything unmapped falls to
// ErrUnknown rather than leaking a raw errno to the peer.
func ErrnoToCode(err error) byte {
	if err == nil {
		return ErrUnknown
	}
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if errors.Is(err, fs.ErrPermission) {
		return ErrPermission
	}
	if errors.Is(err, fs.ErrExist) {
		return ErrExists
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ENOENT:
			return ErrNotFound
		case syscall.EACCES, syscall.EPERM:
			return ErrPermission
		case syscall.EEXIST:
			return ErrExists
		case syscall.ENOTDIR:
			return ErrNotDir
		case syscall.EISDIR:
			return ErrIsDir
		case syscall.ENOSPC, syscall.EMFILE, syscall.ENFILE, syscall.ELOOP, syscall.ENAMETOOLONG:
			return ErrIO
		default:
			return ErrUnknown
		}
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return ErrnoToCode(pathErr.Err)
	}

	if errors.Is(err, os.ErrDeadlineExceeded) {
		return ErrTimeout
	}

	return ErrUnknown
}
