package session

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/nathanodle/relaysh/internal/ops"
	"github.com/nathanodle/relaysh/internal/wire"
)

// errNoTerminator is returned when a STREAM_OPEN payload runs out of bytes
// before a required NUL terminator; the dispatcher reports it as
// STREAM_ERROR(INVALID) without allocating a slot.
var errNoTerminator = errors.New("no null terminator")

// parseArgs extracts ops.Args from a STREAM_OPEN's type-specific tail:
// one or two NUL-terminated strings, plus an optional u16 mode for
// FILE_WRITE. It never trusts the payload: every string
// is bounded by what remains, and a missing terminator is an error rather
// than a panic or an out-of-bounds read.
func parseArgs(typ byte, rest []byte) (ops.Args, error) {
	switch typ {
	case wire.StreamFileRead, wire.StreamDirList, wire.StreamFileStat,
		wire.StreamFileExists, wire.StreamMkdir, wire.StreamRemove,
		wire.StreamRealpath:
		path, _, err := takeString(rest)
		if err != nil {
			return ops.Args{}, err
		}
		return ops.Args{Path: path}, nil

	case wire.StreamFileWrite:
		path, rest, err := takeString(rest)
		if err != nil {
			return ops.Args{}, err
		}
		var mode uint16
		if len(rest) >= 2 {
			mode = binary.BigEndian.Uint16(rest[:2])
		}
		return ops.Args{Path: path, Mode: mode}, nil

	case wire.StreamExec:
		cmd, _, err := takeString(rest)
		if err != nil {
			return ops.Args{}, err
		}
		return ops.Args{Shell: cmd}, nil

	case wire.StreamMove, wire.StreamFileFind, wire.StreamFileSearch:
		first, rest, err := takeString(rest)
		if err != nil {
			return ops.Args{}, err
		}
		second, _, err := takeString(rest)
		if err != nil {
			return ops.Args{}, err
		}
		return ops.Args{Path: first, Path2: second}, nil

	default:
		return ops.Args{}, nil
	}
}

// takeString reads one NUL-terminated string off the front of buf,
// returning the string, the remainder after the terminator, and an error
// if no terminator is present within buf.
func takeString(buf []byte) (string, []byte, error) {
	i := bytes.IndexByte(buf, 0)
	if i < 0 {
		return "", nil, errNoTerminator
	}
	return string(buf[:i]), buf[i+1:], nil
}
