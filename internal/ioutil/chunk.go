// Package ioutil is a chunked-read primitive: instead of copying into an
// io.Writer, every operation in this repo streams chunks out through a
// flow-controlled STREAM_DATA sink, so the shape here is "read src, hand
// each chunk to a callback" rather than "copy src to dst".
package ioutil

import (
	"io"

	"github.com/pkg/errors"
)

// ChunkSize is the read buffer size used when streaming file contents
// (FILE_READ).
const ChunkSize = 4096

// CopyChunks reads r in ChunkSize pieces, calling emit with each one, until
// EOF or emit/read returns an error. It never calls emit with a zero-length
// slice.
func CopyChunks(r io.Reader, emit func([]byte) error) error {
	buf := make([]byte, ChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if emitErr := emit(buf[:n]); emitErr != nil {
				return emitErr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "ioutil: read")
		}
	}
}
