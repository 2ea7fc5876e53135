package ops

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/nathanodle/relaysh/internal/wire"
)

// searchSizeThreshold bounds which regular files are scanned by FILE_SEARCH;
// 10 MiB, in the same fixed-cutoff spirit as the other bounded resource
// limits in this package (MaxPath, MaxLine, MaxDepth).
const searchSizeThreshold = 10 << 20

// FileSearch walks args.Path recursively, skipping binary files and files
// over searchSizeThreshold, scanning each regular text file line by line
// for args.Path2 with a Boyer-Moore-Horspool search whose skip table is
// built once for the whole operation.
func FileSearch(ctx context.Context, args Args, s Stream) {
	searcher := NewSearcher([]byte(args.Path2))

	err := walk(ctx, s, args.Path, 0, func(path string, fi os.FileInfo) error {
		if fi.IsDir() || !fi.Mode().IsRegular() || fi.Size() > searchSizeThreshold {
			return nil
		}
		return searchFile(ctx, s, searcher, path)
	})

	switch {
	case err == errCancelled:
		_ = s.End(wire.StatusCancelled)
	case err != nil:
		_ = s.Fail(wire.ErrnoToCode(err), err.Error())
	default:
		_ = s.End(wire.StatusOK)
	}
}

// searchFile scans one file line by line, emitting one
// [line:u32 BE][path NUL][line NUL] record per matching line. A file whose
// first 512 bytes contain a NUL byte is skipped as binary. Read errors on
// an individual file are tolerated: the walk continues rather than
// aborting the whole search.
func searchFile(ctx context.Context, s Stream, searcher *Searcher, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var sniff [binarySniffLen]byte
	n, _ := io.ReadFull(f, sniff[:])
	if looksBinary(sniff[:n]) {
		return nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil
	}

	r := bufio.NewReader(f)
	lineNo := uint32(0)
	for {
		select {
		case <-s.Cancelled():
			return errCancelled
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := readBoundedLine(r)
		if len(line) > 0 || err == nil {
			lineNo++
			if searcher.Contains(line) {
				payload := appendU32(nil, lineNo)
				payload = appendNULString(payload, path)
				payload = appendNULString(payload, string(line))
				if emitErr := s.Emit(payload); emitErr != nil {
					return emitErr
				}
			}
		}
		if err != nil {
			return nil
		}
	}
}

// readBoundedLine reads one line (without its trailing newline), truncated
// to MaxLine bytes so a single pathological line cannot blow memory or the
// eventual STREAM_DATA packet.
func readBoundedLine(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return nil, err
	}
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	if len(line) > MaxLine {
		line = line[:MaxLine]
	}
	return line, err
}
