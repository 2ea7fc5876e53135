package ops

import (
	"context"
	"os"
	"path/filepath"

	"github.com/nathanodle/relaysh/internal/wire"
)

// MaxPath bounds a single built path during a recursive walk; entries
// that would exceed it are skipped, not errors.
const MaxPath = 4096

// MaxDepth is the recursion ceiling for FILE_FIND and FILE_SEARCH walks.
const MaxDepth = 64

// FileFind walks args.Path recursively (depth <= MaxDepth), matching the
// glob in args.Path2 against each entry's basename, and streams one
// [path NUL] record per match. Directories are matched like any other
// entry; descending into them is separate.
func FileFind(ctx context.Context, args Args, s Stream) {
	err := walk(ctx, s, args.Path, 0, func(path string, fi os.FileInfo) error {
		if Match(args.Path2, filepath.Base(path)) {
			return s.Emit(appendNULString(nil, path))
		}
		return nil
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

// walk recursively descends dir, bounded by MaxDepth. A root that is not
// a directory is visited once on its own instead of being read as one.
// "." and ".." are never yielded by os.ReadDir, entries over MaxPath are
// skipped rather than failing the whole walk, and depth beyond MaxDepth
// stops descending without error.
func walk(ctx context.Context, s Stream, dir string, depth int, visit func(string, os.FileInfo) error) error {
	select {
	case <-s.Cancelled():
		return errCancelled
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if depth == 0 {
		fi, err := os.Stat(dir)
		if err != nil {
			return err
		}
		if !fi.IsDir() {
			return visit(dir, fi)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if depth == 0 {
			return err
		}
		// A subdirectory that vanished or became unreadable mid-walk is
		// skipped, not fatal to the whole operation.
		return nil
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if len(path) > MaxPath {
			continue
		}

		fi, err := entry.Info()
		if err != nil {
			continue
		}

		if err := visit(path, fi); err != nil {
			return err
		}

		if fi.IsDir() {
			if depth+1 >= MaxDepth {
				continue
			}
			if err := walk(ctx, s, path, depth+1, visit); err != nil {
				return err
			}
		}
	}
	return nil
}
