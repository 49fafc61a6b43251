// Package pathindex walks a source directory tree and yields every regular
// file reachable by recursive descent.
//
// Symbolic links are followed: a link to a directory is descended into and a
// link to a file is reported with the target's metadata. A set of resolved
// directory identities guards against link cycles. Unreadable subtrees are
// skipped with a warning rather than aborting the walk.
package pathindex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fansync.io/fansync/pkg/flog"
)

// ErrNotDirectory is returned when the walk root exists but is not a
// directory.
var ErrNotDirectory = errors.New("source is not a directory")

// Entry describes one regular file found under the source root.
type Entry struct {
	// RelPath is the path relative to the source root. It is the addressing
	// key used to derive the file's location under every destination root.
	RelPath string
	// AbsPath is the absolute path of the source file.
	AbsPath string
	// ModTime is the source file's modification time at scan time.
	ModTime time.Time
	// Size is the source file's length in bytes at scan time.
	Size int64
	// Mode holds the source file's permission bits at scan time.
	Mode os.FileMode
}

// WalkFunc receives each discovered entry. Returning a non-nil error stops
// the walk and propagates the error to the Walk caller.
type WalkFunc func(e Entry) error

// Walk traverses the tree rooted at source, invoking fn for every regular
// file. The context is polled between directory entries; cancellation stops
// the walk and returns ctx.Err().
func Walk(ctx context.Context, source string, fn WalkFunc) error {
	absSource, err := filepath.Abs(source)
	if err != nil {
		return fmt.Errorf("could not resolve source path %s: %w", source, err)
	}

	info, err := os.Stat(absSource)
	if err != nil {
		return fmt.Errorf("could not scan source %s: %w", absSource, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("could not scan source %s: %w", absSource, ErrNotDirectory)
	}

	w := &walker{ctx: ctx, root: absSource, fn: fn, visited: make(map[string]struct{})}
	w.markVisited(absSource)
	return w.walkDir(absSource)
}

type walker struct {
	ctx  context.Context
	root string
	fn   WalkFunc

	// visited holds symlink-resolved directory paths already descended into,
	// so a link cycle terminates instead of recursing forever.
	visited map[string]struct{}
}

// markVisited records a directory's resolved identity. It reports false when
// the directory was seen before.
func (w *walker) markVisited(absDir string) bool {
	resolved, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		// Can't resolve; fall back to the literal path so the walk still
		// terminates on exact repeats.
		resolved = absDir
	}
	if _, seen := w.visited[resolved]; seen {
		return false
	}
	w.visited[resolved] = struct{}{}
	return true
}

func (w *walker) walkDir(absDir string) error {
	entries, err := os.ReadDir(absDir)
	if err != nil {
		if absDir == w.root {
			return fmt.Errorf("could not scan source %s: %w", absDir, err)
		}
		flog.Warn("Skipping unreadable directory", "path", absDir, "error", err)
		return nil
	}

	for _, entry := range entries {
		if err := w.ctx.Err(); err != nil {
			return err
		}

		absPath := filepath.Join(absDir, entry.Name())

		// Stat (not Lstat) so symlinks resolve to their targets.
		info, err := os.Stat(absPath)
		if err != nil {
			flog.Warn("Skipping unreadable entry", "path", absPath, "error", err)
			continue
		}

		if info.IsDir() {
			if !w.markVisited(absPath) {
				flog.Warn("Skipping already visited directory (symlink cycle)", "path", absPath)
				continue
			}
			if err := w.walkDir(absPath); err != nil {
				return err
			}
			continue
		}

		if !info.Mode().IsRegular() {
			// Sockets, devices, pipes. Nothing sensible to copy.
			continue
		}

		relPath, err := filepath.Rel(w.root, absPath)
		if err != nil {
			flog.Warn("Could not compute relative path, skipping", "path", absPath, "error", err)
			continue
		}

		if err := w.fn(Entry{
			RelPath: relPath,
			AbsPath: absPath,
			ModTime: info.ModTime(),
			Size:    info.Size(),
			Mode:    info.Mode().Perm(),
		}); err != nil {
			return err
		}
	}
	return nil
}
