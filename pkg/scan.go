package addonsync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// WalkOptions controls which files a walk yields
type WalkOptions struct {
	FollowLinks    bool     // descend into symlinked directories
	IgnoreHidden   bool     // skip files whose name starts with "."
	IgnorePatterns []string // glob patterns matched against the base name
}

// walker holds the state of one combined walk over several roots
type walker struct {
	ctx     context.Context
	opts    WalkOptions
	ignore  *IgnoreManager
	result  *WalkResult
	visited int // directories read, for diagnostics
}

// Walk enumerates the regular files reachable from roots. Directories are
// never yielded. A root may itself be a file. Any filesystem error aborts
// the walk.
func Walk(ctx context.Context, roots []string, opts WalkOptions) (*WalkResult, error) {
	defer VerboseEnter()()

	ignore, err := NewIgnoreManager(opts.IgnorePatterns, opts.IgnoreHidden)
	if err != nil {
		return nil, err
	}
	if ignore.HasPatterns() {
		VerboseLog(2, "Walk: ignoring files matching %v", ignore.GetPatterns())
	}

	w := &walker{
		ctx:    ctx,
		opts:   opts,
		ignore: ignore,
		result: NewWalkResult(16),
	}

	for _, root := range deduplicatePaths(roots) {
		if err := w.walkRoot(root); err != nil {
			return nil, err
		}
	}

	VerboseLog(2, "Walk: %d files in %d directories", w.result.Len(), w.visited)
	return w.result, nil
}

func (w *walker) walkRoot(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve root %s: %w", root, err)
	}
	abs = filepath.Clean(abs)

	// roots are always followed, even when they are symlinks
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("failed to stat root %s: %w", abs, err)
	}

	if info.IsDir() {
		return w.walkDir(abs, abs, []os.FileInfo{info})
	}
	if info.Mode().IsRegular() {
		w.addFile(abs, abs)
	}
	return nil
}

// walkDir reads dir and recurses. ancestors holds the directories on the
// current descent path and is used to detect symlink loops.
func (w *walker) walkDir(root, dir string, ancestors []os.FileInfo) error {
	select {
	case <-w.ctx.Done():
		return fmt.Errorf("walk interrupted: %w", w.ctx.Err())
	default:
	}

	if IsDebugEnabled("scan") {
		VerboseLog(3, "walkDir: %s", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	w.visited++

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		mode := entry.Type()

		switch {
		case mode&os.ModeSymlink != 0:
			target, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("failed to resolve symlink %s: %w", path, err)
			}
			if target.IsDir() {
				if !w.opts.FollowLinks {
					continue
				}
				for _, seen := range ancestors {
					if os.SameFile(seen, target) {
						return fmt.Errorf("symlink loop detected at %s", path)
					}
				}
				if err := w.walkDir(root, path, append(ancestors, target)); err != nil {
					return err
				}
				continue
			}
			if target.Mode().IsRegular() {
				w.addFile(root, path)
			}

		case mode.IsDir():
			info, err := entry.Info()
			if err != nil {
				return fmt.Errorf("failed to stat directory %s: %w", path, err)
			}
			if err := w.walkDir(root, path, append(ancestors, info)); err != nil {
				return err
			}

		case mode.IsRegular():
			w.addFile(root, path)

		default:
			// sockets, devices and pipes carry no addon content
			VerboseLog(2, "Skipping special file %s", path)
		}
	}

	return nil
}

func (w *walker) addFile(root, path string) {
	if w.ignore.ShouldIgnore(filepath.Base(path)) {
		return
	}
	if !w.result.Add(path, root) && IsDebugEnabled("scan") {
		VerboseLog(3, "walk: %s already reached from another root", path)
	}
}

// deduplicatePaths removes repeated roots while preserving order
func deduplicatePaths(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		clean := filepath.Clean(p)
		if seen[clean] {
			continue
		}
		seen[clean] = true
		out = append(out, clean)
	}
	return out
}

// sortedRoots returns roots in lexicographic order, used for log output
func sortedRoots(roots []string) []string {
	out := append([]string(nil), roots...)
	sort.Strings(out)
	return out
}
