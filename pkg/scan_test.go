package addonsync

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"
)

// writeTree creates files (relative paths) under root
func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(root, f)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(f), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

// relPaths returns the walk's paths relative to root
func relPaths(t *testing.T, root string, wr *WalkResult) []string {
	t.Helper()
	var out []string
	for _, p := range walkedPaths(wr) {
		rel, err := filepath.Rel(root, p)
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

// walkedPaths returns the walk's absolute paths in iteration order
func walkedPaths(wr *WalkResult) []string {
	var paths []string
	wr.ForEach(func(e *WalkEntry) bool {
		paths = append(paths, e.Path)
		return true
	})
	return paths
}

func TestWalkBasic(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"@b/mod.cpp",
		"@a/addons/core.pbo",
		"@a/addons/core.pbo.bisign",
		"@a/keys/a.bikey",
	)
	if err := os.MkdirAll(filepath.Join(root, "@c", "empty"), 0755); err != nil {
		t.Fatal(err)
	}

	wr, err := Walk(context.Background(), []string{root}, WalkOptions{})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}

	expected := []string{
		"@a/addons/core.pbo",
		"@a/addons/core.pbo.bisign",
		"@a/keys/a.bikey",
		"@b/mod.cpp",
	}
	if got := relPaths(t, root, wr); !reflect.DeepEqual(got, expected) {
		t.Errorf("Walk yielded %v, expected %v", got, expected)
	}
	if wr.Len() != 4 {
		t.Errorf("Expected 4 files, got %d", wr.Len())
	}
}

func TestWalkIgnorePatterns(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "mods")
	ext := filepath.Join(base, "ext")
	writeTree(t, root,
		"@a/server.log",
		"@a/.hidden.log",
		"@a/logs/keep.txt",
		"@a/mod.cpp",
		"@a/tmp.bak",
	)
	writeTree(t, ext,
		"linked.log",
		"dir/inner.log",
		"dir/inner.txt",
	)
	if err := os.Symlink(filepath.Join(ext, "linked.log"), filepath.Join(root, "@a", "link.log")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	if err := os.Symlink(filepath.Join(ext, "dir"), filepath.Join(root, "@a", "linkeddir")); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		opts     WalkOptions
		expected []string
	}{
		{"defaults", WalkOptions{}, []string{"@a/logs/keep.txt", "@a/mod.cpp"}},
		{"hidden", WalkOptions{IgnoreHidden: true}, []string{"@a/logs/keep.txt", "@a/mod.cpp"}},
		{"follow", WalkOptions{FollowLinks: true}, []string{"@a/linkeddir/inner.txt", "@a/logs/keep.txt", "@a/mod.cpp"}},
		{"follow hidden", WalkOptions{FollowLinks: true, IgnoreHidden: true}, []string{"@a/linkeddir/inner.txt", "@a/logs/keep.txt", "@a/mod.cpp"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.IgnorePatterns = []string{"*.log", "*.bak"}
			wr, err := Walk(context.Background(), []string{root}, tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			if got := relPaths(t, root, wr); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Walk yielded %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestWalkHidden(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"@a/.hidden",
		"@a/.git/config",
		"@a/visible",
	)

	all, err := Walk(context.Background(), []string{root}, WalkOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if all.Len() != 3 {
		t.Errorf("Expected hidden files to be walked by default, got %v", relPaths(t, root, all))
	}

	// hidden directories are still descended, only hidden names are skipped
	wr, err := Walk(context.Background(), []string{root}, WalkOptions{IgnoreHidden: true})
	if err != nil {
		t.Fatal(err)
	}
	expected := []string{"@a/.git/config", "@a/visible"}
	if got := relPaths(t, root, wr); !reflect.DeepEqual(got, expected) {
		t.Errorf("Walk yielded %v, expected %v", got, expected)
	}
}

func TestWalkSymlinks(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "mods")
	outside := filepath.Join(base, "shared")
	writeTree(t, root, "@a/mod.cpp")
	writeTree(t, outside, "lib/common.pbo", "single.pbo")

	if err := os.Symlink(filepath.Join(outside, "lib"), filepath.Join(root, "@a", "lib")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	if err := os.Symlink(filepath.Join(outside, "single.pbo"), filepath.Join(root, "@a", "single.pbo")); err != nil {
		t.Fatal(err)
	}

	wr, err := Walk(context.Background(), []string{root}, WalkOptions{})
	if err != nil {
		t.Fatal(err)
	}
	expected := []string{"@a/mod.cpp", "@a/single.pbo"}
	if got := relPaths(t, root, wr); !reflect.DeepEqual(got, expected) {
		t.Errorf("Without follow_links got %v, expected %v", got, expected)
	}

	wr, err = Walk(context.Background(), []string{root}, WalkOptions{FollowLinks: true})
	if err != nil {
		t.Fatal(err)
	}
	expected = []string{"@a/lib/common.pbo", "@a/mod.cpp", "@a/single.pbo"}
	if got := relPaths(t, root, wr); !reflect.DeepEqual(got, expected) {
		t.Errorf("With follow_links got %v, expected %v", got, expected)
	}
}

func TestWalkSymlinkLoop(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "@a/sub/file")
	if err := os.Symlink(filepath.Join(root, "@a"), filepath.Join(root, "@a", "sub", "loop")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	if _, err := Walk(context.Background(), []string{root}, WalkOptions{FollowLinks: true}); err == nil {
		t.Error("Expected symlink loop to abort the walk")
	} else if !strings.Contains(err.Error(), "loop") {
		t.Errorf("Expected loop error, got %v", err)
	}

	// not following links the loop is never entered
	if _, err := Walk(context.Background(), []string{root}, WalkOptions{}); err != nil {
		t.Errorf("Unexpected error without follow_links: %v", err)
	}
}

func TestWalkBrokenSymlink(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "@a/mod.cpp")
	if err := os.Symlink(filepath.Join(root, "missing"), filepath.Join(root, "@a", "dangling")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	_, err := Walk(context.Background(), []string{root}, WalkOptions{})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected not-exist error for broken symlink, got %v", err)
	}
}

func TestWalkOverlappingRoots(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "@a/x", "@a/sub/y", "@b/z")

	roots := []string{root, filepath.Join(root, "@a"), root}
	wr, err := Walk(context.Background(), roots, WalkOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if wr.Len() != 3 {
		t.Errorf("Expected each file once, got %v", walkedPaths(wr))
	}
}

func TestWalkRootIsFile(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "@a/mod.cpp")
	file := filepath.Join(root, "@a", "mod.cpp")

	wr, err := Walk(context.Background(), []string{file}, WalkOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if paths := walkedPaths(wr); len(paths) != 1 || paths[0] != file {
		t.Errorf("Expected the root file itself, got %v", paths)
	}
}

func TestWalkMissingRoot(t *testing.T) {
	if _, err := Walk(context.Background(), []string{filepath.Join(t.TempDir(), "nope")}, WalkOptions{}); err == nil {
		t.Error("Expected error for missing root")
	}
}

func TestWalkCancelled(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "@a/x")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Walk(ctx, []string{root}, WalkOptions{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestWalkResultOrderAndDedup(t *testing.T) {
	wr := NewWalkResult(0)
	for _, p := range []string{"/m/c", "/m/a", "/m/b"} {
		if !wr.Add(p, "/m") {
			t.Errorf("Add(%s) reported duplicate", p)
		}
	}
	if wr.Add("/m/a", "/other") {
		t.Error("Duplicate add should return false")
	}

	paths := walkedPaths(wr)
	if !sort.StringsAreSorted(paths) || len(paths) != 3 {
		t.Errorf("Expected 3 sorted paths, got %v", paths)
	}

	var roots []string
	wr.ForEach(func(e *WalkEntry) bool {
		roots = append(roots, e.Root)
		return true
	})
	if roots[0] != "/m" {
		t.Errorf("First insertion's root should be kept, got %s", roots[0])
	}

	if counts := wr.RootCounts(); counts["/m"] != 3 || len(counts) != 1 {
		t.Errorf("Expected all files under /m, got %v", counts)
	}
}
