package addonsync

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStatFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mod.cpp")
	if err := os.WriteFile(path, []byte("class CfgMods {};"), 0644); err != nil {
		t.Fatal(err)
	}
	mtime := time.Unix(1700000000, 500)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	meta, err := StatFile(path)
	if err != nil {
		t.Fatalf("StatFile: %v", err)
	}
	if meta.Size != 17 {
		t.Errorf("Expected size 17, got %d", meta.Size)
	}
	if meta.Modified != TimestampFromTime(mtime) {
		t.Errorf("Expected modified %+v, got %+v", TimestampFromTime(mtime), meta.Modified)
	}
	if meta.Created.IsZero() {
		t.Error("Expected a creation time")
	}

	// metadata is stable while the file is untouched
	again, err := StatFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if again != meta {
		t.Errorf("Repeated stat differs: %+v vs %+v", again, meta)
	}
}

func TestStatFileFollowsSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	if err := os.WriteFile(target, []byte("12345"), 0644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	meta, err := StatFile(link)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Size != 5 {
		t.Errorf("Expected the target's size, got %d", meta.Size)
	}
}

func TestStatFileMissing(t *testing.T) {
	if _, err := StatFile(filepath.Join(t.TempDir(), "missing")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}
