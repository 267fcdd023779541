package addonsync

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStatCtime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mod.cpp")
	if err := os.WriteFile(path, []byte("class CfgMods {};"), 0644); err != nil {
		t.Fatal(err)
	}
	before := time.Now().Add(-time.Minute)
	mtime := time.Unix(1700000000, 0)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	meta, err := statCtime(path)
	if err != nil {
		t.Fatalf("statCtime: %v", err)
	}
	if meta.Size != 17 {
		t.Errorf("Expected size 17, got %d", meta.Size)
	}
	if meta.Modified != TimestampFromTime(mtime) {
		t.Errorf("Expected modified %+v, got %+v", TimestampFromTime(mtime), meta.Modified)
	}
	// the inode change time moved with Chtimes, the modification time did not
	if meta.Created == meta.Modified || meta.Created.Time().Before(before) {
		t.Errorf("Created should be the inode change time, got %+v", meta.Created)
	}
}

func TestStatFileCreatedIsNotModified(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mod.cpp")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	mtime := time.Unix(1700000000, 0)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	meta, err := StatFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Created == meta.Modified {
		t.Errorf("Creation time must not follow a backdated modification time, got %+v", meta.Created)
	}
}
