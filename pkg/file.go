package addonsync

import (
	"fmt"
)

// FileMeta is the filesystem metadata the change detector compares
type FileMeta struct {
	Size     uint64
	Created  Timestamp
	Modified Timestamp
}

// StatFunc returns metadata for the file at path, following symlinks
type StatFunc func(path string) (FileMeta, error)

// StatFile reads size, creation and modification time for path. Creation
// time is the birth time where the filesystem records one, otherwise the
// inode change time.
func StatFile(path string) (FileMeta, error) {
	meta, err := statFile(path)
	if err != nil {
		return FileMeta{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return meta, nil
}
