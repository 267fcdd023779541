//go:build linux

package addonsync

import (
	"errors"

	"golang.org/x/sys/unix"
)

func statFile(path string) (FileMeta, error) {
	var stx unix.Statx_t
	mask := unix.STATX_SIZE | unix.STATX_BTIME | unix.STATX_CTIME | unix.STATX_MTIME
	err := unix.Statx(unix.AT_FDCWD, path, 0, mask, &stx)
	if errors.Is(err, unix.ENOSYS) {
		return statCtime(path)
	}
	if err != nil {
		return FileMeta{}, err
	}

	created := stx.Ctime
	if stx.Mask&unix.STATX_BTIME != 0 {
		created = stx.Btime
	}

	return FileMeta{
		Size:     stx.Size,
		Created:  Timestamp{Secs: uint64(created.Sec), Nanos: created.Nsec},
		Modified: Timestamp{Secs: uint64(stx.Mtime.Sec), Nanos: stx.Mtime.Nsec},
	}, nil
}
