//go:build linux || openbsd || dragonfly || solaris || illumos

package addonsync

import (
	"time"

	"golang.org/x/sys/unix"
)

// statCtime uses the inode change time as the creation time, for systems
// that do not record a birth time
func statCtime(path string) (FileMeta, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return FileMeta{}, err
	}
	return FileMeta{
		Size:     uint64(st.Size),
		Created:  TimestampFromTime(time.Unix(st.Ctim.Unix())),
		Modified: TimestampFromTime(time.Unix(st.Mtim.Unix())),
	}, nil
}
