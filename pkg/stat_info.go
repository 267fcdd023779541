//go:build darwin || freebsd || netbsd || windows

package addonsync

import (
	"os"
	"time"
)

// metaFromInfo combines an os.Stat result with a platform creation time
func metaFromInfo(info os.FileInfo, created time.Time) FileMeta {
	return FileMeta{
		Size:     uint64(info.Size()),
		Created:  TimestampFromTime(created),
		Modified: TimestampFromTime(info.ModTime()),
	}
}
