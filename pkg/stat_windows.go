//go:build windows

package addonsync

import (
	"fmt"
	"os"
	"syscall"
	"time"
)

func statFile(path string) (FileMeta, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileMeta{}, err
	}
	attrs, ok := info.Sys().(*syscall.Win32FileAttributeData)
	if !ok {
		return FileMeta{}, fmt.Errorf("no file attributes for %s", path)
	}
	return metaFromInfo(info, time.Unix(0, attrs.CreationTime.Nanoseconds())), nil
}
