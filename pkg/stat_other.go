//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly && !solaris && !illumos && !windows

package addonsync

import (
	"errors"
	"fmt"
	"runtime"
)

func statFile(path string) (FileMeta, error) {
	return FileMeta{}, fmt.Errorf("creation time on %s: %w", runtime.GOOS, errors.ErrUnsupported)
}
