//go:build darwin || freebsd || netbsd

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
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return FileMeta{}, fmt.Errorf("no stat data for %s", path)
	}

	created := st.Ctimespec
	if st.Birthtimespec.Sec != 0 || st.Birthtimespec.Nsec != 0 {
		created = st.Birthtimespec
	}
	return metaFromInfo(info, time.Unix(created.Unix())), nil
}
