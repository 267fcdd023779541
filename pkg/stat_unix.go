//go:build openbsd || dragonfly || solaris || illumos

package addonsync

func statFile(path string) (FileMeta, error) {
	return statCtime(path)
}
