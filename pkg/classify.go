package addonsync

import (
	"path/filepath"
	"strings"
)

// RelativePath returns the part of an absolute path starting at the first
// addon marker. A path without a marker is returned unchanged.
func RelativePath(absolutePath string) string {
	idx := strings.Index(absolutePath, AddonMarker)
	if idx < 0 {
		return absolutePath
	}
	return absolutePath[idx:]
}

// AddonName returns the first segment of a relative path. A path without a
// separator is its own addon name. An absolute path that never contained a
// marker therefore yields the empty name.
func AddonName(relativePath string) string {
	idx := strings.IndexRune(relativePath, filepath.Separator)
	if idx < 0 {
		return relativePath
	}
	return relativePath[:idx]
}

// Classify returns the relative path and addon name for an absolute path
func Classify(absolutePath string) (relativePath, addonName string) {
	relativePath = RelativePath(absolutePath)
	return relativePath, AddonName(relativePath)
}
