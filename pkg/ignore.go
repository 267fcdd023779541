package addonsync

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// IgnoreManager decides which walked files are excluded by name. Patterns
// are shell globs matched against the base name only; a character class is
// negated with either [!...] or [^...].
type IgnoreManager struct {
	patterns     []string
	ignoreHidden bool
}

// NewIgnoreManager creates an ignore manager, rejecting malformed patterns
func NewIgnoreManager(patterns []string, ignoreHidden bool) (*IgnoreManager, error) {
	im := &IgnoreManager{
		patterns:     make([]string, 0, len(patterns)),
		ignoreHidden: ignoreHidden,
	}
	for _, p := range patterns {
		if err := im.AddPattern(p); err != nil {
			return nil, err
		}
	}
	return im, nil
}

// AddPattern adds a new glob pattern
func (im *IgnoreManager) AddPattern(pattern string) error {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil
	}
	if err := ValidatePattern(pattern); err != nil {
		return err
	}
	im.patterns = append(im.patterns, pattern)
	return nil
}

// ShouldIgnore reports whether a file with the given base name is excluded
func (im *IgnoreManager) ShouldIgnore(name string) bool {
	if im.ignoreHidden && strings.HasPrefix(name, HiddenMarker) {
		return true
	}

	for _, pattern := range im.patterns {
		// patterns were validated on insert, Match only fails on ErrBadPattern
		if ok, _ := doublestar.Match(pattern, name); ok {
			if IsDebugEnabled("ignore") {
				VerboseLog(3, "ignore: %s matched pattern %s", name, pattern)
			}
			return true
		}
	}

	return false
}

// GetPatterns returns a copy of the configured patterns
func (im *IgnoreManager) GetPatterns() []string {
	out := make([]string, len(im.patterns))
	copy(out, im.patterns)
	return out
}

// HasPatterns returns true if any glob patterns are configured
func (im *IgnoreManager) HasPatterns() bool {
	return len(im.patterns) > 0
}

// ValidatePattern checks a glob pattern without matching anything
func ValidatePattern(pattern string) error {
	if !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("invalid ignore pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}
	return nil
}

// ValidateIgnorePatterns validates a list of glob patterns
func ValidateIgnorePatterns(patterns []string) error {
	for _, p := range patterns {
		if err := ValidatePattern(p); err != nil {
			return err
		}
	}
	return nil
}
