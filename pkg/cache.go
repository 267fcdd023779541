package addonsync

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Timestamp is a point in time split into whole seconds and nanoseconds
// since the Unix epoch. The JSON shape is shared with existing cache files.
type Timestamp struct {
	Secs  uint64 `json:"secs_since_epoch"`
	Nanos uint32 `json:"nanos_since_epoch"`
}

// TimestampFromTime converts t, clamping instants before the epoch to zero
func TimestampFromTime(t time.Time) Timestamp {
	if t.Before(time.Unix(0, 0)) {
		return Timestamp{}
	}
	return Timestamp{Secs: uint64(t.Unix()), Nanos: uint32(t.Nanosecond())}
}

// Time converts back to a time.Time
func (ts Timestamp) Time() time.Time {
	return time.Unix(int64(ts.Secs), int64(ts.Nanos)).UTC()
}

// IsZero reports whether the timestamp is unset
func (ts Timestamp) IsZero() bool {
	return ts.Secs == 0 && ts.Nanos == 0
}

// FileRecord is one tracked file. A stored record always carries its hash.
type FileRecord struct {
	RelativePath string     `json:"relative_filepath"`
	AbsolutePath string     `json:"absolute_filepath"`
	Created      Timestamp  `json:"created"`
	Size         uint64     `json:"filesize"`
	Hash         string     `json:"hash"`
	Modified     *Timestamp `json:"modified,omitempty"`
}

// AddonRecord is one addon and the files last observed under it, keyed by
// absolute path
type AddonRecord struct {
	Name    string                 `json:"name"`
	UUID    string                 `json:"uuid"`
	Version string                 `json:"version"`
	Files   map[string]*FileRecord `json:"files"`
}

// SortedPaths returns the addon's absolute file paths in order
func (a *AddonRecord) SortedPaths() []string {
	paths := make([]string, 0, len(a.Files))
	for p := range a.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Cache is the durable addon-keyed state carried between runs. It is owned
// by a single run: loaded once, mutated in place, saved once.
type Cache struct {
	Addons map[string]*AddonRecord
}

// NewCache returns an empty cache
func NewCache() *Cache {
	return &Cache{Addons: make(map[string]*AddonRecord)}
}

// IdentityResolver returns the remote identifier for an addon name
type IdentityResolver interface {
	AddonID(ctx context.Context, name string) (string, error)
}

// NewVersionTag formats the version tag for an addon changed at now
func NewVersionTag(now time.Time) string {
	return now.UTC().Format(VersionFormat)
}

// SortedNames returns addon names in order
func (c *Cache) SortedNames() []string {
	names := make([]string, 0, len(c.Addons))
	for name := range c.Addons {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Addon returns the named addon or nil
func (c *Cache) Addon(name string) *AddonRecord {
	return c.Addons[name]
}

// FileCount returns the number of file records across all addons
func (c *Cache) FileCount() int {
	n := 0
	for _, addon := range c.Addons {
		n += len(addon.Files)
	}
	return n
}

// EnsureAddon returns the addon called name, creating it on first sight.
// A new addon asks identity for its remote id exactly once and receives an
// initial version tag. The bool result reports whether it was created.
func (c *Cache) EnsureAddon(ctx context.Context, name string, identity IdentityResolver, now time.Time) (*AddonRecord, bool, error) {
	if addon, ok := c.Addons[name]; ok {
		return addon, false, nil
	}

	uuid, err := identity.AddonID(ctx, name)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up id for addon %s: %w", name, err)
	}

	addon := &AddonRecord{
		Name:    name,
		UUID:    uuid,
		Version: NewVersionTag(now),
		Files:   make(map[string]*FileRecord),
	}
	c.Addons[name] = addon
	VerboseLog(1, "Created addon %s (uuid %s, version %s)", name, uuid, addon.Version)
	return addon, true, nil
}

// Prune drops every file record whose absolute path is not in keep. Addon
// entries themselves are never removed. Returns the number of dropped records.
func (c *Cache) Prune(keep *WalkResult) int {
	defer VerboseEnter()()

	pruned := 0
	for _, addon := range c.Addons {
		for path := range addon.Files {
			if !keep.Contains(path) {
				delete(addon.Files, path)
				pruned++
				if IsDebugEnabled("prune") {
					VerboseLog(3, "prune: %s dropped from %s", path, addon.Name)
				}
			}
		}
	}
	return pruned
}

// normalize replaces nil maps left by decoding so callers can insert freely
func (c *Cache) normalize() {
	if c.Addons == nil {
		c.Addons = make(map[string]*AddonRecord)
	}
	for name, addon := range c.Addons {
		if addon == nil {
			delete(c.Addons, name)
			continue
		}
		if addon.Files == nil {
			addon.Files = make(map[string]*FileRecord)
		}
	}
}
