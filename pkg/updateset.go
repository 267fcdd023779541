package addonsync

import (
	"sort"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

// UpdateSet maps an addon's remote id to its version tag. It lists every
// addon created or changed during one run.
type UpdateSet map[string]string

// SortedIDs returns the remote ids in order
func (u UpdateSet) SortedIDs() []string {
	ids := make([]string, 0, len(u))
	for id := range u {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// updateTracker builds the UpdateSet for one run. Each addon gets at most
// one new version tag per run, however many of its files change.
type updateTracker struct {
	touched mapset.Set[string] // addon names already given this run's version
	set     UpdateSet
}

func newUpdateTracker() *updateTracker {
	return &updateTracker{
		touched: mapset.NewThreadUnsafeSet[string](),
		set:     make(UpdateSet),
	}
}

// created records a new addon. Its creation version is kept for the run.
func (t *updateTracker) created(addon *AddonRecord) {
	t.touched.Add(addon.Name)
	t.set[addon.UUID] = addon.Version
}

// changed records a file change in addon, regenerating the version tag the
// first time the addon changes in this run
func (t *updateTracker) changed(addon *AddonRecord, now time.Time) {
	if t.touched.Add(addon.Name) {
		addon.Version = NewVersionTag(now)
		VerboseLog(1, "Addon %s updated, version %s", addon.Name, addon.Version)
	}
	t.set[addon.UUID] = addon.Version
}

// pending records an addon that would change, without touching versions
func (t *updateTracker) pending(name string) {
	t.touched.Add(name)
}

// Touched returns the names of created or changed addons in order
func (t *updateTracker) Touched() []string {
	names := t.touched.ToSlice()
	sort.Strings(names)
	return names
}

func (t *updateTracker) UpdateSet() UpdateSet {
	return t.set
}
