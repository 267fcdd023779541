package addonsync

import (
	"strings"

	zcsl "github.com/mattkeenan/zerocopyskiplist"
)

// WalkEntry is one regular file found by the tree walker
type WalkEntry struct {
	Path string // absolute, cleaned
	Root string // walk root the file was reached from
}

// WalkResult is the sorted set of files produced by a walk, keyed by
// absolute path
type WalkResult struct {
	skiplist *zcsl.ZeroCopySkiplist[WalkEntry, string, string]
}

// NewWalkResult creates an empty walk result
func NewWalkResult(maxLevels int) *WalkResult {
	if maxLevels < 8 {
		maxLevels = 16 // reasonable default
	}

	getKeyFromItem := func(e *WalkEntry) string {
		return e.Path
	}

	getItemSize := func(e *WalkEntry) int {
		return len(e.Path)
	}

	cmpKey := func(a, b string) int {
		return strings.Compare(a, b)
	}

	return &WalkResult{
		skiplist: zcsl.MakeZeroCopySkiplist[WalkEntry, string, string](
			maxLevels,
			getKeyFromItem,
			getItemSize,
			cmpKey,
		),
	}
}

// Add inserts path, returning false if it was already present
func (wr *WalkResult) Add(path, root string) bool {
	if wr.Contains(path) {
		return false
	}
	return wr.skiplist.Insert(&WalkEntry{Path: path, Root: root}, root)
}

// Contains reports whether path was found by the walk
func (wr *WalkResult) Contains(path string) bool {
	node, _ := wr.skiplist.Find(path)
	return node != nil
}

// Len returns the number of files
func (wr *WalkResult) Len() int {
	return wr.skiplist.Length()
}

// ForEach iterates entries in lexicographic path order until callback returns false
func (wr *WalkResult) ForEach(callback func(entry *WalkEntry) bool) {
	for current := wr.skiplist.First(); current != nil; current = current.Next() {
		if !callback(current.Item()) {
			break
		}
	}
}

// RootCounts returns the number of files reached from each walk root
func (wr *WalkResult) RootCounts() map[string]int {
	counts := make(map[string]int)
	wr.ForEach(func(e *WalkEntry) bool {
		counts[e.Root]++
		return true
	})
	return counts
}
