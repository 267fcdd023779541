package addonsync

import (
	"fmt"
	"sort"
)

// IndexFileEntry is the published view of one file
type IndexFileEntry struct {
	FilePath string `json:"file_path"`
	FileSize uint64 `json:"file_size"`
	FileHash string `json:"file_hash"`
}

// IndexAddon is the published view of one addon. Files are keyed by
// relative path; absolute paths and timestamps never leave the cache.
type IndexAddon struct {
	AddonName    string                    `json:"addon_name"`
	AddonUUID    string                    `json:"addon_uuid"`
	AddonVersion string                    `json:"addon_version"`
	AddonFiles   map[string]IndexFileEntry `json:"addon_files"`
}

// Index maps addon name to its published view
type Index map[string]IndexAddon

// BuildIndex derives the published index from the cache
func BuildIndex(cache *Cache) Index {
	index := make(Index, len(cache.Addons))
	for name, addon := range cache.Addons {
		files := make(map[string]IndexFileEntry, len(addon.Files))
		for _, rec := range addon.Files {
			files[rec.RelativePath] = IndexFileEntry{
				FilePath: rec.RelativePath,
				FileSize: rec.Size,
				FileHash: rec.Hash,
			}
		}
		index[name] = IndexAddon{
			AddonName:    addon.Name,
			AddonUUID:    addon.UUID,
			AddonVersion: addon.Version,
			AddonFiles:   files,
		}
	}
	return index
}

// segments renders the index document. Output is deterministic for equal
// indexes.
func (idx Index) segments() ([][]byte, error) {
	names := make([]string, 0, len(idx))
	for name := range idx {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]documentEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, documentEntry{Key: name, Value: idx[name]})
	}
	return encodeDocument(entries)
}

// Bytes returns the encoded index document
func (idx Index) Bytes() ([]byte, error) {
	segments, err := idx.segments()
	if err != nil {
		return nil, fmt.Errorf("failed to encode index: %w", err)
	}
	return joinSegments(segments), nil
}

// WriteIndex replaces the index document at path atomically
func WriteIndex(path string, idx Index) error {
	defer VerboseEnter()()

	segments, err := idx.segments()
	if err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}
	if err := writeFileAtomic(path, segments); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	VerboseLog(1, "Wrote index %s: %d addons", path, len(idx))
	return nil
}
