package addonsync

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrMalformedCache is returned when persisted cache state cannot be parsed.
// The run must not continue with a guessed cache.
var ErrMalformedCache = errors.New("malformed cache")

// CacheStore loads and saves the whole cache in one operation each
type CacheStore interface {
	Load() (*Cache, error)
	Save(cache *Cache) error
	Location() string
}

// OpenStore returns the store for the configured backend
func OpenStore(cfg *CacheConfig) (CacheStore, error) {
	switch cfg.Backend {
	case BackendJSON, "":
		return NewJSONStore(cfg.File), nil
	case BackendSQLite:
		return NewSQLiteStore(cfg.File), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Backend)
	}
}

// JSONStore keeps the cache as one JSON document mapping addon name to
// addon record
type JSONStore struct {
	path string
}

// NewJSONStore creates a store backed by the file at path
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Location returns the document path
func (s *JSONStore) Location() string {
	return s.path
}

// Load reads the document. A missing file yields an empty cache.
func (s *JSONStore) Load() (*Cache, error) {
	defer VerboseEnter()()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		VerboseLog(1, "No cache at %s, starting empty", s.path)
		return NewCache(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache %s: %w", s.path, err)
	}

	cache := NewCache()
	if err := json.Unmarshal(data, &cache.Addons); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedCache, s.path, err)
	}
	if err := validateCache(cache); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedCache, s.path, err)
	}
	cache.normalize()

	VerboseLog(1, "Loaded cache %s: %d addons, %d files", s.path, len(cache.Addons), cache.FileCount())
	return cache, nil
}

// Save replaces the document atomically
func (s *JSONStore) Save(cache *Cache) error {
	defer VerboseEnter()()

	names := cache.SortedNames()
	entries := make([]documentEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, documentEntry{Key: name, Value: cache.Addons[name]})
	}

	segments, err := encodeDocument(entries)
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}
	if err := writeFileAtomic(s.path, segments); err != nil {
		return fmt.Errorf("failed to save cache: %w", err)
	}

	VerboseLog(1, "Saved cache %s: %d addons, %d files", s.path, len(cache.Addons), cache.FileCount())
	return nil
}

// validateCache rejects records that decode but cannot have been written by
// a completed run
func validateCache(cache *Cache) error {
	for name, addon := range cache.Addons {
		if addon == nil {
			return fmt.Errorf("addon %q is null", name)
		}
		if addon.Name != name {
			return fmt.Errorf("addon key %q does not match name %q", name, addon.Name)
		}
		for path, rec := range addon.Files {
			if rec == nil {
				return fmt.Errorf("file %q in addon %q is null", path, name)
			}
			if rec.AbsolutePath != path {
				return fmt.Errorf("file key %q does not match absolute path %q", path, rec.AbsolutePath)
			}
			if rec.Hash == "" {
				return fmt.Errorf("file %q in addon %q has no hash", path, name)
			}
		}
	}
	return nil
}
