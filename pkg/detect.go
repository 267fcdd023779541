package addonsync

import (
	"fmt"
	"strings"
)

// Decision is the outcome of comparing a cached record with disk metadata
type Decision int

const (
	// DecisionHit means the cached hash is reused without hashing
	DecisionHit Decision = iota
	// DecisionMiss means no record exists for the path
	DecisionMiss
	// DecisionChanged means a record exists but no longer matches
	DecisionChanged
)

func (d Decision) String() string {
	switch d {
	case DecisionHit:
		return "hit"
	case DecisionMiss:
		return "miss"
	case DecisionChanged:
		return "changed"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

// ChangeDetector compares cached file records against current metadata.
//
// The default metadata mode only looks at size and creation time. A file
// rewritten in place with the same size and creation time is a false hit
// in that mode; the mtime and content modes are opt-in and stricter.
type ChangeDetector struct {
	mode   string
	rehash bool
}

// NewChangeDetector creates a detector for the given mode. rehash forces
// every cached record to be treated as changed.
func NewChangeDetector(mode string, rehash bool) (*ChangeDetector, error) {
	mode = strings.ToLower(mode)
	if mode == "" {
		mode = DetectMetadata
	}
	if err := ValidateChangeDetection(mode); err != nil {
		return nil, err
	}
	return &ChangeDetector{mode: mode, rehash: rehash}, nil
}

// Mode returns the configured detection mode
func (cd *ChangeDetector) Mode() string {
	return cd.mode
}

// VerifiesContent reports whether a changed decision must still be
// confirmed by comparing hashes before the addon counts as updated
func (cd *ChangeDetector) VerifiesContent() bool {
	return cd.rehash || cd.mode == DetectContent
}

// Check decides whether the record cached for absolutePath in addon can be
// reused given the current metadata
func (cd *ChangeDetector) Check(addon *AddonRecord, absolutePath string, meta FileMeta) (Decision, *FileRecord) {
	rec, ok := addon.Files[absolutePath]
	if !ok {
		return DecisionMiss, nil
	}
	if cd.rehash || cd.mode == DetectContent {
		return DecisionChanged, rec
	}
	if rec.Size != meta.Size || rec.Created != meta.Created {
		return DecisionChanged, rec
	}
	if cd.mode == DetectMtime {
		// records written without a modification time cannot prove freshness
		if rec.Modified == nil || *rec.Modified != meta.Modified {
			return DecisionChanged, rec
		}
	}
	return DecisionHit, rec
}
