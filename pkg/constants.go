package addonsync

import "strings"

// Default file names, relative to the working directory unless configured
const (
	ConfigFile = "addonsync.ini"
	CacheFile  = "filecache.json"
	IndexFile  = "index.json"
)

// Path convention constants
const (
	AddonMarker  = "@" // addon roots always contain an @-prefixed segment
	HiddenMarker = "."
)

// VersionFormat is the layout of generated addon version tags (UTC)
const VersionFormat = "20060102-150405"

// Hash type constants
const (
	HashTypeSHA256     uint16 = 1 // SHA-256 (32 bytes)
	HashTypeSHA512_256 uint16 = 2 // SHA-512/256 (32 bytes)
	HashTypeBLAKE2b    uint16 = 3 // BLAKE2b-256 (32 bytes)
	HashTypeSHA3_256   uint16 = 4 // SHA3-256 (32 bytes)
)

// HashSize is the digest size in bytes shared by every supported algorithm
const HashSize = 32

// HashTypeName returns the human-readable name for a hash type
func HashTypeName(hashType uint16) string {
	switch hashType {
	case HashTypeSHA256:
		return "sha256"
	case HashTypeSHA512_256:
		return "sha512_256"
	case HashTypeBLAKE2b:
		return "blake2b"
	case HashTypeSHA3_256:
		return "sha3-256"
	default:
		return "unknown"
	}
}

// HashTypeFromName returns the hash type constant from a name (case-insensitive)
func HashTypeFromName(name string) (uint16, bool) {
	switch strings.ToLower(name) {
	case "sha256":
		return HashTypeSHA256, true
	case "sha512_256", "sha512/256":
		return HashTypeSHA512_256, true
	case "blake2b", "blake2b-256":
		return HashTypeBLAKE2b, true
	case "sha3-256", "sha3_256":
		return HashTypeSHA3_256, true
	default:
		return 0, false
	}
}

// Change detection modes
const (
	DetectMetadata = "metadata" // size + creation time (default)
	DetectMtime    = "mtime"    // metadata plus modification time
	DetectContent  = "content"  // always rehash and compare digests
)

// Cache backends
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// iovMax bounds the number of iovecs handed to a single writev call (Linux UIO_MAXIOV)
const iovMax = 1024
