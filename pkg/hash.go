package addonsync

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// DefaultHashBuffer is the chunk size used when no buffer is configured
const DefaultHashBuffer = 2 * 1024 * 1024

// HashAlgorithm represents a hash algorithm configuration
type HashAlgorithm struct {
	Name    string
	TypeID  uint16
	Size    int
	NewFunc func() hash.Hash
}

// GetHashAlgorithm returns the hash algorithm configuration for the given name
func GetHashAlgorithm(name string) (*HashAlgorithm, error) {
	typeID, ok := HashTypeFromName(name)
	if !ok {
		return nil, fmt.Errorf("unsupported hash algorithm: %s", name)
	}
	return GetHashAlgorithmByType(typeID)
}

// GetHashAlgorithmByType returns the hash algorithm configuration for the given type ID
func GetHashAlgorithmByType(typeID uint16) (*HashAlgorithm, error) {
	alg := &HashAlgorithm{
		Name:   HashTypeName(typeID),
		TypeID: typeID,
		Size:   HashSize,
	}
	switch typeID {
	case HashTypeSHA256:
		alg.NewFunc = sha256.New
	case HashTypeSHA512_256:
		alg.NewFunc = sha512.New512_256
	case HashTypeBLAKE2b:
		alg.NewFunc = func() hash.Hash {
			// only fails for keys longer than 64 bytes
			h, _ := blake2b.New256(nil)
			return h
		}
	case HashTypeSHA3_256:
		alg.NewFunc = func() hash.Hash { return sha3.New256() }
	default:
		return nil, fmt.Errorf("unsupported hash type ID: %d", typeID)
	}
	return alg, nil
}

// HashReader digests r in chunks of bufferSize bytes and returns the
// uppercase hex encoding. ctx is checked between chunks.
func HashReader(ctx context.Context, r io.Reader, algorithm *HashAlgorithm, bufferSize int) (string, int64, error) {
	if bufferSize <= 0 {
		bufferSize = DefaultHashBuffer
	}

	hasher := algorithm.NewFunc()
	buffer := make([]byte, bufferSize)
	var total int64

	for {
		select {
		case <-ctx.Done():
			return "", total, fmt.Errorf("hash operation interrupted: %w", ctx.Err())
		default:
		}

		n, err := r.Read(buffer)
		if n > 0 {
			hasher.Write(buffer[:n])
			total += int64(n)
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			return "", total, err
		}
	}

	return strings.ToUpper(hex.EncodeToString(hasher.Sum(nil))), total, nil
}

// HashFile calculates the digest of a file's contents. The returned count is
// the number of bytes read.
func HashFile(ctx context.Context, filePath string, algorithm *HashAlgorithm, bufferSize int) (string, int64, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	digest, n, err := HashReader(ctx, file, algorithm, bufferSize)
	if err != nil {
		return "", n, fmt.Errorf("failed to hash file %s: %w", filePath, err)
	}
	return digest, n, nil
}

// HashStringToHexString hashes a string, used by tests and diagnostics
func HashStringToHexString(data string, algorithm *HashAlgorithm) string {
	hasher := algorithm.NewFunc()
	hasher.Write([]byte(data))
	return strings.ToUpper(hex.EncodeToString(hasher.Sum(nil)))
}
