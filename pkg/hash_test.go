package addonsync

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHashFileSHA256(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hello.txt")
	if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	alg, err := GetHashAlgorithm("sha256")
	if err != nil {
		t.Fatal(err)
	}

	// small buffer forces several reads
	digest, n, err := HashFile(context.Background(), path, alg, 2)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	expected := "2CF24DBA5FB0A30E26E83B2AC5B9E29E1B161E5C1FA7425E73043362938B9824"
	if digest != expected {
		t.Errorf("Expected %s, got %s", expected, digest)
	}
	if n != 5 {
		t.Errorf("Expected 5 bytes read, got %d", n)
	}
}

func TestHashEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	alg, _ := GetHashAlgorithm("sha256")

	digest, n, err := HashFile(context.Background(), path, alg, 0)
	if err != nil {
		t.Fatal(err)
	}
	if digest != "E3B0C44298FC1C149AFBF4C8996FB92427AE41E4649B934CA495991B7852B855" || n != 0 {
		t.Errorf("Unexpected digest %s (%d bytes)", digest, n)
	}
}

func TestHashAlgorithms(t *testing.T) {
	for _, name := range []string{"sha256", "sha512_256", "blake2b", "sha3_256"} {
		t.Run(name, func(t *testing.T) {
			alg, err := GetHashAlgorithm(name)
			if err != nil {
				t.Fatalf("GetHashAlgorithm(%s): %v", name, err)
			}
			digest := HashStringToHexString("addon", alg)
			if len(digest) != 2*alg.Size {
				t.Errorf("Expected %d hex chars, got %d", 2*alg.Size, len(digest))
			}
			if digest != strings.ToUpper(digest) {
				t.Errorf("Digest should be uppercase: %s", digest)
			}

			viaReader, _, err := HashReader(context.Background(), strings.NewReader("addon"), alg, 3)
			if err != nil {
				t.Fatal(err)
			}
			if viaReader != digest {
				t.Errorf("HashReader and HashStringToHexString disagree")
			}
		})
	}

	if _, err := GetHashAlgorithm("md5"); err == nil {
		t.Error("Expected error for unsupported algorithm")
	}
}

func TestHashReaderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	alg, _ := GetHashAlgorithm("sha256")
	_, _, err := HashReader(ctx, strings.NewReader("data"), alg, 1)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestHashFileMissing(t *testing.T) {
	alg, _ := GetHashAlgorithm("sha256")
	if _, _, err := HashFile(context.Background(), filepath.Join(t.TempDir(), "nope"), alg, 0); err == nil {
		t.Error("Expected error for missing file")
	}
}
