package addonsync

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/vectorio"
)

// generateTempFileName generates a temporary filename next to target with
// PID and timestamp, so rename stays on one filesystem
func generateTempFileName(target string) string {
	pid := os.Getpid()
	timestamp := time.Now().UnixNano()
	return filepath.Join(filepath.Dir(target),
		fmt.Sprintf(".%s-%d-%d.tmp", filepath.Base(target), pid, timestamp))
}

// documentEntry is one top-level member of a JSON object document
type documentEntry struct {
	Key   string
	Value interface{}
}

// encodeDocument renders entries as a two-space indented JSON object with
// a trailing newline. Entries must already be sorted by key; the result is
// then byte-identical to json.MarshalIndent of the equivalent map. Each
// member becomes its own segment so values are never copied into one buffer.
func encodeDocument(entries []documentEntry) ([][]byte, error) {
	if len(entries) == 0 {
		return [][]byte{[]byte("{}\n")}, nil
	}

	segments := make([][]byte, 0, 2*len(entries)+2)
	segments = append(segments, []byte("{\n"))
	for i, e := range entries {
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to encode key %q: %w", e.Key, err)
		}
		value, err := json.MarshalIndent(e.Value, "  ", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode value for %q: %w", e.Key, err)
		}

		var head bytes.Buffer
		if i > 0 {
			head.WriteString(",\n")
		}
		head.WriteString("  ")
		head.Write(key)
		head.WriteString(": ")
		segments = append(segments, head.Bytes(), value)
	}
	segments = append(segments, []byte("\n}\n"))
	return segments, nil
}

// writeFileAtomic writes segments to a temp file with vectored I/O, syncs
// it and renames it over path. On failure path is left untouched.
func writeFileAtomic(path string, segments [][]byte) (err error) {
	tempPath := generateTempFileName(path)
	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create temp file %s: %w", tempPath, err)
	}
	defer func() {
		if err != nil {
			file.Close()
			os.Remove(tempPath)
		}
	}()

	iovecs := make([]syscall.Iovec, 0, len(segments))
	expected := 0
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		iov := syscall.Iovec{Base: &seg[0]}
		iov.SetLen(len(seg))
		iovecs = append(iovecs, iov)
		expected += len(seg)
	}

	// chunk to respect IOV_MAX
	written := 0
	for offset := 0; offset < len(iovecs); offset += iovMax {
		end := offset + iovMax
		if end > len(iovecs) {
			end = len(iovecs)
		}
		nw, werr := vectorio.WritevRaw(uintptr(file.Fd()), iovecs[offset:end])
		if werr != nil {
			return fmt.Errorf("failed to write %s with vectorio: %w", tempPath, werr)
		}
		written += nw
	}
	if written != expected {
		return fmt.Errorf("write incomplete for %s: wrote %d bytes, expected %d", tempPath, written, expected)
	}

	if err = file.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", tempPath, err)
	}
	if err = file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tempPath, err)
	}
	if err = os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename %s to %s: %w", tempPath, path, err)
	}
	return syncDir(filepath.Dir(path))
}

// syncDir flushes a directory so a completed rename survives a crash
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("failed to open directory %s: %w", dir, err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("failed to sync directory %s: %w", dir, err)
	}
	return nil
}

// joinSegments concatenates segments, for callers that need one buffer
func joinSegments(segments [][]byte) []byte {
	return bytes.Join(segments, nil)
}

// ParseHumanSize parses human-readable size strings (e.g., "2M", "512k", "1G")
func ParseHumanSize(sizeStr string) (int, error) {
	if sizeStr == "" {
		return 0, fmt.Errorf("empty size string")
	}

	sizeStr = strings.ToUpper(strings.TrimSpace(sizeStr))

	// Extract numeric part and suffix
	var numPart string
	var suffix string
	for i, char := range sizeStr {
		if char >= '0' && char <= '9' || char == '.' {
			numPart += string(char)
		} else {
			suffix = sizeStr[i:]
			break
		}
	}

	if numPart == "" {
		return 0, fmt.Errorf("no numeric part in size string: %s", sizeStr)
	}

	num, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric part in size string %s: %w", sizeStr, err)
	}

	var multiplier int64 = 1
	switch suffix {
	case "", "B":
		multiplier = 1
	case "K", "KB":
		multiplier = 1024
	case "M", "MB":
		multiplier = 1024 * 1024
	case "G", "GB":
		multiplier = 1024 * 1024 * 1024
	default:
		return 0, fmt.Errorf("unknown size suffix: %s", suffix)
	}

	result := int64(num * float64(multiplier))
	if result <= 0 {
		return 0, fmt.Errorf("size must be positive: %s", sizeStr)
	}
	if result > int64(^uint(0)>>1) { // Check for int overflow
		return 0, fmt.Errorf("size too large: %s", sizeStr)
	}

	return int(result), nil
}
