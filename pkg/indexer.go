package addonsync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// HashFunc digests the file at path, returning the hex digest and the
// number of bytes read
type HashFunc func(ctx context.Context, path string) (string, int64, error)

// IndexerOptions configures an Indexer
type IndexerOptions struct {
	Roots      []string
	Walk       WalkOptions
	Store      CacheStore
	Remote     RemoteService
	Detector   *ChangeDetector
	Algorithm  *HashAlgorithm
	BufferSize int
	IndexPath  string
	Publisher  IndexPublisher   // optional
	Progress   ProgressReporter // optional
	Metrics    *RunMetrics      // optional
}

// Indexer runs the incremental indexing pass over the addon roots
type Indexer struct {
	roots     []string
	walk      WalkOptions
	store     CacheStore
	remote    RemoteService
	detector  *ChangeDetector
	indexPath string
	publisher IndexPublisher
	progress  ProgressReporter
	metrics   *RunMetrics

	stat     StatFunc
	hashFile HashFunc
	now      func() time.Time
}

// NewIndexer creates an indexer. Roots, store, remote and index path are
// required.
func NewIndexer(opts IndexerOptions) (*Indexer, error) {
	if len(opts.Roots) == 0 {
		return nil, errors.New("no directories to index")
	}
	if opts.Store == nil {
		return nil, errors.New("no cache store configured")
	}
	if opts.Remote == nil {
		return nil, errors.New("no remote service configured")
	}
	if opts.IndexPath == "" {
		return nil, errors.New("no index path configured")
	}

	detector := opts.Detector
	if detector == nil {
		detector, _ = NewChangeDetector(DetectMetadata, false)
	}
	algorithm := opts.Algorithm
	if algorithm == nil {
		var err error
		if algorithm, err = GetHashAlgorithmByType(HashTypeSHA256); err != nil {
			return nil, err
		}
	}
	progress := opts.Progress
	if progress == nil {
		progress = NopProgress{}
	}
	bufferSize := opts.BufferSize

	return &Indexer{
		roots:     opts.Roots,
		walk:      opts.Walk,
		store:     opts.Store,
		remote:    opts.Remote,
		detector:  detector,
		indexPath: opts.IndexPath,
		publisher: opts.Publisher,
		progress:  progress,
		metrics:   opts.Metrics,
		stat:      StatFile,
		hashFile: func(ctx context.Context, path string) (string, int64, error) {
			return HashFile(ctx, path, algorithm, bufferSize)
		},
		now: time.Now,
	}, nil
}

// NewIndexerFromConfig wires an indexer from the loaded configuration
func NewIndexerFromConfig(ctx context.Context, cfg *Config, rehash bool, progress ProgressReporter, metrics *RunMetrics) (*Indexer, error) {
	all := cfg.GetAllConfig()

	algorithm, err := GetHashAlgorithm(all.Hash.Default)
	if err != nil {
		return nil, err
	}
	bufferSize, err := ParseHumanSize(all.Hash.Buffer)
	if err != nil {
		return nil, fmt.Errorf("invalid filehash.buffer: %w", err)
	}
	detector, err := NewChangeDetector(all.Scan.ChangeDetection, rehash)
	if err != nil {
		return nil, err
	}
	store, err := OpenStore(all.Cache)
	if err != nil {
		return nil, err
	}

	var publisher IndexPublisher
	if all.Publish.Enabled() {
		if publisher, err = NewS3Publisher(ctx, all.Publish); err != nil {
			return nil, err
		}
	}

	return NewIndexer(IndexerOptions{
		Roots: all.Scan.Directories,
		Walk: WalkOptions{
			FollowLinks:    all.Scan.FollowLinks,
			IgnoreHidden:   all.Scan.IgnoreHidden,
			IgnorePatterns: all.Scan.IgnoreFiles,
		},
		Store:      store,
		Remote:     RemoteFromConfig(all.API),
		Detector:   detector,
		Algorithm:  algorithm,
		BufferSize: bufferSize,
		IndexPath:  all.Index.File,
		Publisher:  publisher,
		Progress:   progress,
		Metrics:    metrics,
	})
}

// checkForOrphanedTempFiles warns about temp documents left by dead processes
func checkForOrphanedTempFiles(target string) {
	dir := filepath.Dir(target)
	prefix := "." + filepath.Base(target) + "-"

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".tmp") {
			continue
		}
		pid := extractPidFromTempFileName(name)
		if pid > 0 && !isProcessRunning(pid) {
			logWarn("found orphaned temp file from dead process: %s (PID %d no longer running)",
				filepath.Join(dir, name), pid)
		}
	}
}

// extractPidFromTempFileName extracts the PID from names like ".index.json-1234-5678.tmp"
func extractPidFromTempFileName(filename string) int {
	if !strings.HasSuffix(filename, ".tmp") {
		return 0
	}
	parts := strings.Split(strings.TrimSuffix(filename, ".tmp"), "-")
	if len(parts) < 3 {
		return 0
	}

	// PID is second from last, the timestamp is last
	pid, err := strconv.Atoi(parts[len(parts)-2])
	if err != nil {
		return 0
	}
	return pid
}

// isProcessRunning checks if a process with the given PID is currently running
func isProcessRunning(pid int) bool {
	// kill(pid, 0) checks existence without sending a signal
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}

	if errno, ok := err.(syscall.Errno); ok {
		if errno == syscall.ESRCH {
			return false
		}
		// EPERM means the process exists but belongs to someone else
		if errno == syscall.EPERM {
			return true
		}
	}

	return false
}
