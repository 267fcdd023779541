package addonsync

import (
	"context"
	"fmt"
	"time"
)

// RunResult summarises one indexer pass
type RunResult struct {
	FilesWalked    int
	FilesPruned    int
	CacheHits      int
	CacheMisses    int // no record for the path
	FilesChanged   int // record existed but no longer matched
	FilesRefreshed int // rehashed with identical content, metadata refreshed only
	FilesHashed    int
	BytesHashed    int64
	AddonsCreated  int
	Touched        []string  // names of created or changed addons
	Updates        UpdateSet // nil for dry runs
	Index          Index     // nil for dry runs
	DryRun         bool
}

// Run performs a full indexing pass: load the cache, walk every root, prune
// vanished files, detect and hash changes, notify the remote service, write
// and publish the index and finally save the cache. Nothing is written when
// the notification fails, so the index never carries versions the service was
// not told about and an addon is never recorded as reported unless it was.
func (ix *Indexer) Run(ctx context.Context) (*RunResult, error) {
	return ix.run(ctx, false)
}

// Status performs change detection only. Nothing is hashed unless content
// verification is enabled, the remote service is not contacted and nothing
// is written.
func (ix *Indexer) Status(ctx context.Context) (*RunResult, error) {
	return ix.run(ctx, true)
}

func (ix *Indexer) run(ctx context.Context, dryRun bool) (result *RunResult, err error) {
	defer VerboseEnter()()

	start := time.Now()
	result = &RunResult{DryRun: dryRun}
	if ix.metrics != nil {
		defer func() {
			ix.metrics.Observe(result, time.Since(start), err == nil)
		}()
	}

	checkForOrphanedTempFiles(ix.indexPath)
	checkForOrphanedTempFiles(ix.store.Location())

	cache, err := ix.store.Load()
	if err != nil {
		return result, fmt.Errorf("failed to load cache: %w", err)
	}

	VerboseLog(1, "Searching for files in %v", sortedRoots(ix.roots))
	walked, err := Walk(ctx, ix.roots, ix.walk)
	if err != nil {
		return result, fmt.Errorf("failed to walk directories: %w", err)
	}
	result.FilesWalked = walked.Len()
	VerboseLog(1, "Found %d files", result.FilesWalked)
	counts := walked.RootCounts()
	walkedRoots := make([]string, 0, len(counts))
	for root := range counts {
		walkedRoots = append(walkedRoots, root)
	}
	for _, root := range sortedRoots(walkedRoots) {
		VerboseLog(2, "  %s: %d files", root, counts[root])
	}

	// stale records go before any file is processed
	result.FilesPruned = cache.Prune(walked)
	if result.FilesPruned > 0 {
		VerboseLog(1, "Pruned %d vanished files from cache", result.FilesPruned)
	}

	tracker := newUpdateTracker()
	ix.progress.Start(result.FilesWalked)

	walked.ForEach(func(entry *WalkEntry) bool {
		select {
		case <-ctx.Done():
			err = fmt.Errorf("run interrupted: %w", ctx.Err())
			return false
		default:
		}

		var hashed int64
		hashed, err = ix.processFile(ctx, cache, tracker, entry.Path, result, dryRun)
		if err != nil {
			return false
		}
		ix.progress.Advance(entry.Path, hashed)
		return true
	})
	ix.progress.Finish()
	if err != nil {
		return result, err
	}

	result.Touched = tracker.Touched()
	if dryRun {
		return result, nil
	}

	result.Updates = tracker.UpdateSet()
	result.Index = BuildIndex(cache)

	// nothing is written until the service knows the new versions
	if len(result.Updates) > 0 {
		VerboseLog(1, "Notifying %d addon ids: %v", len(result.Updates), result.Updates.SortedIDs())
	}
	if err := ix.remote.NotifyUpdates(ctx, result.Updates); err != nil {
		return result, err
	}

	if err := WriteIndex(ix.indexPath, result.Index); err != nil {
		return result, err
	}

	if ix.publisher != nil {
		data, err := result.Index.Bytes()
		if err != nil {
			return result, err
		}
		if err := ix.publisher.Publish(ctx, data); err != nil {
			return result, fmt.Errorf("failed to publish index: %w", err)
		}
	}

	if err := ix.store.Save(cache); err != nil {
		return result, err
	}

	return result, nil
}

// processFile classifies one walked file, consults the cache and hashes it
// when needed. Returns the number of bytes hashed.
func (ix *Indexer) processFile(ctx context.Context, cache *Cache, tracker *updateTracker, path string, result *RunResult, dryRun bool) (int64, error) {
	relativePath, addonName := Classify(path)

	meta, err := ix.stat(path)
	if err != nil {
		return 0, err
	}

	addon := cache.Addon(addonName)
	if addon == nil {
		if dryRun {
			// unknown addons are not registered remotely during a dry run
			tracker.pending(addonName)
			result.CacheMisses++
			return 0, nil
		}
		var created bool
		addon, created, err = cache.EnsureAddon(ctx, addonName, ix.remote, ix.now())
		if err != nil {
			return 0, err
		}
		if created {
			tracker.created(addon)
			result.AddonsCreated++
		}
	}

	decision, old := ix.detector.Check(addon, path, meta)
	if IsDebugEnabled("detect") {
		VerboseLog(3, "detect: %s %s", decision, path)
	}

	switch decision {
	case DecisionHit:
		result.CacheHits++
		return 0, nil
	case DecisionMiss:
		result.CacheMisses++
	}

	verify := decision == DecisionChanged && ix.detector.VerifiesContent()
	if dryRun && !verify {
		if decision == DecisionChanged {
			result.FilesChanged++
		}
		tracker.pending(addonName)
		return 0, nil
	}

	hash, n, err := ix.hashFile(ctx, path)
	if err != nil {
		return n, err
	}
	result.FilesHashed++
	result.BytesHashed += n

	modified := meta.Modified
	if verify && old.Hash == hash && old.RelativePath == relativePath {
		result.FilesRefreshed++
		if !dryRun {
			old.Size = meta.Size
			old.Created = meta.Created
			old.Modified = &modified
		}
		return n, nil
	}

	if decision == DecisionChanged {
		result.FilesChanged++
	}
	if dryRun {
		tracker.pending(addonName)
		return n, nil
	}

	addon.Files[path] = &FileRecord{
		RelativePath: relativePath,
		AbsolutePath: path,
		Created:      meta.Created,
		Size:         meta.Size,
		Hash:         hash,
		Modified:     &modified,
	}
	tracker.changed(addon, ix.now())
	VerboseLog(2, "Hashed %s (%s)", relativePath, decision)
	return n, nil
}
