// Package addonsync maintains an incremental content index of game addon
// directories and keeps a remote addon service informed of what changed.
//
// # Core API
//
// The entry point is Indexer, usually wired from an ini configuration:
//
//	cfg, _ := addonsync.LoadConfig("addonsync.ini")
//	ix, err := addonsync.NewIndexerFromConfig(ctx, cfg, false, addonsync.NopProgress{}, nil)
//	result, err := ix.Run(ctx)
//
// A run loads the file cache, walks every configured directory, prunes
// records for files that are gone, hashes only files whose metadata changed,
// writes the index document and posts the set of updated addons to the
// remote service. The cache is saved last.
//
// Status performs the same detection without writing or contacting the
// remote service. It only hashes when the change detection mode verifies
// content:
//
//	result, err := ix.Status(ctx)
//	for _, name := range result.Touched {
//		fmt.Println(name)
//	}
//
// # Addons
//
// A file belongs to the addon named by the first path segment that starts
// with "@". Its relative path starts at that segment and is the key used in
// the published index.
//
// # Configuration
//
// Enable debug output:
//
//	addonsync.SetDebugFlags("scan,detect")
//	addonsync.SetVerboseLevel(2)
package addonsync
