package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	addonsync "github.com/kellerkompanie/addonsync/pkg"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func defineOptions() *ParsedOptions {
	options := NewParsedOptions()
	options.DefineOption("help", "h", OptionTypeBool, "false", "Show help message")
	options.DefineOption("version", "", OptionTypeBool, "false", "Show version information")
	options.DefineOption("config", "c", OptionTypeString, addonsync.ConfigFile, "Configuration file (created with defaults if missing)")
	options.DefineOption("verbose", "v", OptionTypeInt, "0", "Enable verbose output (can be repeated for more verbosity)")
	options.DefineOption("debug", "", OptionTypeString, "", "Debug flags (comma-separated: scan,detect,prune,ignore)")
	options.DefineOption("set", "", OptionTypeList, "", "Override a config value, e.g. --set=scan.follow_links=true (repeatable)")
	options.DefineOption("rehash", "", OptionTypeBool, "false", "Rehash every file, only reporting files whose content changed")
	options.DefineOption("no-progress", "", OptionTypeBool, "false", "Disable the progress bar")
	return options
}

func main() {
	os.Exit(realMain(os.Args[1:], os.Stdout, os.Stderr))
}

func realMain(argv []string, stdout, stderr io.Writer) int {
	options := defineOptions()
	if err := options.Parse(argv); err != nil {
		fmt.Fprintf(stderr, "addonsync: %v\n", err)
		fmt.Fprintf(stderr, "Try 'addonsync --help' for more information.\n")
		return 1
	}

	if options.GetBool("version") {
		fmt.Fprintf(stdout, "addonsync %s\n", version)
		return 0
	}
	if options.GetBool("help") {
		options.ShowUsage(stdout, "addonsync")
		showCommands(stdout)
		return 0
	}

	command := "run"
	args := options.GetArgs()
	if len(args) > 1 {
		fmt.Fprintf(stderr, "addonsync: unexpected arguments: %v\n", args[1:])
		return 1
	}
	if len(args) == 1 {
		command = args[0]
	}
	if command != "run" && command != "status" {
		fmt.Fprintf(stderr, "addonsync: unknown command '%s'\n", command)
		fmt.Fprintf(stderr, "Try 'addonsync --help' for more information.\n")
		return 1
	}

	cfg, err := loadConfig(options)
	if err != nil {
		fmt.Fprintf(stderr, "addonsync: %v\n", err)
		return 1
	}

	logCfg := cfg.GetLogConfig()
	if err := addonsync.InitLogging(addonsync.LogConfig{Format: logCfg.Format, Output: logCfg.Output}); err != nil {
		fmt.Fprintf(stderr, "addonsync: %v\n", err)
		return 1
	}
	defer addonsync.SyncLogging()

	verboseCfg := cfg.GetVerboseConfig()
	level := verboseCfg.Level
	if options.IsSet("verbose") {
		level = options.GetInt("verbose")
	}
	addonsync.SetVerboseLevel(level)
	debug := verboseCfg.Debug
	if options.IsSet("debug") {
		debug = options.GetString("debug")
	}
	addonsync.SetDebugFlags(debug)

	ctx, cancel := setupSignalHandler(context.Background())
	defer cancel()

	if err := execute(ctx, cfg, command, options, stdout); err != nil {
		fmt.Fprintf(stderr, "addonsync: %v\n", err)
		return 1
	}
	return 0
}

// loadConfig reads the config file and applies --set overrides
func loadConfig(options *ParsedOptions) (*addonsync.Config, error) {
	cfg, err := addonsync.LoadConfig(options.GetString("config"))
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyOverrides(options.GetList("set")); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", cfg.Path(), err)
	}
	return cfg, nil
}

func execute(ctx context.Context, cfg *addonsync.Config, command string, options *ParsedOptions, stdout io.Writer) error {
	metricsPath := cfg.GetMetricsConfig().Textfile
	var metrics *addonsync.RunMetrics
	if metricsPath != "" {
		metrics = addonsync.NewRunMetrics()
	}

	// detailed logging would tear the bar apart
	showProgress := !options.GetBool("no-progress") && command == "run" && addonsync.GetVerboseLevel() < 2
	progress := addonsync.NewProgressReporter(os.Stderr, showProgress)
	indexer, err := addonsync.NewIndexerFromConfig(ctx, cfg, options.GetBool("rehash"), progress, metrics)
	if err != nil {
		return err
	}

	start := time.Now()
	var result *addonsync.RunResult
	if command == "status" {
		result, err = indexer.Status(ctx)
	} else {
		result, err = indexer.Run(ctx)
	}

	if metrics != nil {
		if merr := metrics.WriteTextfile(metricsPath); merr != nil {
			err = errors.Join(err, merr)
		}
	}
	if err != nil {
		return err
	}

	printSummary(stdout, result, time.Since(start))
	return nil
}

func printSummary(w io.Writer, result *addonsync.RunResult, elapsed time.Duration) {
	if result.DryRun {
		fmt.Fprintf(w, "%s files, %s unchanged, %s new, %s changed\n",
			humanize.Comma(int64(result.FilesWalked)), humanize.Comma(int64(result.CacheHits)),
			humanize.Comma(int64(result.CacheMisses)), humanize.Comma(int64(result.FilesChanged)))
		if len(result.Touched) == 0 {
			fmt.Fprintln(w, "All addons up to date")
			return
		}
		fmt.Fprintln(w, "Addons that would be updated:")
		for _, name := range result.Touched {
			fmt.Fprintf(w, "  %s\n", name)
		}
		return
	}

	fmt.Fprintf(w, "Indexed %s files (%s cached, %s hashed, %s read), pruned %s\n",
		humanize.Comma(int64(result.FilesWalked)), humanize.Comma(int64(result.CacheHits)),
		humanize.Comma(int64(result.FilesHashed)), humanize.IBytes(uint64(result.BytesHashed)),
		humanize.Comma(int64(result.FilesPruned)))
	if len(result.Updates) == 0 {
		fmt.Fprintln(w, "No addons updated")
	} else {
		fmt.Fprintf(w, "Updated %d addons:\n", len(result.Touched))
		for _, name := range result.Touched {
			fmt.Fprintf(w, "  %s\n", name)
		}
	}
	fmt.Fprintf(w, "Time elapsed: %s\n", elapsed.Round(time.Millisecond))
}

func showCommands(w io.Writer) {
	fmt.Fprintf(w, "\nCommands:\n")
	fmt.Fprintf(w, "  run       Index all configured directories and notify the addon service (default)\n")
	fmt.Fprintf(w, "  status    Show which addons would be updated without writing anything\n")
}
