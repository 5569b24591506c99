package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/ivoronin/lint/internal/applog"
	"github.com/ivoronin/lint/internal/config"
	"github.com/ivoronin/lint/internal/digest"
	"github.com/ivoronin/lint/internal/session"
	"github.com/spf13/cobra"
)

// findOptions holds the raw CLI flags for the find command. ParseArgs
// style validation happens in buildConfig, which turns them into one
// immutable config.Config.
type findOptions struct {
	threads       int
	maxDepth      int
	sortCriteria  string
	lintTypes     string
	sizeRange     string
	algorithm     string
	outputs       []string
	addOutputs    []string
	formatterOpts []string
	paranoidMem   string
	newerThan     string
	clampLow      string
	clampTop      string
	cacheFiles    []string

	hidden            bool
	followLinks       bool
	symlinksAsFiles   bool
	crossDev          bool
	hardlinked        bool
	noHardlinked      bool
	matchBasename     bool
	matchExtension    bool
	matchNoExtension  bool
	mustMatchTagged   bool
	mustMatchUntagged bool
	keepAllTagged     bool
	keepAllUntagged   bool
	xattrRead         bool
	xattrWrite        bool
	writeUnfinished   bool
	mergeDirectories  bool
	noProgress        bool
}

func newFindCmd() *cobra.Command {
	opts := &findOptions{
		threads:   runtime.NumCPU(),
		maxDepth:  -1,
		algorithm: digest.DefaultName,
	}

	cmd := &cobra.Command{
		Use:   "find [paths...]",
		Short: "Scan directory trees for lint and report it",
		Long: `Scans one or more directory trees for lint: duplicate files and
directories, empty files and directories, broken symlinks, files with
unresolvable UID/GID, and non-stripped binaries.

Nothing is ever deleted. Findings are reported through the configured
formatters; the "sh" formatter emits a shell script that performs the
cleanup when you choose to run it.

A "//" argument marks the following paths as preferred: their copies
are kept as originals when duplicates span both kinds of roots. A
single "-" reads more paths from standard input, one per line.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runFind(args, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.threads, "threads", "t", opts.threads, "Number of parallel workers")
	cmd.Flags().IntVarP(&opts.maxDepth, "max-depth", "d", opts.maxDepth, "Maximum traversal depth (-1 = unlimited)")
	cmd.Flags().StringVarP(&opts.sortCriteria, "sort-criteria", "S", "pma", "Original selection order (a=path, m=mtime, p=preferred; uppercase reverses)")
	cmd.Flags().StringVarP(&opts.lintTypes, "types", "T", "", "Lint type selector, e.g. '-empty_file,-non_stripped'")
	cmd.Flags().StringVar(&opts.sizeRange, "size", "", "Size range 'min-max' (suffixes: b,c,w,k,kb,m,mb,...) or a bare minimum")
	cmd.Flags().StringVarP(&opts.algorithm, "algorithm", "a", opts.algorithm, "Digest algorithm: "+strings.Join(digest.Names(), ", "))
	cmd.Flags().StringArrayVarP(&opts.outputs, "output", "o", nil, "Output spec FMT[:PATH], replaces the default outputs (repeatable)")
	cmd.Flags().StringArrayVarP(&opts.addOutputs, "add-output", "O", nil, "Output spec FMT[:PATH], added to the default outputs (repeatable)")
	cmd.Flags().StringArrayVarP(&opts.formatterOpts, "config", "c", nil, "Formatter option FMT:KEY[=VALUE] (repeatable)")
	cmd.Flags().StringVar(&opts.paranoidMem, "paranoid-mem", "256mb", "Memory budget for paranoid byte comparison")
	cmd.Flags().StringVarP(&opts.newerThan, "newer-than", "N", "", "Only consider files modified at or after this time (epoch, ISO-8601, or a file containing one)")
	cmd.Flags().StringVar(&opts.clampLow, "clamp-low", "", "Start of the hashed byte range (offset, fraction, or percentage)")
	cmd.Flags().StringVar(&opts.clampTop, "clamp-top", "", "End of the hashed byte range (offset, fraction, or percentage)")
	cmd.Flags().StringArrayVar(&opts.cacheFiles, "cache-file", nil, "Digest cache file; first one is rewritten at exit (repeatable)")

	cmd.Flags().BoolVar(&opts.hidden, "hidden", false, "Traverse hidden files and directories")
	cmd.Flags().BoolVarP(&opts.followLinks, "followlinks", "f", false, "Follow symlinks into files and directories")
	cmd.Flags().BoolVar(&opts.symlinksAsFiles, "see-symlinks", false, "Treat symlinks as files instead of following or ignoring them")
	cmd.Flags().BoolVarP(&opts.crossDev, "crossdev", "x", false, "Descend into directories on other filesystems")
	cmd.Flags().BoolVar(&opts.hardlinked, "hardlinked", false, "Report every path of a hardlink cluster as a duplicate (default)")
	cmd.Flags().BoolVar(&opts.noHardlinked, "no-hardlinked", false, "Report only one path per hardlink cluster")
	cmd.Flags().BoolVarP(&opts.matchBasename, "match-basename", "b", false, "Only match files sharing a basename")
	cmd.Flags().BoolVarP(&opts.matchExtension, "match-extension", "e", false, "Only match files sharing an extension")
	cmd.Flags().BoolVarP(&opts.matchNoExtension, "match-without-extension", "i", false, "Only match files sharing an extension-less basename")
	cmd.Flags().BoolVar(&opts.mustMatchTagged, "must-match-tagged", false, "Before hashing, drop same-size candidate sets with no preferred-root file")
	cmd.Flags().BoolVar(&opts.mustMatchUntagged, "must-match-untagged", false, "Before hashing, drop same-size candidate sets with no non-preferred-root file")
	cmd.Flags().BoolVarP(&opts.keepAllTagged, "keep-all-tagged", "k", false, "Never mark preferred-root files as duplicates")
	cmd.Flags().BoolVarP(&opts.keepAllUntagged, "keep-all-untagged", "K", false, "Never mark non-preferred-root files as duplicates")
	cmd.Flags().BoolVar(&opts.xattrRead, "xattr-read", false, "Read digests mirrored in extended attributes")
	cmd.Flags().BoolVar(&opts.xattrWrite, "xattr-write", false, "Mirror digests into extended attributes at exit")
	cmd.Flags().BoolVarP(&opts.writeUnfinished, "write-unfinished", "U", false, "Report partial digests of non-duplicate files")
	cmd.Flags().BoolVarP(&opts.mergeDirectories, "merge-directories", "D", false, "Aggregate duplicate files into duplicate-directory findings")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Disable progress output")

	return cmd
}

func runFind(args []string, opts *findOptions) error {
	log := applog.Default()

	cfg, err := buildConfig(args, opts)
	if err != nil {
		log.Error(err)
		return err
	}

	s, err := session.New(cfg, log, !opts.noProgress)
	if err != nil {
		log.Error(err)
		return err
	}
	if err := s.Run(); err != nil {
		log.Error(err)
		return err
	}
	return nil
}

// buildConfig validates every flag and assembles the immutable Config.
// Any parse failure here is a configuration error: fatal before work
// begins.
func buildConfig(args []string, opts *findOptions) (*config.Config, error) {
	cfg := config.Default(opts.threads)

	roots, err := config.ParseRoots(args, os.Stdin)
	if err != nil {
		return nil, err
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("no input paths given")
	}
	cfg.Roots = roots
	cfg.MaxDepth = opts.maxDepth

	if cfg.SortOrder, err = config.ParseSortCriteria(opts.sortCriteria); err != nil {
		return nil, err
	}
	if cfg.Lint, err = config.ParseLintSelector(opts.lintTypes); err != nil {
		return nil, err
	}
	if opts.sizeRange != "" {
		if cfg.Size, err = config.ParseSizeRange(opts.sizeRange); err != nil {
			return nil, fmt.Errorf("invalid --size: %w", err)
		}
	}
	if err := validateAlgorithm(opts.algorithm); err != nil {
		return nil, err
	}
	cfg.Algorithm = opts.algorithm

	if cfg.ParanoidMemBudget, err = parseMemBudget(opts.paranoidMem); err != nil {
		return nil, fmt.Errorf("invalid --paranoid-mem: %w", err)
	}

	if opts.newerThan != "" {
		t, err := config.ParseModTimeFilter(opts.newerThan)
		if err != nil {
			return nil, err
		}
		cfg.ModTimeFilter = t
		cfg.HasModTimeFilter = true
	}

	if opts.clampLow != "" || opts.clampTop != "" {
		cfg.HasClamp = true
		cfg.ClampLow = config.ClampSpec{Absolute: 0}
		cfg.ClampHigh = config.ClampSpec{Fraction: 1.0, IsFraction: true}
		if opts.clampLow != "" {
			if cfg.ClampLow, err = config.ParseClamp(opts.clampLow); err != nil {
				return nil, err
			}
		}
		if opts.clampTop != "" {
			if cfg.ClampHigh, err = config.ParseClamp(opts.clampTop); err != nil {
				return nil, err
			}
		}
	}

	cfg.CachePaths = opts.cacheFiles

	if opts.hidden {
		cfg.Hidden = config.HiddenInclude
	}
	switch {
	case opts.followLinks && opts.symlinksAsFiles:
		return nil, fmt.Errorf("--followlinks and --see-symlinks are mutually exclusive")
	case opts.followLinks:
		cfg.Symlink = config.SymlinkFollow
	case opts.symlinksAsFiles:
		cfg.Symlink = config.SymlinkAsFile
	}
	cfg.CrossDevice = opts.crossDev

	if opts.hardlinked && opts.noHardlinked {
		return nil, fmt.Errorf("--hardlinked and --no-hardlinked are mutually exclusive")
	}
	if opts.noHardlinked {
		cfg.ReportHardlinked = false
	}

	cfg.MatchBasename = opts.matchBasename
	cfg.MatchExtension = opts.matchExtension
	cfg.MatchExtensionless = opts.matchNoExtension
	cfg.MustMatchTagged = opts.mustMatchTagged
	cfg.MustMatchUntagged = opts.mustMatchUntagged
	cfg.KeepAllTagged = opts.keepAllTagged
	cfg.KeepAllUntagged = opts.keepAllUntagged
	cfg.XattrRead = opts.xattrRead
	cfg.XattrWrite = opts.xattrWrite
	cfg.WriteUnfinished = opts.writeUnfinished
	cfg.MergeDirectories = opts.mergeDirectories

	if len(opts.outputs) > 0 {
		cfg.OutputSpecs = opts.outputs
	}
	cfg.OutputSpecs = append(cfg.OutputSpecs, opts.addOutputs...)

	if cfg.FormatterKV, err = parseFormatterOpts(opts.formatterOpts); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validateAlgorithm(name string) error {
	for _, known := range digest.Names() {
		if name == known {
			return nil
		}
	}
	return fmt.Errorf("unknown algorithm %q (available: %s)", name, strings.Join(digest.Names(), ", "))
}
