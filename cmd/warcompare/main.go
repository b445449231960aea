package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	def "WarCompare/definitions"
	"WarCompare/internal/checksum"
	"WarCompare/internal/compare"
	coreerrors "WarCompare/internal/errors"
	"WarCompare/internal/metrics"
	"WarCompare/internal/progress"
	"WarCompare/internal/rules"
	"WarCompare/internal/scratch"
)

const (
	exitSame      = 0
	exitDifferent = 1
	exitUsage     = 2
	exitFatal     = 3
)

const usageLine = "usage: warcompare [flags] <new.war> <new-extract-dir> <old.war> <old-extract-dir>"

// repeated collects every occurrence of a flag.
type repeated []string

func (r *repeated) String() string { return strings.Join(*r, ",") }

func (r *repeated) Set(value string) error {
	*r = append(*r, value)
	return nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("warcompare", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		configPath   string
		algorithm    string
		legacy       bool
		ignore       repeated
		overrides    repeated
		noClean      bool
		showProgress bool
		showStats    bool
		asJSON       bool
		verbose      bool
	)
	fs.StringVar(&configPath, "config", "", "YAML rules file")
	fs.StringVar(&algorithm, "alg", "", "digest algorithm (SHA256, SHA1, SHA384, SHA512, MD5, XXH3)")
	fs.BoolVar(&legacy, "legacy-policy", false, "compare every non-directory entry, META-INF and classes included")
	fs.Var(&ignore, "ignore", "never recurse into nested archives whose path contains this substring (repeatable)")
	fs.Var(&overrides, "override", "compare new-archive path NEW against old-archive path OLD, as NEW=OLD (repeatable)")
	fs.BoolVar(&noClean, "no-clean", false, "keep the current contents of the extract directories")
	fs.BoolVar(&showProgress, "progress", false, "show hashing progress on stderr")
	fs.BoolVar(&showStats, "stats", false, "print run statistics on stderr")
	fs.BoolVar(&asJSON, "json", false, "print the verdict as JSON")
	fs.BoolVar(&verbose, "v", false, "log every entry")
	fs.Usage = func() {
		_, _ = fmt.Fprintln(stderr, usageLine)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 4 {
		fs.Usage()
		return exitUsage
	}
	newArchive, newScratch, oldArchive, oldScratch := fs.Arg(0), fs.Arg(1), fs.Arg(2), fs.Arg(3)
	if filepath.Clean(newScratch) == filepath.Clean(oldScratch) {
		_, _ = fmt.Fprintln(stderr, "error: the new and old extract directories must differ")
		return exitUsage
	}

	paths, err := parseOverrides(overrides)
	if err != nil {
		return fail(stderr, err)
	}

	doc := def.RulesFile{}
	if configPath != "" {
		doc, err = rules.Load(configPath, false)
		if err != nil {
			return fail(stderr, err)
		}
	}
	r, err := rules.Build(doc, rules.Overrides{
		Digest:       algorithm,
		LegacyPolicy: legacy,
		Ignore:       ignore,
		Paths:        paths,
	})
	if err != nil {
		return fail(stderr, err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if !noClean {
		for _, dir := range []string{newScratch, oldScratch} {
			if err := scratch.Prepare(dir); err != nil {
				return fail(stderr, err)
			}
		}
	}

	stats := &metrics.Stats{}
	stats.Start()

	var bar *progress.Bar
	var onProgress func(int64)
	if showProgress {
		bar = progress.New(stderr, stats.Snapshot)
		onProgress = bar.AddBytes
	}

	extractor, err := checksum.NewExtractor(
		checksum.WithAlgorithm(r.Algorithm),
		checksum.WithInclusion(r.Inclusion),
		checksum.WithLogger(logger),
		checksum.WithStats(stats),
		checksum.WithProgress(onProgress),
	)
	if err != nil {
		closeBar(bar)
		return fail(stderr, err)
	}
	comparator, err := compare.New(
		compare.WithExtractor(extractor),
		compare.WithRules(r.Reconcile),
		compare.WithLogger(logger),
		compare.WithStats(stats),
	)
	if err != nil {
		closeBar(bar)
		return fail(stderr, err)
	}

	verdict, err := comparator.Compare(newArchive, newScratch, oldArchive, oldScratch)
	closeBar(bar)
	stats.Stop()
	if err != nil {
		return fail(stderr, err)
	}

	if asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(verdict); err != nil {
			return fail(stderr, coreerrors.Wrap(err, coreerrors.CategoryInternalFailure, coreerrors.CodeOutput, ""))
		}
	} else {
		for _, reason := range verdict.Reasons() {
			_, _ = fmt.Fprintln(stdout, reason)
		}
		if verdict.Different() {
			_, _ = fmt.Fprintln(stdout, "Differences found")
		} else {
			_, _ = fmt.Fprintln(stdout, "No significant differences found")
		}
	}
	if showStats {
		metrics.Print(stderr, stats)
	}

	if verdict.Different() {
		return exitDifferent
	}
	return exitSame
}

func parseOverrides(values []string) (map[string]string, error) {
	paths := make(map[string]string, len(values))
	for _, value := range values {
		from, to, ok := strings.Cut(value, "=")
		from, to = strings.TrimSpace(from), strings.TrimSpace(to)
		if !ok || from == "" || to == "" {
			return nil, coreerrors.Wrap(fmt.Errorf("invalid -override %q", value), coreerrors.CategoryInvalidInput, coreerrors.CodeUsage, "use NEW=OLD, for example classpath/util.jar=util.jar")
		}
		paths[from] = to
	}
	return paths, nil
}

func closeBar(bar *progress.Bar) {
	if bar != nil {
		bar.Close()
	}
}

func fail(stderr io.Writer, err error) int {
	_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
	if hint := coreerrors.HintOf(err); hint != "" {
		_, _ = fmt.Fprintf(stderr, "hint: %s\n", hint)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	if coreerrors.IsFatal(err) {
		return exitFatal
	}
	return exitUsage
}
