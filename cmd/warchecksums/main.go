package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/go-git/go-billy/v5"

	def "WarCompare/definitions"
	"WarCompare/internal/checksum"
	coreerrors "WarCompare/internal/errors"
	"WarCompare/internal/metrics"
	"WarCompare/internal/rules"
	"WarCompare/internal/scratch"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run lists the digest of every entry a comparison would look at.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("warchecksums", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "", "YAML rules file")
	algorithm := fs.String("alg", "", "digest algorithm (SHA256, SHA1, SHA384, SHA512, MD5, XXH3)")
	legacy := fs.Bool("legacy-policy", false, "list every non-directory entry")
	extractDir := fs.String("extract", "", "write nested archives below this directory, clearing it first")
	showStats := fs.Bool("stats", false, "print run statistics on stderr")
	verbose := fs.Bool("v", false, "log every entry")
	fs.Usage = func() {
		_, _ = fmt.Fprintln(stderr, "usage: warchecksums [flags] <archive>")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	doc := def.RulesFile{}
	if *configPath != "" {
		var err error
		if doc, err = rules.Load(*configPath, false); err != nil {
			return fail(stderr, err)
		}
	}
	r, err := rules.Build(doc, rules.Overrides{Digest: *algorithm, LegacyPolicy: *legacy})
	if err != nil {
		return fail(stderr, err)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	stats := &metrics.Stats{}
	stats.Start()
	extractor, err := checksum.NewExtractor(
		checksum.WithAlgorithm(r.Algorithm),
		checksum.WithInclusion(r.Inclusion),
		checksum.WithLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))),
		checksum.WithStats(stats),
	)
	if err != nil {
		return fail(stderr, err)
	}

	var fsys billy.Filesystem
	if *extractDir != "" {
		if err := scratch.Prepare(*extractDir); err != nil {
			return fail(stderr, err)
		}
		if fsys, err = scratch.Open(*extractDir); err != nil {
			return fail(stderr, err)
		}
	}

	m, err := extractor.ExtractFile(fs.Arg(0), fsys)
	stats.Stop()
	if err != nil {
		return fail(stderr, err)
	}
	for _, entry := range m.Entries() {
		_, _ = fmt.Fprintf(stdout, "%s  %s\n", entry.Digest, entry.Path)
	}
	if *showStats {
		metrics.Print(stderr, stats)
	}
	return 0
}

func fail(stderr io.Writer, err error) int {
	_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
	if hint := coreerrors.HintOf(err); hint != "" {
		_, _ = fmt.Fprintf(stderr, "hint: %s\n", hint)
	}
	if coreerrors.IsFatal(err) {
		return 3
	}
	return 2
}
