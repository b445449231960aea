// Package compare decides whether two web archives differ in any way that
// matters for a deployment.
package compare

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/go-git/go-billy/v5"

	"WarCompare/internal/checksum"
	coreerrors "WarCompare/internal/errors"
	"WarCompare/internal/metrics"
	"WarCompare/internal/policy"
	"WarCompare/internal/reconcile"
	"WarCompare/internal/scratch"
)

// MaxNestingDepth is how many archive levels below the outer archives are
// compared entry by entry. Archives nested deeper are compared by digest only.
const MaxNestingDepth = 1

type Comparator struct {
	extractor *checksum.Extractor
	rules     reconcile.Rules
	logger    *slog.Logger
	stats     *metrics.Stats
}

type Option func(*Comparator)

// WithExtractor sets the extractor used at every level. Its inclusion
// policy and digest algorithm apply to outer and nested archives alike.
func WithExtractor(extractor *checksum.Extractor) Option {
	return func(c *Comparator) {
		c.extractor = extractor
	}
}

func WithRules(rules reconcile.Rules) Option {
	return func(c *Comparator) {
		c.rules = rules
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Comparator) {
		c.logger = logger
	}
}

func WithStats(stats *metrics.Stats) Option {
	return func(c *Comparator) {
		c.stats = stats
	}
}

// New builds a Comparator. Without options it uses the standard inclusion
// policy, SHA256 digests and the default filename override.
func New(opts ...Option) (*Comparator, error) {
	c := &Comparator{
		rules: reconcile.Rules{Override: policy.DefaultOverride()},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.extractor == nil {
		extractor, err := checksum.NewExtractor(checksum.WithLogger(c.logger), checksum.WithStats(c.stats))
		if err != nil {
			return nil, err
		}
		c.extractor = extractor
	}
	return c, nil
}

// Compare compares the archive at newArchive against the one at oldArchive.
// Nested archives of each side are written below its scratch directory, which
// is created when missing but never cleared; see scratch.Prepare.
//
// The two scratch directories must differ. Any read or write failure aborts
// the comparison and no verdict is returned.
func (c *Comparator) Compare(newArchive, newScratch, oldArchive, oldScratch string) (reconcile.Verdict, error) {
	if newScratch != "" && filepath.Clean(newScratch) == filepath.Clean(oldScratch) {
		return reconcile.Verdict{}, coreerrors.Wrap(
			fmt.Errorf("new and old scratch directories are both %s", newScratch),
			coreerrors.CategoryInvalidInput, coreerrors.CodeUsage,
			"give each side its own extract directory",
		)
	}
	newFS, err := scratch.Open(newScratch)
	if err != nil {
		return reconcile.Verdict{}, err
	}
	oldFS, err := scratch.Open(oldScratch)
	if err != nil {
		return reconcile.Verdict{}, err
	}
	return c.CompareFS(newArchive, newFS, oldArchive, oldFS)
}

// CompareFS is Compare with caller supplied scratch filesystems.
func (c *Comparator) CompareFS(newArchive string, newScratch billy.Filesystem, oldArchive string, oldScratch billy.Filesystem) (reconcile.Verdict, error) {
	if c.extractor.Inclusion().Mode() == policy.ModeStandard {
		c.logger.Info("ignoring META-INF files for war and jar files")
	}

	newMap, err := c.extractor.ExtractFile(newArchive, newScratch)
	if err != nil {
		return reconcile.Verdict{}, err
	}
	oldMap, err := c.extractor.ExtractFile(oldArchive, oldScratch)
	if err != nil {
		return reconcile.Verdict{}, err
	}

	result := reconcile.Reconcile(newMap, oldMap, c.rules)
	c.logDifference("war", result.Difference)
	verdict := reconcile.Verdict{}.With(reconcile.TopLevel(result.Difference))

	for _, candidate := range result.Candidates {
		level, err := c.compareNested(candidate, newScratch, oldScratch)
		if err != nil {
			return reconcile.Verdict{}, err
		}
		verdict = verdict.With(level)
	}
	return verdict, nil
}

// compareNested compares one pair of materialized nested archives. Archives
// inside them are hashed in place, which keeps recursion at MaxNestingDepth.
func (c *Comparator) compareNested(candidate reconcile.Candidate, newScratch, oldScratch billy.Filesystem) (reconcile.Level, error) {
	c.stats.AddCandidate()
	c.logger.Info("comparing jar",
		"jar", candidate.NewPath,
		"old_jar", candidate.OldPath,
		"new", candidate.NewDigest,
		"old", candidate.OldDigest,
	)

	newMap, err := c.extractor.ExtractFS(newScratch, filepath.FromSlash(candidate.NewPath), nil)
	if err != nil {
		return reconcile.Level{}, err
	}
	oldMap, err := c.extractor.ExtractFS(oldScratch, filepath.FromSlash(candidate.OldPath), nil)
	if err != nil {
		return reconcile.Level{}, err
	}

	difference := reconcile.Diff(newMap, oldMap)
	c.logDifference("jar "+candidate.NewPath, difference)
	return reconcile.NestedLevel(candidate, difference), nil
}

func (c *Comparator) logDifference(scope string, d reconcile.Difference) {
	if len(d.Differing) > 0 {
		c.logger.Info("diffs in "+scope, "entries", d.Differing)
	}
	if len(d.OnlyNew) > 0 {
		c.logger.Info("only in new "+scope, "entries", d.OnlyNew)
	}
	if len(d.OnlyOld) > 0 {
		c.logger.Info("only in old "+scope, "entries", d.OnlyOld)
	}
}
