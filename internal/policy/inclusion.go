package policy

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// NestedArchiveSuffix marks entries that are archives in their own right.
const NestedArchiveSuffix = ".jar"

type Mode string

const (
	// ModeStandard drops build metadata that changes on every build.
	ModeStandard Mode = "standard"
	// ModeLegacy drops directory entries only.
	ModeLegacy Mode = "legacy"
)

var (
	defaultExcludedSuffixes = []string{".class"}
	defaultExcludedPrefixes = []string{"META-INF/"}
	defaultExcludedPatterns = []string{
		`^dependency\..+\.list$`,
		`^properties\..+\.properties$`,
	}
)

// Inclusion decides which archive entries take part in a comparison.
// It is immutable once built and safe to share.
type Inclusion struct {
	mode     Mode
	suffixes []string
	prefixes []string
	patterns []*regexp.Regexp
}

type InclusionOptions struct {
	Mode Mode
	// Extra exclusions, applied on top of the defaults in standard mode.
	ExcludeSuffixes []string
	ExcludePrefixes []string
	ExcludePatterns []string
}

func Standard() *Inclusion {
	inclusion, err := NewInclusion(InclusionOptions{Mode: ModeStandard})
	if err != nil {
		panic(err)
	}
	return inclusion
}

func Legacy() *Inclusion {
	return &Inclusion{mode: ModeLegacy}
}

func NewInclusion(opts InclusionOptions) (*Inclusion, error) {
	mode := opts.Mode
	if mode == "" {
		mode = ModeStandard
	}
	switch mode {
	case ModeLegacy:
		return Legacy(), nil
	case ModeStandard:
	default:
		return nil, fmt.Errorf("unsupported policy mode: %q", opts.Mode)
	}

	inclusion := &Inclusion{
		mode:     ModeStandard,
		suffixes: append(append([]string{}, defaultExcludedSuffixes...), nonEmpty(opts.ExcludeSuffixes)...),
		prefixes: append(append([]string{}, defaultExcludedPrefixes...), nonEmpty(opts.ExcludePrefixes)...),
	}
	for _, expr := range append(append([]string{}, defaultExcludedPatterns...), nonEmpty(opts.ExcludePatterns)...) {
		compiled, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compile exclude pattern %q: %w", expr, err)
		}
		inclusion.patterns = append(inclusion.patterns, compiled)
	}
	return inclusion, nil
}

func (p *Inclusion) Mode() Mode {
	return p.mode
}

// Include reports whether the entry at name participates in the comparison.
// Directory entries never do.
func (p *Inclusion) Include(name string, isDir bool) bool {
	if isDir || strings.HasSuffix(name, "/") {
		return false
	}
	if p.mode == ModeLegacy {
		return true
	}
	for _, suffix := range p.suffixes {
		if strings.HasSuffix(name, suffix) {
			return false
		}
	}
	for _, prefix := range p.prefixes {
		if strings.HasPrefix(name, prefix) {
			return false
		}
	}
	base := path.Base(name)
	for _, pattern := range p.patterns {
		if pattern.MatchString(base) {
			return false
		}
	}
	return true
}

// IsNestedArchive reports whether name should be materialized and recursed into.
func IsNestedArchive(name string) bool {
	return strings.HasSuffix(name, NestedArchiveSuffix)
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, value)
		}
	}
	return out
}
