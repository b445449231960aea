package rules

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	def "WarCompare/definitions"
	"WarCompare/internal/checksum"
	coreerrors "WarCompare/internal/errors"
	"WarCompare/internal/policy"
	"WarCompare/internal/reconcile"
)

// Load reads a rules file. A missing file yields an empty document when
// allowMissing is set.
func Load(path string, allowMissing bool) (def.RulesFile, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return def.RulesFile{}, configError(fmt.Errorf("rules file path is required"))
	}

	// #nosec G304 -- rules path is explicit local user input.
	content, err := os.ReadFile(trimmedPath)
	if err != nil {
		if os.IsNotExist(err) && allowMissing {
			return def.RulesFile{}, nil
		}
		return def.RulesFile{}, configError(fmt.Errorf("read rules file: %w", err))
	}
	if len(strings.TrimSpace(string(content))) == 0 {
		return def.RulesFile{}, nil
	}

	var doc def.RulesFile
	if err := yaml.UnmarshalWithOptions(content, &doc, yaml.DisallowUnknownField()); err != nil {
		return def.RulesFile{}, configError(fmt.Errorf("parse rules file %s: %w", trimmedPath, err))
	}
	normalize(&doc)
	return doc, nil
}

func normalize(doc *def.RulesFile) {
	doc.Digest = strings.ToUpper(strings.TrimSpace(doc.Digest))
	doc.Policy.Mode = strings.ToLower(strings.TrimSpace(doc.Policy.Mode))
	doc.Policy.ExcludeSuffixes = trimAll(doc.Policy.ExcludeSuffixes)
	doc.Policy.ExcludePrefixes = trimAll(doc.Policy.ExcludePrefixes)
	doc.Policy.ExcludePatterns = trimAll(doc.Policy.ExcludePatterns)
	doc.IgnoredArchives = trimAll(doc.IgnoredArchives)
	if doc.FilenameOverrides.StripPrefixes != nil {
		prefixes := trimAll(*doc.FilenameOverrides.StripPrefixes)
		doc.FilenameOverrides.StripPrefixes = &prefixes
	}
	if len(doc.FilenameOverrides.Paths) > 0 {
		paths := make(map[string]string, len(doc.FilenameOverrides.Paths))
		for from, to := range doc.FilenameOverrides.Paths {
			from, to = strings.TrimSpace(from), strings.TrimSpace(to)
			if from != "" && to != "" {
				paths[from] = to
			}
		}
		doc.FilenameOverrides.Paths = paths
	}
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, value)
		}
	}
	return out
}

// Overrides are command line settings layered over a rules file. Zero
// values leave the file's settings alone.
type Overrides struct {
	Digest       string
	LegacyPolicy bool
	Ignore       []string
	Paths        map[string]string
}

// Rules is everything a comparison needs to know besides its inputs.
type Rules struct {
	Algorithm checksum.Algorithm
	Inclusion *policy.Inclusion
	Reconcile reconcile.Rules
}

// Default matches an empty rules file.
func Default() Rules {
	r, err := Build(def.RulesFile{}, Overrides{})
	if err != nil {
		panic(err)
	}
	return r
}

// Build validates doc and applies overrides on top of it.
func Build(doc def.RulesFile, overrides Overrides) (Rules, error) {
	digest := doc.Digest
	if d := strings.TrimSpace(overrides.Digest); d != "" {
		digest = d
	}
	algorithm, err := checksum.ParseAlgorithm(digest)
	if err != nil {
		return Rules{}, configError(err)
	}

	mode := policy.Mode(doc.Policy.Mode)
	if overrides.LegacyPolicy {
		mode = policy.ModeLegacy
	}
	inclusion, err := policy.NewInclusion(policy.InclusionOptions{
		Mode:            mode,
		ExcludeSuffixes: doc.Policy.ExcludeSuffixes,
		ExcludePrefixes: doc.Policy.ExcludePrefixes,
		ExcludePatterns: doc.Policy.ExcludePatterns,
	})
	if err != nil {
		return Rules{}, configError(err)
	}

	stripPrefixes := policy.DefaultStripPrefixes
	if doc.FilenameOverrides.StripPrefixes != nil {
		stripPrefixes = *doc.FilenameOverrides.StripPrefixes
	}
	paths := make(map[string]string, len(doc.FilenameOverrides.Paths)+len(overrides.Paths))
	for from, to := range doc.FilenameOverrides.Paths {
		paths[from] = to
	}
	for from, to := range overrides.Paths {
		paths[from] = to
	}

	ignored := append(append([]string{}, doc.IgnoredArchives...), overrides.Ignore...)

	return Rules{
		Algorithm: algorithm,
		Inclusion: inclusion,
		Reconcile: reconcile.Rules{
			Override: policy.NewFilenameOverride(paths, stripPrefixes),
			Ignored:  policy.NewIgnoredArchives(ignored),
		},
	}, nil
}

func configError(err error) error {
	return coreerrors.Wrap(err, coreerrors.CategoryInvalidConfig, coreerrors.CodeConfig, "check the rules file and command line flags")
}
