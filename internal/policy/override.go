package policy

import (
	"sort"
	"strings"
)

// DefaultStripPrefixes are removed from new-side paths when no explicit override exists.
var DefaultStripPrefixes = []string{"classpath/"}

// FilenameOverride maps a path in the new archive to the path that holds the
// same content in the old archive.
type FilenameOverride struct {
	paths    map[string]string
	prefixes []string
}

// NewFilenameOverride copies its inputs; the result is read-only.
// Longer strip prefixes are tried first.
func NewFilenameOverride(paths map[string]string, stripPrefixes []string) FilenameOverride {
	override := FilenameOverride{paths: make(map[string]string, len(paths))}
	for from, to := range paths {
		override.paths[from] = to
	}
	override.prefixes = nonEmpty(stripPrefixes)
	sort.SliceStable(override.prefixes, func(i, j int) bool {
		return len(override.prefixes[i]) > len(override.prefixes[j])
	})
	return override
}

// Identity never renames.
func Identity() FilenameOverride {
	return FilenameOverride{}
}

func DefaultOverride() FilenameOverride {
	return NewFilenameOverride(nil, DefaultStripPrefixes)
}

// Resolve returns the old-archive path for name.
func (o FilenameOverride) Resolve(name string) string {
	if mapped, ok := o.paths[name]; ok {
		return mapped
	}
	for _, prefix := range o.prefixes {
		if strings.HasPrefix(name, prefix) {
			return name[len(prefix):]
		}
	}
	return name
}

// IgnoredArchives lists substrings of nested archive paths that are never recursed into.
type IgnoredArchives struct {
	substrings []string
}

func NewIgnoredArchives(substrings []string) IgnoredArchives {
	return IgnoredArchives{substrings: nonEmpty(substrings)}
}

func (i IgnoredArchives) IsIgnored(name string) bool {
	for _, substring := range i.substrings {
		if strings.Contains(name, substring) {
			return true
		}
	}
	return false
}

func (i IgnoredArchives) Len() int {
	return len(i.substrings)
}
