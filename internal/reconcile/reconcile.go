package reconcile

import (
	"sort"

	"WarCompare/internal/checksum"
	"WarCompare/internal/policy"
)

// Difference is the three-way set difference of two checksum maps. Each
// list is sorted.
type Difference struct {
	OnlyNew   []string `json:"only_new,omitempty"`
	OnlyOld   []string `json:"only_old,omitempty"`
	Differing []string `json:"differing,omitempty"`
}

func (d Difference) Equal() bool {
	return len(d.OnlyNew) == 0 && len(d.OnlyOld) == 0 && len(d.Differing) == 0
}

// Diff compares keys literally.
func Diff(newMap, oldMap checksum.Map) Difference {
	return diff(newMap, oldMap, nil)
}

// diff compares newMap, re-keyed through rename, against oldMap. Reported
// names are new-side paths for OnlyNew and Differing, old-side for OnlyOld.
func diff(newMap, oldMap checksum.Map, rename map[string]string) Difference {
	out := Difference{
		OnlyNew:   make([]string, 0),
		OnlyOld:   make([]string, 0),
		Differing: make([]string, 0),
	}
	seen := make(map[string]struct{}, newMap.Len())
	for _, newPath := range newMap.Paths() {
		oldPath := newPath
		if renamed, ok := rename[newPath]; ok {
			oldPath = renamed
		}
		seen[oldPath] = struct{}{}
		newDigest, _ := newMap.Get(newPath)
		oldDigest, ok := oldMap.Get(oldPath)
		switch {
		case !ok:
			out.OnlyNew = append(out.OnlyNew, newPath)
		case newDigest != oldDigest:
			out.Differing = append(out.Differing, newPath)
		}
	}
	for _, oldPath := range oldMap.Paths() {
		if _, ok := seen[oldPath]; !ok {
			out.OnlyOld = append(out.OnlyOld, oldPath)
		}
	}
	sort.Strings(out.Differing)
	sort.Strings(out.OnlyNew)
	sort.Strings(out.OnlyOld)
	return out
}

// Rules are the read-only knobs of a reconciliation.
type Rules struct {
	Override policy.FilenameOverride
	Ignored  policy.IgnoredArchives
}

// Candidate is a nested archive present on both sides with different digests.
type Candidate struct {
	NewPath   string          `json:"new_path"`
	OldPath   string          `json:"old_path"`
	NewDigest checksum.Digest `json:"new_digest"`
	OldDigest checksum.Digest `json:"old_digest"`
}

type Result struct {
	Difference Difference
	// Candidates are ordered by NewPath.
	Candidates []Candidate
}

// Reconcile computes the difference between the maps of the new and old
// archive after renaming new-side paths through rules.Override, and lists the
// nested archives whose contents must be compared entry by entry.
//
// A rename never shadows a path that exists literally in newMap, and two
// paths never claim the same old name: the lexicographically first wins and
// the other keeps its own name.
func Reconcile(newMap, oldMap checksum.Map, rules Rules) Result {
	rename := resolveNames(newMap, rules.Override)

	result := Result{
		Difference: diff(newMap, oldMap, rename),
		Candidates: make([]Candidate, 0),
	}
	for _, newPath := range newMap.Paths() {
		if !policy.IsNestedArchive(newPath) {
			continue
		}
		oldPath := newPath
		if renamed, ok := rename[newPath]; ok {
			oldPath = renamed
		}
		if rules.Ignored.IsIgnored(newPath) || rules.Ignored.IsIgnored(oldPath) {
			continue
		}
		oldDigest, ok := oldMap.Get(oldPath)
		if !ok {
			// Reported as only-new by the difference; nothing to recurse into.
			continue
		}
		newDigest, _ := newMap.Get(newPath)
		if newDigest == oldDigest {
			continue
		}
		result.Candidates = append(result.Candidates, Candidate{
			NewPath:   newPath,
			OldPath:   oldPath,
			NewDigest: newDigest,
			OldDigest: oldDigest,
		})
	}
	return result
}

func resolveNames(newMap checksum.Map, override policy.FilenameOverride) map[string]string {
	rename := make(map[string]string)
	claimed := make(map[string]struct{})
	for _, newPath := range newMap.Paths() {
		oldPath := override.Resolve(newPath)
		if oldPath == newPath || newMap.Has(oldPath) {
			continue
		}
		if _, taken := claimed[oldPath]; taken {
			continue
		}
		claimed[oldPath] = struct{}{}
		rename[newPath] = oldPath
	}
	return rename
}
