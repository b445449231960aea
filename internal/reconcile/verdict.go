package reconcile

import (
	"encoding/json"
	"fmt"
	"strings"

	"WarCompare/internal/checksum"
)

// Level is one compared pair of archives: the outer pair, or one nested
// candidate.
type Level struct {
	// Archive is empty for the outer archives and the new-side entry path
	// for nested ones.
	Archive    string          `json:"archive,omitempty"`
	OldArchive string          `json:"old_archive,omitempty"`
	NewDigest  checksum.Digest `json:"new_digest,omitempty"`
	OldDigest  checksum.Digest `json:"old_digest,omitempty"`
	Difference Difference      `json:"difference"`
}

func (l Level) Nested() bool {
	return l.Archive != ""
}

// TopLevel describes the outer archives.
func TopLevel(d Difference) Level {
	return Level{Difference: d}
}

// NestedLevel describes a candidate after its contents were compared.
func NestedLevel(c Candidate, d Difference) Level {
	return Level{
		Archive:    c.NewPath,
		OldArchive: c.OldPath,
		NewDigest:  c.NewDigest,
		OldDigest:  c.OldDigest,
		Difference: d,
	}
}

// Reasons renders the human readable lines for the level. A level without
// differences has none.
func (l Level) Reasons() []string {
	d := l.Difference
	if d.Equal() {
		return nil
	}
	scope := "war"
	reasons := make([]string, 0, 4)
	if l.Nested() {
		scope = "jar " + l.Archive
		reasons = append(reasons, fmt.Sprintf("comparing jar %s, new: %s, old: %s", l.Archive, l.NewDigest, l.OldDigest))
	}
	if len(d.Differing) > 0 {
		reasons = append(reasons, fmt.Sprintf("diff in %s: %s", scope, strings.Join(d.Differing, ", ")))
	}
	if len(d.OnlyNew) > 0 {
		reasons = append(reasons, fmt.Sprintf("only in new %s: %s", scope, strings.Join(d.OnlyNew, ", ")))
	}
	if len(d.OnlyOld) > 0 {
		reasons = append(reasons, fmt.Sprintf("only in old %s: %s", scope, strings.Join(d.OnlyOld, ", ")))
	}
	return reasons
}

// Verdict is the outcome of a comparison. The zero value reports no
// differences. Verdicts are values: With returns a new one and never
// modifies the receiver.
type Verdict struct {
	reasons []string
	levels  []Level
}

// With records a compared level.
func (v Verdict) With(level Level) Verdict {
	reasons := level.Reasons()
	next := Verdict{
		reasons: make([]string, 0, len(v.reasons)+len(reasons)),
		levels:  make([]Level, 0, len(v.levels)+1),
	}
	next.reasons = append(append(next.reasons, v.reasons...), reasons...)
	next.levels = append(append(next.levels, v.levels...), level)
	return next
}

// Different holds exactly when at least one reason was recorded.
func (v Verdict) Different() bool {
	return len(v.reasons) > 0
}

func (v Verdict) Reasons() []string {
	return append([]string(nil), v.reasons...)
}

func (v Verdict) Levels() []Level {
	return append([]Level(nil), v.levels...)
}

func (v Verdict) MarshalJSON() ([]byte, error) {
	reasons := v.reasons
	if reasons == nil {
		reasons = []string{}
	}
	levels := v.levels
	if levels == nil {
		levels = []Level{}
	}
	return json.Marshal(struct {
		Different bool     `json:"different"`
		Reasons   []string `json:"reasons"`
		Levels    []Level  `json:"levels"`
	}{
		Different: v.Different(),
		Reasons:   reasons,
		Levels:    levels,
	})
}
