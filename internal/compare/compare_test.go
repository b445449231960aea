package compare_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/google/go-cmp/cmp"

	"WarCompare/internal/checksum"
	"WarCompare/internal/compare"
	coreerrors "WarCompare/internal/errors"
	"WarCompare/internal/metrics"
	"WarCompare/internal/policy"
	"WarCompare/internal/reconcile"
	"WarCompare/internal/ziptest"
)

type fixture struct {
	dir        string
	newArchive string
	oldArchive string
}

func (f fixture) newScratch() string { return filepath.Join(f.dir, "new-extract") }
func (f fixture) oldScratch() string { return filepath.Join(f.dir, "old-extract") }

func newFixture(t *testing.T, newEntries, oldEntries []ziptest.Entry) fixture {
	t.Helper()
	dir := t.TempDir()
	return fixture{
		dir:        dir,
		newArchive: ziptest.Write(t, dir, "new.war", newEntries...),
		oldArchive: ziptest.Write(t, dir, "old.war", oldEntries...),
	}
}

func newComparator(t *testing.T, opts ...compare.Option) *compare.Comparator {
	t.Helper()
	c, err := compare.New(opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func run(t *testing.T, c *compare.Comparator, f fixture) reconcile.Verdict {
	t.Helper()
	verdict, err := c.Compare(f.newArchive, f.newScratch(), f.oldArchive, f.oldScratch())
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	return verdict
}

func TestCompareIdenticalContentWithDifferentTimestamps(t *testing.T) {
	jar := ziptest.Jar(t, "WEB-INF/lib/a.jar", ziptest.File("X.txt", "hello"))
	build := func(ts time.Time) []ziptest.Entry {
		return ziptest.WithModified(ts,
			ziptest.Dir("WEB-INF/"),
			ziptest.File("WEB-INF/web.xml", "<web-app/>"),
			ziptest.File("META-INF/MANIFEST.MF", "Built-At: "+ts.String()+"\n"),
			jar,
		)
	}
	f := newFixture(t,
		build(time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC)),
		build(time.Date(2021, time.June, 7, 8, 9, 10, 0, time.UTC)),
	)

	verdict := run(t, newComparator(t), f)
	if verdict.Different() {
		t.Fatalf("expected no differences, got %v", verdict.Reasons())
	}
}

func TestCompareRebuiltJarWithSameEntriesDiffersAtTopLevelOnly(t *testing.T) {
	build := func(ts time.Time) []ziptest.Entry {
		return []ziptest.Entry{ziptest.Jar(t, "WEB-INF/lib/a.jar", ziptest.WithModified(ts, ziptest.File("X.txt", "hello"))...)}
	}
	f := newFixture(t,
		build(time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC)),
		build(time.Date(2021, time.June, 7, 8, 9, 10, 0, time.UTC)),
	)

	stats := &metrics.Stats{}
	verdict := run(t, newComparator(t, compare.WithStats(stats)), f)
	if diff := cmp.Diff([]string{"diff in war: WEB-INF/lib/a.jar"}, verdict.Reasons()); diff != "" {
		t.Fatalf("reasons mismatch (-want +got):\n%s", diff)
	}
	levels := verdict.Levels()
	if len(levels) != 2 || !levels[1].Difference.Equal() {
		t.Fatalf("nested jar should be compared and found equal: %+v", levels)
	}
	if got := stats.Snapshot().CandidatesCompared; got != 1 {
		t.Fatalf("candidates compared = %d want 1", got)
	}
}

func TestCompareRejectsSharedScratchDir(t *testing.T) {
	f := newFixture(t,
		[]ziptest.Entry{ziptest.Jar(t, "lib/a.jar", ziptest.File("X.txt", "hello"))},
		[]ziptest.Entry{ziptest.Jar(t, "lib/a.jar", ziptest.File("X.txt", "world"))},
	)
	shared := filepath.Join(f.dir, "extract")
	for _, oldScratch := range []string{shared, shared + string(filepath.Separator), filepath.Join(shared, ".")} {
		verdict, err := newComparator(t).Compare(f.newArchive, shared, f.oldArchive, oldScratch)
		if coreerrors.CategoryOf(err) != coreerrors.CategoryInvalidInput {
			t.Fatalf("Compare with old scratch %q: got %v, want invalid input", oldScratch, err)
		}
		if len(verdict.Levels()) != 0 {
			t.Fatalf("partial verdict returned: %v", verdict.Reasons())
		}
	}
}

func TestCompareChangedFileInsideNestedJar(t *testing.T) {
	f := newFixture(t,
		[]ziptest.Entry{ziptest.Jar(t, "lib/a.jar", ziptest.File("X.txt", "hello"))},
		[]ziptest.Entry{ziptest.Jar(t, "lib/a.jar", ziptest.File("X.txt", "world"))},
	)

	stats := &metrics.Stats{}
	verdict := run(t, newComparator(t, compare.WithStats(stats)), f)
	if !verdict.Different() {
		t.Fatal("expected differences")
	}
	if !containsReason(verdict.Reasons(), "diff in jar lib/a.jar: X.txt") {
		t.Fatalf("missing nested reason in %v", verdict.Reasons())
	}
	if !containsReason(verdict.Reasons(), "diff in war: lib/a.jar") {
		t.Fatalf("missing top-level reason in %v", verdict.Reasons())
	}
	if got := stats.Snapshot().CandidatesCompared; got != 1 {
		t.Fatalf("candidates compared = %d want 1", got)
	}
	if _, err := os.Stat(filepath.Join(f.newScratch(), "lib", "a.jar")); err != nil {
		t.Fatalf("nested jar not materialized in new scratch: %v", err)
	}
	if _, err := os.Stat(filepath.Join(f.oldScratch(), "lib", "a.jar")); err != nil {
		t.Fatalf("nested jar not materialized in old scratch: %v", err)
	}
}

func TestCompareFilenameOverride(t *testing.T) {
	jar := ziptest.Build(t, ziptest.File("Util.txt", "util"))
	f := newFixture(t,
		[]ziptest.Entry{{Path: "classpath/util.jar", Body: jar}},
		[]ziptest.Entry{{Path: "util.jar", Body: jar}},
	)

	withOverride := run(t, newComparator(t, compare.WithRules(reconcile.Rules{Override: policy.DefaultOverride()})), f)
	if withOverride.Different() {
		t.Fatalf("expected no differences with override, got %v", withOverride.Reasons())
	}

	without := run(t, newComparator(t, compare.WithRules(reconcile.Rules{Override: policy.Identity()})), f)
	if !containsReason(without.Reasons(), "only in new war: classpath/util.jar") {
		t.Fatalf("expected only-in-new reason, got %v", without.Reasons())
	}
}

func TestCompareIgnoredJarIsNotRecursedInto(t *testing.T) {
	f := newFixture(t,
		[]ziptest.Entry{ziptest.Jar(t, "lib/ignored-vendor.jar", ziptest.File("V.txt", "1"))},
		[]ziptest.Entry{ziptest.Jar(t, "lib/ignored-vendor.jar", ziptest.File("V.txt", "2"))},
	)

	stats := &metrics.Stats{}
	c := newComparator(t,
		compare.WithStats(stats),
		compare.WithRules(reconcile.Rules{
			Override: policy.DefaultOverride(),
			Ignored:  policy.NewIgnoredArchives([]string{"ignored-vendor"}),
		}),
	)
	verdict := run(t, c, f)

	if diff := cmp.Diff([]string{"diff in war: lib/ignored-vendor.jar"}, verdict.Reasons()); diff != "" {
		t.Fatalf("reasons mismatch (-want +got):\n%s", diff)
	}
	if len(verdict.Levels()) != 1 || stats.Snapshot().CandidatesCompared != 0 {
		t.Fatalf("ignored jar was compared: levels=%d candidates=%d", len(verdict.Levels()), stats.Snapshot().CandidatesCompared)
	}
}

func TestCompareRecursesOneLevelOnly(t *testing.T) {
	deepNew := ziptest.Build(t, ziptest.File("deep.txt", "new"))
	deepOld := ziptest.Build(t, ziptest.File("deep.txt", "old"))
	f := newFixture(t,
		[]ziptest.Entry{ziptest.Jar(t, "lib/outer.jar", ziptest.Entry{Path: "lib/inner.jar", Body: deepNew})},
		[]ziptest.Entry{ziptest.Jar(t, "lib/outer.jar", ziptest.Entry{Path: "lib/inner.jar", Body: deepOld})},
	)

	verdict := run(t, newComparator(t), f)
	want := []string{
		"diff in war: lib/outer.jar",
		"comparing jar lib/outer.jar, new: " + digest(t, f, "new") + ", old: " + digest(t, f, "old"),
		"diff in jar lib/outer.jar: lib/inner.jar",
	}
	if diff := cmp.Diff(want, verdict.Reasons()); diff != "" {
		t.Fatalf("reasons mismatch (-want +got):\n%s", diff)
	}
	if len(verdict.Levels()) != 1+compare.MaxNestingDepth {
		t.Fatalf("unexpected levels: %+v", verdict.Levels())
	}
	if _, err := os.Stat(filepath.Join(f.newScratch(), "lib", "inner.jar")); !os.IsNotExist(err) {
		t.Fatalf("archive below the nesting limit was materialized (err=%v)", err)
	}
}

func TestCompareOnlyInOldAndNewAtBothLevels(t *testing.T) {
	f := newFixture(t,
		[]ziptest.Entry{
			ziptest.File("added.txt", "a"),
			ziptest.Jar(t, "lib/a.jar", ziptest.File("keep.txt", "k"), ziptest.File("new.txt", "n")),
		},
		[]ziptest.Entry{
			ziptest.File("removed.txt", "r"),
			ziptest.Jar(t, "lib/a.jar", ziptest.File("keep.txt", "k"), ziptest.File("old.txt", "o")),
		},
	)

	verdict := run(t, newComparator(t), f)
	for _, want := range []string{
		"only in new war: added.txt",
		"only in old war: removed.txt",
		"only in new jar lib/a.jar: new.txt",
		"only in old jar lib/a.jar: old.txt",
	} {
		if !containsReason(verdict.Reasons(), want) {
			t.Fatalf("missing %q in %v", want, verdict.Reasons())
		}
	}
}

func TestCompareIsDeterministic(t *testing.T) {
	f := newFixture(t,
		[]ziptest.Entry{
			ziptest.Jar(t, "lib/z.jar", ziptest.File("b.txt", "1"), ziptest.File("a.txt", "1")),
			ziptest.Jar(t, "lib/m.jar", ziptest.File("x.txt", "1")),
			ziptest.File("c.txt", "new"),
		},
		[]ziptest.Entry{
			ziptest.Jar(t, "lib/m.jar", ziptest.File("x.txt", "2")),
			ziptest.Jar(t, "lib/z.jar", ziptest.File("a.txt", "2"), ziptest.File("b.txt", "2")),
			ziptest.File("c.txt", "old"),
		},
	)

	c := newComparator(t)
	first := run(t, c, f)
	for i := 0; i < 5; i++ {
		again := run(t, c, f)
		if diff := cmp.Diff(first.Reasons(), again.Reasons()); diff != "" {
			t.Fatalf("run %d differs (-first +again):\n%s", i, diff)
		}
		if again.Different() != first.Different() {
			t.Fatalf("run %d flipped the verdict", i)
		}
	}
	levels := first.Levels()
	if len(levels) != 3 || levels[1].Archive != "lib/m.jar" || levels[2].Archive != "lib/z.jar" {
		t.Fatalf("candidates not compared in path order: %+v", levels)
	}
}

func TestCompareLogsBannerAndCandidates(t *testing.T) {
	f := newFixture(t,
		[]ziptest.Entry{ziptest.Jar(t, "lib/a.jar", ziptest.File("X.txt", "hello"))},
		[]ziptest.Entry{ziptest.Jar(t, "lib/a.jar", ziptest.File("X.txt", "world"))},
	)
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelInfo}))

	run(t, newComparator(t, compare.WithLogger(logger)), f)
	out := logs.String()
	for _, want := range []string{"ignoring META-INF files for war and jar files", "comparing jar", "jar=lib/a.jar"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output lacks %q:\n%s", want, out)
		}
	}
}

func TestCompareLegacyPolicySkipsBanner(t *testing.T) {
	f := newFixture(t,
		[]ziptest.Entry{ziptest.File("META-INF/MANIFEST.MF", "a")},
		[]ziptest.Entry{ziptest.File("META-INF/MANIFEST.MF", "b")},
	)
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	extractor, err := checksum.NewExtractor(checksum.WithInclusion(policy.Legacy()))
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}

	verdict := run(t, newComparator(t, compare.WithLogger(logger), compare.WithExtractor(extractor)), f)
	if !verdict.Different() {
		t.Fatal("legacy policy should compare META-INF entries")
	}
	if strings.Contains(logs.String(), "ignoring META-INF") {
		t.Fatalf("banner logged under legacy policy:\n%s", logs.String())
	}
}

func TestCompareFSWithMemoryScratch(t *testing.T) {
	f := newFixture(t,
		[]ziptest.Entry{ziptest.Jar(t, "lib/a.jar", ziptest.File("X.txt", "hello"))},
		[]ziptest.Entry{ziptest.Jar(t, "lib/a.jar", ziptest.File("X.txt", "world"))},
	)
	verdict, err := newComparator(t).CompareFS(f.newArchive, memfs.New(), f.oldArchive, memfs.New())
	if err != nil {
		t.Fatalf("CompareFS: %v", err)
	}
	if !containsReason(verdict.Reasons(), "diff in jar lib/a.jar: X.txt") {
		t.Fatalf("missing nested reason in %v", verdict.Reasons())
	}
}

func TestCompareFatalErrors(t *testing.T) {
	f := newFixture(t,
		[]ziptest.Entry{ziptest.File("a.txt", "a")},
		[]ziptest.Entry{ziptest.File("a.txt", "b")},
	)
	corrupt := filepath.Join(f.dir, "corrupt.war")
	if err := os.WriteFile(corrupt, []byte("PK not really"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	tests := []struct {
		name       string
		newArchive string
		oldArchive string
		category   coreerrors.Category
	}{
		{"missing new", filepath.Join(f.dir, "nope.war"), f.oldArchive, coreerrors.CategoryArchiveRead},
		{"missing old", f.newArchive, filepath.Join(f.dir, "nope.war"), coreerrors.CategoryArchiveRead},
		{"corrupt old", f.newArchive, corrupt, coreerrors.CategoryArchiveRead},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			verdict, err := newComparator(t).Compare(tt.newArchive, f.newScratch(), tt.oldArchive, f.oldScratch())
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if got := coreerrors.CategoryOf(err); got != tt.category {
				t.Fatalf("category = %q want %q (err=%v)", got, tt.category, err)
			}
			if verdict.Different() || len(verdict.Levels()) != 0 {
				t.Fatalf("partial verdict returned: %+v", verdict.Reasons())
			}
		})
	}

	if _, err := newComparator(t).Compare(f.newArchive, "", f.oldArchive, f.oldScratch()); coreerrors.CategoryOf(err) != coreerrors.CategoryInvalidInput {
		t.Fatalf("empty scratch dir: got %v", err)
	}
}

func containsReason(reasons []string, want string) bool {
	for _, reason := range reasons {
		if reason == want {
			return true
		}
	}
	return false
}

// digest returns the digest of lib/outer.jar on one side of f.
func digest(t *testing.T, f fixture, side string) string {
	t.Helper()
	archive := f.newArchive
	if side == "old" {
		archive = f.oldArchive
	}
	extractor, err := checksum.NewExtractor()
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	m, err := extractor.ExtractFile(archive, nil)
	if err != nil {
		t.Fatalf("ExtractFile: %v", err)
	}
	d, _ := m.Get("lib/outer.jar")
	return string(d)
}
