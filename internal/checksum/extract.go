package checksum

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/go-git/go-billy/v5"

	coreerrors "WarCompare/internal/errors"
	"WarCompare/internal/metrics"
	"WarCompare/internal/policy"
)

// Extractor scans zip archives into checksum maps.
type Extractor struct {
	algorithm  Algorithm
	inclusion  *policy.Inclusion
	logger     *slog.Logger
	stats      *metrics.Stats
	onProgress func(n int64)
}

type Option func(*Extractor)

func WithAlgorithm(algorithm Algorithm) Option {
	return func(e *Extractor) {
		e.algorithm = algorithm
	}
}

func WithInclusion(inclusion *policy.Inclusion) Option {
	return func(e *Extractor) {
		e.inclusion = inclusion
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

func WithStats(stats *metrics.Stats) Option {
	return func(e *Extractor) {
		e.stats = stats
	}
}

// WithProgress registers a callback receiving hashed byte counts.
func WithProgress(onProgress func(n int64)) Option {
	return func(e *Extractor) {
		e.onProgress = onProgress
	}
}

func NewExtractor(opts ...Option) (*Extractor, error) {
	e := &Extractor{
		algorithm: DefaultAlgorithm,
		inclusion: policy.Standard(),
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	if _, err := newHasher(e.algorithm); err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CategoryInvalidConfig, coreerrors.CodeConfig, "choose one of SHA256, SHA1, SHA384, SHA512, MD5, XXH3")
	}
	if e.inclusion == nil {
		e.inclusion = policy.Standard()
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	return e, nil
}

func (e *Extractor) Algorithm() Algorithm {
	return e.algorithm
}

func (e *Extractor) Inclusion() *policy.Inclusion {
	return e.inclusion
}

// ExtractFile scans the archive at archivePath on the local filesystem.
func (e *Extractor) ExtractFile(archivePath string, scratch billy.Filesystem) (Map, error) {
	// #nosec G304 -- archive path is explicit caller input.
	file, err := os.Open(archivePath)
	if err != nil {
		return Map{}, readError(coreerrors.CodeArchiveOpen, fmt.Errorf("open archive %s: %w", archivePath, err))
	}
	defer func() {
		_ = file.Close()
	}()
	info, err := file.Stat()
	if err != nil {
		return Map{}, readError(coreerrors.CodeArchiveOpen, fmt.Errorf("stat archive %s: %w", archivePath, err))
	}
	return e.Extract(file, info.Size(), archivePath, scratch)
}

// ExtractFS scans the archive stored at name inside fsys, typically a nested
// archive materialized by an earlier scan.
func (e *Extractor) ExtractFS(fsys billy.Filesystem, name string, scratch billy.Filesystem) (Map, error) {
	label := fsys.Join(fsys.Root(), name)
	file, err := fsys.Open(name)
	if err != nil {
		return Map{}, readError(coreerrors.CodeArchiveOpen, fmt.Errorf("open archive %s: %w", label, err))
	}
	defer func() {
		_ = file.Close()
	}()
	info, err := fsys.Stat(name)
	if err != nil {
		return Map{}, readError(coreerrors.CodeArchiveOpen, fmt.Errorf("stat archive %s: %w", label, err))
	}
	return e.Extract(file, info.Size(), label, scratch)
}

// Extract computes a digest for every included entry of the archive in r.
// label names the archive in logs and errors.
//
// Nested archives are written to scratch under their entry path and hashed
// from the written file, so the digest always describes the bytes a later
// scan will read. With a nil scratch they are hashed in-stream like any
// other entry.
func (e *Extractor) Extract(r io.ReaderAt, size int64, label string, scratch billy.Filesystem) (Map, error) {
	reader, err := zip.NewReader(r, size)
	// Insecure names are rejected per entry, and only when they would be written.
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return Map{}, readError(coreerrors.CodeArchiveOpen, fmt.Errorf("open archive %s: %w", label, err))
	}
	e.stats.AddArchive()
	e.logger.Debug("scanning archive", "archive", label, "entries", len(reader.File), "materialize", scratch != nil)

	entries := make(map[string]Digest, len(reader.File))
	for _, file := range reader.File {
		name := file.Name
		if !e.inclusion.Include(name, file.FileInfo().IsDir()) {
			if !file.FileInfo().IsDir() {
				e.stats.AddExcluded()
				e.logger.Debug("entry excluded", "archive", label, "entry", name)
			}
			continue
		}
		if _, dup := entries[name]; dup {
			e.logger.Warn("duplicate entry, keeping last", "archive", label, "entry", name)
		}

		var digest Digest
		var n int64
		if scratch != nil && policy.IsNestedArchive(name) {
			digest, n, err = e.materialize(file, scratch, label)
		} else {
			digest, n, err = e.hashEntry(file, label)
		}
		if err != nil {
			return Map{}, err
		}
		e.stats.AddHashed(n)
		entries[name] = digest
	}
	return NewMap(entries), nil
}

func (e *Extractor) hashEntry(file *zip.File, label string) (Digest, int64, error) {
	src, err := file.Open()
	if err != nil {
		return "", 0, readError(coreerrors.CodeEntryRead, fmt.Errorf("open entry %s in %s: %w", file.Name, label, err))
	}
	defer func() {
		_ = src.Close()
	}()
	digest, n, err := HashReader(e.algorithm, src, e.onProgress)
	if err != nil {
		return "", 0, readError(coreerrors.CodeEntryRead, fmt.Errorf("read entry %s in %s: %w", file.Name, label, err))
	}
	return digest, n, nil
}

func (e *Extractor) materialize(file *zip.File, scratch billy.Filesystem, label string) (Digest, int64, error) {
	target := filepath.FromSlash(file.Name)
	if !filepath.IsLocal(target) {
		return "", 0, writeError(fmt.Errorf("materialize entry %s in %s: path escapes scratch directory", file.Name, label))
	}
	if parent := path.Dir(file.Name); parent != "." {
		if err := scratch.MkdirAll(filepath.FromSlash(parent), 0o750); err != nil {
			return "", 0, writeError(fmt.Errorf("create directory for %s in %s: %w", file.Name, scratch.Root(), err))
		}
	}
	if err := e.copyEntry(file, scratch, target, label); err != nil {
		return "", 0, err
	}
	e.stats.AddMaterialized()
	e.logger.Debug("nested archive materialized", "archive", label, "entry", file.Name, "scratch", scratch.Root())

	written, err := scratch.Open(target)
	if err != nil {
		return "", 0, readError(coreerrors.CodeEntryRead, fmt.Errorf("reopen %s in %s: %w", file.Name, scratch.Root(), err))
	}
	defer func() {
		_ = written.Close()
	}()
	digest, n, err := HashReader(e.algorithm, written, e.onProgress)
	if err != nil {
		return "", 0, readError(coreerrors.CodeEntryRead, fmt.Errorf("read %s in %s: %w", file.Name, scratch.Root(), err))
	}
	return digest, n, nil
}

func (e *Extractor) copyEntry(file *zip.File, scratch billy.Filesystem, target, label string) error {
	src, err := file.Open()
	if err != nil {
		return readError(coreerrors.CodeEntryRead, fmt.Errorf("open entry %s in %s: %w", file.Name, label, err))
	}
	defer func() {
		_ = src.Close()
	}()

	dst, err := scratch.Create(target)
	if err != nil {
		return writeError(fmt.Errorf("create %s in %s: %w", file.Name, scratch.Root(), err))
	}
	tracked := &readTracker{r: src}
	if _, err := io.Copy(dst, tracked); err != nil {
		_ = dst.Close()
		if tracked.err != nil {
			return readError(coreerrors.CodeEntryRead, fmt.Errorf("read entry %s in %s: %w", file.Name, label, err))
		}
		return writeError(fmt.Errorf("write %s in %s: %w", file.Name, scratch.Root(), err))
	}
	if err := dst.Close(); err != nil {
		return writeError(fmt.Errorf("close %s in %s: %w", file.Name, scratch.Root(), err))
	}
	return nil
}

// readTracker remembers whether a copy failed on the reading side.
type readTracker struct {
	r   io.Reader
	err error
}

func (t *readTracker) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		t.err = err
	}
	return n, err
}

func readError(code string, err error) error {
	return coreerrors.Wrap(err, coreerrors.CategoryArchiveRead, code, "check that the archive exists, is readable and is a valid zip")
}

func writeError(err error) error {
	return coreerrors.Wrap(err, coreerrors.CategoryArchiveWrite, coreerrors.CodeMaterialize, "check free space and permissions of the scratch directory")
}
