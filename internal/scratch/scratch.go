// Package scratch manages the directories nested archives are written to
// while a comparison runs.
package scratch

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	coreerrors "WarCompare/internal/errors"
)

// Prepare empties dir, creating it when missing. It refuses to touch the
// filesystem root or the working directory.
func Prepare(dir string) error {
	if err := checkDir(dir); err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return prepareError(fmt.Errorf("clear scratch directory %s: %w", dir, err))
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return prepareError(fmt.Errorf("create scratch directory %s: %w", dir, err))
	}
	return nil
}

// Open returns a filesystem rooted at dir, creating dir when missing. Paths
// are resolved inside dir, symlinks included.
func Open(dir string) (billy.Filesystem, error) {
	if dir == "" {
		return nil, coreerrors.Wrap(fmt.Errorf("scratch directory is empty"), coreerrors.CategoryInvalidInput, coreerrors.CodeUsage, "pass a dedicated directory for extracted archives")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, prepareError(fmt.Errorf("create scratch directory %s: %w", dir, err))
	}
	return osfs.New(dir, osfs.WithBoundOS()), nil
}

func checkDir(dir string) error {
	if dir == "" {
		return coreerrors.Wrap(fmt.Errorf("scratch directory is empty"), coreerrors.CategoryInvalidInput, coreerrors.CodeUsage, "pass a dedicated directory for extracted archives")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return prepareError(fmt.Errorf("resolve scratch directory %s: %w", dir, err))
	}
	cwd, err := os.Getwd()
	if err != nil {
		return prepareError(fmt.Errorf("resolve working directory: %w", err))
	}
	if abs == filepath.Dir(abs) || abs == cwd {
		return coreerrors.Wrap(fmt.Errorf("refusing to clear %s", dir), coreerrors.CategoryInvalidInput, coreerrors.CodeUsage, "pass a dedicated directory for extracted archives")
	}
	return nil
}

func prepareError(err error) error {
	return coreerrors.Wrap(err, coreerrors.CategoryArchiveWrite, coreerrors.CodeScratchPrepare, "check permissions of the scratch directory")
}
