// Package ziptest builds war and jar fixtures for tests.
package ziptest

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Entry abstracts an archive member. Entries whose Path ends in "/" are directories.
type Entry struct {
	Path     string
	Body     []byte
	Modified time.Time
}

func File(path, body string) Entry {
	return Entry{Path: path, Body: []byte(body)}
}

func Dir(path string) Entry {
	return Entry{Path: path}
}

// Jar nests another archive as a member.
func Jar(t testing.TB, path string, entries ...Entry) Entry {
	t.Helper()
	return Entry{Path: path, Body: Build(t, entries...)}
}

// Build returns the bytes of a zip holding entries in the given order.
func Build(t testing.TB, entries ...Entry) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	for _, entry := range entries {
		header := &zip.FileHeader{
			Name:   entry.Path,
			Method: zip.Deflate,
		}
		if !entry.Modified.IsZero() {
			header.Modified = entry.Modified
		}
		if len(entry.Path) > 0 && entry.Path[len(entry.Path)-1] == '/' {
			header.Method = zip.Store
		}
		f, err := w.CreateHeader(header)
		if err != nil {
			t.Fatalf("create zip entry %s: %v", entry.Path, err)
		}
		if _, err := f.Write(entry.Body); err != nil {
			t.Fatalf("write zip entry %s: %v", entry.Path, err)
		}
	}

	if err := w.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
	return buf.Bytes()
}

// Write stores a zip built from entries at dir/name and returns its path.
func Write(t testing.TB, dir, name string, entries ...Entry) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		t.Fatalf("create parent directory for %s: %v", p, err)
	}
	if err := os.WriteFile(p, Build(t, entries...), 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

// WithModified returns a copy of entries stamped with ts.
func WithModified(ts time.Time, entries ...Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, entry := range entries {
		entry.Modified = ts
		out[i] = entry
	}
	return out
}
