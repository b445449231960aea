package checksum

import "sort"

// Entry is one scanned archive member.
type Entry struct {
	Path   string
	Digest Digest
}

// Map holds the digests of one archive at one nesting level, keyed by
// slash-separated archive path. It never contains directory entries and
// cannot be modified after construction.
type Map struct {
	entries map[string]Digest
}

// NewMap copies entries.
func NewMap(entries map[string]Digest) Map {
	m := Map{entries: make(map[string]Digest, len(entries))}
	for path, digest := range entries {
		m.entries[path] = digest
	}
	return m
}

func (m Map) Get(path string) (Digest, bool) {
	digest, ok := m.entries[path]
	return digest, ok
}

func (m Map) Has(path string) bool {
	_, ok := m.entries[path]
	return ok
}

func (m Map) Len() int {
	return len(m.entries)
}

// Paths returns every key in lexicographic order.
func (m Map) Paths() []string {
	paths := make([]string, 0, len(m.entries))
	for path := range m.entries {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Entries returns every entry ordered by path.
func (m Map) Entries() []Entry {
	paths := m.Paths()
	entries := make([]Entry, 0, len(paths))
	for _, path := range paths {
		entries = append(entries, Entry{Path: path, Digest: m.entries[path]})
	}
	return entries
}
