package metrics

import (
	"sync/atomic"
	"time"
)

// Stats counts work done by one comparison run. Counters are updated with
// atomics so a progress display may read them while hashing is underway.
type Stats struct {
	ArchivesScanned      int64
	EntriesHashed        int64
	EntriesExcluded      int64
	ArchivesMaterialized int64
	CandidatesCompared   int64
	BytesHashed          int64

	Started  time.Time
	Finished time.Time
}

func (s *Stats) Start() { s.Started = time.Now() }
func (s *Stats) Stop()  { s.Finished = time.Now() }
func (s *Stats) Duration() time.Duration {
	if s.Started.IsZero() {
		return 0
	}
	if s.Finished.IsZero() {
		return time.Since(s.Started)
	}
	return s.Finished.Sub(s.Started)
}

// The helpers below accept a nil receiver so callers can leave stats unset.

func (s *Stats) AddArchive() {
	if s != nil {
		atomic.AddInt64(&s.ArchivesScanned, 1)
	}
}

func (s *Stats) AddHashed(n int64) {
	if s != nil {
		atomic.AddInt64(&s.EntriesHashed, 1)
		atomic.AddInt64(&s.BytesHashed, n)
	}
}

func (s *Stats) AddExcluded() {
	if s != nil {
		atomic.AddInt64(&s.EntriesExcluded, 1)
	}
}

func (s *Stats) AddMaterialized() {
	if s != nil {
		atomic.AddInt64(&s.ArchivesMaterialized, 1)
	}
}

func (s *Stats) AddCandidate() {
	if s != nil {
		atomic.AddInt64(&s.CandidatesCompared, 1)
	}
}
