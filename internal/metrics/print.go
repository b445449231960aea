package metrics

import (
	"fmt"
	"io"
	"sync/atomic"
)

type Snapshot struct {
	DurationMs           int64
	ArchivesScanned      int64
	EntriesHashed        int64
	EntriesExcluded      int64
	ArchivesMaterialized int64
	CandidatesCompared   int64
	BytesHashed          int64
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		DurationMs:           s.Duration().Milliseconds(),
		ArchivesScanned:      atomic.LoadInt64(&s.ArchivesScanned),
		EntriesHashed:        atomic.LoadInt64(&s.EntriesHashed),
		EntriesExcluded:      atomic.LoadInt64(&s.EntriesExcluded),
		ArchivesMaterialized: atomic.LoadInt64(&s.ArchivesMaterialized),
		CandidatesCompared:   atomic.LoadInt64(&s.CandidatesCompared),
		BytesHashed:          atomic.LoadInt64(&s.BytesHashed),
	}
}

func Print(w io.Writer, s *Stats) {
	snap := s.Snapshot()

	fmt.Fprintln(w, "--- stats ---")
	fmt.Fprintln(w, "duration_ms:", snap.DurationMs)
	fmt.Fprintln(w, "archives_scanned:", snap.ArchivesScanned)
	fmt.Fprintln(w, "entries_hashed:", snap.EntriesHashed)
	fmt.Fprintln(w, "entries_excluded:", snap.EntriesExcluded)
	fmt.Fprintln(w, "archives_materialized:", snap.ArchivesMaterialized)
	fmt.Fprintln(w, "candidates_compared:", snap.CandidatesCompared)
	fmt.Fprintln(w, "bytes_hashed:", snap.BytesHashed)

	if snap.DurationMs > 0 {
		secs := float64(snap.DurationMs) / 1000.0
		bps := float64(snap.BytesHashed) / secs
		fmt.Fprintln(w, "throughput_bytes_per_sec:", bps)
		fmt.Fprintln(w, "throughput_mb_per_sec:", bps/1_000_000.0)
	}
}
