package progress

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"WarCompare/internal/metrics"
)

type SnapshotFn func() metrics.Snapshot

// Bar shows bytes hashed across all archives of a run. The total is unknown
// up front, so the bar spins instead of filling.
type Bar struct {
	bar        *progressbar.ProgressBar
	ch         chan int64
	done       chan struct{}
	stop       chan struct{}
	tickerDone chan struct{}

	snap   SnapshotFn
	lastB  int64
	lastAt time.Time
}

func New(w io.Writer, snap SnapshotFn) *Bar {
	return newBar(w, snap, time.Second)
}

func newBar(w io.Writer, snap SnapshotFn, every time.Duration) *Bar {
	b := &Bar{
		ch:         make(chan int64, 16384),
		done:       make(chan struct{}),
		stop:       make(chan struct{}),
		tickerDone: make(chan struct{}),
		snap:       snap,
		lastAt:     time.Now(),
	}

	b.bar = progressbar.NewOptions64(
		-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionSetDescription("hashing"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(120*time.Millisecond),
	)

	_ = b.bar.RenderBlank()
	go func() {
		defer close(b.done)
		for n := range b.ch {
			_ = b.bar.Add64(n)
		}
		_ = b.bar.Finish()
	}()

	go func() {
		defer close(b.tickerDone)
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				b.updateDescription()
			case <-b.stop:
				return
			}
		}
	}()

	return b
}

// AddBytes matches the extractor's progress callback.
func (b *Bar) AddBytes(n int64) {
	if n <= 0 {
		return
	}
	b.ch <- n
}

// Close flushes pending bytes and returns once the bar has stopped reading
// its snapshot.
func (b *Bar) Close() {
	close(b.stop)
	<-b.tickerDone
	close(b.ch)
	<-b.done
}

func (b *Bar) updateDescription() {
	if b.snap == nil {
		return
	}
	snap := b.snap()

	now := time.Now()
	dt := now.Sub(b.lastAt).Seconds()

	mbps := 0.0
	if dt > 0 {
		dBytes := snap.BytesHashed - b.lastB
		mbps = (float64(dBytes) / 1_000_000.0) / dt
	}

	b.lastB = snap.BytesHashed
	b.lastAt = now

	b.bar.Describe(describe(snap, mbps))
}

func describe(snap metrics.Snapshot, mbps float64) string {
	return fmt.Sprintf("hashing | archives=%d entries=%d excluded=%d jars=%d compared=%d | %.1f MB/s",
		snap.ArchivesScanned, snap.EntriesHashed, snap.EntriesExcluded, snap.ArchivesMaterialized, snap.CandidatesCompared, mbps,
	)
}
