package stresstest

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// LiveStats is an Observer that aggregates progress while the run is still
// executing, for dashboards or periodic progress dumps. The final report
// comes from Finalize, not from here; live percentiles are approximate
// (3 significant figures).
type LiveStats struct {
	executed uint64
	success  uint64
	failure  uint64
	active   int64

	mu   sync.Mutex
	hist *hdrhistogram.Histogram
}

// NewLiveStats returns an empty tracker. The latency histogram covers 1us
// to 10min at 3 significant figures.
func NewLiveStats() *LiveStats {
	return &LiveStats{
		hist: hdrhistogram.New(1, int64(10*time.Minute/time.Microsecond), 3),
	}
}

func (s *LiveStats) WorkerStarted(int) {
	atomic.AddInt64(&s.active, 1)
}

func (s *LiveStats) WorkerStopped(int) {
	atomic.AddInt64(&s.active, -1)
}

func (s *LiveStats) QueryDone(_ int, _ QueryRecord, latency time.Duration, err error) {
	atomic.AddUint64(&s.executed, 1)
	if err != nil {
		atomic.AddUint64(&s.failure, 1)
		return
	}
	atomic.AddUint64(&s.success, 1)

	us := latency.Microseconds()
	if us < 1 {
		us = 1
	}
	s.mu.Lock()
	if us > s.hist.HighestTrackableValue() {
		us = s.hist.HighestTrackableValue()
	}
	s.hist.RecordValue(us)
	s.mu.Unlock()
}

// LiveSnapshot is a point-in-time copy of the tracker's counters.
type LiveSnapshot struct {
	Executed      uint64
	Success       uint64
	Failure       uint64
	ActiveWorkers int

	P50         time.Duration
	P95         time.Duration
	P99         time.Duration
	MeanLatency time.Duration
	MaxLatency  time.Duration
}

// Snapshot reads the counters and histogram without stopping the run.
func (s *LiveStats) Snapshot() LiveSnapshot {
	snap := LiveSnapshot{
		Executed:      atomic.LoadUint64(&s.executed),
		Success:       atomic.LoadUint64(&s.success),
		Failure:       atomic.LoadUint64(&s.failure),
		ActiveWorkers: int(atomic.LoadInt64(&s.active)),
	}
	s.mu.Lock()
	if s.hist.TotalCount() > 0 {
		snap.P50 = time.Duration(s.hist.ValueAtQuantile(50)) * time.Microsecond
		snap.P95 = time.Duration(s.hist.ValueAtQuantile(95)) * time.Microsecond
		snap.P99 = time.Duration(s.hist.ValueAtQuantile(99)) * time.Microsecond
		snap.MeanLatency = time.Duration(s.hist.Mean() * float64(time.Microsecond))
		snap.MaxLatency = time.Duration(s.hist.Max()) * time.Microsecond
	}
	s.mu.Unlock()
	return snap
}

// ErrorRate returns failed statements as a percentage of executed, 0 when
// nothing has executed yet.
func (s *LiveStats) ErrorRate() float64 {
	executed := atomic.LoadUint64(&s.executed)
	if executed == 0 {
		return 0
	}
	failed := atomic.LoadUint64(&s.failure)
	return float64(failed) / float64(executed) * 100
}
