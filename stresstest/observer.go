package stresstest

import "time"

// Observer receives callbacks while a run is executing. Callbacks fire from
// worker goroutines, so implementations must be safe for concurrent use.
// Keep them cheap: they run on the hot path.
type Observer interface {
	WorkerStarted(workerID int)
	WorkerStopped(workerID int)

	// QueryDone fires once per attempted statement after its retry budget
	// is spent. latency is the duration of the final attempt; err is nil on
	// success.
	QueryDone(workerID int, q QueryRecord, latency time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) WorkerStarted(int)                                {}
func (nopObserver) WorkerStopped(int)                                {}
func (nopObserver) QueryDone(int, QueryRecord, time.Duration, error) {}

// MultiObserver fans each callback out to every observer in order.
type MultiObserver []Observer

func (m MultiObserver) WorkerStarted(workerID int) {
	for _, o := range m {
		o.WorkerStarted(workerID)
	}
}

func (m MultiObserver) WorkerStopped(workerID int) {
	for _, o := range m {
		o.WorkerStopped(workerID)
	}
}

func (m MultiObserver) QueryDone(workerID int, q QueryRecord, latency time.Duration, err error) {
	for _, o := range m {
		o.QueryDone(workerID, q, latency, err)
	}
}
