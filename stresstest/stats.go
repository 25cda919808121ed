package stresstest

import (
	"time"
)

// WorkerResult is the per-worker tally of one run. Each worker owns its
// result exclusively while running and hands it off at the join barrier;
// nothing mutates a result after that handoff.
type WorkerResult struct {
	WorkerID int `json:"worker_id"`

	// FailedToStart is set when the worker could not acquire a connection.
	// Such a worker executed nothing.
	FailedToStart bool `json:"failed_to_start,omitempty"`

	// Executed counts every attempted statement exactly once, whether it
	// ultimately succeeded or failed.
	Executed int `json:"executed"`

	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`

	// Latencies holds one sample per successful statement, the duration of
	// the attempt that succeeded.
	Latencies []time.Duration `json:"latencies,omitempty"`

	// Errors holds one entry per failed statement.
	Errors []QueryError `json:"errors,omitempty"`
}

// MinLatency returns the smallest recorded latency, 0 when none.
func (r *WorkerResult) MinLatency() time.Duration {
	if len(r.Latencies) == 0 {
		return 0
	}
	min := r.Latencies[0]
	for _, l := range r.Latencies[1:] {
		if l < min {
			min = l
		}
	}
	return min
}

// MaxLatency returns the largest recorded latency, 0 when none.
func (r *WorkerResult) MaxLatency() time.Duration {
	if len(r.Latencies) == 0 {
		return 0
	}
	max := r.Latencies[0]
	for _, l := range r.Latencies[1:] {
		if l > max {
			max = l
		}
	}
	return max
}

// MeanLatency returns the arithmetic mean of the recorded latencies, 0 when
// none.
func (r *WorkerResult) MeanLatency() time.Duration {
	if len(r.Latencies) == 0 {
		return 0
	}
	var sum time.Duration
	for _, l := range r.Latencies {
		sum += l
	}
	return sum / time.Duration(len(r.Latencies))
}

// percentile computes the p-th percentile of an ascending sorted sample
// using linear interpolation between the two nearest ranks.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	index := (p / 100.0) * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	weight := index - float64(lower)
	return time.Duration(float64(sorted[lower])*(1-weight) + float64(sorted[upper])*weight)
}
