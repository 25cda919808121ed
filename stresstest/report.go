package stresstest

import (
	"sort"
	"time"
)

// Run status values, stamped by the runner after finalization.
const (
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// AggregateReport is the single-threaded summary of a finished run. Finalize
// fills the statistical fields; the runner stamps identity, timestamps and
// status afterwards.
type AggregateReport struct {
	RunID     string    `json:"run_id,omitempty"`
	StartedAt time.Time `json:"started_at,omitzero"`
	EndedAt   time.Time `json:"ended_at,omitzero"`

	// Status is one of StatusCompleted, StatusCancelled or StatusFailed.
	Status string `json:"status,omitempty"`

	// Cancelled marks a run stopped early by the caller. Partial results
	// are kept, never discarded.
	Cancelled bool `json:"cancelled,omitempty"`

	TotalExecuted int `json:"total_executed"`
	TotalSuccess  int `json:"total_success"`
	TotalFailure  int `json:"total_failure"`

	Elapsed time.Duration `json:"elapsed"`

	// Throughput is executed statements per second of elapsed wall time,
	// 0 when nothing ran or no time passed.
	Throughput float64 `json:"throughput"`

	MinLatency  time.Duration `json:"min_latency"`
	MaxLatency  time.Duration `json:"max_latency"`
	MeanLatency time.Duration `json:"mean_latency"`
	P50         time.Duration `json:"p50"`
	P90         time.Duration `json:"p90"`
	P95         time.Duration `json:"p95"`
	P99         time.Duration `json:"p99"`

	// Workers is the per-worker breakdown keyed by worker ID.
	Workers map[int]WorkerResult `json:"workers"`

	// ErrorsByKind counts failure entries grouped by error kind.
	ErrorsByKind map[ErrorKind]int `json:"errors_by_kind,omitempty"`
}

// Finalize merges worker results into an aggregate report. It is pure: it
// reads the results, writes nothing back, and returns the same report for
// the same inputs no matter how often it runs. Call it only after all
// workers have been joined.
func Finalize(results []WorkerResult, elapsed time.Duration) *AggregateReport {
	report := &AggregateReport{
		Elapsed: elapsed,
		Workers: make(map[int]WorkerResult, len(results)),
	}

	var samples []time.Duration
	for _, r := range results {
		report.TotalExecuted += r.Executed
		report.TotalSuccess += r.Succeeded
		report.TotalFailure += r.Failed
		samples = append(samples, r.Latencies...)
		for _, e := range r.Errors {
			if report.ErrorsByKind == nil {
				report.ErrorsByKind = make(map[ErrorKind]int)
			}
			report.ErrorsByKind[e.Kind]++
		}
		report.Workers[r.WorkerID] = r
	}

	if report.TotalExecuted > 0 && elapsed > 0 {
		report.Throughput = float64(report.TotalExecuted) / elapsed.Seconds()
	}

	if len(samples) == 0 {
		return report
	}

	sort.Slice(samples, func(i, j int) bool {
		return samples[i] < samples[j]
	})

	report.MinLatency = samples[0]
	report.MaxLatency = samples[len(samples)-1]

	var sum time.Duration
	for _, s := range samples {
		sum += s
	}
	report.MeanLatency = sum / time.Duration(len(samples))

	report.P50 = percentile(samples, 50)
	report.P90 = percentile(samples, 90)
	report.P95 = percentile(samples, 95)
	report.P99 = percentile(samples, 99)

	return report
}
