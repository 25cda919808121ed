package stresstest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// State is the runner lifecycle state.
type State int32

const (
	StateInit State = iota
	StateConnecting
	StateRunning
	StateStopping
	StateDone
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateConnecting:
		return "connecting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateDone:
		return "done"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Runner executes one stress run: it acquires a dedicated connection per
// worker, drives the workers to the stop condition, joins them, and
// finalizes the aggregate report. A Runner is single-use.
type Runner struct {
	cfg    RunConfig
	source *QuerySource
	dialer Dialer
	runID  string

	state     int32 // State, accessed atomically
	cancelled int32
}

// NewRunner validates the configuration and prepares a run. The query
// source must hold at least one statement.
func NewRunner(cfg RunConfig, source *QuerySource, dialer Dialer) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if source.Len() == 0 {
		return nil, &ConfigError{Reason: "query source is empty"}
	}
	if dialer == nil {
		return nil, &ConfigError{Reason: "a dialer is required"}
	}
	return &Runner{
		cfg:    cfg,
		source: source,
		dialer: dialer,
		runID:  uuid.NewString(),
	}, nil
}

// RunID returns the identifier stamped on this run's report.
func (r *Runner) RunID() string {
	return r.runID
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	return State(atomic.LoadInt32(&r.state))
}

func (r *Runner) transition(from, to State) bool {
	return atomic.CompareAndSwapInt32(&r.state, int32(from), int32(to))
}

// Run executes the stress run to completion and returns the finalized
// report.
//
// All connections are acquired before any statement executes. A worker
// whose connection cannot be acquired is recorded as failed to start and
// the rest of the run proceeds; only when no worker at all could connect
// does Run return an error (a *ConnectionError) alongside the degenerate
// report.
//
// Cancelling ctx stops the run cooperatively: in-flight attempts finish or
// time out on their own, workers exit at the next poll point, and the
// partial results are finalized with Cancelled set. A cancelled run returns
// a nil error.
func (r *Runner) Run(ctx context.Context) (*AggregateReport, error) {
	if !r.transition(StateInit, StateConnecting) {
		return nil, fmt.Errorf("runner already started")
	}

	log := r.cfg.logger()
	startedAt := time.Now()
	log.Info("stress run starting",
		"run_id", r.runID,
		"workers", r.cfg.Workers,
		"stop", r.cfg.Stop.String(),
		"selection", string(r.cfg.GetSelection()),
		"queries", r.source.Len())

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]WorkerResult, r.cfg.Workers)
	for i := range results {
		results[i].WorkerID = i
	}

	conns := make([]*poolConn, r.cfg.Workers)
	defer func() {
		for _, c := range conns {
			if c != nil {
				c.release()
			}
		}
	}()

	started := 0
	var firstConnErr error
	for i := 0; i < r.cfg.Workers; i++ {
		conn, err := acquire(runCtx, r.dialer, &r.cfg, i)
		if err != nil {
			results[i].FailedToStart = true
			results[i].Errors = append(results[i].Errors, QueryError{
				QueryIndex: -1,
				Kind:       ErrKindConnection,
				Message:    err.Error(),
			})
			var cerr *ConnectionError
			if errors.As(err, &cerr) {
				log.Warn("worker failed to connect",
					"worker", i,
					"attempts", cerr.Attempts,
					"error", cerr.Err)
			}
			if firstConnErr == nil {
				firstConnErr = err
			}
			continue
		}
		conns[i] = conn
		started++
	}

	if started == 0 {
		atomic.StoreInt32(&r.state, int32(StateDone))
		report := Finalize(results, 0)
		r.stamp(report, startedAt, StatusFailed, false)
		log.Error("stress run failed, no worker could connect",
			"run_id", r.runID,
			"workers", r.cfg.Workers)
		return report, firstConnErr
	}

	// Decide the stop mode once, before any worker starts.
	var limit int
	var deadline time.Duration
	switch m := r.cfg.Stop.(type) {
	case countMode:
		limit = m.n
	case durationMode:
		deadline = m.d
	}

	atomic.StoreInt32(&r.state, int32(StateRunning))
	execStart := time.Now()

	if deadline > 0 {
		timer := time.AfterFunc(deadline, func() {
			r.transition(StateRunning, StateStopping)
			cancel()
		})
		defer timer.Stop()
	}

	// Watch for caller cancellation until the workers are joined. A run
	// stopped by its own deadline is completed, not cancelled.
	drained := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			atomic.StoreInt32(&r.cancelled, 1)
			r.transition(StateRunning, StateStopping)
		case <-drained:
		}
	}()

	var wg sync.WaitGroup
	for i := range conns {
		if conns[i] == nil {
			continue
		}
		w := &worker{
			id:     i,
			cfg:    &r.cfg,
			source: r.source,
			conn:   conns[i],
			result: &results[i],
			obs:    r.cfg.observer(),
			log:    log,
			limit:  limit,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.run(runCtx)
		}()
	}

	// Join barrier: past this point the results are exclusively ours.
	wg.Wait()
	elapsed := time.Since(execStart)
	close(drained)
	r.transition(StateRunning, StateStopping)

	report := Finalize(results, elapsed)
	if atomic.LoadInt32(&r.cancelled) == 1 {
		atomic.StoreInt32(&r.state, int32(StateCancelled))
		r.stamp(report, startedAt, StatusCancelled, true)
		log.Warn("stress run cancelled",
			"run_id", r.runID,
			"executed", report.TotalExecuted,
			"elapsed", elapsed)
		return report, nil
	}

	atomic.StoreInt32(&r.state, int32(StateDone))
	r.stamp(report, startedAt, StatusCompleted, false)
	log.Info("stress run completed",
		"run_id", r.runID,
		"executed", report.TotalExecuted,
		"succeeded", report.TotalSuccess,
		"failed", report.TotalFailure,
		"throughput", report.Throughput,
		"elapsed", elapsed)
	return report, nil
}

func (r *Runner) stamp(report *AggregateReport, startedAt time.Time, status string, cancelled bool) {
	report.RunID = r.runID
	report.StartedAt = startedAt
	report.EndedAt = time.Now()
	report.Status = status
	report.Cancelled = cancelled
}
