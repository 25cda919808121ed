package stresstest

import (
	"context"
	"log/slog"
	"math/rand"
	"time"
)

// worker executes statements on one dedicated connection until its stop
// condition is met or the run context is cancelled. It owns its result
// exclusively; the runner reads it only after the join barrier.
type worker struct {
	id     int
	cfg    *RunConfig
	source *QuerySource
	conn   *poolConn
	result *WorkerResult
	obs    Observer
	log    *slog.Logger

	// cursor is the sequential wraparound position; unused under random
	// selection.
	cursor int

	// limit is the per-worker statement budget, 0 when the run is bounded
	// by a deadline instead.
	limit int
}

// run is the worker loop. Cancellation is cooperative: the run context is
// polled between statements and between retry attempts, never mid-attempt,
// so an in-flight statement always finishes or times out on its own.
func (w *worker) run(ctx context.Context) {
	defer w.conn.release()
	w.obs.WorkerStarted(w.id)
	defer w.obs.WorkerStopped(w.id)

	progress := w.cfg.GetProgressEvery()
	for {
		if ctx.Err() != nil {
			return
		}
		if w.limit > 0 && w.result.Executed >= w.limit {
			return
		}
		idx := w.next()
		w.execute(ctx, idx, w.source.At(idx))
		if progress > 0 && w.result.Executed%progress == 0 {
			w.log.Info("worker progress",
				"worker", w.id,
				"executed", w.result.Executed,
				"failed", w.result.Failed)
		}
	}
}

// next picks the index of the next statement.
func (w *worker) next() int {
	if w.cfg.GetSelection() == SelectRandom {
		return rand.Intn(w.source.Len())
	}
	idx := w.cursor
	w.cursor++
	if w.cursor == w.source.Len() {
		w.cursor = 0
	}
	return idx
}

// execute runs one statement through the retry budget and records exactly
// one result entry for it: a latency sample on success, an error entry on
// failure.
func (w *worker) execute(ctx context.Context, idx int, q QueryRecord) {
	latency, err := attempt(ctx, w.cfg.MaxRetries, w.cfg.retryClassifier(), w.cfg.GetQueryTimeout(), func(attemptCtx context.Context) error {
		return w.conn.exec(attemptCtx, q)
	})
	w.result.Executed++
	if err != nil {
		w.result.Failed++
		w.result.Errors = append(w.result.Errors, QueryError{
			QueryIndex: idx,
			Kind:       Classify(err),
			Message:    err.Error(),
		})
		w.obs.QueryDone(w.id, q, latency, err)
		return
	}
	w.result.Succeeded++
	w.result.Latencies = append(w.result.Latencies, latency)
	w.obs.QueryDone(w.id, q, latency, nil)
}

// attempt runs op up to 1+maxRetries times and returns the duration and
// error of the last attempt. Each attempt gets a fresh timeout detached
// from the run context, so cancelling the run never kills an attempt midway.
// Before each retry the run context and the classifier are consulted; a
// cancelled run or a non-retryable error ends the sequence with the last
// error, so the caller still records the statement.
func attempt(ctx context.Context, maxRetries int, shouldRetry func(error) bool, timeout time.Duration, op func(context.Context) error) (time.Duration, error) {
	var lastErr error
	var lastDur time.Duration
	for try := 0; try <= maxRetries; try++ {
		if try > 0 {
			if ctx.Err() != nil {
				break
			}
			if !shouldRetry(lastErr) {
				break
			}
		}
		attemptCtx, cancel := context.WithTimeout(context.Background(), timeout)
		start := time.Now()
		err := op(attemptCtx)
		lastDur = time.Since(start)
		cancel()
		if err == nil {
			return lastDur, nil
		}
		lastErr = err
	}
	return lastDur, lastErr
}
