/*
Package stresstest executes SQL statements against a database from many
concurrent workers and reports aggregate latency and error statistics.

# Overview

The package implements a fixed-worker stress engine:
  - One dedicated connection per worker, acquired before execution starts
  - Sequential (wraparound) or uniform random statement selection
  - Per-attempt timeouts with a bounded retry budget
  - A stop condition, either a wall-clock duration or a per-worker count
  - Pure single-threaded finalization into an aggregate report

# Architecture

The package consists of four main components:

 1. Runner (runner.go): run lifecycle, connection acquisition, join barrier
 2. worker (worker.go): per-connection execution loop and retry combinator
 3. Finalize (report.go): aggregate statistics over joined worker results
 4. Dialer/Conn (pool.go): the seam between the engine and a real driver

# Execution Model

A worker owns its WorkerResult exclusively while running. Results are read
only after every worker goroutine has been joined, so no locks guard them.
Each attempted statement produces exactly one entry: a latency sample when
the statement eventually succeeds, an error entry when the retry budget is
spent.

Worker lifecycle:
 1. The runner dials one connection per worker, retrying per the config
 2. A worker that cannot connect is recorded as failed to start
 3. Remaining workers execute until the stop condition or cancellation
 4. The runner joins all workers and finalizes the report

# Cancellation

Cancellation is cooperative. The run context is polled between statements
and between retry attempts; a statement already executing finishes or hits
its own timeout, it is never killed midway. A cancelled run still returns a
complete report over the partial results, marked Cancelled.

# Statistics

Finalize merges the per-worker results into totals, throughput, min, max,
mean and interpolated percentiles (P50, P90, P95, P99). It is pure and
idempotent: calling it again on the same results yields the same report.

LiveStats (tracker.go) is an optional Observer holding an HDR histogram for
real-time progress; it never feeds the final report.

# Example Usage

	source := stresstest.FromStatements(
		"SELECT id FROM users WHERE active = 1",
		"UPDATE counters SET n = n + 1 WHERE id = 7",
	)

	cfg := stresstest.DefaultRunConfig()
	cfg.Workers = 8
	cfg.Stop = stresstest.Duration(30 * time.Second)

	runner, err := stresstest.NewRunner(cfg, source, dialer)
	if err != nil {
		return err
	}

	report, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("executed %d, p95 %s\n", report.TotalExecuted, report.P95)
*/
package stresstest
