package stresstest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

// ErrorKind groups execution failures for the report's error breakdown.
type ErrorKind string

const (
	ErrKindConnection ErrorKind = "connection"
	ErrKindQuery      ErrorKind = "query"
	ErrKindTimeout    ErrorKind = "timeout"
	ErrKindCancelled  ErrorKind = "cancelled"
)

// ConfigError reports an invalid RunConfig or an unusable query source.
// It is the only error that aborts a run before any connection attempt.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid run config: " + e.Reason
}

// ConnectionError reports a worker whose connection could not be
// established after all attempts. A single ConnectionError marks that
// worker failed-to-start; the run as a whole fails only when every worker
// ends up here.
type ConnectionError struct {
	WorkerID int
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("worker %d: connection failed after %d attempts: %v", e.WorkerID, e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// QueryError is one recorded execution failure: a statement that still
// failed after its retries were exhausted. QueryIndex is -1 for
// failed-to-start connection entries.
type QueryError struct {
	QueryIndex int       `json:"query_index"`
	Kind       ErrorKind `json:"kind"`
	Message    string    `json:"message"`
}

func (e QueryError) Error() string {
	return fmt.Sprintf("query %d: %s: %s", e.QueryIndex, e.Kind, e.Message)
}

// Classify maps an execution error to the kind it is counted under.
// Timeouts are tracked separately from other query failures so the report
// distinguishes slow statements from broken ones.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return ErrKindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ErrKindCancelled
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrKindTimeout
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") {
		return ErrKindTimeout
	}
	return ErrKindQuery
}

// defaultRetryClassifier retries every failure except a cancelled attempt.
// Callers that only want transient failures retried can install a stricter
// classifier via RunConfig.RetryClassifier.
func defaultRetryClassifier(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, context.Canceled)
}
