package stresstest

import (
	"context"
	"errors"
	"testing"
)

// TestAcquire_RetriesUntilSuccess tests that transient dial failures are
// retried within the budget
func TestAcquire_RetriesUntilSuccess(t *testing.T) {
	dialer := &fakeDialer{failDials: 2}
	cfg := RunConfig{Workers: 1, Stop: QueryCount(1), MaxRetries: 3}

	conn, err := acquire(context.Background(), dialer, &cfg, 0)
	if err != nil {
		t.Fatalf("Expected connection after retries, got: %v", err)
	}
	defer conn.release()

	if dialer.dialCount() != 3 {
		t.Errorf("Expected 3 dials, got: %d", dialer.dialCount())
	}
}

// TestAcquire_Exhausted tests the failure after all attempts
func TestAcquire_Exhausted(t *testing.T) {
	dialErr := errors.New("connection refused")
	dialer := &fakeDialer{dialErr: dialErr}
	cfg := RunConfig{Workers: 1, Stop: QueryCount(1), MaxRetries: 2}

	_, err := acquire(context.Background(), dialer, &cfg, 7)
	if err == nil {
		t.Fatal("Expected error, got nil")
	}

	var cerr *ConnectionError
	if !errors.As(err, &cerr) {
		t.Fatalf("Expected *ConnectionError, got: %T", err)
	}
	if cerr.WorkerID != 7 {
		t.Errorf("Expected worker 7, got: %d", cerr.WorkerID)
	}
	if cerr.Attempts != 3 {
		t.Errorf("Expected 3 attempts, got: %d", cerr.Attempts)
	}
	if !errors.Is(err, dialErr) {
		t.Error("Expected errors.Is to reach the dial error")
	}
}

// TestAcquire_StopsWhenRunCancelled tests that retries stop once the run
// context is cancelled
func TestAcquire_StopsWhenRunCancelled(t *testing.T) {
	dialer := &fakeDialer{dialErr: errors.New("connection refused")}
	cfg := RunConfig{Workers: 1, Stop: QueryCount(1), MaxRetries: 5}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := acquire(ctx, dialer, &cfg, 0)
	if err == nil {
		t.Fatal("Expected error, got nil")
	}

	var cerr *ConnectionError
	if !errors.As(err, &cerr) {
		t.Fatalf("Expected *ConnectionError, got: %T", err)
	}
	if cerr.Attempts != 1 {
		t.Errorf("Expected retries to stop after 1 attempt, got: %d", cerr.Attempts)
	}
}

// TestPoolConn_ReleaseIdempotent tests that release closes the underlying
// connection exactly once
func TestPoolConn_ReleaseIdempotent(t *testing.T) {
	fake := &fakeConn{}
	conn := &poolConn{conn: fake}

	if err := conn.release(); err != nil {
		t.Fatalf("First release failed: %v", err)
	}
	if err := conn.release(); err != nil {
		t.Fatalf("Second release failed: %v", err)
	}

	if got := fake.closeCount(); got != 1 {
		t.Errorf("Expected 1 close, got: %d", got)
	}
}
