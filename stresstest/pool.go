package stresstest

import (
	"context"
	"sync"
)

// Conn is a single dedicated database connection owned by one worker for
// the lifetime of a run. Implementations must be safe to Close more than
// once only if wrapped by the pool; workers only ever see the wrapper.
type Conn interface {
	// Exec runs one statement. The context carries the per-attempt timeout.
	Exec(ctx context.Context, q QueryRecord) error
	Close() error
}

// Dialer produces dedicated connections, one per worker. Implementations
// live outside this package so the engine never touches a concrete driver.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context) (Conn, error) {
	return f(ctx)
}

// acquire dials a dedicated connection for the given worker, retrying up to
// maxRetries additional times. Each attempt gets its own connectTimeout.
// Between attempts the run context is polled so a cancelled run stops
// dialing promptly. Failure is reported as a *ConnectionError carrying the
// attempt count and the last underlying error.
func acquire(ctx context.Context, d Dialer, cfg *RunConfig, workerID int) (*poolConn, error) {
	attempts := 0
	var lastErr error
	for try := 0; try <= cfg.MaxRetries; try++ {
		if try > 0 {
			if err := ctx.Err(); err != nil {
				break
			}
		}
		attempts++
		dialCtx, cancel := context.WithTimeout(ctx, cfg.GetConnectTimeout())
		conn, err := d.Dial(dialCtx)
		cancel()
		if err == nil {
			return &poolConn{conn: conn}, nil
		}
		lastErr = err
	}
	return nil, &ConnectionError{WorkerID: workerID, Attempts: attempts, Err: lastErr}
}

// poolConn wraps a dedicated connection so release is idempotent. Workers
// release on every exit path; the runner releases again on shutdown without
// double-closing the underlying connection.
type poolConn struct {
	conn      Conn
	closeOnce sync.Once
	closeErr  error
}

func (p *poolConn) exec(ctx context.Context, q QueryRecord) error {
	return p.conn.Exec(ctx, q)
}

// release closes the underlying connection exactly once. Later calls return
// the first close error.
func (p *poolConn) release() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.conn.Close()
	})
	return p.closeErr
}
