package sqlconn

import (
	"context"
	"database/sql/driver"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// Transient reports whether an error is worth retrying: deadlocks, lock
// waits, dropped or refused connections. Permanent statement errors and
// context cancellation are not. Pass it as the retry classifier when only
// infrastructure hiccups should consume the retry budget.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1040: // too many connections
			return true
		case 1205: // lock wait timeout
			return true
		case 1213: // deadlock
			return true
		}
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08": // connection exception
			return true
		case "40": // transaction rollback, includes serialization failures
			return true
		case "53": // insufficient resources
			return true
		}
		return false
	}

	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "deadlock"):
		return true
	case strings.Contains(s, "lock wait timeout"):
		return true
	case strings.Contains(s, "timeout"):
		return true
	case strings.Contains(s, "connection") && (strings.Contains(s, "refused") ||
		strings.Contains(s, "reset") || strings.Contains(s, "closed")):
		return true
	case strings.Contains(s, "broken pipe") || strings.Contains(s, "eof"):
		return true
	}
	return false
}
