// Package sqlconn adapts database/sql drivers to the stress engine. It
// builds DSNs for the supported drivers, pins the pool size to the worker
// count so every worker keeps a dedicated connection, and executes read
// statements with a full result drain so measured latencies include row
// transfer.
package sqlconn

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/studiowebux/sqlstress/stresstest"
)

// Supported driver names, as registered by their database/sql drivers.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

const (
	defaultMySQLPort    = 3306
	defaultPostgresPort = 5432
)

// Config describes a database target.
type Config struct {
	Driver   string `json:"driver"`
	Host     string `json:"host"`
	Port     int    `json:"port,omitempty"`
	User     string `json:"user"`
	Password string `json:"password,omitempty"`
	Database string `json:"database"`

	// Charset applies to MySQL only. Defaults to utf8mb4.
	Charset string `json:"charset,omitempty"`

	// SSLMode applies to PostgreSQL only. Defaults to disable.
	SSLMode string `json:"ssl_mode,omitempty"`

	// Params are appended to the DSN as extra driver parameters, in
	// sorted key order.
	Params map[string]string `json:"params,omitempty"`

	// ConnMaxLifetime bounds how long a pooled connection may be reused.
	// Zero means unlimited.
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime,omitempty"`
}

// Validate checks the target description before any connection is opened.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverMySQL, DriverPostgres:
		if c.Host == "" {
			return fmt.Errorf("%s: host is required", c.Driver)
		}
		if c.User == "" {
			return fmt.Errorf("%s: user is required", c.Driver)
		}
		if c.Database == "" {
			return fmt.Errorf("%s: database is required", c.Driver)
		}
		if c.Port < 0 || c.Port > 65535 {
			return fmt.Errorf("%s: port %d out of range", c.Driver, c.Port)
		}
	case DriverSQLite:
		if c.Database == "" {
			return fmt.Errorf("sqlite3: database path is required")
		}
	case "":
		return fmt.Errorf("driver is required")
	default:
		return fmt.Errorf("unsupported driver %q", c.Driver)
	}
	return nil
}

// DSN renders the driver-specific connection string.
func (c Config) DSN() (string, error) {
	switch c.Driver {
	case DriverMySQL:
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=true",
			c.User, c.Password, c.Host, c.port(), c.Database, c.charset())
		for _, kv := range c.sortedParams() {
			dsn += "&" + kv.key + "=" + kv.value
		}
		return dsn, nil
	case DriverPostgres:
		dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
			c.Host, c.port(), c.Database, c.User, c.Password, c.sslMode())
		for _, kv := range c.sortedParams() {
			dsn += " " + kv.key + "=" + kv.value
		}
		return dsn, nil
	case DriverSQLite:
		return c.Database, nil
	default:
		return "", fmt.Errorf("unsupported driver %q", c.Driver)
	}
}

func (c Config) port() int {
	if c.Port > 0 {
		return c.Port
	}
	if c.Driver == DriverPostgres {
		return defaultPostgresPort
	}
	return defaultMySQLPort
}

func (c Config) charset() string {
	if c.Charset != "" {
		return c.Charset
	}
	return "utf8mb4"
}

func (c Config) sslMode() string {
	if c.SSLMode != "" {
		return c.SSLMode
	}
	return "disable"
}

type param struct {
	key   string
	value string
}

func (c Config) sortedParams() []param {
	if len(c.Params) == 0 {
		return nil
	}
	keys := make([]string, 0, len(c.Params))
	for k := range c.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	params := make([]param, 0, len(keys))
	for _, k := range keys {
		params = append(params, param{key: k, value: c.Params[k]})
	}
	return params
}

// DB wraps a driver pool sized for a stress run. It implements the
// engine's Dialer so each worker can pin its own connection.
type DB struct {
	db  *sql.DB
	cfg Config
}

// Open validates the target, opens the driver pool and pins its size to
// the worker count. No connection is established yet; workers dial their
// own when the run starts, so a down database surfaces per worker. Use
// Ping to fail fast instead.
func Open(cfg Config, workers int) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if workers < 1 {
		workers = 1
	}
	db.SetMaxOpenConns(workers)
	db.SetMaxIdleConns(workers)
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return &DB{db: db, cfg: cfg}, nil
}

// Dial reserves a dedicated connection from the pool and verifies it.
func (d *DB) Dial(ctx context.Context) (stresstest.Conn, error) {
	sc, err := d.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	if err := sc.PingContext(ctx); err != nil {
		sc.Close()
		return nil, fmt.Errorf("verify connection: %w", err)
	}
	return &conn{sc: sc}, nil
}

// Ping verifies the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Stats reports the underlying pool counters.
func (d *DB) Stats() sql.DBStats {
	return d.db.Stats()
}

// Close releases the pool and all idle connections.
func (d *DB) Close() error {
	return d.db.Close()
}

type conn struct {
	sc *sql.Conn
}

// Exec runs one statement on the pinned connection. Reads go through
// QueryContext and drain every row; everything else goes through
// ExecContext.
func (c *conn) Exec(ctx context.Context, q stresstest.QueryRecord) error {
	if readStatement(q) {
		rows, err := c.sc.QueryContext(ctx, q.Text)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
		}
		return rows.Err()
	}
	_, err := c.sc.ExecContext(ctx, q.Text)
	return err
}

// Close returns the pinned connection to the pool.
func (c *conn) Close() error {
	return c.sc.Close()
}

// readStatement decides the execution path. A classified record follows
// its kind; unclassified statements fall back to a SELECT prefix check.
func readStatement(q stresstest.QueryRecord) bool {
	switch q.Kind {
	case stresstest.KindRead:
		return true
	case stresstest.KindWrite:
		return false
	}
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(q.Text)), "SELECT")
}
