// Package database provides the relational store for services, projects,
// work items, rosters, workflows and analytics snapshots.
//
// SQLite (modernc.org/sqlite) is the embedded default; PostgreSQL is
// reachable through either lib/pq ("postgres") or pgx ("pgx"). Queries are
// written with ? placeholders and rebound for PostgreSQL.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects SQL syntax differences between backends.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

// Driver names accepted by NewClient.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
)

// Config is the database connection configuration.
type Config struct {
	Driver       string
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// Cipher encrypts service credentials at rest.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Option configures a Client.
type Option func(*Client)

// WithCipher encrypts service credentials with c.
func WithCipher(c Cipher) Option {
	return func(cl *Client) { cl.cipher = c }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(cl *Client) { cl.now = now }
}

// Client wraps the database connection pool and provides data access methods.
type Client struct {
	db      *sql.DB
	driver  string
	dialect Dialect
	cipher  Cipher
	now     func() time.Time
}

// NewClient opens and pings the database described by cfg.
func NewClient(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	c := &Client{
		driver: cfg.Driver,
		now:    func() time.Time { return time.Now().UTC() },
	}
	dsn := cfg.DSN
	switch cfg.Driver {
	case DriverSQLite, "":
		c.driver = DriverSQLite
		c.dialect = DialectSQLite
		dsn = sqliteDSN(dsn)
	case DriverPostgres, DriverPgx:
		c.dialect = DialectPostgres
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	for _, opt := range opts {
		opt(c)
	}

	db, err := sql.Open(c.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer; a single connection serializes access.
	if c.dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
	} else {
		maxOpen, maxIdle := cfg.MaxOpenConns, cfg.MaxIdleConns
		if maxOpen <= 0 {
			maxOpen = 25
		}
		if maxIdle <= 0 {
			maxIdle = 5
		}
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(maxIdle)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	c.db = db
	return c, nil
}

// sqliteDSN enables foreign keys and a busy timeout unless the DSN sets
// its own pragmas.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// DB returns the underlying *sql.DB for custom queries.
func (c *Client) DB() *sql.DB {
	return c.db
}

// Dialect returns the SQL dialect in use.
func (c *Client) Dialect() Dialect {
	return c.dialect
}

// Close closes the database connection.
func (c *Client) Close() error {
	return c.db.Close()
}

// Transaction runs a function within a database transaction.
func (c *Client) Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original: %w)", rbErr, err)
		}
		return err
	}

	return tx.Commit()
}

// q adapts a ?-placeholder query to the client's dialect.
func (c *Client) q(query string) string {
	if c.dialect == DialectPostgres {
		return rebind(query)
	}
	return query
}

// rebind rewrites ? placeholders as $1, $2, ... outside quoted literals.
func rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	quoted := false
	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case ch == '\'':
			quoted = !quoted
			b.WriteByte(ch)
		case ch == '?' && !quoted:
			n++
			fmt.Fprintf(&b, "$%d", n)
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

type scanner interface {
	Scan(dest ...any) error
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func nullFloat(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
