// Package fakedb is an in-memory database/sql driver for unit tests. It
// records every statement in execution order and replays canned results,
// which lets tests assert on transaction boundaries, session-context
// ordering, and generated statement text without a live SQL Server.
package fakedb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"strings"
	"sync"
)

// Call is one recorded statement with its bound arguments.
type Call struct {
	Query string
	Args  []driver.NamedValue
}

// Result is a canned result set.
type Result struct {
	Columns []string
	Rows    [][]driver.Value
}

// DB scripts the responses and records the calls. Statements match a
// scripted entry when they start with its registered prefix; unmatched
// statements succeed with an empty result.
type DB struct {
	mu      sync.Mutex
	calls   []Call
	results map[string]Result
	errs    map[string]error
}

// New creates an empty scripted database.
func New() *DB {
	return &DB{
		results: make(map[string]Result),
		errs:    make(map[string]error),
	}
}

// Open returns a *sql.DB backed by this script.
func (d *DB) Open() *sql.DB {
	return sql.OpenDB(connector{db: d})
}

// OnQuery registers a result for statements starting with prefix.
func (d *DB) OnQuery(prefix string, columns []string, rows ...[]driver.Value) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.results[prefix] = Result{Columns: columns, Rows: rows}
}

// FailWith makes statements starting with prefix return err.
func (d *DB) FailWith(prefix string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errs[prefix] = err
}

// Calls returns a copy of every recorded call in order.
func (d *DB) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Call, len(d.calls))
	copy(out, d.calls)
	return out
}

// Queries returns just the statement text of every recorded call.
func (d *DB) Queries() []string {
	calls := d.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Query
	}
	return out
}

func (d *DB) record(query string, args []driver.NamedValue) {
	d.mu.Lock()
	defer d.mu.Unlock()
	copied := make([]driver.NamedValue, len(args))
	copy(copied, args)
	d.calls = append(d.calls, Call{Query: query, Args: copied})
}

func (d *DB) lookup(query string) (Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for prefix, err := range d.errs {
		if strings.HasPrefix(query, prefix) {
			return Result{}, err
		}
	}
	for prefix, res := range d.results {
		if strings.HasPrefix(query, prefix) {
			return res, nil
		}
	}
	return Result{}, nil
}

type connector struct {
	db *DB
}

func (c connector) Connect(ctx context.Context) (driver.Conn, error) {
	return &conn{db: c.db}, nil
}

func (c connector) Driver() driver.Driver {
	return fakeDriver{}
}

type fakeDriver struct{}

func (fakeDriver) Open(name string) (driver.Conn, error) {
	return nil, driver.ErrBadConn
}

type conn struct {
	db *DB
}

func (c *conn) Prepare(query string) (driver.Stmt, error) {
	return &stmt{conn: c, query: query}, nil
}

func (c *conn) Close() error {
	return nil
}

func (c *conn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *conn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	c.db.record("BEGIN", nil)
	return &tx{db: c.db}, nil
}

func (c *conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.db.record(query, args)
	res, err := c.db.lookup(query)
	if err != nil {
		return nil, err
	}
	return &rows{result: res}, nil
}

func (c *conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.db.record(query, args)
	if _, err := c.db.lookup(query); err != nil {
		return nil, err
	}
	return driver.RowsAffected(1), nil
}

// CheckNamedValue accepts every argument as-is so tests can bind the same
// values production code binds, including times and NULLs.
func (c *conn) CheckNamedValue(nv *driver.NamedValue) error {
	return nil
}

type tx struct {
	db *DB
}

func (t *tx) Commit() error {
	t.db.record("COMMIT", nil)
	_, err := t.db.lookup("COMMIT")
	return err
}

func (t *tx) Rollback() error {
	t.db.record("ROLLBACK", nil)
	_, err := t.db.lookup("ROLLBACK")
	return err
}

type stmt struct {
	conn  *conn
	query string
}

func (s *stmt) Close() error {
	return nil
}

// NumInput returns -1: the bulk-copy statement takes a varying number of
// arguments per exec.
func (s *stmt) NumInput() int {
	return -1
}

func (s *stmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), namedValues(args))
}

func (s *stmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	return s.conn.ExecContext(ctx, s.query, args)
}

func (s *stmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), namedValues(args))
}

func (s *stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	return s.conn.QueryContext(ctx, s.query, args)
}

func (s *stmt) CheckNamedValue(nv *driver.NamedValue) error {
	return nil
}

func namedValues(args []driver.Value) []driver.NamedValue {
	out := make([]driver.NamedValue, len(args))
	for i, v := range args {
		out[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return out
}

type rows struct {
	result Result
	pos    int
}

func (r *rows) Columns() []string {
	return r.result.Columns
}

func (r *rows) Close() error {
	return nil
}

func (r *rows) Next(dest []driver.Value) error {
	if r.pos >= len(r.result.Rows) {
		return io.EOF
	}
	copy(dest, r.result.Rows[r.pos])
	r.pos++
	return nil
}
