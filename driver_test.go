package dbconn

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"reflect"
	"sync"
	"testing"
)

// --- In-test database/sql driver ---------------------------------------------

type DBHandler func(query string, args []driver.NamedValue) (cols []string, rows [][]driver.Value, err error)

type execHandler func(query string, args []driver.NamedValue) (driver.Result, error)

// fakeDB records every statement that reaches the driver and answers with the
// configured handlers.
type fakeDB struct {
	query DBHandler
	exec  execHandler
	types []string // DatabaseTypeName per result column

	commitErr error

	mu        sync.Mutex
	calls     []fakeCall
	begins    []driver.TxOptions
	commits   int
	rollbacks int
}

type fakeCall struct {
	query string
	args  []driver.NamedValue
}

func (f *fakeDB) record(query string, args []driver.NamedValue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeCall{query: query, args: append([]driver.NamedValue(nil), args...)})
}

func (f *fakeDB) last(t *testing.T) fakeCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		t.Fatal("no statement reached the driver")
	}
	return f.calls[len(f.calls)-1]
}

type testConnector struct{ f *fakeDB }

func (c *testConnector) Connect(context.Context) (driver.Conn, error) { return &testConn{f: c.f}, nil }
func (c *testConnector) Driver() driver.Driver                        { return testDriver{} }

type testDriver struct{}

func (testDriver) Open(name string) (driver.Conn, error) {
	return nil, errors.New("testDriver.Open should not be called; use sql.OpenDB with connector")
}

type testConn struct{ f *fakeDB }

func (c *testConn) Prepare(string) (driver.Stmt, error) { return nil, driver.ErrSkip }
func (c *testConn) Close() error                        { return nil }
func (c *testConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *testConn) BeginTx(_ context.Context, opts driver.TxOptions) (driver.Tx, error) {
	c.f.mu.Lock()
	c.f.begins = append(c.f.begins, opts)
	c.f.mu.Unlock()
	return &testTx{f: c.f}, nil
}

func (c *testConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.f.record(query, args)
	if c.f.query == nil {
		return &testRows{}, nil
	}
	cols, data, err := c.f.query(query, args)
	if err != nil {
		return nil, err
	}
	return &testRows{cols: cols, data: data, types: c.f.types}, nil
}

func (c *testConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.f.record(query, args)
	if c.f.exec == nil {
		return testResult{rows: 1}, nil
	}
	return c.f.exec(query, args)
}

type testTx struct{ f *fakeDB }

func (tx *testTx) Commit() error {
	tx.f.mu.Lock()
	defer tx.f.mu.Unlock()
	tx.f.commits++
	return tx.f.commitErr
}

func (tx *testTx) Rollback() error {
	tx.f.mu.Lock()
	defer tx.f.mu.Unlock()
	tx.f.rollbacks++
	return nil
}

type testRows struct {
	cols  []string
	types []string
	data  [][]driver.Value
	i     int
}

func (r *testRows) Columns() []string { return append([]string(nil), r.cols...) }
func (r *testRows) Close() error      { return nil }
func (r *testRows) Next(dest []driver.Value) error {
	if r.i >= len(r.data) {
		return io.EOF
	}
	row := r.data[r.i]
	for i := range dest {
		if i < len(row) {
			dest[i] = row[i]
		} else {
			dest[i] = nil
		}
	}
	r.i++
	return nil
}

func (r *testRows) ColumnTypeDatabaseTypeName(i int) string {
	if i < len(r.types) {
		return r.types[i]
	}
	return ""
}

// Result implementation for tests.
type testResult struct {
	lastID int64
	rows   int64
	liErr  error
	raErr  error
}

func (r testResult) LastInsertId() (int64, error) { return r.lastID, r.liErr }
func (r testResult) RowsAffected() (int64, error) { return r.rows, r.raErr }

// newTestDB creates a *sql.DB backed by the in-memory test driver.
func newTestDB(t *testing.T, f *fakeDB) *sql.DB {
	t.Helper()
	db := sql.OpenDB(&testConnector{f: f})
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// newTestSession opens a session for provider on the in-memory test driver.
func newTestSession(t *testing.T, f *fakeDB, provider string, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{WithDB(newTestDB(t, f))}, opts...)
	s, err := ConnectWith(context.Background(), Setting{Name: "test", Provider: provider}, opts...)
	if err != nil {
		t.Fatalf("ConnectWith: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func rowsOf(cols []string, data ...[]driver.Value) DBHandler {
	return func(string, []driver.NamedValue) ([]string, [][]driver.Value, error) {
		return cols, data, nil
	}
}

// --- Assertion helpers -------------------------------------------------------

func eq[T comparable](t *testing.T, got, want T, msg string) {
	t.Helper()
	if got != want {
		t.Fatalf("%s: got=%v want=%v", msg, got, want)
	}
}

func eqSlice(t *testing.T, got, want []any, msg string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: len got=%d want=%d\n got=%v\nwant=%v", msg, len(got), len(want), got, want)
	}
	for i := range got {
		if !reflect.DeepEqual(got[i], want[i]) {
			t.Fatalf("%s: idx %d got=%#v want=%#v\n got=%v\nwant=%v", msg, i, got[i], want[i], got, want)
		}
	}
}

// namedArgs flattens driver args to name=value pairs for comparison.
func namedArgs(args []driver.NamedValue) map[string]any {
	out := make(map[string]any, len(args))
	for _, a := range args {
		out[a.Name] = a.Value
	}
	return out
}

func argValues(args []driver.NamedValue) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = a.Value
	}
	return out
}
