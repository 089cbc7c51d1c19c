package dbconn

import (
	"database/sql"
	"fmt"
)

// Rows is a forward-only cursor over a result set. Values are read by
// position after each Next; text columns the driver returns as []byte are
// surfaced as string.
//
// A session allows one open Rows at a time. Reading to the end closes the
// cursor and frees the session; stopping early requires Close.
type Rows struct {
	rows    *sql.Rows
	acc     *Accessors
	release func()

	cols   []string
	types  []string
	vals   []any
	scan   []any
	closed bool
	err    error
}

func newRows(rs *sql.Rows, acc *Accessors, release func()) *Rows {
	if acc == nil {
		acc = defaultAccessors()
	}
	r := &Rows{rows: rs, acc: acc, release: release}
	cols, err := rs.Columns()
	if err != nil {
		r.err = execErr("columns", "", err)
		_ = r.finish()
		return r
	}
	r.cols = cols
	r.types = make([]string, len(cols))
	if cts, err := rs.ColumnTypes(); err == nil {
		for i, ct := range cts {
			if i < len(r.types) {
				r.types[i] = ct.DatabaseTypeName()
			}
		}
	}
	r.vals = make([]any, len(cols))
	r.scan = make([]any, len(cols))
	for i := range r.scan {
		r.scan[i] = &r.vals[i]
	}
	return r
}

// Next advances to the next row. It returns false at the end of the results
// or on error; the cursor is then closed. Check Err afterwards.
func (r *Rows) Next() bool {
	if r.closed {
		return false
	}
	if !r.rows.Next() {
		_ = r.finish()
		return false
	}
	for i := range r.vals {
		r.vals[i] = nil
	}
	if err := r.rows.Scan(r.scan...); err != nil {
		r.err = execErr("scan", "", err)
		_ = r.finish()
		return false
	}
	for i, v := range r.vals {
		r.vals[i] = normalizeValue(v, r.types[i])
	}
	return true
}

// Columns returns the result column names in order.
func (r *Rows) Columns() []string { return append([]string(nil), r.cols...) }

// ColumnCount returns the number of result columns.
func (r *Rows) ColumnCount() int { return len(r.cols) }

// Name returns the name of column i.
func (r *Rows) Name(i int) string { return r.cols[i] }

// Value returns column i of the current row; nil for SQL NULL.
func (r *Rows) Value(i int) any { return r.vals[i] }

// IsNull reports whether column i of the current row is SQL NULL.
func (r *Rows) IsNull(i int) bool { return r.vals[i] == nil }

// Values returns a copy of the current row.
func (r *Rows) Values() []any { return append([]any(nil), r.vals...) }

// Err returns the error that ended iteration, if any.
func (r *Rows) Err() error { return r.err }

// Close abandons the cursor. It is safe to call more than once.
func (r *Rows) Close() error {
	if r.closed {
		return nil
	}
	return r.finish()
}

func (r *Rows) finish() error {
	if r.closed {
		return nil
	}
	r.closed = true
	cerr := r.rows.Close()
	if err := r.rows.Err(); err != nil && r.err == nil {
		r.err = execErr("read", "", err)
	}
	if r.release != nil {
		r.release()
		r.release = nil
	}
	if cerr != nil {
		cerr = execErr("close", "", cerr)
		if r.err == nil {
			r.err = cerr
		}
		return cerr
	}
	return nil
}

func (r *Rows) needColumns(n int) error {
	if len(r.cols) < n {
		return fmt.Errorf("dbconn: result has %d column(s), need %d", len(r.cols), n)
	}
	return nil
}
