package dbconn

import (
	"context"
	"database/sql"
	"time"
)

// Exec runs a statement that returns no rows (INSERT, UPDATE, DELETE, DDL)
// and returns the number of rows it affected.
//
// The statement may reference <token>name parameters ("@Name" for most
// providers, ":Name" for Oracle); their values come from params, anything
// BagOf accepts. Null binds SQL NULL. The text is rewritten to the
// provider's native placeholders before it reaches the driver.
//
// Example:
//
//	n, err := s.Exec(ctx,
//	    `UPDATE tTest SET Name = @Name WHERE ID = @ID`,
//	    map[string]any{"ID": 123, "Name": "Renamed"},
//	)
func (s *Session) Exec(ctx context.Context, query string, params any) (n int64, err error) {
	defer s.observe(ctx, "exec", "", time.Now(), &err)
	if err := s.ready(); err != nil {
		return 0, err
	}
	b, err := bagOf(s.acc, params)
	if err != nil {
		return 0, err
	}
	res, err := s.exec(ctx, "exec", query, ValueParams(b))
	if err != nil {
		return 0, err
	}
	return rowsAffected(res, query)
}

// ExecScalar runs query and returns the first column of its first row, or
// nil when it yields no rows.
func (s *Session) ExecScalar(ctx context.Context, query string, params any) (v any, err error) {
	defer s.observe(ctx, "scalar", "", time.Now(), &err)
	if err := s.ready(); err != nil {
		return nil, err
	}
	b, err := bagOf(s.acc, params)
	if err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, "scalar", query, ValueParams(b))
	if err != nil {
		return nil, err
	}
	return ScanScalar(rows)
}

// Query runs query and returns its cursor. The session accepts no other
// command until the cursor is read to the end or closed.
func (s *Session) Query(ctx context.Context, query string, params any) (r *Rows, err error) {
	defer s.observe(ctx, "query", "", time.Now(), &err)
	if err := s.ready(); err != nil {
		return nil, err
	}
	b, err := bagOf(s.acc, params)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, "query", query, ValueParams(b))
}

func (s *Session) exec(ctx context.Context, op, query string, args []sql.NamedArg) (sql.Result, error) {
	bound, bargs, err := bindText(query, s.provider, args)
	if err != nil {
		return nil, execErr(op, query, err)
	}
	res, err := s.runner().ExecContext(ctx, bound, bargs...)
	if err != nil {
		return nil, execErr(op, bound, err)
	}
	return res, nil
}

func (s *Session) query(ctx context.Context, op, query string, args []sql.NamedArg) (*Rows, error) {
	bound, bargs, err := bindText(query, s.provider, args)
	if err != nil {
		return nil, execErr(op, query, err)
	}
	rs, err := s.runner().QueryContext(ctx, bound, bargs...)
	if err != nil {
		return nil, execErr(op, bound, err)
	}
	r := newRows(rs, s.acc, nil)
	if r.closed {
		return nil, r.err
	}
	r.release = func() {
		if s.cursor == r {
			s.cursor = nil
		}
	}
	s.cursor = r
	return r, nil
}

func rowsAffected(res sql.Result, query string) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, execErr("rows affected", query, err)
	}
	return n, nil
}
