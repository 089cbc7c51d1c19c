package dbconn

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// SelectRows opens a cursor over columns of table for the rows matching
// where. No columns selects "*". where is anything BagOf accepts; nil
// matches every row and a Null entry matches "IS NULL".
func (s *Session) SelectRows(ctx context.Context, table string, columns []string, where any) (r *Rows, err error) {
	defer s.observe(ctx, "select", table, time.Now(), &err)
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := validateTable(table); err != nil {
		return nil, err
	}
	for _, c := range columns {
		if err := validateColumn(c); err != nil {
			return nil, err
		}
	}
	wb, err := s.bag(where)
	if err != nil {
		return nil, err
	}
	q := s.frag.SelectStatement(columns, table, wb)
	return s.query(ctx, "select", q, PredicateParams(wb))
}

// Scalar returns column of the first row of table matching where, or nil
// when nothing matches.
func (s *Session) Scalar(ctx context.Context, table, column string, where any) (any, error) {
	rows, err := s.SelectRows(ctx, table, []string{column}, where)
	if err != nil {
		return nil, err
	}
	return ScanScalar(rows)
}

// Insert adds one row to table. Every entry of values is a column; Null
// entries insert SQL NULL.
//
// Example:
//
//	err := s.Insert(ctx, "tTest", struct {
//	    ID   int
//	    Name string
//	}{123, "Test"})
func (s *Session) Insert(ctx context.Context, table string, values any) (err error) {
	defer s.observe(ctx, "insert", table, time.Now(), &err)
	vb, err := s.writeBag(table, values)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, "insert", s.frag.InsertStatement(table, vb), ValueParams(vb))
	return err
}

// InsertIdentity inserts one row and returns the value the database
// generated for idColumn: through OUTPUT INSERTED on SQL Server, RETURNING on
// PostgreSQL and SQLite, and the driver's last insert id elsewhere.
func (s *Session) InsertIdentity(ctx context.Context, table, idColumn string, values any) (id int64, err error) {
	defer s.observe(ctx, "insert", table, time.Now(), &err)
	vb, err := s.writeBag(table, values)
	if err != nil {
		return 0, err
	}
	if err := validateColumn(idColumn); err != nil {
		return 0, err
	}

	var q string
	switch s.provider.Returning {
	case ReturningOutput:
		q = "INSERT INTO " + table + " " + s.frag.InsertColumns(vb) +
			" OUTPUT INSERTED." + idColumn + " VALUES " + s.frag.InsertValues(vb)
	case ReturningClause:
		q = s.frag.InsertStatement(table, vb) + " RETURNING " + idColumn
	default:
		q = s.frag.InsertStatement(table, vb)
		res, err := s.exec(ctx, "insert", q, ValueParams(vb))
		if err != nil {
			return 0, err
		}
		id, err := res.LastInsertId()
		return id, execErr("insert", q, err)
	}
	rows, err := s.query(ctx, "insert", q, ValueParams(vb))
	if err != nil {
		return 0, err
	}
	return ScanScalarAs[int64](rows)
}

// Update sets values on the rows of table matching where and returns how
// many rows changed. A nil where updates every row.
func (s *Session) Update(ctx context.Context, table string, values, where any) (n int64, err error) {
	defer s.observe(ctx, "update", table, time.Now(), &err)
	vb, wb, err := s.updateBags(table, values, where)
	if err != nil {
		return 0, err
	}
	q := s.frag.UpdateStatement(table, vb, wb)
	res, err := s.exec(ctx, "update", q, updateParams(vb, wb))
	if err != nil {
		return 0, err
	}
	return rowsAffected(res, q)
}

// UpdateReturning is Update returning, per changed row, the old and new
// value of every updated column as "Old<col>" and "New<col>". Only providers
// with OUTPUT clauses (SQL Server) support it.
func (s *Session) UpdateReturning(ctx context.Context, table string, values, where any) (r *Rows, err error) {
	defer s.observe(ctx, "update", table, time.Now(), &err)
	if s.provider.Returning != ReturningOutput {
		return nil, s.provider.unsupported("update with OUTPUT")
	}
	vb, wb, err := s.updateBags(table, values, where)
	if err != nil {
		return nil, err
	}
	q := "UPDATE " + table + " SET " + s.frag.UpdateSet(vb) +
		" OUTPUT " + s.frag.Output(vb) + s.frag.whereClause(wb)
	return s.query(ctx, "update", q, updateParams(vb, wb))
}

// Delete removes the rows of table matching where and returns how many
// were removed. A nil where deletes every row.
func (s *Session) Delete(ctx context.Context, table string, where any) (n int64, err error) {
	defer s.observe(ctx, "delete", table, time.Now(), &err)
	wb, err := s.tableBag(table, where)
	if err != nil {
		return 0, err
	}
	q := s.frag.DeleteStatement(table, wb)
	res, err := s.exec(ctx, "delete", q, PredicateParams(wb))
	if err != nil {
		return 0, err
	}
	return rowsAffected(res, q)
}

// DeleteReturning is Delete returning the removed rows.
func (s *Session) DeleteReturning(ctx context.Context, table string, where any) (r *Rows, err error) {
	defer s.observe(ctx, "delete", table, time.Now(), &err)
	wb, err := s.tableBag(table, where)
	if err != nil {
		return nil, err
	}
	var q string
	switch s.provider.Returning {
	case ReturningOutput:
		q = "DELETE FROM " + table + " OUTPUT DELETED.*" + s.frag.whereClause(wb)
	case ReturningClause:
		q = s.frag.DeleteStatement(table, wb) + " RETURNING *"
	default:
		return nil, s.provider.unsupported("delete returning rows")
	}
	return s.query(ctx, "delete", q, PredicateParams(wb))
}

// Exists reports whether any row of table matches where.
func (s *Session) Exists(ctx context.Context, table string, where any) (ok bool, err error) {
	defer s.observe(ctx, "exists", table, time.Now(), &err)
	wb, err := s.tableBag(table, where)
	if err != nil {
		return false, err
	}
	rows, err := s.query(ctx, "exists", s.frag.ExistsStatement(table, wb), PredicateParams(wb))
	if err != nil {
		return false, err
	}
	return probe(rows)
}

// ExistsTable reports whether table exists. A schema prefix is ignored.
func (s *Session) ExistsTable(ctx context.Context, table string) (ok bool, err error) {
	defer s.observe(ctx, "exists table", table, time.Now(), &err)
	if err := s.ready(); err != nil {
		return false, err
	}
	if err := validateTable(table); err != nil {
		return false, err
	}
	if s.provider.TableExistsQuery == "" {
		return false, s.provider.unsupported("table lookup")
	}
	name := table[strings.LastIndexByte(table, '.')+1:]
	rows, err := s.query(ctx, "exists table", s.provider.TableExistsQuery, ValueParams(NewBag(Field{Name: "name", Value: name})))
	if err != nil {
		return false, err
	}
	return probe(rows)
}

// ExistsDatabase reports whether the server hosts a database called name.
func (s *Session) ExistsDatabase(ctx context.Context, name string) (ok bool, err error) {
	defer s.observe(ctx, "exists database", name, time.Now(), &err)
	if err := s.ready(); err != nil {
		return false, err
	}
	if err := validateColumn(name); err != nil {
		return false, err
	}
	if s.provider.DatabaseExistsQuery == "" {
		return false, s.provider.unsupported("database lookup")
	}
	rows, err := s.query(ctx, "exists database", s.provider.DatabaseExistsQuery, ValueParams(NewBag(Field{Name: "name", Value: name})))
	if err != nil {
		return false, err
	}
	return probe(rows)
}

// Truncate removes every row of table.
func (s *Session) Truncate(ctx context.Context, table string) (err error) {
	defer s.observe(ctx, "truncate", table, time.Now(), &err)
	if _, err := s.tableBag(table, nil); err != nil {
		return err
	}
	format := s.provider.TruncateFormat
	if format == "" {
		format = "TRUNCATE TABLE %s"
	}
	_, err = s.exec(ctx, "truncate", fmt.Sprintf(format, table), nil)
	return err
}

// Drop removes table.
func (s *Session) Drop(ctx context.Context, table string) (err error) {
	defer s.observe(ctx, "drop", table, time.Now(), &err)
	if _, err := s.tableBag(table, nil); err != nil {
		return err
	}
	_, err = s.exec(ctx, "drop", "DROP TABLE "+table, nil)
	return err
}

// DropDatabase removes the database called name. Most servers refuse this
// inside a transaction.
func (s *Session) DropDatabase(ctx context.Context, name string) (err error) {
	defer s.observe(ctx, "drop database", name, time.Now(), &err)
	if err := s.ready(); err != nil {
		return err
	}
	if err := validateColumn(name); err != nil {
		return err
	}
	if s.provider.DatabaseExistsQuery == "" {
		return s.provider.unsupported("drop database")
	}
	_, err = s.exec(ctx, "drop database", "DROP DATABASE "+name, nil)
	return err
}

// bag builds and validates a bag with the session's accessor cache.
func (s *Session) bag(v any) (Bag, error) {
	b, err := bagOf(s.acc, v)
	if err != nil {
		return Bag{}, err
	}
	if err := validateBag(b); err != nil {
		return Bag{}, err
	}
	return b, nil
}

// tableBag checks the session and table name, then builds the predicate bag.
func (s *Session) tableBag(table string, where any) (Bag, error) {
	if err := s.ready(); err != nil {
		return Bag{}, err
	}
	if err := validateTable(table); err != nil {
		return Bag{}, err
	}
	return s.bag(where)
}

// writeBag is tableBag for a value bag, which must not be empty.
func (s *Session) writeBag(table string, values any) (Bag, error) {
	vb, err := s.tableBag(table, values)
	if err != nil {
		return Bag{}, err
	}
	if vb.Len() == 0 {
		return Bag{}, fmt.Errorf("%w: no values for %s", ErrEmptyBag, table)
	}
	return vb, nil
}

func (s *Session) updateBags(table string, values, where any) (Bag, Bag, error) {
	vb, err := s.writeBag(table, values)
	if err != nil {
		return Bag{}, Bag{}, err
	}
	wb, err := s.bag(where)
	if err != nil {
		return Bag{}, Bag{}, err
	}
	for _, name := range wb.Names() {
		if strings.HasPrefix(name, UpdatePrefix) {
			return Bag{}, Bag{}, fmt.Errorf("%w: predicate column %q uses the reserved prefix %s", ErrInvalidIdentifier, name, UpdatePrefix)
		}
	}
	return vb, wb, nil
}

// updateParams binds the predicate, then the prefixed values. The values are
// bound whether or not there is a predicate.
func updateParams(values, where Bag) []sql.NamedArg {
	return append(PredicateParams(where), UpdateValueParams(values)...)
}

func probe(rows *Rows) (bool, error) {
	found := rows.Next()
	if err := rows.Close(); err != nil {
		return false, err
	}
	if err := rows.Err(); err != nil {
		return false, err
	}
	return found, nil
}
