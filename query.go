package dbconn

import (
	"context"
	"fmt"
	"iter"
	"reflect"
)

// Iter projects each row of a cursor onto a fresh T. Columns are matched to
// T's properties by exact name once per cursor; columns with no matching
// property are ignored and properties with no column keep their zero value.
//
// T is a struct or a pointer to a struct.
type Iter[T any] struct {
	rows *Rows
	plan []*property // per column; nil means ignored
	ptr  bool
	cur  T
	err  error
}

// Project returns an iterator over rows as T values. Iterating to the end
// closes the cursor; call Close when stopping early.
//
// Example:
//
//	type Item struct {
//	    ID   int64
//	    Name string
//	}
//
//	rows, err := s.Query(ctx, `SELECT ID, Name, Date FROM tTest`, nil)
//	if err != nil {
//	    return err
//	}
//	for it, err := range dbconn.Project[Item](rows).All() {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(it.ID, it.Name) // Date has no property and is ignored
//	}
func Project[T any](rows *Rows) *Iter[T] {
	it := &Iter[T]{rows: rows}
	rt := reflect.TypeOf((*T)(nil)).Elem()
	if rt.Kind() == reflect.Pointer {
		it.ptr = true
		rt = rt.Elem()
	}
	ta, err := rows.acc.forType(rt)
	if err != nil {
		it.err = err
		_ = rows.Close()
		return it
	}
	it.plan = make([]*property, len(rows.cols))
	for i, c := range rows.cols {
		it.plan[i] = ta.byName[c]
	}
	return it
}

// Next projects the next row. It returns false at the end or on error.
func (it *Iter[T]) Next() bool {
	if it.err != nil || !it.rows.Next() {
		return false
	}
	var out T
	root := reflect.ValueOf(&out).Elem()
	if it.ptr {
		root.Set(reflect.New(root.Type().Elem()))
		root = root.Elem()
	}
	for i, p := range it.plan {
		if p == nil {
			continue
		}
		if err := setProperty(root, p, it.rows.Value(i)); err != nil {
			it.err = execErr("project", "", err)
			_ = it.rows.Close()
			return false
		}
	}
	it.cur = out
	return true
}

// Value returns the row projected by the last successful Next.
func (it *Iter[T]) Value() T { return it.cur }

// Err returns the error that ended iteration, if any.
func (it *Iter[T]) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.rows.Err()
}

// Close abandons the underlying cursor.
func (it *Iter[T]) Close() error { return it.rows.Close() }

// All adapts the iterator to a range-over-func sequence. A terminal error is
// yielded once with T's zero value.
func (it *Iter[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		defer it.Close()
		for it.Next() {
			if !yield(it.cur, nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			var zero T
			yield(zero, err)
		}
	}
}

// Collect reads the remaining rows into a slice.
func (it *Iter[T]) Collect() (out []T, err error) {
	defer func() {
		if cerr := it.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	for it.Next() {
		out = append(out, it.cur)
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ScanColumn reads the first column of every row as T and closes the cursor.
func ScanColumn[T any](rows *Rows) (out []T, err error) {
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := rows.needColumns(1); err != nil {
		return nil, err
	}
	for rows.Next() {
		v, err := convertTo[T](rows.Value(0))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ScanPair reads the first two columns of every row as key and value and
// closes the cursor. When a key repeats, the last row wins.
func ScanPair[K comparable, V any](rows *Rows) (out map[K]V, err error) {
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := rows.needColumns(2); err != nil {
		return nil, err
	}
	out = make(map[K]V)
	for rows.Next() {
		k, err := convertTo[K](rows.Value(0))
		if err != nil {
			return nil, err
		}
		v, err := convertTo[V](rows.Value(1))
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Column selects column from every row of table matching where.
func Column[T any](ctx context.Context, s *Session, table, column string, where any) ([]T, error) {
	rows, err := s.SelectRows(ctx, table, []string{column}, where)
	if err != nil {
		return nil, err
	}
	return ScanColumn[T](rows)
}

// Pair maps keyColumn to valueColumn over the rows of table matching where.
//
// Example:
//
//	names, err := dbconn.Pair[int64, *string](ctx, s, "tTest", "ID", "Name", nil)
//	// names[456] == nil when that row's Name is NULL
func Pair[K comparable, V any](ctx context.Context, s *Session, table, keyColumn, valueColumn string, where any) (map[K]V, error) {
	rows, err := s.SelectRows(ctx, table, []string{keyColumn, valueColumn}, where)
	if err != nil {
		return nil, err
	}
	return ScanPair[K, V](rows)
}

// Select projects the rows of table matching where onto T. The selected
// columns are T's property names.
func Select[T any](ctx context.Context, s *Session, table string, where any) (*Iter[T], error) {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	if !isStruct(rt) {
		return nil, fmt.Errorf("dbconn: select: %s is not a struct", rt)
	}
	cols, err := s.acc.Names(rt)
	if err != nil {
		return nil, err
	}
	rows, err := s.SelectRows(ctx, table, cols, where)
	if err != nil {
		return nil, err
	}
	return Project[T](rows), nil
}

// SelectSQL runs caller-written SQL with <token>name parameters taken from
// params and projects the rows onto T.
func SelectSQL[T any](ctx context.Context, s *Session, query string, params any) (*Iter[T], error) {
	rows, err := s.Query(ctx, query, params)
	if err != nil {
		return nil, err
	}
	return Project[T](rows), nil
}
