package dbconn

import (
	"context"
	"reflect"
)

// ScanScalar returns the first column of the first row of rows and closes
// the cursor. An empty result yields nil; so does a NULL.
//
// Example:
//
//	rows, err := s.Query(ctx, `SELECT COUNT(*) FROM tTest WHERE Name = @Name`, map[string]any{"Name": "Test"})
//	if err != nil {
//	    return err
//	}
//	n, err := dbconn.ScanScalar(rows)
func ScanScalar(rows *Rows) (v any, err error) {
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := rows.needColumns(1); err != nil {
		return nil, err
	}
	if !rows.Next() {
		return nil, rows.Err()
	}
	return rows.Value(0), nil
}

// ScanScalarAs is ScanScalar converted to T.
//
// A NULL or empty result becomes T's zero value: nil for pointer types, the
// zero time for time.Time. Driver text is converted to numbers and times when
// T asks for them; a value that does not fit T is an error.
func ScanScalarAs[T any](rows *Rows) (T, error) {
	v, err := ScanScalar(rows)
	if err != nil {
		var zero T
		return zero, err
	}
	return convertTo[T](v)
}

// ScalarAs selects column from the first row of table matching where and
// converts it to T. where is anything BagOf accepts; nil matches every row.
//
// Example:
//
//	date, err := dbconn.ScalarAs[*time.Time](ctx, s, "tTest", "Date", map[string]any{"ID": 123})
//	// date == nil when the row's Date is NULL or no row matches
func ScalarAs[T any](ctx context.Context, s *Session, table, column string, where any) (T, error) {
	rows, err := s.SelectRows(ctx, table, []string{column}, where)
	if err != nil {
		var zero T
		return zero, err
	}
	return ScanScalarAs[T](rows)
}

func convertTo[T any](v any) (T, error) {
	var out T
	if err := assignValue(reflect.ValueOf(&out).Elem(), v); err != nil {
		return out, execErr("convert", "", err)
	}
	return out, nil
}
