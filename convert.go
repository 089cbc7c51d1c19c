package dbconn

import (
	"database/sql"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var (
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	timeType    = reflect.TypeOf(time.Time{})
)

// timeLayouts covers the textual forms drivers hand back for dates:
// RFC 3339, the modernc sqlite format, and MySQL without parseTime.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// assignValue stores a driver value into dst.
//
// Rules, in order:
//   - nil (SQL NULL) stores the zero value; for pointer targets that is nil.
//   - Targets implementing sql.Scanner receive the raw value.
//   - Pointer targets are allocated and filled recursively.
//   - Assignable values are stored as is ([]byte is copied).
//   - Otherwise the value is coerced by the target kind: integers with
//     overflow checks, floats, bools, strings, []byte and time.Time, parsing
//     text where drivers return numbers or dates as text.
func assignValue(dst reflect.Value, src any) error {
	if src == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	if dst.CanAddr() && dst.Addr().Type().Implements(scannerType) {
		return dst.Addr().Interface().(sql.Scanner).Scan(src)
	}
	if dst.Kind() == reflect.Pointer {
		elem := reflect.New(dst.Type().Elem())
		if err := assignValue(elem.Elem(), src); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	}

	sv := reflect.ValueOf(src)
	if sv.Type().AssignableTo(dst.Type()) {
		if b, ok := src.([]byte); ok {
			sv = reflect.ValueOf(append([]byte(nil), b...))
		}
		dst.Set(sv)
		return nil
	}

	switch dst.Kind() {
	case reflect.String:
		s, ok := asString(sv)
		if !ok {
			break
		}
		dst.SetString(s)
		return nil
	case reflect.Slice:
		if dst.Type().Elem().Kind() != reflect.Uint8 {
			break
		}
		switch sv.Kind() {
		case reflect.String:
			dst.SetBytes([]byte(sv.String()))
			return nil
		case reflect.Slice:
			if sv.Type().Elem().Kind() == reflect.Uint8 {
				dst.SetBytes(append([]byte(nil), sv.Bytes()...))
				return nil
			}
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := asInt64(sv)
		if err != nil {
			return err
		}
		if dst.OverflowInt(n) {
			return fmt.Errorf("value %d overflows %s", n, dst.Type())
		}
		dst.SetInt(n)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := asUint64(sv)
		if err != nil {
			return err
		}
		if dst.OverflowUint(n) {
			return fmt.Errorf("value %d overflows %s", n, dst.Type())
		}
		dst.SetUint(n)
		return nil
	case reflect.Float32, reflect.Float64:
		f, err := asFloat64(sv)
		if err != nil {
			return err
		}
		if dst.OverflowFloat(f) {
			return fmt.Errorf("value %v overflows %s", f, dst.Type())
		}
		dst.SetFloat(f)
		return nil
	case reflect.Bool:
		b, err := asBool(sv)
		if err != nil {
			return err
		}
		dst.SetBool(b)
		return nil
	case reflect.Struct:
		if dst.Type() == timeType || dst.Type().ConvertibleTo(timeType) {
			t, err := asTime(sv)
			if err != nil {
				return err
			}
			dst.Set(reflect.ValueOf(t).Convert(dst.Type()))
			return nil
		}
	}

	if sv.Kind() == dst.Kind() && sv.Type().ConvertibleTo(dst.Type()) {
		dst.Set(sv.Convert(dst.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", src, dst.Type())
}

func isBytes(v reflect.Value) bool {
	return v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8
}

func asText(sv reflect.Value) (string, bool) {
	switch {
	case sv.Kind() == reflect.String:
		return strings.TrimSpace(sv.String()), true
	case isBytes(sv):
		return strings.TrimSpace(string(sv.Bytes())), true
	}
	return "", false
}

func asString(sv reflect.Value) (string, bool) {
	switch sv.Kind() {
	case reflect.String:
		return sv.String(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(sv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(sv.Uint(), 10), true
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(sv.Float(), 'g', -1, 64), true
	case reflect.Bool:
		return strconv.FormatBool(sv.Bool()), true
	}
	if isBytes(sv) {
		return string(sv.Bytes()), true
	}
	if t, ok := sv.Interface().(time.Time); ok {
		return t.Format(time.RFC3339Nano), true
	}
	return "", false
}

func asInt64(sv reflect.Value) (int64, error) {
	switch sv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return sv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := sv.Uint()
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", u)
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		f := sv.Float()
		if f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
			return 0, fmt.Errorf("value %v is not an integer", f)
		}
		return int64(f), nil
	case reflect.Bool:
		if sv.Bool() {
			return 1, nil
		}
		return 0, nil
	}
	if s, ok := asText(sv); ok {
		return strconv.ParseInt(s, 10, 64)
	}
	return 0, fmt.Errorf("cannot convert %s to integer", sv.Type())
}

func asUint64(sv reflect.Value) (uint64, error) {
	switch sv.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return sv.Uint(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Float32, reflect.Float64, reflect.Bool:
		n, err := asInt64(sv)
		if err != nil {
			return 0, err
		}
		if n < 0 {
			return 0, fmt.Errorf("value %d is negative", n)
		}
		return uint64(n), nil
	}
	if s, ok := asText(sv); ok {
		return strconv.ParseUint(s, 10, 64)
	}
	return 0, fmt.Errorf("cannot convert %s to unsigned integer", sv.Type())
}

func asFloat64(sv reflect.Value) (float64, error) {
	switch sv.Kind() {
	case reflect.Float32, reflect.Float64:
		return sv.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(sv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(sv.Uint()), nil
	}
	if s, ok := asText(sv); ok {
		return strconv.ParseFloat(s, 64)
	}
	return 0, fmt.Errorf("cannot convert %s to float", sv.Type())
}

func asBool(sv reflect.Value) (bool, error) {
	switch sv.Kind() {
	case reflect.Bool:
		return sv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return sv.Int() != 0, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return sv.Uint() != 0, nil
	}
	if s, ok := asText(sv); ok {
		return strconv.ParseBool(s)
	}
	return false, fmt.Errorf("cannot convert %s to bool", sv.Type())
}

func asTime(sv reflect.Value) (time.Time, error) {
	if t, ok := sv.Interface().(time.Time); ok {
		return t, nil
	}
	s, ok := asText(sv)
	if !ok {
		return time.Time{}, fmt.Errorf("cannot convert %s to time.Time", sv.Type())
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as time", s)
}

// normalizeValue turns driver text returned as []byte into string for
// untyped results, based on the column's database type name. Binary columns
// keep []byte.
func normalizeValue(v any, dbType string) any {
	b, ok := v.([]byte)
	if !ok || !isTextType(dbType) {
		return v
	}
	return string(b)
}

func isTextType(dbType string) bool {
	t := strings.ToUpper(dbType)
	if strings.Contains(t, "BINARY") || strings.Contains(t, "BLOB") || t == "BYTEA" || t == "IMAGE" {
		return false
	}
	for _, marker := range []string{"CHAR", "TEXT", "CLOB", "JSON", "XML", "ENUM", "DATE", "TIME", "DECIMAL", "NUMERIC", "UUID"} {
		if strings.Contains(t, marker) {
			return true
		}
	}
	return false
}
