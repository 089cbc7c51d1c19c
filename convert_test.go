package dbconn

import (
	"database/sql"
	"reflect"
	"testing"
	"time"
)

type scanString string

func (s *scanString) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		*s = scanString("scanned:" + string(v))
	case string:
		*s = scanString("scanned:" + v)
	}
	return nil
}

type myInt int32

func assignTo[T any](t *testing.T, src any) T {
	t.Helper()
	var out T
	if err := assignValue(reflect.ValueOf(&out).Elem(), src); err != nil {
		t.Fatalf("assign %T -> %T: %v", src, out, err)
	}
	return out
}

func TestAssignValue(t *testing.T) {
	eq(t, assignTo[int](t, int64(5)), 5, "int64 -> int")
	eq(t, assignTo[int64](t, []byte(" 12 ")), int64(12), "text -> int64")
	eq(t, assignTo[uint16](t, "65535"), uint16(65535), "text -> uint16")
	eq(t, assignTo[float64](t, "1.5"), 1.5, "text -> float64")
	eq(t, assignTo[float32](t, int64(2)), float32(2), "int -> float32")
	eq(t, assignTo[bool](t, int64(1)), true, "int -> bool")
	eq(t, assignTo[bool](t, "false"), false, "text -> bool")
	eq(t, assignTo[string](t, int64(7)), "7", "int -> string")
	eq(t, assignTo[string](t, []byte("abc")), "abc", "bytes -> string")
	eq(t, assignTo[myInt](t, int64(3)), myInt(3), "named int")
	eq(t, assignTo[scanString](t, "x"), scanString("scanned:x"), "Scanner wins")
	eq(t, assignTo[any](t, "x"), any("x"), "interface target")

	when := time.Date(2012, 12, 12, 10, 30, 0, 0, time.UTC)
	if got := assignTo[time.Time](t, "2012-12-12 10:30:00"); !got.Equal(when) {
		t.Fatalf("text -> time: %v", got)
	}
	if got := assignTo[time.Time](t, when); !got.Equal(when) {
		t.Fatalf("time -> time: %v", got)
	}
	if got := assignTo[*time.Time](t, when); got == nil || !got.Equal(when) {
		t.Fatalf("time -> *time: %v", got)
	}
	if got := assignTo[*time.Time](t, nil); got != nil {
		t.Fatalf("nil -> *time: %v", got)
	}
	if got := assignTo[sql.NullInt64](t, int64(9)); !got.Valid || got.Int64 != 9 {
		t.Fatalf("NullInt64: %v", got)
	}
}

func TestAssignValue_CopiesBytes(t *testing.T) {
	src := []byte("abc")
	got := assignTo[[]byte](t, src)
	src[0] = 'X'
	eq(t, string(got), "abc", "copy")
}

func TestAssignValue_Errors(t *testing.T) {
	cases := []struct {
		name string
		dst  any
		src  any
	}{
		{"overflow int8", new(int8), int64(300)},
		{"negative uint", new(uint), int64(-1)},
		{"fraction to int", new(int), 1.5},
		{"bad text int", new(int), "x1"},
		{"bad time", new(time.Time), "yesterday"},
		{"struct from int", new(struct{ A int }), int64(1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := assignValue(reflect.ValueOf(tc.dst).Elem(), tc.src); err == nil {
				t.Fatalf("expected error assigning %#v", tc.src)
			}
		})
	}
}

func TestNormalizeValue(t *testing.T) {
	eq(t, normalizeValue([]byte("x"), "NVARCHAR"), any("x"), "nvarchar")
	eq(t, normalizeValue([]byte("x"), "text"), any("x"), "text lower-case")
	eq(t, normalizeValue([]byte("1.50"), "DECIMAL"), any("1.50"), "decimal")
	if _, ok := normalizeValue([]byte("x"), "VARBINARY").([]byte); !ok {
		t.Fatal("varbinary must stay bytes")
	}
	if _, ok := normalizeValue([]byte("x"), "BYTEA").([]byte); !ok {
		t.Fatal("bytea must stay bytes")
	}
	if _, ok := normalizeValue([]byte("x"), "").([]byte); !ok {
		t.Fatal("unknown type must stay bytes")
	}
	eq(t, normalizeValue(int64(1), "VARCHAR"), any(int64(1)), "non-bytes untouched")
}
