package dbconn

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
)

// nullMarker is the type of Null.
type nullMarker struct{}

func (nullMarker) String() string { return "NULL" }

// Null marks a provided SQL NULL. In a predicate bag it becomes "col IS NULL";
// in a value bag it sets the column to NULL. A name that is not in the bag at
// all is absent and neither constrains nor sets anything.
var Null = nullMarker{}

// Field is one named entry of a Bag.
type Field struct {
	Name  string
	Value any
}

// IsNull reports whether the field is a provided NULL.
func (f Field) IsNull() bool { return isNullValue(f.Value) }

// Bag is an ordered set of uniquely named values. It is the single source
// for both the SQL text and the bound parameters of an operation, so both are
// always produced in the same order.
//
// The zero Bag is empty and ready to use. Bags are values: With and WithNull
// return a new Bag and leave the receiver unchanged.
type Bag struct {
	fields []Field
}

// NewBag returns a bag holding the given fields in order. A repeated name
// replaces the earlier value in its original position.
func NewBag(fields ...Field) Bag {
	var b Bag
	for _, f := range fields {
		b = b.With(f.Name, f.Value)
	}
	return b
}

// With returns a copy of b with name set to v. An existing name keeps its position.
func (b Bag) With(name string, v any) Bag {
	out := Bag{fields: make([]Field, len(b.fields), len(b.fields)+1)}
	copy(out.fields, b.fields)
	for i := range out.fields {
		if out.fields[i].Name == name {
			out.fields[i].Value = v
			return out
		}
	}
	out.fields = append(out.fields, Field{Name: name, Value: v})
	return out
}

// WithNull returns a copy of b with name set to the NULL marker.
func (b Bag) WithNull(name string) Bag { return b.With(name, Null) }

// Len returns the number of entries.
func (b Bag) Len() int { return len(b.fields) }

// Fields returns the entries in order. The slice is a copy.
func (b Bag) Fields() []Field { return append([]Field(nil), b.fields...) }

// Lookup returns the entry called name.
func (b Bag) Lookup(name string) (Field, bool) {
	for _, f := range b.fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Names returns the entry names in order.
func (b Bag) Names() []string {
	out := make([]string, len(b.fields))
	for i, f := range b.fields {
		out[i] = f.Name
	}
	return out
}

func (b Bag) String() string {
	parts := make([]string, len(b.fields))
	for i, f := range b.fields {
		parts[i] = fmt.Sprintf("%s=%v", f.Name, f.Value)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// BagOf builds a Bag from v using the default accessor cache.
//
// Accepted inputs:
//   - nil: an empty bag (no predicate / no values).
//   - Bag or *Bag: used as is.
//   - map[string]V: entries ordered by key, ascending.
//   - a struct or pointer to struct, including anonymous struct literals:
//     exported fields in declaration order; `db:"name"` renames, `db:"-"`
//     skips, `db:",omitempty"` leaves zero values absent.
//
// Null, a nil pointer, a nil interface, and a driver.Valuer yielding nil
// (an invalid sql.NullString, for example) are all provided NULLs.
func BagOf(v any) (Bag, error) { return bagOf(defaultAccessors(), v) }

func bagOf(a *Accessors, v any) (Bag, error) {
	switch t := v.(type) {
	case nil:
		return Bag{}, nil
	case Bag:
		return t, nil
	case *Bag:
		if t == nil {
			return Bag{}, nil
		}
		return *t, nil
	case []Field:
		return NewBag(t...), nil
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return Bag{}, nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Bag{}, fmt.Errorf("dbconn: bag: map key must be string, got %s", rv.Type().Key())
		}
		keys := make([]string, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			keys = append(keys, iter.Key().String())
		}
		sort.Strings(keys)
		fields := make([]Field, len(keys))
		for i, k := range keys {
			fields[i] = Field{Name: k, Value: normalizeNull(rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface())}
		}
		return Bag{fields: fields}, nil
	case reflect.Struct:
		fields, err := a.All(rv.Interface())
		if err != nil {
			return Bag{}, err
		}
		for i := range fields {
			fields[i].Value = normalizeNull(fields[i].Value)
		}
		return Bag{fields: fields}, nil
	default:
		return Bag{}, fmt.Errorf("dbconn: bag: unsupported input %T (want struct, map[string]any or Bag)", v)
	}
}

// normalizeNull folds every NULL representation into the Null marker.
func normalizeNull(v any) any {
	if isNullValue(v) {
		return Null
	}
	return v
}

func isNullValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case nullMarker:
		return true
	case driver.Valuer:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return true
		}
		dv, err := t.Value()
		return err == nil && dv == nil
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

// driverValue converts a bag value to what is handed to database/sql:
// the NULL marker becomes nil and non-nil pointers are dereferenced.
func driverValue(v any) any {
	if isNullValue(v) {
		return nil
	}
	if _, ok := v.(driver.Valuer); ok {
		return v
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	return rv.Interface()
}

var identRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validateColumn(name string) error {
	if !identRE.MatchString(name) {
		return fmt.Errorf("%w: column %q", ErrInvalidIdentifier, name)
	}
	return nil
}

// validateTable accepts plain and schema-qualified names such as "dbo.tTest".
func validateTable(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: table name is required", ErrInvalidIdentifier)
	}
	for _, part := range strings.Split(name, ".") {
		if !identRE.MatchString(part) {
			return fmt.Errorf("%w: table %q", ErrInvalidIdentifier, name)
		}
	}
	return nil
}

func validateBag(b Bag) error {
	for _, f := range b.fields {
		if err := validateColumn(f.Name); err != nil {
			return err
		}
	}
	return nil
}
