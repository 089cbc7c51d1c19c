package dbconn

import (
	"fmt"
	"reflect"
	"sync"
)

// Accessors owns the per-type property cache used by bag building and row
// projection. A zero Accessors is ready to use; sessions share the package
// default unless configured with WithAccessors.
//
// The first use of a type indexes its exported fields once (declaration
// order, embedded structs flattened) and stores the resolved accessors;
// later lookups for that type never walk the struct again. Entries are never
// evicted. Concurrent first use of the same type is safe: the losing
// goroutine adopts the stored entry.
type Accessors struct {
	types sync.Map // key: reflect.Type -> *typeAccessors
}

func NewAccessors() *Accessors { return &Accessors{} }

// --- package-level lazy default (used by BagOf and projections) ---

var (
	accessors     *Accessors
	accessorsOnce sync.Once
)

func defaultAccessors() *Accessors {
	accessorsOnce.Do(func() { accessors = NewAccessors() })
	return accessors
}

type property struct {
	name      string
	index     []int
	typ       reflect.Type
	omitEmpty bool
}

type typeAccessors struct {
	rt     reflect.Type
	props  []*property // declaration order
	byName map[string]*property
}

func (ta *typeAccessors) lookup(name string) (*property, error) {
	if p, ok := ta.byName[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s has no property %q", ErrPropertyNotFound, ta.rt, name)
}

func (a *Accessors) forType(rt reflect.Type) (*typeAccessors, error) {
	rt = derefPtr(rt)
	if rt.Kind() != reflect.Struct {
		return nil, fmt.Errorf("dbconn: %s is not a struct", rt)
	}
	if v, ok := a.types.Load(rt); ok {
		return v.(*typeAccessors), nil
	}
	v, _ := a.types.LoadOrStore(rt, buildTypeAccessors(rt))
	return v.(*typeAccessors), nil
}

// Names returns the property names of struct type rt in declaration order.
func (a *Accessors) Names(rt reflect.Type) ([]string, error) {
	ta, err := a.forType(rt)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(ta.props))
	for i, p := range ta.props {
		out[i] = p.name
	}
	return out, nil
}

// Get returns the value of property name on obj (a struct or pointer to struct).
// A property reached through a nil embedded pointer reads as nil.
func (a *Accessors) Get(obj any, name string) (any, error) {
	rv, err := structValue(obj)
	if err != nil {
		return nil, err
	}
	ta, err := a.forType(rv.Type())
	if err != nil {
		return nil, err
	}
	p, err := ta.lookup(name)
	if err != nil {
		return nil, err
	}
	fv, ok := fieldByPath(rv, p.index)
	if !ok {
		return nil, nil
	}
	return fv.Interface(), nil
}

// Set assigns value to property name on dst, which must be a non-nil pointer
// to a struct. The value is coerced to the property type (see assignValue);
// nil stores the zero value.
func (a *Accessors) Set(dst any, name string, value any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("dbconn: set %q: destination must be a non-nil pointer, got %T", name, dst)
	}
	root := rv.Elem()
	ta, err := a.forType(root.Type())
	if err != nil {
		return err
	}
	p, err := ta.lookup(name)
	if err != nil {
		return err
	}
	return setProperty(root, p, value)
}

// All returns every present property of obj as ordered fields, in
// declaration order. Fields tagged omitempty holding a zero value, and fields
// behind a nil embedded pointer, are absent.
func (a *Accessors) All(obj any) ([]Field, error) {
	rv, err := structValue(obj)
	if err != nil {
		return nil, err
	}
	ta, err := a.forType(rv.Type())
	if err != nil {
		return nil, err
	}
	out := make([]Field, 0, len(ta.props))
	for _, p := range ta.props {
		fv, ok := fieldByPath(rv, p.index)
		if !ok {
			continue
		}
		if p.omitEmpty && fv.IsZero() {
			continue
		}
		out = append(out, Field{Name: p.name, Value: fv.Interface()})
	}
	return out, nil
}

func setProperty(root reflect.Value, p *property, value any) error {
	fv, err := fieldByPathAlloc(root, p.index)
	if err != nil {
		return fmt.Errorf("dbconn: set %s.%s: %w", root.Type(), p.name, err)
	}
	if err := assignValue(fv, value); err != nil {
		return fmt.Errorf("dbconn: set %s.%s: %w", root.Type(), p.name, err)
	}
	return nil
}

func structValue(obj any) (reflect.Value, error) {
	rv := reflect.ValueOf(obj)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Value{}, fmt.Errorf("dbconn: nil %T", obj)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("dbconn: %T is not a struct", obj)
	}
	return rv, nil
}

// ---------------- Struct indexing & tags ----------------

// buildTypeAccessors indexes rt's properties in declaration order with
// embedded structs flattened. A name claimed more than once resolves the way
// Go field promotion does: the shallowest field wins, and a tie at that depth
// hides the name entirely.
func buildTypeAccessors(rt reflect.Type) *typeAccessors {
	ta := &typeAccessors{rt: rt, byName: make(map[string]*property)}

	var found []*property
	var walk func(t reflect.Type, base []int)
	walk = func(t reflect.Type, base []int) {
		t = derefPtr(t)
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			if sf.PkgPath != "" && !sf.Anonymous { // unexported, non-anonymous
				continue
			}
			name, inline, omitEmpty, omit := parseTag(sf.Tag.Get("db"))
			if omit {
				continue
			}
			path := append(append([]int(nil), base...), i)

			if (inline || (sf.Anonymous && name == "")) && isStruct(sf.Type) && sf.Type != timeType {
				walk(sf.Type, path)
				continue
			}
			if sf.PkgPath != "" { // unexported embedded non-struct
				continue
			}
			if name == "" {
				name = sf.Name
			}
			found = append(found, &property{name: name, index: path, typ: sf.Type, omitEmpty: omitEmpty})
		}
	}
	walk(rt, nil)

	depth := make(map[string]int, len(found))
	ties := make(map[string]int, len(found))
	for _, p := range found {
		d, seen := depth[p.name]
		switch {
		case !seen || len(p.index) < d:
			depth[p.name] = len(p.index)
			ties[p.name] = 1
		case len(p.index) == d:
			ties[p.name]++
		}
	}
	for _, p := range found {
		if len(p.index) != depth[p.name] || ties[p.name] > 1 {
			continue
		}
		ta.byName[p.name] = p
		ta.props = append(ta.props, p)
	}
	return ta
}

// parseTag supports: "-", "col", ",inline", ",omitempty" and combinations
// such as "col,omitempty" or "inline,col".
func parseTag(tag string) (name string, inline, omitEmpty, omit bool) {
	if tag == "-" {
		return "", false, false, true
	}
	start := 0
	for i := 0; i <= len(tag); i++ {
		if i == len(tag) || tag[i] == ',' {
			switch part := tag[start:i]; part {
			case "inline":
				inline = true
			case "omitempty":
				omitEmpty = true
			case "":
			default:
				if name == "" {
					name = part
				}
			}
			start = i + 1
		}
	}
	return name, inline, omitEmpty, false
}

// ---------------- Paths ----------------

func isStruct(t reflect.Type) bool { return derefPtr(t).Kind() == reflect.Struct }

func derefPtr(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// fieldByPath walks fpath without allocating; ok is false when a nil
// embedded pointer sits on the path.
func fieldByPath(root reflect.Value, fpath []int) (reflect.Value, bool) {
	v := root
	for _, i := range fpath {
		for v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		}
		v = v.Field(i)
	}
	return v, true
}

// fieldByPathAlloc walks fpath, allocating nil embedded pointers so the final
// field is settable. The final field itself is left untouched. A nil pointer
// to an unexported embedded struct cannot be allocated through reflection.
func fieldByPathAlloc(root reflect.Value, fpath []int) (reflect.Value, error) {
	v := root
	for _, i := range fpath {
		for v.Kind() == reflect.Pointer {
			if v.IsNil() {
				if !v.CanSet() {
					return reflect.Value{}, fmt.Errorf("cannot set embedded pointer to unexported struct %s", v.Type().Elem())
				}
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(i)
	}
	return v, nil
}
