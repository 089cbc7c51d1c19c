package dbconn

import "database/sql"

// PredicateParams binds the WHERE parameters of b. NULL entries are skipped
// because Fragments.Where renders them as "IS NULL" text, so the result holds
// exactly one parameter per placeholder Where emits, in the same order.
func PredicateParams(b Bag) []sql.NamedArg {
	out := make([]sql.NamedArg, 0, len(b.fields))
	for _, f := range b.fields {
		if f.IsNull() {
			continue
		}
		out = append(out, sql.Named(f.Name, driverValue(f.Value)))
	}
	return out
}

// UpdateValueParams binds one parameter per entry of b, named with
// UpdatePrefix to match Fragments.UpdateSet. NULL entries bind SQL NULL.
func UpdateValueParams(b Bag) []sql.NamedArg {
	out := make([]sql.NamedArg, len(b.fields))
	for i, f := range b.fields {
		out[i] = sql.Named(UpdatePrefix+f.Name, driverValue(f.Value))
	}
	return out
}

// ValueParams binds one parameter per entry of b under its own name, NULL
// entries included. INSERT values and caller-written SQL use it.
func ValueParams(b Bag) []sql.NamedArg {
	out := make([]sql.NamedArg, len(b.fields))
	for i, f := range b.fields {
		out[i] = sql.Named(f.Name, driverValue(f.Value))
	}
	return out
}
