package dbconn

import "strings"

// UpdatePrefix is prepended to the parameter names of UPDATE values so they
// never collide with predicate parameters bound to the same column. Update
// predicates may not name columns that start with it.
const UpdatePrefix = "UPDATE_"

// Fragments renders SQL text pieces from property bags. It is pure string
// construction; names are assumed to be validated identifiers.
//
// Token is the provider's placeholder prefix ("@" or ":"). Every bound value
// appears in text as Token+name, whatever the provider's native binding style.
type Fragments struct {
	Token string
}

// Placeholder returns the parameter reference for name.
func (f Fragments) Placeholder(name string) string { return f.Token + name }

// Select renders "SELECT c1, c2 FROM table". No columns selects "*".
func (f Fragments) Select(columns []string, table string) string {
	cols := "*"
	if len(columns) > 0 {
		cols = strings.Join(columns, ", ")
	}
	return "SELECT " + cols + " FROM " + table
}

// Where renders the AND-joined predicate for b: "col IS NULL" for NULL
// entries and "col = <token>col" otherwise. An empty bag renders "".
func (f Fragments) Where(b Bag) string {
	parts := make([]string, len(b.fields))
	for i, fl := range b.fields {
		if fl.IsNull() {
			parts[i] = fl.Name + " IS NULL"
		} else {
			parts[i] = fl.Name + " = " + f.Placeholder(fl.Name)
		}
	}
	return strings.Join(parts, " AND ")
}

// InsertColumns renders "(c1, c2)". It is index-aligned with InsertValues.
func (f Fragments) InsertColumns(b Bag) string {
	return "(" + strings.Join(b.Names(), ", ") + ")"
}

// InsertValues renders "(<token>c1, <token>c2)".
func (f Fragments) InsertValues(b Bag) string {
	parts := make([]string, len(b.fields))
	for i, fl := range b.fields {
		parts[i] = f.Placeholder(fl.Name)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// UpdateSet renders "c1 = <token>UPDATE_c1, c2 = <token>UPDATE_c2".
func (f Fragments) UpdateSet(b Bag) string {
	parts := make([]string, len(b.fields))
	for i, fl := range b.fields {
		parts[i] = fl.Name + " = " + f.Placeholder(UpdatePrefix+fl.Name)
	}
	return strings.Join(parts, ", ")
}

// Output renders the before/after images of an UPDATE: every
// "DELETED.c AS 'Oldc'" followed by every "INSERTED.c AS 'Newc'".
func (f Fragments) Output(b Bag) string {
	parts := make([]string, 0, 2*len(b.fields))
	for _, fl := range b.fields {
		parts = append(parts, "DELETED."+fl.Name+" AS 'Old"+fl.Name+"'")
	}
	for _, fl := range b.fields {
		parts = append(parts, "INSERTED."+fl.Name+" AS 'New"+fl.Name+"'")
	}
	return strings.Join(parts, ", ")
}

// ---------------- Statements ----------------

func (f Fragments) whereClause(b Bag) string {
	if b.Len() == 0 {
		return ""
	}
	return " WHERE " + f.Where(b)
}

// SelectStatement renders a SELECT with an optional WHERE.
func (f Fragments) SelectStatement(columns []string, table string, where Bag) string {
	return f.Select(columns, table) + f.whereClause(where)
}

// InsertStatement renders "INSERT INTO t (..) VALUES (..)".
func (f Fragments) InsertStatement(table string, values Bag) string {
	return "INSERT INTO " + table + " " + f.InsertColumns(values) + " VALUES " + f.InsertValues(values)
}

// UpdateStatement renders "UPDATE t SET .. [WHERE ..]".
func (f Fragments) UpdateStatement(table string, values, where Bag) string {
	return "UPDATE " + table + " SET " + f.UpdateSet(values) + f.whereClause(where)
}

// DeleteStatement renders "DELETE FROM t [WHERE ..]".
func (f Fragments) DeleteStatement(table string, where Bag) string {
	return "DELETE FROM " + table + f.whereClause(where)
}

// ExistsStatement renders a probe that yields a row when any row matches.
func (f Fragments) ExistsStatement(table string, where Bag) string {
	return "SELECT 1 FROM " + table + f.whereClause(where)
}
