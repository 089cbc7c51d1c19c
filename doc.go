/*
Package dbconn is a small session layer over database/sql. A Session owns one
pinned connection and at most one transaction on it, and turns property bags
(structs, maps or Bag values) into parameterized SQL for the common table
operations. Results come back as cursors, scalars or projected Go values.

# Overview

Open a session from a Setting (name, DSN, provider identity) or from a
registry of named settings:

	s, err := dbconn.ConnectWith(ctx,
	    dbconn.Setting{Name: "main", DSN: dsn, Provider: "sqlserver"},
	    dbconn.WithIsolation(sql.LevelReadCommitted),
	)
	if err != nil {
	    return err
	}
	defer s.Close()

	err = s.Insert(ctx, "tTest", Item{ID: 123, Name: "Test"})
	name, err := s.Scalar(ctx, "tTest", "Name", map[string]any{"ID": 123})

Without WithIsolation the session runs every command on the bare connection.
With it, one transaction is begun on Open; Close commits it unless Commit or
Rollback ended it first.

# Property bags

A bag is an ordered set of uniquely named values. Each operation derives its
SQL text and its bound parameters from the same bag, in the same order.

  - Struct fields are taken in declaration order; embedded structs are
    flattened. `db:"name"` renames, `db:"-"` skips, `db:",omitempty"` leaves
    zero values out.
  - Map entries are taken in ascending key order.
  - Null, a nil pointer, a nil interface or a driver.Valuer yielding nil is a
    provided NULL: "col IS NULL" in a predicate, NULL in a value list.
  - A name missing from the bag is absent and is not mentioned at all.

Column and table names must be plain identifiers (tables may carry a schema
prefix). Anything else fails with ErrInvalidIdentifier before any SQL runs.

# Parameters

Generated SQL references values as <token>name, "@" for most providers and
":" for Oracle. The text is rewritten to the driver's native style before it
runs: "$1" for PostgreSQL, "?" for MySQL and SQLite, sql.Named arguments for
SQL Server and Oracle. Caller-written SQL passed to Exec, ExecScalar, Query or
SelectSQL uses the same notation. Update values are bound as UPDATE_<col> so
they never clash with predicate parameters on the same column.

# Results

A session allows one open cursor. Rows must be read to the end or closed
before the next command; otherwise it fails with ErrResultsOpen. Text columns
that the driver hands back as []byte are returned as string.

ScanScalar, ScanColumn and ScanPair read cursors into values; ScalarAs,
Column, Pair and Select run the query too. Project maps each row onto a new
struct by exact property name, ignoring columns with no property:

	it, err := dbconn.Select[Item](ctx, s, "tTest", nil)
	if err != nil {
	    return err
	}
	for item, err := range it.All() {
	    ...
	}

# Errors

Provider failures are wrapped in *ExecError, which matches ErrExecution with
errors.Is and carries the operation and SQL text. State misuse returns
ErrInvalidSessionState. A failed commit is rolled back and reported to the
Observer rather than returned.

# Observation

An Observer sees every operation with its duration and outcome. LogObserver
writes them to a *slog.Logger.
*/
package dbconn
