package dbconn

import (
	"errors"
	"fmt"
)

// ErrInvalidSessionState is returned when an operation is requested on a
// session that is not open (never opened, or already closed).
var ErrInvalidSessionState = errors.New("dbconn: invalid session state")

// ErrResultsOpen is returned when a session is asked to run a command while a
// previous result cursor is still open. It matches ErrInvalidSessionState.
var ErrResultsOpen = fmt.Errorf("%w: result cursor still open", ErrInvalidSessionState)

// ErrPropertyNotFound is returned when a type does not expose the requested property.
var ErrPropertyNotFound = errors.New("dbconn: property not found")

// ErrExecution matches every error produced by the underlying provider:
// rejected SQL, failed binding, constraint violations, lost connections.
var ErrExecution = errors.New("dbconn: execution failure")

// ErrUnsupportedProvider is returned when an operation has no implementation
// for the active provider, or when a provider name cannot be resolved.
var ErrUnsupportedProvider = errors.New("dbconn: unsupported provider")

// ErrInvalidIdentifier is returned when a table or column name is not a plain SQL identifier.
var ErrInvalidIdentifier = errors.New("dbconn: invalid identifier")

// ErrEmptyBag is returned when an operation needs at least one value (INSERT, UPDATE SET).
var ErrEmptyBag = errors.New("dbconn: empty property bag")

// ErrSettingExists is returned by Settings.Add for a duplicate setting name.
var ErrSettingExists = errors.New("dbconn: setting already exists")

// ErrSettingNotFound is returned when a named setting is not registered.
var ErrSettingNotFound = errors.New("dbconn: setting not found")

// ExecError wraps a provider failure with the operation and SQL text that caused it.
type ExecError struct {
	Op    string
	Query string
	Err   error
}

func (e *ExecError) Error() string {
	if e.Query == "" {
		return fmt.Sprintf("dbconn: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("dbconn: %s: %v (query: %s)", e.Op, e.Err, e.Query)
}

func (e *ExecError) Unwrap() error { return e.Err }

// Is reports ErrExecution so callers can test the category without a type assertion.
func (e *ExecError) Is(target error) bool { return target == ErrExecution }

func execErr(op, query string, err error) error {
	if err == nil {
		return nil
	}
	var ee *ExecError
	if errors.As(err, &ee) {
		return err
	}
	return &ExecError{Op: op, Query: query, Err: err}
}
