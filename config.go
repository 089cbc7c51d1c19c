package dbconn

import (
	"database/sql"
	"fmt"
)

// Config controls how a Session is constructed.
type Config struct {
	// Setting names the connection: DSN and provider identity.
	Setting Setting

	// Provider overrides the lookup of Setting.Provider, for drivers that
	// have no built-in entry.
	Provider *Provider

	// DB is an already opened handle to take the connection from. The
	// session never closes it. When nil the session opens Setting.DSN itself.
	DB *sql.DB

	// Isolation starts the session's single transaction on Open. Nil means
	// no transaction: every command runs on the bare connection.
	Isolation *sql.IsolationLevel

	// ReadOnly is forwarded to the transaction options.
	ReadOnly bool

	// Deferred leaves the session closed after construction; call Open.
	Deferred bool

	// Observer receives operation events. Defaults to a no-op.
	Observer Observer

	// Accessors is the property cache for bags and projections. Defaults to
	// the process-wide cache.
	Accessors *Accessors
}

func (c Config) withDefaults() Config {
	if c.Observer == nil {
		c.Observer = nopObserver{}
	}
	if c.Accessors == nil {
		c.Accessors = defaultAccessors()
	}
	return c
}

func (c Config) provider() (Provider, error) {
	if c.Provider != nil {
		return *c.Provider, nil
	}
	if c.Setting.Provider == "" {
		return Provider{}, fmt.Errorf("%w: setting %q names no provider", ErrUnsupportedProvider, c.Setting.Name)
	}
	return LookupProvider(c.Setting.Provider)
}
