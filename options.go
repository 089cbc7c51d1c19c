package dbconn

import "database/sql"

// Option mutates Config when constructing a session.
type Option func(Config) Config

// WithIsolation runs the session inside one transaction at level, begun on Open.
func WithIsolation(level sql.IsolationLevel) Option {
	return func(cfg Config) Config {
		cfg.Isolation = &level
		return cfg
	}
}

// WithReadOnly marks the session's transaction read-only.
func WithReadOnly() Option {
	return func(cfg Config) Config {
		cfg.ReadOnly = true
		return cfg
	}
}

// WithDeferredOpen returns the session closed; call Session.Open before use.
func WithDeferredOpen() Option {
	return func(cfg Config) Config {
		cfg.Deferred = true
		return cfg
	}
}

// WithObserver sets the operation observer.
func WithObserver(o Observer) Option {
	return func(cfg Config) Config {
		cfg.Observer = o
		return cfg
	}
}

// WithAccessors sets the property cache used for bags and projections.
func WithAccessors(a *Accessors) Option {
	return func(cfg Config) Config {
		cfg.Accessors = a
		return cfg
	}
}

// WithDB takes the session's connection from an existing handle instead of
// opening the setting's DSN. The handle stays open after the session closes.
func WithDB(db *sql.DB) Option {
	return func(cfg Config) Config {
		cfg.DB = db
		return cfg
	}
}

// WithProvider overrides the provider resolved from the setting.
func WithProvider(p Provider) Option {
	return func(cfg Config) Config {
		cfg.Provider = &p
		return cfg
	}
}
