package dbconn

import (
	"context"
	"fmt"
	"sort"
	"sync"

	gocache "github.com/patrickmn/go-cache"
)

// Setting names a database: its connection string and provider identity.
type Setting struct {
	Name     string
	DSN      string
	Provider string
}

// Settings is a registry of named connection settings with an optional
// default. It is safe for concurrent use.
type Settings struct {
	items *gocache.Cache

	mu  sync.RWMutex
	def string
}

// NewSettings returns an empty registry.
func NewSettings() *Settings {
	return &Settings{items: gocache.New(gocache.NoExpiration, 0)}
}

// Add registers s under s.Name. A name can be registered once; a second Add
// fails with ErrSettingExists. makeDefault also makes it the default.
func (r *Settings) Add(s Setting, makeDefault bool) error {
	if s.Name == "" {
		return fmt.Errorf("dbconn: setting name is required")
	}
	if _, err := LookupProvider(s.Provider); err != nil {
		return err
	}
	if err := r.items.Add(s.Name, s, gocache.NoExpiration); err != nil {
		return fmt.Errorf("%w: %q", ErrSettingExists, s.Name)
	}
	if makeDefault {
		r.mu.Lock()
		r.def = s.Name
		r.mu.Unlock()
	}
	return nil
}

// AddSQLServer registers a SQL Server setting.
func (r *Settings) AddSQLServer(name, dsn string, makeDefault bool) error {
	return r.Add(Setting{Name: name, DSN: dsn, Provider: "sqlserver"}, makeDefault)
}

// Get returns the setting called name.
func (r *Settings) Get(name string) (Setting, bool) {
	v, ok := r.items.Get(name)
	if !ok {
		return Setting{}, false
	}
	return v.(Setting), true
}

// Contains reports whether name is registered.
func (r *Settings) Contains(name string) bool {
	_, ok := r.items.Get(name)
	return ok
}

// Remove unregisters name and reports whether it was present. Removing the
// default leaves the registry without one.
func (r *Settings) Remove(name string) bool {
	if !r.Contains(name) {
		return false
	}
	r.items.Delete(name)
	r.mu.Lock()
	if r.def == name {
		r.def = ""
	}
	r.mu.Unlock()
	return true
}

// SetDefault makes the registered setting name the default.
func (r *Settings) SetDefault(name string) error {
	if !r.Contains(name) {
		return fmt.Errorf("%w: %q", ErrSettingNotFound, name)
	}
	r.mu.Lock()
	r.def = name
	r.mu.Unlock()
	return nil
}

// Default returns the default setting, if one is set.
func (r *Settings) Default() (Setting, bool) {
	r.mu.RLock()
	name := r.def
	r.mu.RUnlock()
	if name == "" {
		return Setting{}, false
	}
	return r.Get(name)
}

// Names lists registered names in ascending order.
func (r *Settings) Names() []string {
	items := r.items.Items()
	out := make([]string, 0, len(items))
	for k := range items {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered settings.
func (r *Settings) Len() int { return r.items.ItemCount() }

// Connect opens a session for the setting called name; "" means the default.
func (r *Settings) Connect(ctx context.Context, name string, opts ...Option) (*Session, error) {
	var (
		s  Setting
		ok bool
	)
	if name == "" {
		s, ok = r.Default()
	} else {
		s, ok = r.Get(name)
	}
	if !ok {
		if name == "" {
			return nil, fmt.Errorf("%w: no default setting", ErrSettingNotFound)
		}
		return nil, fmt.Errorf("%w: %q", ErrSettingNotFound, name)
	}
	return ConnectWith(ctx, s, opts...)
}
