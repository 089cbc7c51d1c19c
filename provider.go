package dbconn

import (
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"
)

// Returning selects how a provider reports rows touched by a write.
type Returning int

const (
	// ReturningNone: no RETURNING/OUTPUT; identities come from LastInsertId.
	ReturningNone Returning = iota
	// ReturningOutput: SQL Server OUTPUT INSERTED/DELETED clauses.
	ReturningOutput
	// ReturningClause: trailing RETURNING (PostgreSQL, SQLite).
	ReturningClause
)

// Provider describes a database/sql driver and the SQL dialect details the
// session needs: the placeholder token used in generated text, how
// parameters are bound, and the provider-specific catalog queries.
type Provider struct {
	// Name is the provider identity used in settings ("sqlserver", "postgres", ...).
	Name string
	// DriverName is the database/sql driver to open.
	DriverName string
	// Token prefixes parameter names in generated SQL ("@" or ":").
	Token string
	// Placeholder is the native binding style; see Placeholder.
	Placeholder Placeholder
	Returning   Returning

	// TableExistsQuery yields a row when the table bound to <token>name exists.
	TableExistsQuery string
	// DatabaseExistsQuery yields a row when the database bound to <token>name exists.
	DatabaseExistsQuery string
	// TruncateFormat is the fmt format for emptying a table; "%s" is the table.
	TruncateFormat string
}

func (p Provider) token() byte {
	if p.Token == "" {
		return '@'
	}
	return p.Token[0]
}

func (p Provider) fragments() Fragments { return Fragments{Token: string(p.token())} }

func (p Provider) unsupported(op string) error {
	return fmt.Errorf("%w: %s is not available for provider %q", ErrUnsupportedProvider, op, p.Name)
}

var builtinProviders = map[string]Provider{
	"sqlserver": {
		Name:                "sqlserver",
		DriverName:          "sqlserver",
		Token:               "@",
		Placeholder:         PlaceholderNamed,
		Returning:           ReturningOutput,
		TableExistsQuery:    "SELECT 1 FROM sysobjects WHERE xtype = 'u' AND name = @name",
		DatabaseExistsQuery: "SELECT 1 FROM sys.databases WHERE name = @name",
		TruncateFormat:      "TRUNCATE TABLE %s",
	},
	"postgres": {
		Name:                "postgres",
		DriverName:          "pgx",
		Token:               "@",
		Placeholder:         PlaceholderDollar,
		Returning:           ReturningClause,
		TableExistsQuery:    "SELECT 1 FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = @name",
		DatabaseExistsQuery: "SELECT 1 FROM pg_database WHERE datname = @name",
		TruncateFormat:      "TRUNCATE TABLE %s",
	},
	"mysql": {
		Name:                "mysql",
		DriverName:          "mysql",
		Token:               "@",
		Placeholder:         PlaceholderQuestion,
		Returning:           ReturningNone,
		TableExistsQuery:    "SELECT 1 FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = @name",
		DatabaseExistsQuery: "SELECT 1 FROM information_schema.schemata WHERE schema_name = @name",
		TruncateFormat:      "TRUNCATE TABLE %s",
	},
	"sqlite": {
		Name:             "sqlite",
		DriverName:       "sqlite",
		Token:            "@",
		Placeholder:      PlaceholderQuestion,
		Returning:        ReturningClause,
		TableExistsQuery: "SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = @name",
		TruncateFormat:   "DELETE FROM %s",
	},
	"oracle": {
		Name:             "oracle",
		DriverName:       "godror",
		Token:            ":",
		Placeholder:      PlaceholderNamed,
		Returning:        ReturningNone,
		TableExistsQuery: "SELECT 1 FROM user_tables WHERE table_name = UPPER(:name)",
		TruncateFormat:   "TRUNCATE TABLE %s",
	},
}

var providerAliases = map[string]string{
	"mssql":                    "sqlserver",
	"system.data.sqlclient":    "sqlserver",
	"pgx":                      "postgres",
	"postgresql":               "postgres",
	"pg":                       "postgres",
	"sqlite3":                  "sqlite",
	"godror":                   "oracle",
	"system.data.oracleclient": "oracle",
}

// LookupProvider resolves a provider identity (case-insensitive, common
// aliases accepted) to its Provider. Unknown names fail with
// ErrUnsupportedProvider.
//
// The oracle entry names the "godror" driver, which this module does not
// import; register it in the program that uses it.
func LookupProvider(name string) (Provider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := providerAliases[key]; ok {
		key = alias
	}
	p, ok := builtinProviders[key]
	if !ok {
		return Provider{}, fmt.Errorf("%w: %q", ErrUnsupportedProvider, name)
	}
	return p, nil
}

// MustProvider is LookupProvider for package-level setup; it panics on unknown names.
func MustProvider(name string) Provider {
	p, err := LookupProvider(name)
	if err != nil {
		panic(err)
	}
	return p
}
