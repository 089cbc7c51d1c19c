package dbconn

import (
	"errors"
	"testing"
)

func TestLookupProvider_Aliases(t *testing.T) {
	cases := map[string]string{
		"sqlserver":             "sqlserver",
		"MSSQL":                 "sqlserver",
		"System.Data.SqlClient": "sqlserver",
		" postgresql ":          "postgres",
		"pgx":                   "postgres",
		"sqlite3":               "sqlite",
		"mysql":                 "mysql",
		"godror":                "oracle",
	}
	for in, want := range cases {
		p, err := LookupProvider(in)
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		eq(t, p.Name, want, in)
	}
}

func TestLookupProvider_Unknown(t *testing.T) {
	if _, err := LookupProvider("db2"); !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("want ErrUnsupportedProvider, got %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Fatal("MustProvider should panic")
		}
	}()
	MustProvider("db2")
}

func TestProvider_Dialects(t *testing.T) {
	ss := MustProvider("sqlserver")
	eq(t, ss.Placeholder, PlaceholderNamed, "sqlserver binds by name")
	eq(t, ss.Returning, ReturningOutput, "sqlserver OUTPUT")

	pg := MustProvider("postgres")
	eq(t, pg.DriverName, "pgx", "pgx stdlib driver")
	eq(t, pg.Placeholder, PlaceholderDollar, "dollar")

	ora := MustProvider("oracle")
	eq(t, string(ora.token()), ":", "oracle token")
	eq(t, ora.fragments().Placeholder("ID"), ":ID", "oracle placeholder")

	eq(t, string(Provider{}.token()), "@", "default token")
	if err := pg.unsupported("x"); !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("unsupported: %v", err)
	}
}

func TestPositional(t *testing.T) {
	eq(t, positional(PlaceholderDollar, 3), "$3", "dollar")
	eq(t, positional(PlaceholderAtP, 12), "@p12", "atp")
	eq(t, positional(PlaceholderColonNum, 2), ":2", "colon")
	eq(t, positional(PlaceholderQuestion, 9), "?", "question")
}
