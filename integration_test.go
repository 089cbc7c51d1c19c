//go:build integration

package dbconn

import (
	"context"
	"database/sql"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	testcontainers "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// selectedIntegrationDrivers chooses which providers run under the integration tag.
// INTEGRATION_DRIVER may be "all" (default) or a comma-separated list such as "postgres,mysql".
func selectedIntegrationDrivers() map[string]bool {
	selected := map[string]bool{
		"sqlite":    true,
		"postgres":  true,
		"mysql":     true,
		"sqlserver": true,
	}
	value := strings.TrimSpace(strings.ToLower(os.Getenv("INTEGRATION_DRIVER")))
	if value == "" || value == "all" {
		return selected
	}
	for key := range selected {
		selected[key] = false
	}
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		selected[part] = true
	}
	return selected
}

type containerSpec struct {
	image string
	port  string
	env   map[string]string
	wait  wait.Strategy
	dsn   func(addr string) string
	ddl   string
}

var integrationSpecs = map[string]containerSpec{
	"postgres": {
		image: "postgres:16-bookworm",
		port:  "5432/tcp",
		env:   map[string]string{"POSTGRES_PASSWORD": "pass", "POSTGRES_USER": "user", "POSTGRES_DB": "app"},
		wait:  wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
		dsn:   func(addr string) string { return "postgres://user:pass@" + addr + "/app?sslmode=disable" },
		ddl:   `CREATE TABLE titem (id INT PRIMARY KEY, name VARCHAR(50) NULL, date TIMESTAMP NULL)`,
	},
	"mysql": {
		image: "mysql:8",
		port:  "3306/tcp",
		env: map[string]string{
			"MYSQL_ROOT_PASSWORD": "pass",
			"MYSQL_DATABASE":      "app",
			"MYSQL_USER":          "user",
			"MYSQL_PASSWORD":      "pass",
		},
		wait: wait.ForAll(
			wait.ForListeningPort("3306/tcp").WithStartupTimeout(90*time.Second),
			wait.ForLog("ready for connections").WithOccurrence(2).WithStartupTimeout(90*time.Second),
		),
		dsn: func(addr string) string { return "user:pass@tcp(" + addr + ")/app?parseTime=true" },
		ddl: `CREATE TABLE titem (id INT PRIMARY KEY, name VARCHAR(50) NULL, date DATETIME NULL)`,
	},
	"sqlserver": {
		image: "mcr.microsoft.com/mssql/server:2022-latest",
		port:  "1433/tcp",
		env:   map[string]string{"ACCEPT_EULA": "Y", "MSSQL_SA_PASSWORD": "Str0ng!Passw0rd"},
		wait: wait.ForAll(
			wait.ForListeningPort("1433/tcp").WithStartupTimeout(120*time.Second),
			wait.ForLog("SQL Server is now ready for client connections").WithStartupTimeout(120*time.Second),
		),
		dsn: func(addr string) string { return "sqlserver://sa:Str0ng!Passw0rd@" + addr + "?database=master" },
		ddl: `CREATE TABLE titem (id INT PRIMARY KEY, name NVARCHAR(50) NULL, date DATETIME2 NULL)`,
	},
}

func startContainer(t *testing.T, ctx context.Context, spec containerSpec) string {
	t.Helper()
	req := testcontainers.ContainerRequest{
		Image:        spec.image,
		Env:          spec.env,
		ExposedPorts: []string{spec.port},
		WaitingFor:   spec.wait,
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start %s container: %v", spec.image, err)
	}
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = container.Terminate(shutdownCtx)
	})
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("%s container host: %v", spec.image, err)
	}
	port, err := container.MappedPort(ctx, nat.Port(spec.port))
	if err != nil {
		t.Fatalf("%s container port: %v", spec.image, err)
	}
	return net.JoinHostPort(host, port.Port())
}

func TestIntegration_Providers(t *testing.T) {
	drivers := selectedIntegrationDrivers()
	ctx := context.Background()

	if drivers["sqlite"] {
		t.Run("sqlite", func(t *testing.T) {
			set := sqliteSetting(t)
			runContract(t, set, `CREATE TABLE titem (id INTEGER PRIMARY KEY, name TEXT NULL, date DATETIME NULL)`)
		})
	}
	for _, name := range []string{"postgres", "mysql", "sqlserver"} {
		if !drivers[name] {
			continue
		}
		spec := integrationSpecs[name]
		t.Run(name, func(t *testing.T) {
			addr := startContainer(t, ctx, spec)
			set := Setting{Name: name, DSN: spec.dsn(addr), Provider: name}
			waitReady(t, set)
			runContract(t, set, spec.ddl)
		})
	}
}

// waitReady retries Open until the server accepts sessions.
func waitReady(t *testing.T, set Setting) {
	t.Helper()
	deadline := time.Now().Add(60 * time.Second)
	for {
		s, err := ConnectWith(context.Background(), set)
		if err == nil {
			if _, err = s.ExecScalar(context.Background(), "SELECT 1", nil); err == nil {
				_ = s.Close()
				return
			}
			_ = s.Close()
		}
		if time.Now().After(deadline) {
			t.Fatalf("%s never became ready: %v", set.Provider, err)
		}
		time.Sleep(time.Second)
	}
}

func runContract(t *testing.T, set Setting, ddl string) {
	ctx := context.Background()

	s, err := ConnectWith(ctx, set)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Exec(ctx, ddl, nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	ok, err := s.ExistsTable(ctx, "titem")
	if err != nil || !ok {
		t.Fatalf("exists table: (%v, %v)", ok, err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	// writes inside a transaction, committed on Close
	s, err = ConnectWith(ctx, set, WithIsolation(sql.LevelReadCommitted))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Insert(ctx, "titem", map[string]any{"id": 123, "name": "Test"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Insert(ctx, "titem", NewBag().With("id", 456).WithNull("name")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = ConnectWith(ctx, set)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	name, err := ScalarAs[string](ctx, s, "titem", "name", map[string]any{"id": 123})
	if err != nil || name != "Test" {
		t.Fatalf("scalar: (%q, %v)", name, err)
	}
	date, err := ScalarAs[*time.Time](ctx, s, "titem", "date", map[string]any{"id": 123})
	if err != nil || date != nil {
		t.Fatalf("NULL date: (%v, %v)", date, err)
	}
	pairs, err := Pair[int64, *string](ctx, s, "titem", "id", "name", nil)
	if err != nil || len(pairs) != 2 || pairs[456] != nil || *pairs[123] != "Test" {
		t.Fatalf("pairs: (%v, %v)", pairs, err)
	}
	n, err := s.Update(ctx, "titem", map[string]any{"name": "Renamed"}, map[string]any{"id": 123})
	if err != nil || n != 1 {
		t.Fatalf("update: (%d, %v)", n, err)
	}
	ok, err = s.Exists(ctx, "titem", NewBag().WithNull("name"))
	if err != nil || !ok {
		t.Fatalf("exists IS NULL: (%v, %v)", ok, err)
	}
	n, err = s.Delete(ctx, "titem", map[string]any{"id": 456})
	if err != nil || n != 1 {
		t.Fatalf("delete: (%d, %v)", n, err)
	}
	if err := s.Truncate(ctx, "titem"); err != nil {
		t.Fatal(err)
	}
	if err := s.Drop(ctx, "titem"); err != nil {
		t.Fatal(err)
	}
	ok, err = s.ExistsTable(ctx, "titem")
	if err != nil || ok {
		t.Fatalf("dropped: (%v, %v)", ok, err)
	}
}
