package dbconn

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
)

func TestSettings_AddGetRemove(t *testing.T) {
	r := NewSettings()
	if err := r.Add(Setting{Name: "main", DSN: "dsn1", Provider: "sqlserver"}, true); err != nil {
		t.Fatal(err)
	}
	if err := r.AddSQLServer("audit", "dsn2", false); err != nil {
		t.Fatal(err)
	}

	eq(t, r.Len(), 2, "len")
	if !reflect.DeepEqual(r.Names(), []string{"audit", "main"}) {
		t.Fatalf("names %v", r.Names())
	}
	s, ok := r.Get("audit")
	if !ok || s.DSN != "dsn2" || s.Provider != "sqlserver" {
		t.Fatalf("get: %#v %v", s, ok)
	}
	d, ok := r.Default()
	if !ok || d.Name != "main" {
		t.Fatalf("default: %#v %v", d, ok)
	}

	if !r.Remove("main") {
		t.Fatal("remove main")
	}
	if _, ok := r.Default(); ok {
		t.Fatal("removing the default clears it")
	}
	if r.Remove("main") {
		t.Fatal("second remove")
	}
	eq(t, r.Contains("audit"), true, "contains")
}

func TestSettings_AddRejects(t *testing.T) {
	r := NewSettings()
	if err := r.Add(Setting{Name: "x", Provider: "postgres"}, false); err != nil {
		t.Fatal(err)
	}
	if err := r.Add(Setting{Name: "x", Provider: "postgres"}, false); !errors.Is(err, ErrSettingExists) {
		t.Fatalf("duplicate: %v", err)
	}
	if err := r.Add(Setting{Name: "y", Provider: "db2"}, false); !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("provider: %v", err)
	}
	if err := r.Add(Setting{Provider: "postgres"}, false); err == nil {
		t.Fatal("name required")
	}
	if err := r.SetDefault("nope"); !errors.Is(err, ErrSettingNotFound) {
		t.Fatalf("set default: %v", err)
	}
}

func TestSettings_ConcurrentAddOnce(t *testing.T) {
	r := NewSettings()
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Add(Setting{Name: "same", Provider: "sqlite"}, false) == nil {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	eq(t, won, 1, "exactly one Add succeeds")
}

func TestSettings_Connect(t *testing.T) {
	r := NewSettings()
	ctx := context.Background()
	if _, err := r.Connect(ctx, ""); !errors.Is(err, ErrSettingNotFound) {
		t.Fatalf("no default: %v", err)
	}
	if _, err := r.Connect(ctx, "nope"); !errors.Is(err, ErrSettingNotFound) {
		t.Fatalf("unknown: %v", err)
	}

	if err := r.Add(Setting{Name: "mem", Provider: "sqlserver"}, true); err != nil {
		t.Fatal(err)
	}
	s, err := r.Connect(ctx, "", WithDB(newTestDB(t, &fakeDB{})))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	eq(t, s.Provider().Name, "sqlserver", "provider from setting")
	eq(t, s.State(), StateOpen, "opened")
}
