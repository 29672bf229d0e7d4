package cmd

import (
	"path/filepath"
	"testing"
)

func TestResolveDBPath_EnvOverride(t *testing.T) {
	t.Setenv("PEERDEX_DB", "/tmp/custom.db")
	got, err := ResolveDBPath()
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/custom.db" {
		t.Errorf("got %q, want /tmp/custom.db", got)
	}
}

func TestResolveDBPath_Flag(t *testing.T) {
	t.Setenv("PEERDEX_DB", "")
	dbPath = "/tmp/flagged.db"
	t.Cleanup(func() { dbPath = "" })

	got, err := ResolveDBPath()
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/flagged.db" {
		t.Errorf("got %q, want /tmp/flagged.db", got)
	}
}

func TestResolveDBPath_Default(t *testing.T) {
	t.Setenv("PEERDEX_DB", "")
	dbPath = ""

	got, err := ResolveDBPath()
	if err != nil {
		t.Skipf("no user config dir available: %v", err)
	}
	if filepath.Base(got) != "peerdex.db" {
		t.Errorf("default path = %q, want .../peerdex/peerdex.db", got)
	}
	if filepath.Base(filepath.Dir(got)) != "peerdex" {
		t.Errorf("default path = %q, want a peerdex config dir", got)
	}
}
