package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInitializeDefaults(t *testing.T) {
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if GetString("rootUser") != "admin" {
		t.Errorf("expected default rootUser %q, got %q", "admin", GetString("rootUser"))
	}
	if GetString("dbPath") != "polytope.db" {
		t.Errorf("expected default dbPath %q, got %q", "polytope.db", GetString("dbPath"))
	}
	if GetDuration("lockTimeout").Seconds() != 30 {
		t.Errorf("expected default lockTimeout 30s, got %s", GetDuration("lockTimeout"))
	}
}

func TestInitializeEnvOverride(t *testing.T) {
	t.Setenv("POLY_ROOTUSER", "alice")
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if GetString("rootUser") != "alice" {
		t.Errorf("expected env override rootUser %q, got %q", "alice", GetString("rootUser"))
	}
}

func TestLoadDescriptor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "polytope.toml")
	content := `
bind_addr = "0.0.0.0:9000"
db_path = "/var/lib/polytope/depot.db"
root_user = "root"
root_email = "root@example.com"

[[projects]]
name = "widgets"
description = "widget catalog"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	d, err := LoadDescriptor(path)
	if err != nil {
		t.Fatalf("LoadDescriptor failed: %v", err)
	}
	if d.BindAddr != "0.0.0.0:9000" {
		t.Errorf("expected bind_addr %q, got %q", "0.0.0.0:9000", d.BindAddr)
	}
	if len(d.Projects) != 1 || d.Projects[0].Name != "widgets" {
		t.Errorf("expected one project named widgets, got %+v", d.Projects)
	}
}

func TestLoadDescriptorMissingFile(t *testing.T) {
	if _, err := LoadDescriptor(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected an error loading a nonexistent descriptor")
	}
}
