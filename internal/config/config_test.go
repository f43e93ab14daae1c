package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

func newFlagSet(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	f := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(f)
	if err := f.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return f
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newFlagSet(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DB != "retain.db" {
		t.Errorf("db = %q, want retain.db", cfg.DB)
	}
	if cfg.Listen != "localhost:8484" {
		t.Errorf("listen = %q, want localhost:8484", cfg.Listen)
	}
	if cfg.PageSize != 50 {
		t.Errorf("page_size = %d, want 50", cfg.PageSize)
	}
}

func TestLoadFlagOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("db: from-file.db\nlisten: localhost:9000\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	f := newFlagSet(t, "--config", path, "--db", "from-flag.db")
	cfg, err := Load(f)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DB != "from-flag.db" {
		t.Errorf("db = %q, explicit flag should win over file", cfg.DB)
	}
	if cfg.Listen != "localhost:9000" {
		t.Errorf("listen = %q, file should win over unset flag default", cfg.Listen)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("page_size: 10\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RETAIN_PAGE_SIZE", "25")

	cfg, err := Load(newFlagSet(t, "--config", path))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PageSize != 25 {
		t.Errorf("page_size = %d, want env value 25", cfg.PageSize)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad listen address", []string{"--listen", "not-an-address"}},
		{"page size too small", []string{"--page_size", "0"}},
		{"page size too large", []string{"--page_size", "10000"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(newFlagSet(t, tc.args...)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	if _, err := Load(newFlagSet(t, "--config", "/does/not/exist.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
