package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	content := `
search_paths = ["./src", "./lib"]

[dialects.ruby]
enabled = false

[dialects.python]
extensions = [".py", ".pyx"]

[watch]
paths = ["./src"]
debounce = "250ms"
exclude = ["*.tmp"]

[store]
path = "clbr.db"

[server]
addr = ":9190"
otlp_endpoint = "localhost:4317"

[limits]
scans_per_second = 5.0
burst = 10
`
	path := filepath.Join(t.TempDir(), "clbr.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if len(cfg.SearchPaths) != 2 || cfg.SearchPaths[0] != "./src" {
		t.Errorf("SearchPaths = %v", cfg.SearchPaths)
	}
	ruby := cfg.Dialects["ruby"]
	if ruby.Enabled == nil || *ruby.Enabled {
		t.Error("ruby should be disabled")
	}
	python := cfg.Dialects["python"]
	if len(python.Extensions) != 2 || python.Extensions[1] != ".pyx" {
		t.Errorf("python extensions = %v", python.Extensions)
	}
	if cfg.Watch.Debounce != 250*time.Millisecond {
		t.Errorf("debounce = %v", cfg.Watch.Debounce)
	}
	if cfg.Store.Path != "clbr.db" {
		t.Errorf("store path = %q", cfg.Store.Path)
	}
	if cfg.Server.Addr != ":9190" || cfg.Server.OTLPEndpoint != "localhost:4317" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Limits.ScansPerSecond != 5.0 || cfg.Limits.Burst != 10 {
		t.Errorf("limits = %+v", cfg.Limits)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	if len(cfg.SearchPaths) != 1 || cfg.SearchPaths[0] != "." {
		t.Errorf("SearchPaths = %v", cfg.SearchPaths)
	}
	if cfg.Watch.Debounce != 500*time.Millisecond {
		t.Errorf("debounce = %v", cfg.Watch.Debounce)
	}
	if len(cfg.Watch.Paths) != 1 || cfg.Watch.Paths[0] != "." {
		t.Errorf("watch paths = %v", cfg.Watch.Paths)
	}
	if cfg.Limits.ScansPerSecond == 0 || cfg.Limits.Burst == 0 {
		t.Errorf("limits not defaulted: %+v", cfg.Limits)
	}
}
