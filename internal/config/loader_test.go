package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "bridge_addr: 127.0.0.1:9999\ndata_dir: /tmp/anim\nbackend_bin: /opt/backend\nlog_level: debug\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BridgeAddr != "127.0.0.1:9999" || cfg.DataDir != "/tmp/anim" || cfg.BackendBin != "/opt/backend" || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"bridge_addr":"127.0.0.1:7070","static_dir":"/s","ui_origin":"http://localhost:5173"}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BridgeAddr != "127.0.0.1:7070" || cfg.StaticDir != "/s" || cfg.UIOrigin != "http://localhost:5173" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "bridge_addr=\"127.0.0.1:8081\"\nsamples_dir=\"/n\"\nlog_level=\"warn\"\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BridgeAddr != "127.0.0.1:8081" || cfg.SamplesDir != "/n" || cfg.LogLevel != "warn" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.ini", "x=1")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected error on unsupported extension")
	}
	if _, err := Load(filepath.Join(d, "missing.toml")); err == nil {
		t.Fatalf("expected error on missing file")
	}
}

func TestNormalizeDefaults(t *testing.T) {
	var cfg Config
	if err := cfg.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.BridgeAddr == "" || cfg.UIOrigin == "" || cfg.LogLevel != "info" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if strings.HasPrefix(cfg.DataDir, "~") {
		t.Fatalf("data dir not expanded: %s", cfg.DataDir)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}
	got, err := ExpandHome("~/x")
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if got != filepath.Join(home, "x") {
		t.Fatalf("unexpected expansion: %s", got)
	}
	if got, _ := ExpandHome("/abs"); got != "/abs" {
		t.Fatalf("absolute path changed: %s", got)
	}
}
