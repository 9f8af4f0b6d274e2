package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Default()
	cfg.ListenAddr = "0.0.0.0:9000"
	cfg.JWTSecret = "s3cret"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.ListenAddr != "0.0.0.0:9000" {
		t.Errorf("ListenAddr = %q, want %q", loaded.ListenAddr, "0.0.0.0:9000")
	}
	if loaded.JWTSecret != "s3cret" {
		t.Errorf("JWTSecret = %q, want %q", loaded.JWTSecret, "s3cret")
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestLoadFillsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")
	if err := os.WriteFile(path, []byte("jwt_secret = \"abc\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ListenAddr == "" {
		t.Error("ListenAddr default not applied")
	}
	if cfg.TokenTTLHours != 24 {
		t.Errorf("TokenTTLHours = %d, want 24", cfg.TokenTTLHours)
	}
	if len(cfg.STUNServers) == 0 {
		t.Error("STUNServers default not applied")
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
