package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Target.Backend != "c" {
		t.Errorf("Expected Backend=c, got %s", cfg.Target.Backend)
	}
	if cfg.Target.Syscalls != "linux" {
		t.Errorf("Expected Syscalls=linux, got %s", cfg.Target.Syscalls)
	}
	if cfg.Target.HTIFSym != "tohost" {
		t.Errorf("Expected HTIFSym=tohost, got %s", cfg.Target.HTIFSym)
	}
	if cfg.Runtime.MaxCycles != 100_000_000 {
		t.Errorf("Expected MaxCycles=100000000, got %d", cfg.Runtime.MaxCycles)
	}
	if cfg.Runtime.MemWindowBytes != 256<<20 {
		t.Errorf("Expected MemWindowBytes=256MiB, got %d", cfg.Runtime.MemWindowBytes)
	}
	if cfg.Toolchain.CC != "cc" {
		t.Errorf("Expected CC=cc, got %s", cfg.Toolchain.CC)
	}
}

func TestGetConfigPath(t *testing.T) {
	path := GetConfigPath()

	if path == "" {
		t.Error("GetConfigPath returned empty string")
	}
	if filepath.Base(path) != "rvtx.toml" {
		t.Errorf("Expected path to end with rvtx.toml, got %s", path)
	}

	switch runtime.GOOS {
	case "windows":
		if !filepath.IsAbs(path) && path != "rvtx.toml" {
			t.Errorf("Expected absolute path on Windows, got %s", path)
		}
	case "darwin", "linux":
		dir := filepath.Dir(path)
		if filepath.Base(dir) != "rvtx" && path != "rvtx.toml" {
			t.Errorf("Expected path in rvtx directory or fallback, got %s", path)
		}
	}
}

func TestSaveAndLoad(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "test_config.toml")

	cfg := DefaultConfig()
	cfg.Target.Backend = "arm64"
	cfg.Target.Syscalls = "baremetal"
	cfg.Target.HotRegs = []int{2, 1, 10}
	cfg.Runtime.MaxCycles = 5000000
	cfg.Tracer.HeaderPath = "/tmp/my_tracer.h"

	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatal("Config file was not created")
	}

	loaded, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loaded.Target.Backend != "arm64" {
		t.Errorf("Expected Backend=arm64, got %s", loaded.Target.Backend)
	}
	if loaded.Target.Syscalls != "baremetal" {
		t.Errorf("Expected Syscalls=baremetal, got %s", loaded.Target.Syscalls)
	}
	if len(loaded.Target.HotRegs) != 3 || loaded.Target.HotRegs[2] != 10 {
		t.Errorf("Expected HotRegs=[2,1,10], got %v", loaded.Target.HotRegs)
	}
	if loaded.Runtime.MaxCycles != 5000000 {
		t.Errorf("Expected MaxCycles=5000000, got %d", loaded.Runtime.MaxCycles)
	}
	if loaded.Tracer.HeaderPath != "/tmp/my_tracer.h" {
		t.Errorf("Expected HeaderPath=/tmp/my_tracer.h, got %s", loaded.Tracer.HeaderPath)
	}
}

func TestLoadNonExistent(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "nonexistent.toml")

	cfg, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("LoadFrom should not error on non-existent file: %v", err)
	}
	if cfg.Target.Backend != "c" {
		t.Error("Expected default config when file doesn't exist")
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "invalid.toml")

	invalidTOML := `
[runtime]
max_cycles = "not a number"
`
	if err := os.WriteFile(configPath, []byte(invalidTOML), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	if _, err := LoadFrom(configPath); err == nil {
		t.Error("Expected error when loading invalid TOML")
	}
}

func TestSaveCreatesDirectory(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "subdir1", "subdir2", "rvtx.toml")

	cfg := DefaultConfig()
	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("Config file was not created")
	}
	dir := filepath.Dir(configPath)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Error("Parent directories were not created")
	}
}
