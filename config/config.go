// Package config holds rvtx's translation-time settings: the target
// backend, the syscall table preset, the tracer header path, the hot
// register set override, and the HTIF symbol name: a
// BurntSushi/toml-tagged nested struct, a DefaultConfig constructor, and
// a platform-specific GetConfigPath resolver. compile merges CLI flags
// over a loaded (or default) Config, with CLI flags taking precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Config is rvtx's translation-time configuration.
type Config struct {
	// Target settings: which backend to emit and for which guest width.
	Target struct {
		Backend  string   `toml:"backend"`     // "c", "x86", or "arm64"
		Syscalls string   `toml:"syscalls"`    // "baremetal" or "linux"
		HotRegs  []int    `toml:"hot_regs"`    // override regalloc's default hot set; empty uses the backend default
		HTIFSym  string   `toml:"htif_symbol"` // ELF symbol name watched for the HTIF halt protocol
		Exports  []string `toml:"exports"`     // symbol names seeded into CFG discovery alongside the entry point
	} `toml:"target"`

	// Runtime settings. MemWindowBytes sizes the guest memory window for
	// `rvtx compile`/`rvtx lift`; `rvtx run` takes its window from its own
	// flag, and no command reads MaxCycles.
	Runtime struct {
		MaxCycles      uint64 `toml:"max_cycles"`
		MemWindowBytes uint64 `toml:"mem_window_bytes"`
	} `toml:"runtime"`

	// Tracer settings.
	Tracer struct {
		HeaderPath string `toml:"header_path"` // empty emits the no-op default header
	} `toml:"tracer"`

	// Toolchain settings, consumed by `rvtx compile`.
	Toolchain struct {
		CC    string   `toml:"cc"`
		Flags []string `toml:"flags"`
	} `toml:"toolchain"`
}

// DefaultConfig returns a configuration with default values: the C
// backend, the fuller "linux" syscall table, a 256MiB guest memory
// window, and "tohost" as the HTIF symbol name (the riscv-tests
// convention).
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Target.Backend = "c"
	cfg.Target.Syscalls = "linux"
	cfg.Target.HTIFSym = "tohost"

	cfg.Runtime.MaxCycles = 100_000_000
	cfg.Runtime.MemWindowBytes = 256 << 20

	cfg.Toolchain.CC = "cc"

	return cfg
}

// GetConfigPath returns the platform-specific config file path.
func GetConfigPath() string {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		configDir = filepath.Join(configDir, "rvtx")

	case "darwin", "linux":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "rvtx.toml"
		}
		configDir = filepath.Join(homeDir, ".config", "rvtx")

	default:
		return "rvtx.toml"
	}

	if err := os.MkdirAll(configDir, 0750); err != nil {
		return "rvtx.toml"
	}

	return filepath.Join(configDir, "rvtx.toml")
}

// Load loads configuration from the default config file.
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom loads configuration from the specified file. A missing file
// is not an error: DefaultConfig is returned unchanged.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Save saves configuration to the default config file.
func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

// SaveTo saves configuration to the specified file.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path) // #nosec G304 -- user config file path
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}
