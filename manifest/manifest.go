// Package manifest handles bblang.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the project configuration file.
const FileName = "bblang.toml"

// Defaults used when a table or key is absent.
const (
	DefaultCachePath    = ".bblang/cache.db"
	DefaultDisasmFormat = "text"
)

// Manifest represents a bblang.toml project configuration.
type Manifest struct {
	Project Project      `toml:"project"`
	Build   BuildConfig  `toml:"build"`
	Cache   CacheConfig  `toml:"cache"`
	Disasm  DisasmConfig `toml:"disasm"`

	// Dir is the directory containing the bblang.toml file (set at load time).
	// Empty for the built-in defaults.
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// BuildConfig configures the compiler.
type BuildConfig struct {
	Output string `toml:"output"` // container path, relative to Dir
	Debug  bool   `toml:"debug"`  // same as passing -d
}

// CacheConfig configures the build cache.
type CacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"` // database path, relative to Dir
}

// DisasmConfig configures the disassembler.
type DisasmConfig struct {
	Format string `toml:"format"` // "text" or "cbor"
}

// Default returns the configuration used when no bblang.toml exists.
func Default() *Manifest {
	m := &Manifest{Cache: CacheConfig{Enabled: true}}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.Cache.Path == "" {
		m.Cache.Path = DefaultCachePath
	}
	if m.Disasm.Format == "" {
		m.Disasm.Format = DefaultDisasmFormat
	}
}

// Validate checks values that have a fixed set of choices.
func (m *Manifest) Validate() error {
	switch m.Disasm.Format {
	case "text", "cbor":
	default:
		return fmt.Errorf("disasm.format must be \"text\" or \"cbor\", got %q", m.Disasm.Format)
	}
	return nil
}

// Load parses a bblang.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses the configuration file at path. Relative paths inside it
// resolve against the file's directory.
func LoadFile(path string) (*Manifest, error) {
	dir := filepath.Dir(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	// Keys missing from the file keep these values.
	m := Manifest{Cache: CacheConfig{Enabled: true}}
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a bblang.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// resolve makes a configured path absolute against the manifest directory.
func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// OutputPath returns where the container for input is written: build.output
// when set, otherwise input with its extension replaced by .bcx.
func (m *Manifest) OutputPath(input string) string {
	if m.Build.Output != "" {
		return m.resolve(m.Build.Output)
	}
	return DefaultOutputPath(input)
}

// DefaultOutputPath replaces the extension of input with .bcx.
func DefaultOutputPath(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + ".bcx"
}

// CachePath returns the path of the build cache database.
func (m *Manifest) CachePath() string {
	return m.resolve(m.Cache.Path)
}
