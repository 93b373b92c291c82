package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "hello"
version = "0.1.0"

[build]
output = "build/hello.bcx"
debug = true

[cache]
enabled = false
path = "tmp/cache.db"

[disasm]
format = "cbor"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "hello" {
		t.Errorf("project name = %q, want hello", m.Project.Name)
	}
	if m.Project.Version != "0.1.0" {
		t.Errorf("project version = %q, want 0.1.0", m.Project.Version)
	}
	if m.Build.Output != "build/hello.bcx" {
		t.Errorf("build output = %q, want build/hello.bcx", m.Build.Output)
	}
	if !m.Build.Debug {
		t.Error("build debug = false, want true")
	}
	if m.Cache.Enabled {
		t.Error("cache enabled = true, want false")
	}
	if m.Disasm.Format != "cbor" {
		t.Errorf("disasm format = %q, want cbor", m.Disasm.Format)
	}

	abs, _ := filepath.Abs(dir)
	if m.Dir != abs {
		t.Errorf("Dir = %q, want %q", m.Dir, abs)
	}
	if got, want := m.OutputPath("main.bbx"), filepath.Join(abs, "build", "hello.bcx"); got != want {
		t.Errorf("OutputPath = %q, want %q", got, want)
	}
	if got, want := m.CachePath(), filepath.Join(abs, "tmp", "cache.db"); got != want {
		t.Errorf("CachePath = %q, want %q", got, want)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "minimal"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !m.Cache.Enabled {
		t.Error("default cache enabled = false, want true")
	}
	if m.Cache.Path != DefaultCachePath {
		t.Errorf("default cache path = %q, want %q", m.Cache.Path, DefaultCachePath)
	}
	if m.Disasm.Format != "text" {
		t.Errorf("default disasm format = %q, want text", m.Disasm.Format)
	}
	if m.Build.Debug {
		t.Error("default build debug = true, want false")
	}
	if got := m.OutputPath("src/prog.bbx"); got != "src/prog.bcx" {
		t.Errorf("OutputPath = %q, want src/prog.bcx", got)
	}
}

func TestLoadManifestErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", "[project\nname = 1", "parse error"},
		{"type", "[build]\ndebug = \"yes\"", "parse error"},
		{"format", "[disasm]\nformat = \"json\"", "disasm.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeManifest(t, dir, tt.content)
			_, err := Load(dir)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("expected error for missing bblang.toml")
	}
}

func TestFindAndLoad(t *testing.T) {
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, dir, `[project]
name = "found-project"
`)

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Project.Name != "found-project" {
		t.Errorf("project name = %q, want found-project", m.Project.Name)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no bblang.toml exists")
	}
}

func TestDefault(t *testing.T) {
	m := Default()
	if !m.Cache.Enabled || m.Cache.Path != DefaultCachePath || m.Disasm.Format != "text" {
		t.Errorf("Default() = %+v", m)
	}
	if err := m.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	// Without a directory, paths stay relative to the working directory.
	if got := m.CachePath(); got != DefaultCachePath {
		t.Errorf("CachePath = %q, want %q", got, DefaultCachePath)
	}
}

func TestDefaultOutputPath(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"prog.bbx", "prog.bcx"},
		{"dir/prog.src", "dir/prog.bcx"},
		{"noext", "noext.bcx"},
		{"a.b/prog", "a.b/prog.bcx"},
	}

	for _, tt := range tests {
		if got := DefaultOutputPath(tt.input); got != tt.want {
			t.Errorf("DefaultOutputPath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestOutputPathAbsolute(t *testing.T) {
	m := &Manifest{Dir: "/proj", Build: BuildConfig{Output: "/tmp/out.bcx"}}
	if got := m.OutputPath("x.bbx"); got != "/tmp/out.bcx" {
		t.Errorf("OutputPath = %q, want /tmp/out.bcx", got)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.toml")
	if err := os.WriteFile(path, []byte("[build]\noutput = \"out/x.bcx\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	abs, _ := filepath.Abs(dir)
	if got, want := m.OutputPath("a.bbx"), filepath.Join(abs, "out", "x.bcx"); got != want {
		t.Errorf("OutputPath = %q, want %q", got, want)
	}
}
