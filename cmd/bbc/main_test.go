package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/bblang/bytecode"
	"github.com/chazu/bblang/cache"
)

const helloSource = `fn main() {
    PRINTLN("hi");
    HALT;
}
`

// writeProject creates a project directory with a bblang.toml so the cache
// stays inside the temp dir.
func writeProject(t *testing.T, manifest, source string) (dir, input string) {
	t.Helper()
	dir = t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bblang.toml"), []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}
	input = filepath.Join(dir, "hello.bbx")
	if err := os.WriteFile(input, []byte(source), 0644); err != nil {
		t.Fatal(err)
	}
	return dir, input
}

func TestRunCompiles(t *testing.T) {
	dir, input := writeProject(t, "[project]\nname = \"hello\"\n", helloSource)

	var stdout, stderr bytes.Buffer
	if code := run([]string{input}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit = %d, stderr = %q", code, stderr.String())
	}
	if got := stdout.String(); got != "Compilation successful (bblang).\n" {
		t.Errorf("stdout = %q", got)
	}

	data, err := os.ReadFile(filepath.Join(dir, "hello.bcx"))
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	want := []byte{'b', 'c', 'x', 0, 0, 0, 0, 0,
		byte(bytecode.OpWrite), 1, 2, 'h', 'i', byte(bytecode.OpNewline), byte(bytecode.OpHalt)}
	if !bytes.Equal(data, want) {
		t.Errorf("output = % x, want % x", data, want)
	}
}

func TestRunExplicitOutput(t *testing.T) {
	dir, input := writeProject(t, "", helloSource)
	out := filepath.Join(dir, "nested", "prog.bcx")

	var stdout, stderr bytes.Buffer
	if code := run([]string{"-no-cache", input, out}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit = %d, stderr = %q", code, stderr.String())
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("output not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".bblang")); !os.IsNotExist(err) {
		t.Errorf("-no-cache still created the cache directory (err = %v)", err)
	}
}

func TestRunManifestOutputAndCache(t *testing.T) {
	dir, input := writeProject(t, `
[build]
output = "build/app.bcx"

[cache]
path = "cache.db"
`, helloSource)

	for i := 0; i < 2; i++ {
		var stdout, stderr bytes.Buffer
		if code := run([]string{input}, &stdout, &stderr); code != 0 {
			t.Fatalf("run %d: exit = %d, stderr = %q", i, code, stderr.String())
		}
	}

	if _, err := os.Stat(filepath.Join(dir, "build", "app.bcx")); err != nil {
		t.Errorf("manifest output not written: %v", err)
	}

	c, err := cache.Open(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatalf("opening cache: %v", err)
	}
	defer c.Close()
	entries, err := c.Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("cache entries = %d, want 1", len(entries))
	}
}

func TestRunDebug(t *testing.T) {
	_, input := writeProject(t, "", helloSource)

	var stdout, stderr bytes.Buffer
	if code := run([]string{"-debug", "-no-cache", input}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit = %d, stderr = %q", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Compilation successful") {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"parse", "fn other() { }", "Error: line 1:4: only `main` is supported"},
		{"register", "fn main() { push(R0); }", "register R0 used outside unsafe block"},
		{"encode", "fn main() { FOO; }", "Error: line 1:13: unsupported instruction: FOO"},
		{"missing main", "", "Error: missing main"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, input := writeProject(t, "", tt.source)

			var stdout, stderr bytes.Buffer
			if code := run([]string{"-no-cache", input}, &stdout, &stderr); code != 1 {
				t.Errorf("exit = %d, want 1", code)
			}
			if !strings.Contains(stderr.String(), tt.want) {
				t.Errorf("stderr = %q, want it to contain %q", stderr.String(), tt.want)
			}
			if stdout.Len() != 0 {
				t.Errorf("stdout = %q, want empty", stdout.String())
			}
			if _, err := os.Stat(filepath.Join(dir, "hello.bcx")); !os.IsNotExist(err) {
				t.Errorf("output written despite error (err = %v)", err)
			}
		})
	}
}

func TestRunMissingInput(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-no-cache", filepath.Join(t.TempDir(), "nope.bbx")}, &stdout, &stderr); code != 1 {
		t.Errorf("exit = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "Error: reading input") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestRunUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(nil, &stdout, &stderr); code != 1 {
		t.Errorf("exit = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "Usage: bbc") {
		t.Errorf("stderr = %q, want usage", stderr.String())
	}
}

func TestRunConfigFlag(t *testing.T) {
	_, input := writeProject(t, "", helloSource)
	cfgDir := t.TempDir()
	cfg := filepath.Join(cfgDir, "alt.toml")
	if err := os.WriteFile(cfg, []byte("[build]\noutput = \"alt.bcx\"\n[cache]\nenabled = false\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if code := run([]string{"-config", cfg, input}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit = %d, stderr = %q", code, stderr.String())
	}
	if _, err := os.Stat(filepath.Join(cfgDir, "alt.bcx")); err != nil {
		t.Errorf("output from -config not written: %v", err)
	}
}

func TestRunDefaultCacheBesideInput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "hello.bbx")
	if err := os.WriteFile(input, []byte(helloSource), 0644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if code := run([]string{input}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit = %d, stderr = %q", code, stderr.String())
	}
	if _, err := os.Stat(filepath.Join(dir, ".bblang", "cache.db")); err != nil {
		t.Errorf("default cache not created next to the input: %v", err)
	}
}

func TestCompileWarnsOnCacheHit(t *testing.T) {
	dir := t.TempDir()
	c, err := cache.Open(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatalf("opening cache: %v", err)
	}
	defer c.Close()

	source := []byte("fn main() {\n  HALT;\n  NEWLINE;\n}\n")
	for i, wantHit := range []bool{false, true} {
		b := &build{input: "warn.bbx"}
		if _, err := c.Get(source); (err == nil) != wantHit {
			t.Fatalf("build %d: cache hit = %v, want %v", i, err == nil, wantHit)
		}
		if _, err := b.compile(c, source); err != nil {
			t.Fatalf("build %d: compile: %v", i, err)
		}
		if len(b.warnings) != 1 || b.warnings[0].Msg != "unreachable code after HALT" {
			t.Errorf("build %d: warnings = %v, want the unreachable-code warning", i, b.warnings)
		}
	}
}
