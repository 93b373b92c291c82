// bbc compiles bblang source files into bcx containers.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/bblang/cache"
	"github.com/chazu/bblang/compiler"
	"github.com/chazu/bblang/manifest"
	"github.com/chazu/bblang/server"
)

const version = "0.1.0"

// debugVerbosity is the commonlog verbosity that enables debug messages.
const debugVerbosity = 4

var log = commonlog.GetLogger("bblang.bbc")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("bbc", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var debug bool
	fs.BoolVar(&debug, "d", false, "Log the parsed AST and build steps")
	fs.BoolVar(&debug, "debug", false, "Same as -d")
	lspMode := fs.Bool("lsp", false, "Run the language server on stdio")
	noCache := fs.Bool("no-cache", false, "Skip the build cache")
	configPath := fs.String("config", "", "Path to a bblang.toml (default: search upward from the input)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: bbc [options] input.bbx [output.bcx]\n\n")
		fmt.Fprintf(stderr, "Compiles a bblang source file into a bcx container.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  bbc hello.bbx              # Writes hello.bcx\n")
		fmt.Fprintf(stderr, "  bbc -d hello.bbx out.bcx   # Logs the AST, writes out.bcx\n")
		fmt.Fprintf(stderr, "  bbc -lsp                   # Language server for editors\n")
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	if *lspMode {
		commonlog.Configure(0, nil)
		if err := server.NewLSP(version).Run(); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	if fs.NArg() < 1 || fs.NArg() > 2 {
		fs.Usage()
		return 1
	}
	input := fs.Arg(0)

	m, err := loadManifest(*configPath, filepath.Dir(input))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	debug = debug || m.Build.Debug

	verbosity := 0
	if debug {
		verbosity = debugVerbosity
	}
	commonlog.Configure(verbosity, nil)

	output := m.OutputPath(input)
	if fs.NArg() == 2 {
		output = fs.Arg(1)
	}

	b := &build{
		input:    input,
		output:   output,
		debug:    debug,
		useCache: m.Cache.Enabled && !*noCache,
		cacheDB:  m.CachePath(),
	}
	if err := b.run(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintln(stdout, "Compilation successful (bblang).")
	return 0
}

// loadManifest honours -config, then searches upward from dir, then falls
// back to the defaults rooted at dir.
func loadManifest(configPath, dir string) (*manifest.Manifest, error) {
	if configPath != "" {
		return manifest.LoadFile(configPath)
	}
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = manifest.Default()
		if m.Dir, err = filepath.Abs(dir); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// build compiles one source file.
type build struct {
	input    string
	output   string
	debug    bool
	useCache bool
	cacheDB  string

	warnings []compiler.Warning
}

func (b *build) run() error {
	source, err := os.ReadFile(b.input)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	log.Debugf("input=%s output=%s pathway=source", b.input, b.output)

	var c *cache.Cache
	if b.useCache {
		c, err = cache.Open(b.cacheDB)
		if err != nil {
			log.Warningf("build cache unavailable: %v", err)
		} else {
			defer c.Close()
		}
	}

	container, err := b.compile(c, source)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(b.output); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	if err := os.WriteFile(b.output, container, 0644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	log.Debugf("wrote %d bytes to %s", len(container), b.output)
	return nil
}

// compile returns the container for source, from the cache when possible.
// The source is always parsed and analyzed so cached builds report the same
// warnings as fresh ones.
func (b *build) compile(c *cache.Cache, source []byte) ([]byte, error) {
	prog, err := b.parse(source)
	if err != nil {
		return nil, err
	}

	if c != nil {
		container, err := c.Get(source)
		if err == nil {
			log.Debugf("cache hit %s", cache.Key(source))
			return container, nil
		}
		if !errors.Is(err, cache.ErrNotFound) {
			log.Warningf("reading build cache: %v", err)
		}
	}

	container, err := compiler.Emit(prog)
	if err != nil {
		return nil, err
	}

	if c != nil {
		if err := c.Put(source, container); err != nil {
			log.Warningf("writing build cache: %v", err)
		}
	}
	return container, nil
}

func (b *build) parse(source []byte) (*compiler.Program, error) {
	prog, err := compiler.Parse(string(source))
	if err != nil {
		return nil, err
	}
	if b.debug {
		log.Debugf("AST:\n%s", compiler.Dump(prog))
	}
	b.warnings = compiler.Analyze(prog)
	for _, w := range b.warnings {
		log.Warningf("%s: %s", b.input, w)
	}
	return prog, nil
}
