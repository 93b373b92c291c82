// bbdis prints the instructions in a bcx container.
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

	"github.com/chazu/bblang/bytecode"
	"github.com/chazu/bblang/manifest"
)

const defaultPath = "out.bcx"

var log = commonlog.GetLogger("bblang.bbdis")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("bbdis", flag.ContinueOnError)
	fs.SetOutput(stderr)

	format := fs.String("format", "", "Output format: text or cbor (default from bblang.toml, else text)")
	verbose := fs.Bool("v", false, "Verbose logging")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: bbdis [options] [path]\n\n")
		fmt.Fprintf(stderr, "Disassembles a bcx container (default %s).\n\n", defaultPath)
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if fs.NArg() > 1 {
		fs.Usage()
		return 1
	}

	verbosity := 0
	if *verbose {
		verbosity = 4
	}
	commonlog.Configure(verbosity, nil)

	path := defaultPath
	if fs.NArg() == 1 {
		path = fs.Arg(0)
	}

	if *format == "" {
		*format = manifest.DefaultDisasmFormat
		m, err := manifest.FindAndLoad(filepath.Dir(path))
		if err != nil {
			log.Warningf("ignoring manifest: %v", err)
		} else if m != nil {
			*format = m.Disasm.Format
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "failed to read %s: %v\n", path, err)
		return 1
	}
	log.Debugf("%s: %d bytes, format=%s", path, len(data), *format)

	switch *format {
	case "text":
		err = writeText(stdout, data)
	case "cbor":
		err = writeCBOR(stdout, data)
	default:
		err = fmt.Errorf("unknown format %q (want text or cbor)", *format)
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func writeText(w io.Writer, data []byte) error {
	text, err := bytecode.DisassembleToString(data)
	if err != nil {
		// The header is still reported before the truncation error.
		if h, ok := bytecode.ParseHeader(data); ok {
			fmt.Fprintln(w, h)
		}
		return err
	}
	_, err = io.WriteString(w, text)
	return err
}

func writeCBOR(w io.Writer, data []byte) error {
	listing, err := bytecode.BuildListing(data)
	if err != nil {
		return err
	}
	enc, err := bytecode.MarshalListing(listing)
	if err != nil {
		return err
	}
	_, err = w.Write(enc)
	return err
}
