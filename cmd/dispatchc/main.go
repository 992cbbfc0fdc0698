// dispatchc compiles switch dispatch descriptions into bytecode.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"

	"github.com/chazu/dispatch/pkg/bytecode"
	"github.com/chazu/dispatch/pkg/cache"
	"github.com/chazu/dispatch/pkg/lower"
	"github.com/chazu/dispatch/pkg/switchdef"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("dispatchc")

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	disasm := flag.Bool("disasm", false, "Print the disassembly of the compiled dispatch")
	runKey := flag.String("run", "", "Evaluate the dispatch for the given runtime key")
	runNil := flag.Bool("run-nil", false, "Evaluate the dispatch for the nil runtime key")
	output := flag.String("o", "", "Write the compiled artifact to the given file")
	cachePath := flag.String("cache", "", "Consult and populate a SQLite artifact cache at the given path")
	noAux := flag.Bool("no-aux", false, "Compile for a target without auxiliary dispatch tables (forces linear dispatch)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: dispatchc [options] <switch.toml>\n\n")
		fmt.Fprintf(os.Stderr, "Compiles a switch dispatch description into bytecode.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  dispatchc -disasm http.toml          # Show the emitted branch graph\n")
		fmt.Fprintf(os.Stderr, "  dispatchc -run GET http.toml         # Which target does \"GET\" reach?\n")
		fmt.Fprintf(os.Stderr, "  dispatchc -o http.dsp http.toml      # Write the compiled artifact\n")
		fmt.Fprintf(os.Stderr, "  dispatchc -cache dc.db http.toml     # Reuse previously compiled artifacts\n")
	}
	flag.Parse()

	verbosity := 0
	if *verbose {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	def, err := switchdef.Load(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	compiled, err := compile(def, *cachePath, !*noAux)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log.Infof("compiled %q: %s dispatch, %d cases, %d targets, %d bytes of code",
		compiled.Name, compiled.Strategy, len(def.Cases), len(compiled.Targets), compiled.Chunk.CodeLen())

	if *disasm {
		fmt.Print(compiled.Chunk.DisassembleWithName(compiled.Name))
	}

	if *runKey != "" || *runNil {
		key := bytecode.StringValue(*runKey)
		if *runNil {
			key = bytecode.NilValue()
		}
		target, err := compiled.Run(key)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s -> %s\n", key, target)
	}

	if *output != "" {
		data, err := compiled.MarshalArtifact()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*output, data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		log.Infof("wrote artifact to %s (%d bytes)", *output, len(data))
	}
}

// compile lowers the definition, going through the artifact cache when one
// is configured. Cached artifacts are keyed by the definition's content
// hash, so capability changes do not alias: the flag is folded into the
// lookup only by skipping the cache for the unusual no-aux case.
func compile(def *switchdef.Definition, cachePath string, supportsAuxTypes bool) (*lower.Compiled, error) {
	if cachePath == "" || !supportsAuxTypes {
		return lower.CompileWithCapability(def, supportsAuxTypes)
	}

	store, err := cache.Open(cachePath)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	hash, err := def.ContentHash()
	if err != nil {
		return nil, err
	}

	if data, err := store.Get(hash); err == nil {
		log.Infof("cache hit for %q", def.Switch.Name)
		return lower.UnmarshalArtifact(data)
	} else if !errors.Is(err, cache.ErrNotFound) {
		return nil, err
	}

	compiled, err := lower.Compile(def)
	if err != nil {
		return nil, err
	}

	data, err := compiled.MarshalArtifact()
	if err != nil {
		return nil, err
	}
	if err := store.Put(hash, compiled.Name, data); err != nil {
		return nil, err
	}
	log.Infof("cached %q", compiled.Name)

	return compiled, nil
}
