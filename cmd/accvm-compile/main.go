// Command accvm-compile is the CLI front end for the compiler (spec.md
// §6.1): compile <input> [-v] [--semantic-only] <output>.
package main

import (
	"fmt"
	"log"
	"os"

	"accvm/internal/compiler"
	"accvm/internal/diagnostics"
)

const usage = `USAGE: accvm-compile <input> [-v] [--semantic-only] <output>
EXAMPLE: accvm-compile program.imp out.vm
EXAMPLE: accvm-compile program.imp -v out.vm`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, input, output, err := parseArgs(args)
	if err != nil {
		log.Print(err)
		log.Print(usage)
		return 1
	}

	src, err := os.ReadFile(input)
	if err != nil {
		log.Printf("reading %s: %v", input, err)
		return 2
	}
	opts.File = input

	result, err := compiler.Compile(string(src), opts)
	if err != nil {
		log.Print(renderError(err, string(src)))
		return exitCodeFor(err)
	}

	if opts.SemanticOnly {
		return 0
	}

	if err := os.WriteFile(output, []byte(result.Listing), 0o644); err != nil {
		log.Printf("writing %s: %v", output, err)
		return 2
	}
	return 0
}

func parseArgs(args []string) (compiler.Options, string, string, error) {
	var opts compiler.Options
	var positional []string
	for _, a := range args {
		switch a {
		case "-v":
			opts.Verbose = true
		case "--semantic-only":
			opts.SemanticOnly = true
		default:
			positional = append(positional, a)
		}
	}
	if opts.SemanticOnly {
		if len(positional) != 1 && len(positional) != 2 {
			return opts, "", "", fmt.Errorf("expected an input and an optional output with --semantic-only, got %d positional arguments", len(positional))
		}
		return opts, positional[0], "", nil
	}
	if len(positional) != 2 {
		return opts, "", "", fmt.Errorf("expected exactly two positional arguments (input, output), got %d", len(positional))
	}
	return opts, positional[0], positional[1], nil
}

// renderError formats err with the offending source line and a caret under
// the reported column, when err carries a *diagnostics.Error location.
// The stage prefix every *compiler.Error already carries is kept either
// way, so callers grepping stderr for a stage name see no change in shape.
func renderError(err error, src string) string {
	ce, ok := err.(*compiler.Error)
	if !ok {
		return err.Error()
	}
	if de, ok := diagnostics.As(ce.Err); ok {
		return fmt.Sprintf("%s: %s", ce.Stage, de.Render(src))
	}
	return err.Error()
}

// exitCodeFor maps a pipeline stage to a distinct, implementation-defined
// exit code (spec.md §6.1: "non-zero ... but distinct on parse, semantic,
// or IR errors").
func exitCodeFor(err error) int {
	ce, ok := err.(*compiler.Error)
	if !ok {
		return 10
	}
	switch ce.Stage {
	case compiler.StageLex:
		return 3
	case compiler.StageParse:
		return 4
	case compiler.StageSemantic:
		return 5
	case compiler.StageIR:
		return 6
	case compiler.StageMemory:
		return 7
	case compiler.StageCodegen:
		return 8
	case compiler.StageResolve:
		return 9
	default:
		return 10
	}
}
