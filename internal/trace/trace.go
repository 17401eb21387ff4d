// Package trace provides the compiler's -v diagnostic narration (spec.md
// §6.1 "-v is advisory (may enable diagnostic dumps)"). It never affects
// compilation output; a Logger with Verbose=false is a no-op.
package trace

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/kr/pretty"
	"github.com/mattn/go-isatty"

	"accvm/internal/ast"
	"accvm/internal/ir"
	"accvm/internal/lexer"
	"accvm/internal/symtab"
)

// Logger narrates pipeline stages to stderr when verbose. Each run gets a
// fresh RunID so concurrent `-v` invocations piped into one log don't
// interleave unattributably.
type Logger struct {
	RunID   uuid.UUID
	Verbose bool
	color   bool
}

// New creates a Logger. verbose=false makes every method a no-op, so
// callers don't need to guard call sites with an if.
func New(verbose bool) *Logger {
	return &Logger{
		RunID:   uuid.New(),
		Verbose: verbose,
		color:   verbose && isatty.IsTerminal(os.Stderr.Fd()),
	}
}

func (l *Logger) printf(format string, args ...interface{}) {
	if !l.Verbose {
		return
	}
	prefix := fmt.Sprintf("[%s] ", l.RunID.String()[:8])
	if l.color {
		prefix = "\033[2m" + prefix + "\033[0m"
	}
	fmt.Fprintf(os.Stderr, prefix+format+"\n", args...)
}

// Step announces entry into a pipeline stage.
func (l *Logger) Step(stage string) { l.printf("stage=%s", stage) }

func (l *Logger) Tokens(toks []lexer.Token) {
	l.printf("lexed %s tokens", humanize.Comma(int64(len(toks))))
}

func (l *Logger) AST(prog *ast.Program) {
	l.printf("parsed %s procedure(s), %s top-level command(s)",
		humanize.Comma(int64(len(prog.Procs))), humanize.Comma(int64(len(prog.Cmds))))
	if l.Verbose {
		fmt.Fprintf(os.Stderr, "%# v\n", pretty.Formatter(prog))
	}
}

func (l *Logger) Symbols(t *symtab.Table) {
	l.printf("symbol table built; costly ops: %v", t.CostlyOperations())
}

func (l *Logger) IR(prog *ir.Program) {
	l.printf("built IR: %s instruction(s), %s variable(s), %s callable(s)",
		humanize.Comma(int64(len(prog.Instrs))),
		humanize.Comma(int64(len(prog.Vars.All()))),
		humanize.Comma(int64(len(prog.Procs))))
}

func (l *Logger) Listing(listing string) {
	l.printf("emitted listing: %s", humanize.Bytes(uint64(len(listing))))
	if l.Verbose {
		fmt.Fprint(os.Stderr, listing)
	}
}
