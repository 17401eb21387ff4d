// Package compiler ties the pipeline together: lexer, parser, and symtab
// (external collaborators, spec.md §1) feeding the core — internal/ir,
// internal/arith, internal/memlayout, internal/codegen, internal/vmisa
// (spec.md §2) — into a single Compile call.
package compiler

import (
	"fmt"

	"accvm/internal/arith"
	"accvm/internal/ast"
	"accvm/internal/codegen"
	"accvm/internal/ir"
	"accvm/internal/lexer"
	"accvm/internal/memlayout"
	"accvm/internal/parser"
	"accvm/internal/symtab"
	"accvm/internal/trace"
	"accvm/internal/vmisa"
)

// Stage names one pipeline step, used for -v tracing and for distinguishing
// exit codes at the CLI boundary (spec.md §6.1).
type Stage string

const (
	StageLex       Stage = "lex"
	StageParse     Stage = "parse"
	StageSemantic  Stage = "semantic"
	StageIR        Stage = "ir"
	StageMemory    Stage = "memory"
	StageCodegen   Stage = "codegen"
	StageResolve   Stage = "resolve"
)

// Error wraps a pipeline failure with the stage it occurred in, so the CLI
// can map stages to distinct exit codes (spec.md §6.1).
type Error struct {
	Stage Stage
	Err   error
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Options controls how far Compile runs and how much it narrates.
type Options struct {
	File         string // source filename, used for diagnostics locations
	SemanticOnly bool   // stop after symbol-table construction (spec.md §6.1)
	Verbose      bool   // emit a trace.Logger narration of each stage
}

// Result is what a full Compile produces: every phase's output, in case a
// caller (tests, -v dumps) wants to inspect an intermediate stage.
type Result struct {
	Program  *ast.Program
	Symbols  *symtab.Table
	IR       *ir.Program
	Memory   *memlayout.Map
	Resolved []vmisa.Instr
	Listing  string
}

// Compile runs the whole pipeline over source, aborting all-or-nothing on
// the first fatal error (spec.md §5, §7): no partial output is ever
// returned alongside a non-nil error.
func Compile(source string, opts Options) (*Result, error) {
	tr := trace.New(opts.Verbose)

	tr.Step("lex")
	toks, err := lexer.NewScanner(opts.File, source).ScanTokens()
	if err != nil {
		return nil, &Error{Stage: StageLex, Err: err}
	}
	tr.Tokens(toks)

	tr.Step("parse")
	prog, err := parser.New(opts.File, toks).Parse()
	if err != nil {
		return nil, &Error{Stage: StageParse, Err: err}
	}
	tr.AST(prog)

	tr.Step("semantic")
	syms, err := symtab.Build(prog)
	if err != nil {
		return nil, &Error{Stage: StageSemantic, Err: err}
	}
	tr.Symbols(syms)

	res := &Result{Program: prog, Symbols: syms}
	if opts.SemanticOnly {
		return res, nil
	}

	tr.Step("ir")
	irProg, err := ir.Build(prog, syms, arith.Synth{})
	if err != nil {
		return nil, &Error{Stage: StageIR, Err: err}
	}
	tr.IR(irProg)
	res.IR = irProg

	tr.Step("memory")
	mm := memlayout.Build(irProg.Vars)
	res.Memory = mm

	tr.Step("codegen")
	vmInstrs, err := codegen.Generate(irProg, mm)
	if err != nil {
		return nil, &Error{Stage: StageCodegen, Err: err}
	}

	tr.Step("resolve")
	resolved, err := vmisa.Resolve(vmInstrs)
	if err != nil {
		return nil, &Error{Stage: StageResolve, Err: err}
	}
	res.Resolved = resolved
	res.Listing = vmisa.Render(resolved)
	tr.Listing(res.Listing)

	return res, nil
}
