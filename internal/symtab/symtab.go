// Package symtab builds the symbol-table contract spec.md §6.3 describes as
// an external collaborator. internal/ir consumes it read-only (spec.md §2
// step 1, §5): only this package ever mutates it, and once Build returns,
// the table is immutable.
//
// This is glue, like internal/lexer and internal/parser: semantic analysis
// (scoping, type checking, initialization tracking) is explicitly out of
// spec.md's scope. Build performs just enough of it — one scope-tracking
// walk — to produce a table internal/ir can trust.
package symtab

import (
	"accvm/internal/ast"
	"accvm/internal/diagnostics"
)

// Symbol describes one declared name: a scalar or array, local or
// parameter, in main scope or inside a named procedure.
type Symbol struct {
	Name              string
	Scope             string // "" for main, else the owning procedure's name
	IsArray           bool
	Bounds            *ast.ArrayBounds // nil unless IsArray
	IsParameter       bool
	IsArrayParameter  bool
	ProcedureName     string // same as Scope; kept distinct per spec.md §6.3 wording
}

// ProcParam is one formal parameter as internal/ir needs it.
type ProcParam struct {
	Name    string
	IsArray bool
}

// Table is the concrete, read-only symbol table internal/ir consumes.
type Table struct {
	// symbols maps "scope#name" (scope == "" for main) to its Symbol.
	symbols map[string]*Symbol
	procs   map[string][]ProcParam
	costly  map[string]bool
}

func newTable() *Table {
	return &Table{
		symbols: make(map[string]*Symbol),
		procs:   make(map[string][]ProcParam),
		costly:  make(map[string]bool),
	}
}

func key(scope, name string) string { return scope + "#" + name }

// Lookup resolves name as seen from inside scope ("" for main).
func (t *Table) Lookup(scope, name string) (*Symbol, bool) {
	sym, ok := t.symbols[key(scope, name)]
	return sym, ok
}

// GetProcedureParams returns name's formal parameter list, in declaration
// order, or false if name is not a declared procedure.
func (t *Table) GetProcedureParams(name string) ([]ProcParam, bool) {
	params, ok := t.procs[name]
	return params, ok
}

// IsParameter reports whether name is a formal parameter of scope.
func (t *Table) IsParameter(scope, name string) bool {
	sym, ok := t.Lookup(scope, name)
	return ok && sym.IsParameter
}

// CostlyOperations is the set of {*, /, %} actually used anywhere in the
// program, gating which arithmetic subroutines internal/arith synthesizes.
func (t *Table) CostlyOperations() map[string]bool {
	return t.costly
}

// Build performs the single scope-tracking walk that produces a Table from
// a parsed Program. It is the minimal semantic pass this repository ships
// so the pipeline is runnable end to end; it does not claim to be a full
// semantic analyzer (initialization tracking, type checking).
func Build(prog *ast.Program) (*Table, error) {
	t := newTable()

	for _, d := range prog.Decls {
		if err := t.declare("", d, false, false); err != nil {
			return nil, err
		}
	}
	for _, proc := range prog.Procs {
		var params []ProcParam
		for _, p := range proc.Params {
			params = append(params, ProcParam{Name: p.Name, IsArray: p.IsArray})
			if err := t.declareParam(proc.Name, p); err != nil {
				return nil, err
			}
		}
		t.procs[proc.Name] = params
		for _, d := range proc.Decls {
			if err := t.declare(proc.Name, d, false, false); err != nil {
				return nil, err
			}
		}
	}

	for _, proc := range prog.Procs {
		if err := t.walkCommands(proc.Name, proc.Cmds); err != nil {
			return nil, err
		}
	}
	if err := t.walkCommands("", prog.Cmds); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) declare(scope string, d *ast.Declaration, isParam, isArrayParam bool) error {
	k := key(scope, d.Name)
	if _, exists := t.symbols[k]; exists {
		return diagnostics.NewSourceError(d.Loc, "redeclaration of \""+d.Name+"\"")
	}
	t.symbols[k] = &Symbol{
		Name:             d.Name,
		Scope:            scope,
		IsArray:          d.ArrayBounds != nil,
		Bounds:           d.ArrayBounds,
		IsParameter:      isParam,
		IsArrayParameter: isArrayParam,
		ProcedureName:    scope,
	}
	return nil
}

func (t *Table) declareParam(scope string, p ast.Param) error {
	k := key(scope, p.Name)
	if _, exists := t.symbols[k]; exists {
		return diagnostics.NewSourceError(ast.Location{}, "redeclaration of parameter \""+p.Name+"\"")
	}
	t.symbols[k] = &Symbol{
		Name:             p.Name,
		Scope:            scope,
		IsArray:          p.IsArray,
		IsParameter:      true,
		IsArrayParameter: p.IsArray,
		ProcedureName:    scope,
	}
	return nil
}

func (t *Table) walkCommands(scope string, cmds []ast.Command) error {
	for _, c := range cmds {
		if err := t.walkCommand(scope, c); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) walkCommand(scope string, c ast.Command) error {
	switch n := c.(type) {
	case *ast.Assign:
		t.walkExpr(n.Expr)
	case *ast.If:
		t.walkCond(n.Cond)
		if err := t.walkCommands(scope, n.Then); err != nil {
			return err
		}
		if err := t.walkCommands(scope, n.Else); err != nil {
			return err
		}
	case *ast.While:
		t.walkCond(n.Cond)
		return t.walkCommands(scope, n.Body)
	case *ast.Repeat:
		if err := t.walkCommands(scope, n.Body); err != nil {
			return err
		}
		t.walkCond(n.Cond)
	case *ast.For:
		t.walkExpr(n.Start)
		t.walkExpr(n.End)
		return t.walkCommands(scope, n.Body)
	case *ast.ProcCall, *ast.Read, *ast.Write:
		if w, ok := c.(*ast.Write); ok {
			t.walkExpr(w.Value)
		}
	}
	return nil
}

func (t *Table) walkCond(c ast.Cond) {
	t.walkExpr(c.L)
	t.walkExpr(c.R)
}

func (t *Table) walkExpr(e ast.Expr) {
	if b, ok := e.(*ast.BinOp); ok {
		switch b.Op {
		case "*", "/", "%":
			t.costly[b.Op] = true
		}
		t.walkExpr(b.L)
		t.walkExpr(b.R)
	}
}
