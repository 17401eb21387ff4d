package symtab

import (
	"testing"

	"accvm/internal/lexer"
	"accvm/internal/parser"
)

func build(t *testing.T, src string) *Table {
	t.Helper()
	toks, err := lexer.NewScanner("t.imp", src).ScanTokens()
	if err != nil {
		t.Fatalf("lex error: %v", err)
	}
	prog, err := parser.New("t.imp", toks).Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	tab, err := Build(prog)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return tab
}

func TestBuildMainScope(t *testing.T) {
	tab := build(t, "PROGRAM IS a, b[0:4] BEGIN a := 1; WRITE a; END")
	sym, ok := tab.Lookup("", "a")
	if !ok || sym.IsArray {
		t.Fatalf("expected scalar 'a', got %#v", sym)
	}
	sym, ok = tab.Lookup("", "b")
	if !ok || !sym.IsArray || sym.Bounds.Lo != 0 || sym.Bounds.Hi != 4 {
		t.Fatalf("expected array 'b'[0:4], got %#v", sym)
	}
}

func TestBuildProcedureParams(t *testing.T) {
	tab := build(t, `
PROCEDURE p(T a, n) IS i BEGIN i := n; END
PROGRAM IS x[0:9], y BEGIN p(x, y); END`)
	params, ok := tab.GetProcedureParams("p")
	if !ok || len(params) != 2 {
		t.Fatalf("expected 2 params for p, got %#v", params)
	}
	if !params[0].IsArray || params[1].IsArray {
		t.Fatalf("unexpected param array-ness: %#v", params)
	}
	if !tab.IsParameter("p", "a") || !tab.IsParameter("p", "n") {
		t.Error("expected both a and n to be parameters of p")
	}
	local, ok := tab.Lookup("p", "i")
	if !ok || local.IsParameter {
		t.Fatalf("expected 'i' to be a non-parameter local of p, got %#v", local)
	}
}

func TestBuildRejectsRedeclaration(t *testing.T) {
	toks, err := lexer.NewScanner("t.imp", "PROGRAM IS a, a BEGIN WRITE a; END").ScanTokens()
	if err != nil {
		t.Fatalf("lex error: %v", err)
	}
	prog, err := parser.New("t.imp", toks).Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if _, err := Build(prog); err == nil {
		t.Fatal("expected a redeclaration error")
	}
}

func TestCostlyOperationsTracksMulDivMod(t *testing.T) {
	tab := build(t, "PROGRAM IS a, b, c BEGIN a := b * c; WRITE a; END")
	costly := tab.CostlyOperations()
	if !costly["*"] {
		t.Error("expected '*' to be marked costly")
	}
	if costly["/"] || costly["%"] {
		t.Error("did not expect '/' or '%' to be marked costly")
	}
}

func TestCostlyOperationsEmptyWhenUnused(t *testing.T) {
	tab := build(t, "PROGRAM IS a, b BEGIN a := b + 1; WRITE a; END")
	costly := tab.CostlyOperations()
	if costly["*"] || costly["/"] || costly["%"] {
		t.Errorf("expected no costly operations, got %#v", costly)
	}
}
