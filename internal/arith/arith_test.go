package arith

import (
	"testing"

	"accvm/internal/ir"
	"accvm/internal/lexer"
	"accvm/internal/parser"
	"accvm/internal/symtab"
)

func buildWith(t *testing.T, src string) *ir.Program {
	t.Helper()
	toks, err := lexer.NewScanner("t.imp", src).ScanTokens()
	if err != nil {
		t.Fatalf("lex error: %v", err)
	}
	prog, err := parser.New("t.imp", toks).Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	syms, err := symtab.Build(prog)
	if err != nil {
		t.Fatalf("symtab.Build: %v", err)
	}
	irProg, err := ir.Build(prog, syms, Synth{})
	if err != nil {
		t.Fatalf("ir.Build: %v", err)
	}
	return irProg
}

func TestSynthesizeAlwaysEmitsAbs(t *testing.T) {
	prog := buildWith(t, "PROGRAM IS a, b BEGIN a := b + 1; WRITE a; END")
	if _, ok := prog.Procs["abs"]; !ok {
		t.Error("expected 'abs' to be synthesized unconditionally")
	}
	if _, ok := prog.Procs["mul"]; ok {
		t.Error("did not expect 'mul' without a costly '*'")
	}
	if _, ok := prog.Procs["div"]; ok {
		t.Error("did not expect 'div' without a costly '/' or '%'")
	}
}

func TestSynthesizeEmitsMulWhenCostly(t *testing.T) {
	prog := buildWith(t, "PROGRAM IS a, b, c BEGIN a := b * c; WRITE a; END")
	info, ok := prog.Procs["mul"]
	if !ok {
		t.Fatal("expected 'mul' to be synthesized")
	}
	if info.ReturnVar == nil {
		t.Error("expected mul's ProcInfo to carry a ReturnVar")
	}
}

func TestSynthesizeEmitsDivForBothDivAndMod(t *testing.T) {
	prog := buildWith(t, "PROGRAM IS a, b, c, d BEGIN a := b / c; d := b % c; WRITE a; END")
	if _, ok := prog.Procs["div"]; !ok {
		t.Fatal("expected 'div' to be synthesized once for both / and %")
	}
}

func TestMulSubroutineUsesHalfAndBinOp(t *testing.T) {
	prog := buildWith(t, "PROGRAM IS a, b, c BEGIN a := b * c; WRITE a; END")
	var sawHalf, sawBinOp bool
	inMul := false
	for _, in := range prog.Instrs {
		if l, ok := in.(*ir.Label); ok && l.Proc == "mul" {
			inMul = true
		}
		if !inMul {
			continue
		}
		switch in.(type) {
		case *ir.Half:
			sawHalf = true
		case *ir.BinOp:
			sawBinOp = true
		}
	}
	if !sawHalf || !sawBinOp {
		t.Errorf("expected mul's body to use Half and BinOp (half=%v binop=%v)", sawHalf, sawBinOp)
	}
}
